package api

import "shielder/internal/shielder"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Success   bool    `json:"success"`
	Error     string  `json:"error"`
	Code      string  `json:"code"`
	LeafIndex *uint32 `json:"leaf_index,omitempty"`
}

// RegisterRequest submits a creation proof. Proof is base64 in JSON.
type RegisterRequest struct {
	NewNote shielder.Scalar                      `json:"new_note"`
	Tokens  [shielder.TokenSlots]shielder.Scalar `json:"tokens"`
	Proof   []byte                               `json:"proof"`
}

// UpdateRequest submits an update proof.
type UpdateRequest struct {
	Op           shielder.OpPub  `json:"op"`
	NewNote      shielder.Scalar `json:"new_note"`
	MerkleRoot   shielder.Scalar `json:"merkle_root"`
	OldNullifier shielder.Scalar `json:"old_nullifier"`
	Proof        []byte          `json:"proof"`
}

func (r UpdateRequest) statement() shielder.UpdateStatement {
	return shielder.UpdateStatement{Op: r.Op, NewNote: r.NewNote, MerkleRoot: r.MerkleRoot, OldNullifier: r.OldNullifier}
}

// LeafResponse answers a successful registration or update.
type LeafResponse struct {
	Success   bool            `json:"success"`
	LeafIndex uint32          `json:"leaf_index"`
	Root      shielder.Scalar `json:"root"`
}

type RootResponse struct {
	Root          shielder.Scalar `json:"root"`
	NextLeafIndex uint32          `json:"next_leaf_index"`
}

type RootStatusResponse struct {
	Root  shielder.Scalar `json:"root"`
	Known bool            `json:"known"`
}

type PathResponse struct {
	LeafIndex uint32              `json:"leaf_index"`
	Path      shielder.MerklePath `json:"path"`
	Root      shielder.Scalar     `json:"root"`
}

type NullifierResponse struct {
	Nullifier shielder.Scalar `json:"nullifier"`
	Used      bool            `json:"used"`
}

type TokensResponse struct {
	Tokens []shielder.Scalar `json:"tokens"`
}

type TokenResponse struct {
	ID    shielder.Scalar `json:"id"`
	Bound bool            `json:"bound"`
}

// RegisterTokenRequest is the admin call binding a new token id.
type RegisterTokenRequest struct {
	ID shielder.Scalar `json:"id"`
}
