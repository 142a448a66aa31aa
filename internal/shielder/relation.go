// relation.go - Native form of the creation and update relations.
//
// A statement is the public input of a relation, a witness its private input. The public-input
// vector produced by PublicInputs is the wire contract shared by every ProvingBackend and by the
// circuits in internal/transactions: its order must never change.

package shielder

import "fmt"

// Relation identifies which of the two relations a proof is for.
type Relation uint8

const (
	RelationCreation Relation = iota
	RelationUpdate
)

func (r Relation) String() string {
	switch r {
	case RelationCreation:
		return "creation"
	case RelationUpdate:
		return "update"
	default:
		return fmt.Sprintf("relation(%d)", uint8(r))
	}
}

// CreationPublicInputs is the length of a creation statement's public inputs.
const CreationPublicInputs = 1 + TokenSlots

// UpdatePublicInputs is the length of an update statement's public inputs.
const UpdatePublicInputs = OpPubFields + 3

// CreationStatement is the public input of the creation relation.
type CreationStatement struct {
	NewNote Scalar             `json:"new_note"`
	Tokens  [TokenSlots]Scalar `json:"tokens"`
}

// PublicInputs encodes the statement as [new_note, tokens...].
func (s CreationStatement) PublicInputs() []Scalar {
	out := make([]Scalar, 0, CreationPublicInputs)
	out = append(out, s.NewNote)
	return append(out, s.Tokens[:]...)
}

// DecodeCreationStatement is the inverse of CreationStatement.PublicInputs.
func DecodeCreationStatement(in []Scalar) (CreationStatement, error) {
	if len(in) != CreationPublicInputs {
		return CreationStatement{}, fmt.Errorf("%w: creation needs %d inputs, got %d", ErrMalformedPublicInputs, CreationPublicInputs, len(in))
	}
	var st CreationStatement
	st.NewNote = in[0]
	copy(st.Tokens[:], in[1:])
	return st, nil
}

// CreationWitness is the private input of the creation relation.
type CreationWitness struct {
	ID        Scalar `json:"id"`
	Trapdoor  Scalar `json:"trapdoor"`
	Nullifier Scalar `json:"nullifier"`
}

// VerifyCreation checks that NewNote commits to a fresh zero-balance account over Tokens.
func VerifyCreation(st CreationStatement, w CreationWitness) error {
	acc := NewAccount(st.Tokens)
	note := Note{ID: w.ID, Trapdoor: w.Trapdoor, Nullifier: w.Nullifier, AccountCommitment: HashAccount(acc)}
	if note.Commitment() != st.NewNote {
		return fmt.Errorf("%w: new note does not commit to a fresh account", ErrVerificationFailed)
	}
	return nil
}

// UpdateStatement is the public input of the update relation.
type UpdateStatement struct {
	Op           OpPub  `json:"op"`
	NewNote      Scalar `json:"new_note"`
	MerkleRoot   Scalar `json:"merkle_root"`
	OldNullifier Scalar `json:"old_nullifier"`
}

// PublicInputs encodes the statement as
// [kind, amount, token, user, fee, fee_token, relayer, new_note, merkle_root, old_nullifier].
func (s UpdateStatement) PublicInputs() []Scalar {
	op := s.Op.Fields()
	out := make([]Scalar, 0, UpdatePublicInputs)
	out = append(out, op[:]...)
	return append(out, s.NewNote, s.MerkleRoot, s.OldNullifier)
}

// DecodeUpdateStatement is the inverse of UpdateStatement.PublicInputs.
func DecodeUpdateStatement(in []Scalar) (UpdateStatement, error) {
	if len(in) != UpdatePublicInputs {
		return UpdateStatement{}, fmt.Errorf("%w: update needs %d inputs, got %d", ErrMalformedPublicInputs, UpdatePublicInputs, len(in))
	}
	op, err := DecodeOpPub(in[:OpPubFields])
	if err != nil {
		return UpdateStatement{}, err
	}
	return UpdateStatement{
		Op:           op,
		NewNote:      in[OpPubFields],
		MerkleRoot:   in[OpPubFields+1],
		OldNullifier: in[OpPubFields+2],
	}, nil
}

// UpdateWitness is the private input of the update relation.
type UpdateWitness struct {
	ID           Scalar     `json:"id"`
	OldTrapdoor  Scalar     `json:"old_trapdoor"`
	NewTrapdoor  Scalar     `json:"new_trapdoor"`
	NewNullifier Scalar     `json:"new_nullifier"`
	OldAccount   Account    `json:"old_account"`
	OpPriv       OpPriv     `json:"op_priv"`
	Path         MerklePath `json:"path"`
	LeafIndex    uint32     `json:"leaf_index"`
}

// VerifyUpdate checks, in order, that:
//  1. the old account and the combined operation are well formed,
//  2. applying the operation yields the account committed by NewNote (same note id),
//  3. the old note (revealing OldNullifier) is a leaf of the tree with root MerkleRoot.
func VerifyUpdate(st UpdateStatement, w UpdateWitness) error {
	oldAccountHash := HashAccount(w.OldAccount)

	op, err := CombineOperation(st.Op, w.OpPriv)
	if err != nil {
		return err
	}
	newAccount, err := w.OldAccount.Apply(op)
	if err != nil {
		return err
	}

	newNote := Note{ID: w.ID, Trapdoor: w.NewTrapdoor, Nullifier: w.NewNullifier, AccountCommitment: HashAccount(newAccount)}
	if newNote.Commitment() != st.NewNote {
		return fmt.Errorf("%w: new note does not commit to the updated account", ErrVerificationFailed)
	}

	oldNote := Note{ID: w.ID, Trapdoor: w.OldTrapdoor, Nullifier: st.OldNullifier, AccountCommitment: oldAccountHash}
	if !VerifyMerklePath(oldNote.Commitment(), st.MerkleRoot, w.Path, w.LeafIndex) {
		return fmt.Errorf("%w: old note is not in the tree", ErrVerificationFailed)
	}
	return nil
}
