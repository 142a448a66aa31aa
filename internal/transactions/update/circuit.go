package update

import (
	"github.com/consensys/gnark/frontend"

	"shielder/internal/shielder"
	"shielder/internal/transactions/gadget"
)

// CircuitUpdate is the update relation. The public fields are declared in the order of
// shielder.UpdateStatement.PublicInputs, which gnark preserves when flattening the witness.
type CircuitUpdate struct {
	// Public
	OpKind       frontend.Variable `gnark:",public"`
	Amount       frontend.Variable `gnark:",public"`
	Token        frontend.Variable `gnark:",public"`
	User         frontend.Variable `gnark:",public"`
	Fee          frontend.Variable `gnark:",public"`
	FeeToken     frontend.Variable `gnark:",public"`
	Relayer      frontend.Variable `gnark:",public"`
	NewNote      frontend.Variable `gnark:",public"`
	MerkleRoot   frontend.Variable `gnark:",public"`
	OldNullifier frontend.Variable `gnark:",public"`

	// Private
	ID           frontend.Variable
	OldTrapdoor  frontend.Variable
	NewTrapdoor  frontend.Variable
	NewNullifier frontend.Variable
	Tokens       [shielder.TokenSlots]frontend.Variable
	Balances     [shielder.TokenSlots]frontend.Variable
	PrivUser     frontend.Variable
	Path         [shielder.MerkleTreeDepth]frontend.Variable
	LeafIndex    frontend.Variable
}

func (c *CircuitUpdate) Define(api frontend.API) error {
	// (1) Old note: account hash, commitment, membership under MerkleRoot
	oldAcc, err := gadget.HashAccount(api, c.Tokens, c.Balances)
	if err != nil {
		return err
	}
	oldNote, err := gadget.HashNote(api, c.ID, c.OldTrapdoor, c.OldNullifier, oldAcc)
	if err != nil {
		return err
	}
	root, err := gadget.MerkleRoot(api, oldNote, c.Path, c.LeafIndex)
	if err != nil {
		return err
	}
	api.AssertIsEqual(c.MerkleRoot, root)

	// (2) Operation: private user matches, balances move
	api.AssertIsEqual(c.PrivUser, c.User)
	balances := gadget.ApplyOperation(api, gadget.Op{
		Kind:     c.OpKind,
		Amount:   c.Amount,
		Token:    c.Token,
		User:     c.User,
		Fee:      c.Fee,
		FeeToken: c.FeeToken,
		Relayer:  c.Relayer,
	}, c.Tokens, c.Balances)

	// (3) New note: same id, same tokens, fresh secrets
	newAcc, err := gadget.HashAccount(api, c.Tokens, balances)
	if err != nil {
		return err
	}
	newNote, err := gadget.HashNote(api, c.ID, c.NewTrapdoor, c.NewNullifier, newAcc)
	if err != nil {
		return err
	}
	api.AssertIsEqual(c.NewNote, newNote)
	return nil
}
