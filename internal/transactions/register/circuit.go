package register

import (
	"github.com/consensys/gnark/frontend"

	"shielder/internal/shielder"
	"shielder/internal/transactions/gadget"
)

// CircuitRegister is the creation relation: NewNote commits to a fresh account holding Tokens
// with every balance at zero.
type CircuitRegister struct {
	// ====== PUBLIC VARIABLES ======
	NewNote frontend.Variable                      `gnark:",public"`
	Tokens  [shielder.TokenSlots]frontend.Variable `gnark:",public"`

	// ====== PRIVATE VARIABLES ======
	ID        frontend.Variable
	Trapdoor  frontend.Variable
	Nullifier frontend.Variable
}

// Define implements the circuit constraints for note creation.
func (c *CircuitRegister) Define(api frontend.API) error {
	var zero [shielder.TokenSlots]frontend.Variable
	for i := range zero {
		zero[i] = 0
	}
	acc, err := gadget.HashAccount(api, c.Tokens, zero)
	if err != nil {
		return err
	}
	note, err := gadget.HashNote(api, c.ID, c.Trapdoor, c.Nullifier, acc)
	if err != nil {
		return err
	}
	api.AssertIsEqual(c.NewNote, note)
	return nil
}
