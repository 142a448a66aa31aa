package register

import (
	"github.com/consensys/gnark/frontend"

	"shielder/internal/shielder"
)

// BuildRegisterWitness constructs the full assignment for CircuitRegister.
func BuildRegisterWitness(st shielder.CreationStatement, w shielder.CreationWitness) *CircuitRegister {
	c := PublicAssignment(st)
	c.ID = w.ID.BigInt()
	c.Trapdoor = w.Trapdoor.BigInt()
	c.Nullifier = w.Nullifier.BigInt()
	return c
}

// PublicAssignment assigns only the public part of CircuitRegister. The private fields are
// zero so the result can be fed to frontend.NewWitness with frontend.PublicOnly().
func PublicAssignment(st shielder.CreationStatement) *CircuitRegister {
	c := &CircuitRegister{
		NewNote:   st.NewNote.BigInt(),
		ID:        0,
		Trapdoor:  0,
		Nullifier: 0,
	}
	for i, t := range st.Tokens {
		c.Tokens[i] = t.BigInt()
	}
	return c
}

var _ frontend.Circuit = (*CircuitRegister)(nil)
