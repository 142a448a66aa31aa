package update

import (
	"shielder/internal/shielder"
)

// BuildUpdateWitness constructs the full assignment for CircuitUpdate.
func BuildUpdateWitness(st shielder.UpdateStatement, w shielder.UpdateWitness) *CircuitUpdate {
	c := PublicAssignment(st)
	c.ID = w.ID.BigInt()
	c.OldTrapdoor = w.OldTrapdoor.BigInt()
	c.NewTrapdoor = w.NewTrapdoor.BigInt()
	c.NewNullifier = w.NewNullifier.BigInt()
	for i := 0; i < shielder.TokenSlots; i++ {
		c.Tokens[i] = w.OldAccount.Tokens[i].BigInt()
		c.Balances[i] = w.OldAccount.Balances[i].ToBig()
	}
	c.PrivUser = w.OpPriv.User.BigInt()
	for i, sibling := range w.Path {
		c.Path[i] = sibling.BigInt()
	}
	c.LeafIndex = uint64(w.LeafIndex)
	return c
}

// PublicAssignment assigns the public part of CircuitUpdate and zeroes the rest.
func PublicAssignment(st shielder.UpdateStatement) *CircuitUpdate {
	in := st.PublicInputs()
	c := &CircuitUpdate{
		OpKind:       in[0].BigInt(),
		Amount:       in[1].BigInt(),
		Token:        in[2].BigInt(),
		User:         in[3].BigInt(),
		Fee:          in[4].BigInt(),
		FeeToken:     in[5].BigInt(),
		Relayer:      in[6].BigInt(),
		NewNote:      in[7].BigInt(),
		MerkleRoot:   in[8].BigInt(),
		OldNullifier: in[9].BigInt(),

		ID:           0,
		OldTrapdoor:  0,
		NewTrapdoor:  0,
		NewNullifier: 0,
		PrivUser:     0,
		LeafIndex:    0,
	}
	for i := range c.Tokens {
		c.Tokens[i] = 0
		c.Balances[i] = 0
	}
	for i := range c.Path {
		c.Path[i] = 0
	}
	return c
}
