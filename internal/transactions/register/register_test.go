package register

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shielder/internal/shielder"
)

func creation(t *testing.T) (shielder.CreationStatement, shielder.CreationWitness) {
	t.Helper()
	tokens := [shielder.TokenSlots]shielder.Scalar{shielder.NewScalar(0), shielder.NewScalar(1)}
	id, err := shielder.RandomScalar()
	require.NoError(t, err)
	secrets, err := shielder.NewNoteSecrets()
	require.NoError(t, err)
	note := shielder.NewNote(id, secrets, shielder.NewAccount(tokens))
	return shielder.CreationStatement{NewNote: note.Commitment(), Tokens: tokens},
		shielder.CreationWitness{ID: id, Trapdoor: secrets.Trapdoor, Nullifier: secrets.Nullifier}
}

func TestCircuitRegisterAgreesWithNative(t *testing.T) {
	st, w := creation(t)
	require.NoError(t, shielder.VerifyCreation(st, w))
	require.NoError(t, test.IsSolved(&CircuitRegister{}, BuildRegisterWitness(st, w), ecc.BN254.ScalarField()))
}

func TestCircuitRegisterRejects(t *testing.T) {
	st, w := creation(t)

	wrongTrapdoor := w
	wrongTrapdoor.Trapdoor = shielder.NewScalar(7)
	assert.Error(t, test.IsSolved(&CircuitRegister{}, BuildRegisterWitness(st, wrongTrapdoor), ecc.BN254.ScalarField()))

	swapped := st
	swapped.Tokens[0], swapped.Tokens[1] = st.Tokens[1], st.Tokens[0]
	assert.Error(t, test.IsSolved(&CircuitRegister{}, BuildRegisterWitness(swapped, w), ecc.BN254.ScalarField()))
}
