package metrics

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shielder/internal/shielder"
)

func TestInstrumentBackend(t *testing.T) {
	b := InstrumentBackend(shielder.NativeBackend{})
	assert.Equal(t, "native", b.Name())

	tokens := [shielder.TokenSlots]shielder.Scalar{shielder.NewScalar(0), shielder.NewScalar(1)}
	secrets, err := shielder.NewNoteSecrets()
	require.NoError(t, err)
	id := shielder.NewScalar(9)
	note := shielder.NewNote(id, secrets, shielder.NewAccount(tokens))
	st := shielder.CreationStatement{NewNote: note.Commitment(), Tokens: tokens}

	proof, err := b.ProveCreation(st, shielder.CreationWitness{ID: id, Trapdoor: secrets.Trapdoor, Nullifier: secrets.Nullifier})
	require.NoError(t, err)
	require.NoError(t, b.Verify(shielder.RelationCreation, proof.Data, proof.PublicInputs))
	assert.Equal(t, 1, testutil.CollectAndCount(VerifyDuration, "shielder_verify_duration_seconds"))
}

type fakeStats struct{}

func (fakeStats) NextLeafIndex() uint32 { return 7 }
func (fakeStats) NullifierCount() int { return 3 }
func (fakeStats) RegisteredTokens() []shielder.Scalar {
	return []shielder.Scalar{shielder.NewScalar(0), shielder.AmountScalar(uint256.NewInt(1))}
}

func TestObservePool(t *testing.T) {
	ObservePool(fakeStats{})
	assert.Equal(t, 7.0, testutil.ToFloat64(TreeLeaves))
	assert.Equal(t, 3.0, testutil.ToFloat64(Nullifiers))
	assert.Equal(t, 2.0, testutil.ToFloat64(RegisteredTokens))
}
