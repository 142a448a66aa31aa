package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shielder/internal/shielder"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	op := shielder.Deposit(uint256.NewInt(10), shielder.NewScalar(0), shielder.NewScalar(7))
	ev := shielder.Event{
		Kind:      shielder.EventDeposited,
		LeafIndex: 4,
		Note:      shielder.NewScalar(11),
		Root:      shielder.NewScalar(12),
		Nullifier: shielder.NewScalar(13),
		Op:        &op,
	}
	data, err := Encode(ev, "poold-1", 42)
	require.NoError(t, err)

	msg, back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "deposited", msg.Type)
	assert.Equal(t, "poold-1", msg.SenderID)
	assert.Equal(t, uint64(42), msg.Seq)
	assert.Equal(t, ev, back)
}

func TestDecodeRejectsMismatchedType(t *testing.T) {
	tampered := []byte(`{"type":"deposited","payload":{"kind":"withdrawn"},"senderId":"x","seq":1}`)
	_, _, err := Decode(tampered)
	assert.Error(t, err)
	_, _, err = Decode([]byte("{"))
	assert.Error(t, err)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "shielder.events.note_registered", Subject("shielder.events", shielder.EventNoteRegistered))
}

func TestConnectFailsWithoutServer(t *testing.T) {
	_, err := Connect(Config{URL: "nats://127.0.0.1:1", Timeout: 200 * time.Millisecond}, zerolog.Nop())
	assert.Error(t, err)
}

type countingSink struct {
	n   int
	err error
}

func (c *countingSink) Publish(context.Context, shielder.Event) error {
	c.n++
	return c.err
}

func TestFanout(t *testing.T) {
	boom := errors.New("boom")
	a, b := &countingSink{}, &countingSink{err: boom}
	err := Fanout{a, b, a}.Publish(context.Background(), shielder.Event{Kind: shielder.EventDeposited})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, a.n)
	assert.Equal(t, 1, b.n)
	assert.NoError(t, Fanout{}.Publish(context.Background(), shielder.Event{}))
}
