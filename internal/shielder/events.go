// events.go - Notifications emitted after committed pool transitions.

package shielder

import "context"

// EventKind names a committed transition.
type EventKind string

const (
	EventNoteRegistered  EventKind = "note_registered"
	EventDeposited       EventKind = "deposited"
	EventWithdrawn       EventKind = "withdrawn"
	EventTokenRegistered EventKind = "token_registered"
)

// Event describes one committed transition. Fields that do not apply to Kind are zero.
type Event struct {
	Kind      EventKind `json:"kind"`
	LeafIndex uint32    `json:"leaf_index"`
	Note      Scalar    `json:"note"`
	Root      Scalar    `json:"root"`
	Nullifier Scalar    `json:"nullifier"`
	Op        *OpPub    `json:"op,omitempty"`
	Token     Scalar    `json:"token"`
	Tokens    []Scalar  `json:"tokens,omitempty"`
}

// EventSink receives events in commit order. A failing sink never aborts a transition.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}

type discardSink struct{}

func (discardSink) Publish(context.Context, Event) error { return nil }
