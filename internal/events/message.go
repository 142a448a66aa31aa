package events

import (
	"encoding/json"
	"fmt"

	"shielder/internal/shielder"
)

// Message is the envelope every pool event travels in.
type Message struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	SenderID string          `json:"senderId"`
	// Seq increases by one per published event of a sender, so consumers can spot gaps.
	Seq uint64 `json:"seq"`
}

// Encode wraps ev for sender.
func Encode(ev shielder.Event, sender string, seq uint64) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", ev.Kind, err)
	}
	return json.Marshal(Message{Type: string(ev.Kind), Payload: payload, SenderID: sender, Seq: seq})
}

// Decode is the inverse of Encode.
func Decode(data []byte) (Message, shielder.Event, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, shielder.Event{}, err
	}
	var ev shielder.Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return Message{}, shielder.Event{}, fmt.Errorf("decoding %s payload: %w", msg.Type, err)
	}
	if string(ev.Kind) != msg.Type {
		return Message{}, shielder.Event{}, fmt.Errorf("envelope type %q does not match event kind %q", msg.Type, ev.Kind)
	}
	return msg, ev, nil
}

// Subject is the NATS subject of kind under prefix, e.g. "shielder.events.deposited".
func Subject(prefix string, kind shielder.EventKind) string {
	return prefix + "." + string(kind)
}
