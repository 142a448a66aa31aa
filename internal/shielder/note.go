// note.go - Note type of the shielded pool.
//
// A Note binds a lineage identifier, a hiding trapdoor, a single-use nullifier and the
// commitment of the account it carries. Only the note commitment is ever stored by the pool.

package shielder

import "fmt"

// Note is the private preimage of a leaf of the Merkle tree.
type Note struct {
	ID                Scalar `json:"id"`
	Trapdoor          Scalar `json:"trapdoor"`
	Nullifier         Scalar `json:"nullifier"`
	AccountCommitment Scalar `json:"account_commitment"`
}

// Commitment returns the leaf value of the note.
func (n Note) Commitment() Scalar {
	return HashNote(n)
}

// NoteSecrets are the fresh random values a client samples for every new note.
type NoteSecrets struct {
	Trapdoor  Scalar `json:"trapdoor"`
	Nullifier Scalar `json:"nullifier"`
}

// NewNoteSecrets samples a trapdoor and a nullifier.
func NewNoteSecrets() (NoteSecrets, error) {
	trapdoor, err := RandomScalar()
	if err != nil {
		return NoteSecrets{}, fmt.Errorf("trapdoor: %w", err)
	}
	nullifier, err := RandomScalar()
	if err != nil {
		return NoteSecrets{}, fmt.Errorf("nullifier: %w", err)
	}
	return NoteSecrets{Trapdoor: trapdoor, Nullifier: nullifier}, nil
}

// NewNote builds the note carrying account acc.
func NewNote(id Scalar, secrets NoteSecrets, acc Account) Note {
	return Note{
		ID:                id,
		Trapdoor:          secrets.Trapdoor,
		Nullifier:         secrets.Nullifier,
		AccountCommitment: HashAccount(acc),
	}
}
