package wallet

import (
	"fmt"

	"github.com/google/uuid"

	"shielder/internal/shielder"
)

// Registration is a creation proof ready to submit, with the record to keep once accepted.
type Registration struct {
	Statement shielder.CreationStatement
	Proof     *shielder.Proof
	Pending   NoteRecord
}

// PrepareRegistration samples a fresh note over tokens and proves its creation.
func PrepareRegistration(backend shielder.ProvingBackend, tokens [shielder.TokenSlots]shielder.Scalar) (*Registration, error) {
	if err := shielder.ValidateTokens(tokens); err != nil {
		return nil, err
	}
	id, err := shielder.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("note id: %w", err)
	}
	secrets, err := shielder.NewNoteSecrets()
	if err != nil {
		return nil, err
	}
	acc := shielder.NewAccount(tokens)
	note := shielder.NewNote(id, secrets, acc)
	st := shielder.CreationStatement{NewNote: note.Commitment(), Tokens: tokens}
	proof, err := backend.ProveCreation(st, shielder.CreationWitness{ID: id, Trapdoor: secrets.Trapdoor, Nullifier: secrets.Nullifier})
	if err != nil {
		return nil, fmt.Errorf("proving creation: %w", err)
	}
	return &Registration{
		Statement: st,
		Proof:     proof,
		Pending: NoteRecord{
			ID:         uuid.New(),
			NoteID:     id,
			Trapdoor:   secrets.Trapdoor,
			Nullifier:  secrets.Nullifier,
			Account:    acc,
			Commitment: st.NewNote,
		},
	}, nil
}

// Update is an update proof ready to submit.
type Update struct {
	Statement shielder.UpdateStatement
	Proof     *shielder.Proof
	Previous  uuid.UUID
	Pending   NoteRecord
}

// PrepareUpdate applies op to rec's account and proves the transition against root, where path
// is rec's authentication path under root. The private user is op.User.
func PrepareUpdate(backend shielder.ProvingBackend, rec NoteRecord, op shielder.OpPub, root shielder.Scalar, path shielder.MerklePath) (*Update, error) {
	if rec.Spent {
		return nil, fmt.Errorf("%w: %s", ErrNoteSpent, rec.ID)
	}
	priv := shielder.OpPriv{User: op.User}
	combined, err := shielder.CombineOperation(op, priv)
	if err != nil {
		return nil, err
	}
	next, err := rec.Account.Apply(combined)
	if err != nil {
		return nil, err
	}
	secrets, err := shielder.NewNoteSecrets()
	if err != nil {
		return nil, err
	}
	newNote := shielder.NewNote(rec.NoteID, secrets, next)
	st := shielder.UpdateStatement{
		Op:           op,
		NewNote:      newNote.Commitment(),
		MerkleRoot:   root,
		OldNullifier: rec.Nullifier,
	}
	w := shielder.UpdateWitness{
		ID:           rec.NoteID,
		OldTrapdoor:  rec.Trapdoor,
		NewTrapdoor:  secrets.Trapdoor,
		NewNullifier: secrets.Nullifier,
		OldAccount:   rec.Account,
		OpPriv:       priv,
		Path:         path,
		LeafIndex:    rec.LeafIndex,
	}
	proof, err := backend.ProveUpdate(st, w)
	if err != nil {
		return nil, fmt.Errorf("proving update: %w", err)
	}
	return &Update{
		Statement: st,
		Proof:     proof,
		Previous:  rec.ID,
		Pending: NoteRecord{
			ID:         uuid.New(),
			NoteID:     rec.NoteID,
			Trapdoor:   secrets.Trapdoor,
			Nullifier:  secrets.Nullifier,
			Account:    next,
			Commitment: newNote.Commitment(),
		},
	}, nil
}
