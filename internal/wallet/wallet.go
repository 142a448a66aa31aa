// wallet.go - Client-side note bookkeeping.
//
// The pool never sees a note's preimage, so a client must remember, for every note it owns,
// the note id, the current trapdoor and nullifier, the account behind the commitment and the
// leaf it was inserted at. State is that memory. It is persisted encrypted (see store.go).

package wallet

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"shielder/internal/shielder"
)

var (
	ErrNoteNotFound = errors.New("wallet: note not found")
	ErrNoteSpent    = errors.New("wallet: note already spent")
	ErrNoSuchToken  = errors.New("wallet: no live note holds the token")
)

// NoteRecord is one note owned by the wallet. A successful update marks the old record spent
// and appends the successor under a new record id; NoteID stays the same across the lineage.
type NoteRecord struct {
	ID         uuid.UUID        `json:"id"`
	NoteID     shielder.Scalar  `json:"note_id"`
	Trapdoor   shielder.Scalar  `json:"trapdoor"`
	Nullifier  shielder.Scalar  `json:"nullifier"`
	Account    shielder.Account `json:"account"`
	LeafIndex  uint32           `json:"leaf_index"`
	Commitment shielder.Scalar  `json:"commitment"`
	Spent      bool             `json:"spent"`
}

// State is everything the wallet knows.
type State struct {
	User    shielder.Scalar `json:"user"`
	PoolURL string          `json:"pool_url"`
	Notes   []NoteRecord    `json:"notes"`
}

func NewState(user shielder.Scalar, poolURL string) *State {
	return &State{User: user, PoolURL: poolURL}
}

// Note returns the record with the given id.
func (s *State) Note(id uuid.UUID) (NoteRecord, error) {
	for _, n := range s.Notes {
		if n.ID == id {
			return n, nil
		}
	}
	return NoteRecord{}, fmt.Errorf("%w: %s", ErrNoteNotFound, id)
}

// Live returns the unspent records in insertion order.
func (s *State) Live() []NoteRecord {
	var out []NoteRecord
	for _, n := range s.Notes {
		if !n.Spent {
			out = append(out, n)
		}
	}
	return out
}

// Assets sums the balances of every live note per token.
func (s *State) Assets() map[shielder.Scalar]*uint256.Int {
	out := make(map[shielder.Scalar]*uint256.Int)
	for _, n := range s.Live() {
		for i, tok := range n.Account.Tokens {
			sum, ok := out[tok]
			if !ok {
				sum = new(uint256.Int)
				out[tok] = sum
			}
			sum.Add(sum, &n.Account.Balances[i])
		}
	}
	return out
}

// AssetTokens returns the keys of Assets in ascending order.
func (s *State) AssetTokens() []shielder.Scalar {
	assets := s.Assets()
	out := make([]shielder.Scalar, 0, len(assets))
	for t := range assets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BigInt().Cmp(out[j].BigInt()) < 0 })
	return out
}

// FindNote picks the first live note holding token with a balance of at least atLeast.
func (s *State) FindNote(token shielder.Scalar, atLeast *uint256.Int) (NoteRecord, error) {
	for _, n := range s.Live() {
		bal, ok := n.Account.Balance(token)
		if ok && !bal.Lt(atLeast) {
			return n, nil
		}
	}
	return NoteRecord{}, fmt.Errorf("%w: %s with balance >= %s", ErrNoSuchToken, token, atLeast.Dec())
}

// CommitRegistration records a registration the pool accepted at leaf.
func (s *State) CommitRegistration(r *Registration, leaf uint32) NoteRecord {
	rec := r.Pending
	rec.LeafIndex = leaf
	s.Notes = append(s.Notes, rec)
	return rec
}

// CommitUpdate marks the spent note and records its successor at leaf.
func (s *State) CommitUpdate(u *Update, leaf uint32) (NoteRecord, error) {
	idx := -1
	for i := range s.Notes {
		if s.Notes[i].ID == u.Previous {
			idx = i
			break
		}
	}
	if idx < 0 {
		return NoteRecord{}, fmt.Errorf("%w: %s", ErrNoteNotFound, u.Previous)
	}
	if s.Notes[idx].Spent {
		return NoteRecord{}, fmt.Errorf("%w: %s", ErrNoteSpent, u.Previous)
	}
	s.Notes[idx].Spent = true
	rec := u.Pending
	rec.LeafIndex = leaf
	s.Notes = append(s.Notes, rec)
	return rec, nil
}
