// state.go - Persistent state of the shielded pool.
//
// PoolState is everything the pool owns: the Merkle tree with its roots log, the nullifier
// registry and the registered tokens. It is persisted as a single indented JSON snapshot.
// Token handles are live objects and are not persisted; after loading, the ids are known and
// their handles must be bound again with BindToken.
//
// NOTE: PoolState is not thread-safe by itself; the Pool serializes access.

package shielder

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
)

// PoolState is the explicit state owned by a Pool.
type PoolState struct {
	Owner      Scalar
	Address    Scalar
	Tree       *MerkleTree
	Nullifiers *NullifierRegistry
	tokens     map[Scalar]FungibleToken
}

// NewPoolState returns the empty state of a pool administered by owner and holding tokens
// under account address.
func NewPoolState(owner, address Scalar) *PoolState {
	return &PoolState{
		Owner:      owner,
		Address:    address,
		Tree:       NewMerkleTree(),
		Nullifiers: NewNullifierRegistry(),
		tokens:     make(map[Scalar]FungibleToken),
	}
}

// IsRegistered reports whether id was registered, bound or not.
func (s *PoolState) IsRegistered(id Scalar) bool {
	_, ok := s.tokens[id]
	return ok
}

// Token returns the bound handle of id.
func (s *PoolState) Token(id Scalar) (FungibleToken, bool) {
	h, ok := s.tokens[id]
	return h, ok && h != nil
}

// TokenIDs returns the registered ids in a stable order.
func (s *PoolState) TokenIDs() []Scalar {
	ids := make([]Scalar, 0, len(s.tokens))
	for id := range s.tokens {
		ids = append(ids, id)
	}
	sortScalars(ids)
	return ids
}

// BindToken attaches a handle to an id restored from a snapshot.
func (s *PoolState) BindToken(id Scalar, handle FungibleToken) error {
	if !s.IsRegistered(id) {
		return fmt.Errorf("%w: %s", ErrTokenIDNotRegistered, id)
	}
	s.tokens[id] = handle
	return nil
}

// UnboundTokens lists registered ids that have no handle.
func (s *PoolState) UnboundTokens() []Scalar {
	var out []Scalar
	for _, id := range s.TokenIDs() {
		if s.tokens[id] == nil {
			out = append(out, id)
		}
	}
	return out
}

func (s *PoolState) registerToken(id Scalar, handle FungibleToken) error {
	if s.IsRegistered(id) {
		return fmt.Errorf("%w: %s", ErrTokenIDAlreadyRegistered, id)
	}
	s.tokens[id] = handle
	return nil
}

type stateSnapshot struct {
	Owner         Scalar            `json:"owner"`
	Address       Scalar            `json:"address"`
	NextLeafIndex uint32            `json:"next_leaf_index"`
	Nodes         map[uint32]Scalar `json:"nodes"`
	RootsLog      []Scalar          `json:"roots_log"`
	Nullifiers    []Scalar          `json:"nullifiers"`
	Tokens        []Scalar          `json:"tokens"`
}

func (s *PoolState) snapshot() stateSnapshot {
	snap := stateSnapshot{
		Owner:         s.Owner,
		Address:       s.Address,
		NextLeafIndex: s.Tree.nextLeafIndex,
		Nodes:         make(map[uint32]Scalar, len(s.Tree.nodes)),
		RootsLog:      make([]Scalar, 0, len(s.Tree.rootsLog)),
		Nullifiers:    make([]Scalar, 0, s.Nullifiers.Len()),
		Tokens:        s.TokenIDs(),
	}
	for k, v := range s.Tree.nodes {
		snap.Nodes[k] = v
	}
	for r := range s.Tree.rootsLog {
		snap.RootsLog = append(snap.RootsLog, r)
	}
	for n := range s.Nullifiers.set {
		snap.Nullifiers = append(snap.Nullifiers, n)
	}
	sortScalars(snap.RootsLog)
	sortScalars(snap.Nullifiers)
	return snap
}

func stateFromSnapshot(snap stateSnapshot) (*PoolState, error) {
	s := NewPoolState(snap.Owner, snap.Address)
	if snap.NextLeafIndex > s.Tree.Capacity() {
		return nil, fmt.Errorf("snapshot holds %d leaves, capacity is %d", snap.NextLeafIndex, s.Tree.Capacity())
	}
	for k, v := range snap.Nodes {
		if k == 0 || k >= 2*s.Tree.Capacity() {
			return nil, fmt.Errorf("snapshot node index %d out of range", k)
		}
		s.Tree.nodes[k] = v
	}
	s.Tree.nextLeafIndex = snap.NextLeafIndex
	for _, r := range snap.RootsLog {
		s.Tree.rootsLog[r] = struct{}{}
	}
	if !s.Tree.IsHistoricalRoot(s.Tree.Root()) {
		return nil, fmt.Errorf("snapshot roots log misses the current root %s", s.Tree.Root())
	}
	for _, n := range snap.Nullifiers {
		s.Nullifiers.set[n] = struct{}{}
	}
	for _, id := range snap.Tokens {
		s.tokens[id] = nil
	}
	return s, nil
}

// SaveToFile writes the state as indented JSON, replacing path atomically.
func (s *PoolState) SaveToFile(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.snapshot()); err != nil {
		f.Close()
		return fmt.Errorf("encoding pool state: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadStateFromFile reads a state written by SaveToFile. Token handles come back unbound.
func LoadStateFromFile(path string) (*PoolState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var snap stateSnapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding pool state: %w", err)
	}
	return stateFromSnapshot(snap)
}

func sortScalars(s []Scalar) {
	slices.SortFunc(s, func(a, b Scalar) int {
		return strings.Compare(a.String(), b.String())
	})
}
