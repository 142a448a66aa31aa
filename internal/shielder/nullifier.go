// nullifier.go - Append-only registry of spent-note nullifiers.

package shielder

import "fmt"

// NullifierRegistry records every nullifier revealed by an accepted update.
type NullifierRegistry struct {
	set map[Scalar]struct{}
}

func NewNullifierRegistry() *NullifierRegistry {
	return &NullifierRegistry{set: make(map[Scalar]struct{})}
}

func (r *NullifierRegistry) Contains(n Scalar) bool {
	_, ok := r.set[n]
	return ok
}

// Insert adds n, failing with ErrNullifierAlreadyUsed (and no mutation) if it is present.
func (r *NullifierRegistry) Insert(n Scalar) error {
	return r.insert(n, nil)
}

func (r *NullifierRegistry) insert(n Scalar, j *journal) error {
	if r.Contains(n) {
		return fmt.Errorf("%w: %s", ErrNullifierAlreadyUsed, n)
	}
	r.set[n] = struct{}{}
	j.record(func() { delete(r.set, n) })
	return nil
}

func (r *NullifierRegistry) Len() int {
	return len(r.set)
}
