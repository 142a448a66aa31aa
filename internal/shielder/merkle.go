// merkle.go - Append-only Merkle accumulator of note commitments.
//
// The tree is stored sparsely in a flat index space: node 1 is the root, node k has children
// 2k and 2k+1, and leaf i lives at index i + Capacity. Nodes never written read as the zero
// Scalar. Every root the tree has ever had (the empty root included) is kept in a roots log
// so that proofs built against an older root remain acceptable.

package shielder

import "fmt"

// MerkleTreeDepth is the number of levels between a leaf and the root.
const MerkleTreeDepth = 10

// MerklePath lists the siblings of a leaf from the bottom level up.
type MerklePath [MerkleTreeDepth]Scalar

// MerkleTree is not safe for concurrent use; the Pool serializes access.
type MerkleTree struct {
	nodes         map[uint32]Scalar
	rootsLog      map[Scalar]struct{}
	nextLeafIndex uint32
}

// NewMerkleTree returns an empty tree whose zero root is already historical.
func NewMerkleTree() *MerkleTree {
	t := &MerkleTree{
		nodes:    make(map[uint32]Scalar),
		rootsLog: make(map[Scalar]struct{}),
	}
	t.rootsLog[t.Root()] = struct{}{}
	return t
}

// Capacity is the number of leaves the tree can hold.
func (t *MerkleTree) Capacity() uint32 {
	return 1 << MerkleTreeDepth
}

// NextLeafIndex is the index the next AddLeaf will fill; it equals the number of leaves.
func (t *MerkleTree) NextLeafIndex() uint32 {
	return t.nextLeafIndex
}

func (t *MerkleTree) node(idx uint32) Scalar {
	return t.nodes[idx]
}

func (t *MerkleTree) Root() Scalar {
	return t.node(1)
}

// IsHistoricalRoot reports whether root was ever returned by Root.
func (t *MerkleTree) IsHistoricalRoot(root Scalar) bool {
	_, ok := t.rootsLog[root]
	return ok
}

// AddLeaf appends commitment and returns its leaf index. A full tree is left untouched.
func (t *MerkleTree) AddLeaf(commitment Scalar) (uint32, error) {
	return t.addLeaf(commitment, nil)
}

func (t *MerkleTree) addLeaf(commitment Scalar, j *journal) (uint32, error) {
	if t.nextLeafIndex >= t.Capacity() {
		return 0, ErrCapacityExceeded
	}
	leafIndex := t.nextLeafIndex
	idx := leafIndex + t.Capacity()
	t.set(idx, commitment, j)
	for idx > 1 {
		idx /= 2
		t.set(idx, Combine(t.node(2*idx), t.node(2*idx+1)), j)
	}

	t.nextLeafIndex++
	j.record(func() { t.nextLeafIndex = leafIndex })

	root := t.Root()
	if _, seen := t.rootsLog[root]; !seen {
		t.rootsLog[root] = struct{}{}
		j.record(func() { delete(t.rootsLog, root) })
	}
	return leafIndex, nil
}

func (t *MerkleTree) set(idx uint32, v Scalar, j *journal) {
	old, existed := t.nodes[idx]
	t.nodes[idx] = v
	j.record(func() {
		if existed {
			t.nodes[idx] = old
		} else {
			delete(t.nodes, idx)
		}
	})
}

// Path returns the sibling of every node on the way from leaf leafIndex to the root.
func (t *MerkleTree) Path(leafIndex uint32) (MerklePath, error) {
	var path MerklePath
	if leafIndex >= t.nextLeafIndex {
		return path, fmt.Errorf("%w: index %d, tree holds %d leaves", ErrLeafNotFound, leafIndex, t.nextLeafIndex)
	}
	idx := leafIndex + t.Capacity()
	for level := 0; level < MerkleTreeDepth; level++ {
		path[level] = t.node(idx ^ 1)
		idx /= 2
	}
	return path, nil
}

// Leaf returns the commitment stored at leafIndex.
func (t *MerkleTree) Leaf(leafIndex uint32) (Scalar, error) {
	if leafIndex >= t.nextLeafIndex {
		return Scalar{}, fmt.Errorf("%w: index %d", ErrLeafNotFound, leafIndex)
	}
	return t.node(leafIndex + t.Capacity()), nil
}

// VerifyMerklePath folds path from leaf upwards, taking the parity of the running index as
// "current node is the right child", and compares the result with root.
func VerifyMerklePath(leaf, root Scalar, path MerklePath, leafIndex uint32) bool {
	if leafIndex >= 1<<MerkleTreeDepth {
		return false
	}
	cur := leaf
	idx := leafIndex
	for _, sibling := range path {
		if idx&1 == 0 {
			cur = Combine(cur, sibling)
		} else {
			cur = Combine(sibling, cur)
		}
		idx >>= 1
	}
	return cur == root
}
