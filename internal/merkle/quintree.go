// Package merkle builds inclusion proofs for the quinary Poseidon trees the
// tally contracts verify against.
package merkle

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

const (
	// LeavesPerNode is the arity of every vote option tree.
	LeavesPerNode = 5
	// MaxDepth bounds the vote option tree depth accepted from a poll.
	MaxDepth = 10
)

var (
	ErrIndexOutOfBounds = errors.New("leaf index out of bounds")
	ErrTreeCapacity     = errors.New("leaves exceed tree capacity")
	ErrInvalidDepth     = errors.New("invalid tree depth")
)

// Proof holds, for each level from the leaves up, the LeavesPerNode-1
// siblings of the node on the path to the root.
type Proof [][]*big.Int

// hashFunc is the node hash used by the on-chain verifier.
var hashFunc = poseidon.Hash

// HashLeftRight hashes a pair of field elements, as used for commitments
// of the form H(root, salt).
func HashLeftRight(left, right *big.Int) (*big.Int, error) {
	return hashFunc([]*big.Int{left, right})
}

// Capacity returns the number of leaves a tree of the given depth holds.
func Capacity(depth int) (int, error) {
	if depth < 1 || depth > MaxDepth {
		return 0, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidDepth, depth, MaxDepth)
	}
	capacity := 1
	for i := 0; i < depth; i++ {
		capacity *= LeavesPerNode
	}
	return capacity, nil
}

// zeroHashes returns the value of an empty subtree at each level 0..depth.
func zeroHashes(depth int) ([]*big.Int, error) {
	zeros := make([]*big.Int, depth+1)
	zeros[0] = big.NewInt(0)
	for level := 0; level < depth; level++ {
		children := make([]*big.Int, LeavesPerNode)
		for i := range children {
			children[i] = zeros[level]
		}
		h, err := hashFunc(children)
		if err != nil {
			return nil, fmt.Errorf("failed to hash zero subtree at level %d: %w", level, err)
		}
		zeros[level+1] = h
	}
	return zeros, nil
}

func checkLeaves(leaves []*big.Int, depth int) error {
	capacity, err := Capacity(depth)
	if err != nil {
		return err
	}
	if len(leaves) > capacity {
		return fmt.Errorf("%w: %d leaves, depth %d holds %d", ErrTreeCapacity, len(leaves), depth, capacity)
	}
	for i, leaf := range leaves {
		if leaf == nil || leaf.Sign() < 0 {
			return fmt.Errorf("leaf %d is not a non-negative integer", i)
		}
	}
	return nil
}

// nextLevel hashes every group of LeavesPerNode nodes into its parent.
// Missing trailing nodes take the zero value of the level.
func nextLevel(nodes []*big.Int, zero *big.Int) ([]*big.Int, error) {
	parents := make([]*big.Int, (len(nodes)+LeavesPerNode-1)/LeavesPerNode)
	for p := range parents {
		children := make([]*big.Int, LeavesPerNode)
		for i := range children {
			children[i] = nodeAt(nodes, p*LeavesPerNode+i, zero)
		}
		h, err := hashFunc(children)
		if err != nil {
			return nil, err
		}
		parents[p] = h
	}
	return parents, nil
}

func nodeAt(nodes []*big.Int, i int, zero *big.Int) *big.Int {
	if i < len(nodes) {
		return nodes[i]
	}
	return zero
}

// BuildProof returns the sibling path for leaves[index] in a quinary tree
// of the given depth. The result depends only on its inputs.
func BuildProof(index int, leaves []*big.Int, depth int) (Proof, error) {
	if index < 0 || index >= len(leaves) {
		return nil, fmt.Errorf("%w: index %d, %d leaves", ErrIndexOutOfBounds, index, len(leaves))
	}
	if err := checkLeaves(leaves, depth); err != nil {
		return nil, err
	}
	zeros, err := zeroHashes(depth)
	if err != nil {
		return nil, err
	}

	proof := make(Proof, depth)
	level := leaves
	pos := index
	for d := 0; d < depth; d++ {
		offset := pos % LeavesPerNode
		start := pos - offset
		siblings := make([]*big.Int, 0, LeavesPerNode-1)
		for i := 0; i < LeavesPerNode; i++ {
			if i == offset {
				continue
			}
			siblings = append(siblings, new(big.Int).Set(nodeAt(level, start+i, zeros[d])))
		}
		proof[d] = siblings

		level, err = nextLevel(level, zeros[d])
		if err != nil {
			return nil, fmt.Errorf("failed to hash level %d: %w", d, err)
		}
		pos /= LeavesPerNode
	}
	return proof, nil
}

// Root computes the root of the tree holding leaves.
func Root(leaves []*big.Int, depth int) (*big.Int, error) {
	if err := checkLeaves(leaves, depth); err != nil {
		return nil, err
	}
	zeros, err := zeroHashes(depth)
	if err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return zeros[depth], nil
	}
	level := leaves
	for d := 0; d < depth; d++ {
		level, err = nextLevel(level, zeros[d])
		if err != nil {
			return nil, fmt.Errorf("failed to hash level %d: %w", d, err)
		}
	}
	return level[0], nil
}

// ComputeRoot folds leaf up through proof, the same walk the on-chain
// verifier performs.
func ComputeRoot(leaf *big.Int, index int, proof Proof) (*big.Int, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: index %d", ErrIndexOutOfBounds, index)
	}
	current := leaf
	pos := index
	for d, siblings := range proof {
		if len(siblings) != LeavesPerNode-1 {
			return nil, fmt.Errorf("proof level %d has %d siblings, want %d", d, len(siblings), LeavesPerNode-1)
		}
		offset := pos % LeavesPerNode
		children := make([]*big.Int, 0, LeavesPerNode)
		children = append(children, siblings[:offset]...)
		children = append(children, current)
		children = append(children, siblings[offset:]...)
		h, err := hashFunc(children)
		if err != nil {
			return nil, fmt.Errorf("failed to hash level %d: %w", d, err)
		}
		current = h
		pos /= LeavesPerNode
	}
	if pos != 0 {
		return nil, fmt.Errorf("%w: index %d does not fit a depth %d proof", ErrIndexOutOfBounds, index, len(proof))
	}
	return current, nil
}

// Verify reports whether proof places leaf at index under root.
func Verify(root, leaf *big.Int, index int, proof Proof) bool {
	computed, err := ComputeRoot(leaf, index, proof)
	if err != nil {
		return false
	}
	return computed.Cmp(root) == 0
}
