// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package merkle implements a fixed-arity Merkle hash tree over an ordered
// sequence of leaf digests.
package merkle

import (
	"runtime"
	"sync"

	"github.com/ava-labs/avalanchego/ids"
)

// Levels with fewer chunks than this are hashed on the calling goroutine.
const parallelThreshold = 256

// Tree is an immutable k-ary Merkle tree.
//
// Level 0 holds the leaves. Every following level groups the previous one
// into chunks of exactly [arity] children, right-padding the last chunk
// with [Empty]. The final level holds the single root digest.
type Tree struct {
	arity  int
	levels [][]ids.ID
}

// Build constructs the tree over [leaves]. The root is a pure function of
// the ordered leaves and the arity.
func Build(leaves []ids.ID, arity int) (*Tree, error) {
	if err := CheckArity(arity); err != nil {
		return nil, err
	}

	level := make([]ids.ID, len(leaves))
	copy(level, leaves)
	t := &Tree{
		arity:  arity,
		levels: [][]ids.ID{level},
	}
	if len(leaves) == 0 {
		return t, nil
	}

	// A single leaf still gets hashed once so a root never equals a leaf.
	for len(t.levels) == 1 || len(level) > 1 {
		level = t.hashLevel(level)
		t.levels = append(t.levels, level)
	}
	return t, nil
}

// CheckArity returns a *ConfigError if no tree can be built with [arity].
func CheckArity(arity int) error {
	if arity < 2 {
		return &ConfigError{Arity: arity, Err: ErrInvalidArity}
	}
	return nil
}

// Root is a convenience wrapper that only returns the root of the tree.
func Root(leaves []ids.ID, arity int) (ids.ID, error) {
	t, err := Build(leaves, arity)
	if err != nil {
		return ids.Empty, err
	}
	return t.Root(), nil
}

func (t *Tree) hashLevel(children []ids.ID) []ids.ID {
	numChunks := (len(children) + t.arity - 1) / t.arity
	parents := make([]ids.ID, numChunks)
	if numChunks < parallelThreshold {
		t.hashChunks(children, parents, 0, numChunks)
		return parents
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > numChunks {
		workers = numChunks
	}
	step := (numChunks + workers - 1) / workers

	// Each worker owns a disjoint range of [parents].
	var wg sync.WaitGroup
	for lo := 0; lo < numChunks; lo += step {
		lo, hi := lo, lo+step
		if hi > numChunks {
			hi = numChunks
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.hashChunks(children, parents, lo, hi)
		}()
	}
	wg.Wait()
	return parents
}

// hashChunks fills parents[lo:hi] from the matching chunks of [children].
func (t *Tree) hashChunks(children, parents []ids.ID, lo, hi int) {
	chunk := make([]ids.ID, t.arity)
	for i := lo; i < hi; i++ {
		start := i * t.arity
		n := copy(chunk, children[start:min(start+t.arity, len(children))])
		for j := n; j < t.arity; j++ {
			chunk[j] = Empty
		}
		parents[i] = HashNode(chunk)
	}
}

// Arity returns the number of children of every internal node.
func (t *Tree) Arity() int { return t.arity }

// Len returns the number of leaves.
func (t *Tree) Len() int { return len(t.levels[0]) }

// Depth returns the number of hashing levels above the leaves.
func (t *Tree) Depth() int { return len(t.levels) - 1 }

// Leaf returns the leaf at [index].
func (t *Tree) Leaf(index int) (ids.ID, error) {
	if index < 0 || index >= t.Len() {
		return ids.Empty, &IndexError{Index: index, Leaves: t.Len()}
	}
	return t.levels[0][index], nil
}

// Root returns the root digest, or [EmptyRoot] for a tree without leaves.
func (t *Tree) Root() ids.ID {
	if t.Len() == 0 {
		return EmptyRoot
	}
	return t.levels[len(t.levels)-1][0]
}

// Path returns the inclusion proof of the leaf at [index].
func (t *Tree) Path(index int) (*Path, error) {
	if index < 0 || index >= t.Len() {
		return nil, &IndexError{Index: index, Leaves: t.Len()}
	}

	p := &Path{
		Index:     index,
		Arity:     t.arity,
		Positions: make([]int, 0, t.Depth()),
		Siblings:  make([][]ids.ID, 0, t.Depth()),
	}
	for _, level := range t.levels[:t.Depth()] {
		position := index % t.arity
		start := index - position

		siblings := make([]ids.ID, 0, t.arity-1)
		for j := 0; j < t.arity; j++ {
			if j == position {
				continue
			}
			if start+j < len(level) {
				siblings = append(siblings, level[start+j])
			} else {
				siblings = append(siblings, Empty)
			}
		}
		p.Positions = append(p.Positions, position)
		p.Siblings = append(p.Siblings, siblings)
		index /= t.arity
	}
	return p, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
