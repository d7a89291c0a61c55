// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
)

var errMalformedPath = errors.New("malformed inclusion path")

// Path is an inclusion proof for one leaf. For every level from the leaves
// up it holds the position of the running digest inside its chunk and the
// other arity-1 members of that chunk, in chunk order.
type Path struct {
	Index     int        `json:"index"`
	Arity     int        `json:"arity"`
	Positions []int      `json:"positions"`
	Siblings  [][]ids.ID `json:"siblings"`
}

// Compute re-hashes [leaf] with the path digests up to a root.
func (p *Path) Compute(leaf ids.ID) (ids.ID, error) {
	if p.Arity < 2 {
		return ids.Empty, &ConfigError{Arity: p.Arity, Err: ErrInvalidArity}
	}
	if len(p.Positions) != len(p.Siblings) || len(p.Positions) == 0 {
		return ids.Empty, errMalformedPath
	}

	chunk := make([]ids.ID, p.Arity)
	digest := leaf
	for level, position := range p.Positions {
		siblings := p.Siblings[level]
		if position < 0 || position >= p.Arity || len(siblings) != p.Arity-1 {
			return ids.Empty, fmt.Errorf("%w: level %d", errMalformedPath, level)
		}
		copy(chunk, siblings[:position])
		chunk[position] = digest
		copy(chunk[position+1:], siblings[position:])
		digest = HashNode(chunk)
	}
	return digest, nil
}

// Verify reports whether [leaf] is included under [root] according to [p].
func (p *Path) Verify(leaf, root ids.ID) bool {
	computed, err := p.Compute(leaf)
	return err == nil && computed == root
}
