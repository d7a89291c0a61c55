// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import (
	"github.com/ava-labs/avalanchego/ids"
	"golang.org/x/crypto/blake2b"
)

// Domain tags prefixed to every hash preimage so that padding, internal
// nodes and the empty root can never collide with each other.
const (
	emptyTag     byte = 0x00
	nodeTag      byte = 0x01
	emptyRootTag byte = 0x02
)

var (
	// Empty is the digest used to right-pad a chunk that has fewer than
	// arity children.
	Empty = ids.ID(blake2b.Sum256(append([]byte{emptyTag}, "finalizevm/merkle/empty"...)))

	// EmptyRoot is the root of a tree built over zero leaves.
	EmptyRoot = ids.ID(blake2b.Sum256(append([]byte{emptyRootTag}, "finalizevm/merkle/empty-root"...)))
)

// HashNode hashes exactly the given children into their parent digest.
func HashNode(children []ids.ID) ids.ID {
	buf := make([]byte, 1, 1+len(children)*len(ids.Empty))
	buf[0] = nodeTag
	for _, child := range children {
		buf = append(buf, child[:]...)
	}
	return blake2b.Sum256(buf)
}
