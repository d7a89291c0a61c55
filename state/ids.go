// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/finalizevm/program"
)

// MappingID is H(programID || mappingName), both length prefixed.
func MappingID(programID, mapping string) ids.ID {
	size := 2*wrappers.ShortLen + len(programID) + len(mapping)
	p := wrappers.Packer{MaxSize: size, Bytes: make([]byte, 0, size)}
	p.PackStr(programID)
	p.PackStr(mapping)
	return hashing.ComputeHash256Array(p.Bytes)
}

// KeyID is H(mappingID || H(key)).
func KeyID(mappingID ids.ID, key program.Value) ids.ID {
	return hashPair(mappingID, hashing.ComputeHash256Array(key.Bytes()))
}

// ValueID is H(keyID || H(value)).
func ValueID(keyID ids.ID, value program.Value) ids.ID {
	return hashPair(keyID, hashing.ComputeHash256Array(value.Bytes()))
}

func hashPair(a, b ids.ID) ids.ID {
	buf := make([]byte, 0, 2*len(a))
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return hashing.ComputeHash256Array(buf)
}
