// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"errors"
	"math"

	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const (
	// CodecVersion is the current default codec version
	CodecVersion = 0
)

var errWrongVersion = errors.New("wrong codec version")

// Codec does serialization and deserialization of every persisted or
// hashed structure. The linear encoding is deterministic, so re-serializing
// a parsed structure is bit-identical across nodes.
var Codec codec.Manager

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewManager(math.MaxInt32)

	errs := wrappers.Errs{}
	errs.Add(
		Codec.RegisterCodec(CodecVersion, c),
	)
	if errs.Errored() {
		panic(errs.Err)
	}
}

// Unmarshal parses [b] into [dst] and rejects unknown codec versions.
func Unmarshal(b []byte, dst interface{}) error {
	version, err := Codec.Unmarshal(b, dst)
	if err != nil {
		return err
	}
	if version != CodecVersion {
		return errWrongVersion
	}
	return nil
}
