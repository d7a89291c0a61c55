// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"errors"
	"strings"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

var (
	ErrWrongKind     = errors.New("value has unexpected kind")
	errEmptyProgram  = errors.New("future is missing a program ID")
	errEmptyFunction = errors.New("future is missing a function name")
)

// Future is a deferred call into another program's finalize logic. It is
// produced during execution and consumed during finalize.
type Future struct {
	ProgramID string  `serialize:"true" json:"programID"`
	Function  string  `serialize:"true" json:"function"`
	Arguments []Value `serialize:"true" json:"arguments"`
}

func NewFuture(programID, function string, args ...Value) Future {
	return Future{
		ProgramID: programID,
		Function:  function,
		Arguments: args,
	}
}

// ParseFuture decodes a serialized call descriptor.
func ParseFuture(b []byte) (Future, error) {
	f := Future{}
	if err := Unmarshal(b, &f); err != nil {
		return Future{}, err
	}
	return f, f.Verify()
}

// Verify checks that [f] names a program and a function.
func (f Future) Verify() error {
	switch {
	case f.ProgramID == "":
		return errEmptyProgram
	case f.Function == "":
		return errEmptyFunction
	default:
		return nil
	}
}

// Bytes returns the canonical encoding of [f].
func (f Future) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, &f)
}

// ID returns the hash of the canonical encoding of [f].
func (f Future) ID() (ids.ID, error) {
	b, err := f.Bytes()
	if err != nil {
		return ids.Empty, err
	}
	return hashing.ComputeHash256Array(b), nil
}

func (f Future) String() string {
	args := make([]string, len(f.Arguments))
	for i, arg := range f.Arguments {
		args[i] = arg.String()
	}
	return f.ProgramID + "/" + f.Function + "(" + strings.Join(args, ", ") + ")"
}
