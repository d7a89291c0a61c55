// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalize

import (
	"errors"
	"fmt"

	"github.com/ava-labs/finalizevm/program"
)

var (
	ErrUnknownProgram   = errors.New("unknown program")
	ErrUnknownFunction  = errors.New("unknown finalize function")
	ErrProgramExists    = errors.New("program already deployed")
	ErrInvalidArguments = errors.New("invalid finalize arguments")
	ErrOverflow         = errors.New("arithmetic overflow")
	ErrUnderflow        = errors.New("arithmetic underflow")
	ErrAborted          = errors.New("finalize aborted")
	ErrCallLimit        = errors.New("too many finalize calls")
	ErrDepthLimit       = errors.New("futures nested too deeply")
)

// MissingKeyError is returned when a finalize body requires a mapping entry
// that does not exist.
type MissingKeyError struct {
	ProgramID string
	Mapping   string
	Key       program.Value
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing key %s in %s/%s", e.Key, e.ProgramID, e.Mapping)
}

// Error is the failure of one future. Depth is zero for futures taken from
// the transaction itself.
type Error struct {
	ProgramID string
	Function  string
	Depth     int
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("finalize %s/%s (depth %d): %v", e.ProgramID, e.Function, e.Depth, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsError returns the finalize failure wrapped in [err], if any.
func IsError(err error) (*Error, bool) {
	var fe *Error
	ok := errors.As(err, &fe)
	return fe, ok
}

// IsMissingKeyError returns the missing key failure wrapped in [err], if any.
func IsMissingKeyError(err error) (*MissingKeyError, bool) {
	var me *MissingKeyError
	ok := errors.As(err, &me)
	return me, ok
}
