// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"errors"
	"fmt"
)

var (
	ErrStaleSnapshot         = errors.New("store advanced since the scratch state was opened")
	ErrMappingNotInitialized = errors.New("mapping is not initialized")
	ErrMappingExists         = errors.New("mapping already exists")
	ErrKeyExists             = errors.New("key already exists")
	ErrKeyNotFound           = errors.New("key does not exist")
	ErrProgramNotFound       = errors.New("program has no mappings")
	ErrReadOnly              = errors.New("view is read-only")
	errNoCheckpoint          = errors.New("no open checkpoint")
	errOpenCheckpoints       = errors.New("scratch state has open checkpoints")
	errClosed                = errors.New("scratch state is closed")
)

// StoreError reports a failure to apply a scratch state to persistent
// storage. The store is left in its prior state.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %s", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStoreError checks whether an error is a StoreError and returns it.
func IsStoreError(err error) (*StoreError, bool) {
	var s *StoreError
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}
