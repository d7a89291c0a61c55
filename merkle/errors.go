// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import (
	"errors"
	"fmt"
)

var ErrInvalidArity = errors.New("tree arity must be at least 2")

// ConfigError reports an invalid static tree configuration.
type ConfigError struct {
	Arity int
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid merkle config (arity %d): %s", e.Arity, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IndexError reports an inclusion path request for a leaf that is not in
// the tree.
type IndexError struct {
	Index  int
	Leaves int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("leaf index %d out of range [0, %d)", e.Index, e.Leaves)
}

// IsConfigError checks whether an error is a ConfigError and returns it.
func IsConfigError(err error) (*ConfigError, bool) {
	var c *ConfigError
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

// IsIndexError checks whether an error is an IndexError and returns it.
func IsIndexError(err error) (*IndexError, bool) {
	var i *IndexError
	if errors.As(err, &i) {
		return i, true
	}
	return nil, false
}
