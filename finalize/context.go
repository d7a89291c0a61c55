// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalize

import (
	"context"
	"errors"
	"fmt"

	safemath "github.com/ava-labs/avalanchego/utils/math"

	"github.com/ava-labs/finalizevm/program"
	"github.com/ava-labs/finalizevm/state"
)

// Context is handed to a finalize body. Writes are limited to the mappings
// of the program being finalized and land in the scratch overlay only.
type Context struct {
	ctx       context.Context
	programID string
	function  string
	depth     int
	mappings  *state.Mappings

	ops     *[]state.Operation
	pending []program.Future
}

// Context returns the context of the speculation pass.
func (c *Context) Context() context.Context { return c.ctx }

// ProgramID returns the program being finalized.
func (c *Context) ProgramID() string { return c.programID }

// Function returns the function being finalized.
func (c *Context) Function() string { return c.function }

// Depth returns how many futures enclose this one.
func (c *Context) Depth() int { return c.depth }

// Get reads [key] from one of the program's mappings.
func (c *Context) Get(mapping string, key program.Value) (program.Value, bool, error) {
	return c.mappings.GetValue(c.programID, mapping, key)
}

// GetOrDefault reads [key], returning [def] when it is missing.
func (c *Context) GetOrDefault(mapping string, key, def program.Value) (program.Value, error) {
	v, ok, err := c.Get(mapping, key)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

// Require reads [key] and fails with a *MissingKeyError when it is missing.
func (c *Context) Require(mapping string, key program.Value) (program.Value, error) {
	v, ok, err := c.Get(mapping, key)
	if err != nil {
		return program.Value{}, err
	}
	if !ok {
		return program.Value{}, &MissingKeyError{
			ProgramID: c.programID,
			Mapping:   mapping,
			Key:       key,
		}
	}
	return v, nil
}

// Contains reports whether [key] is set.
func (c *Context) Contains(mapping string, key program.Value) (bool, error) {
	return c.mappings.ContainsKey(c.programID, mapping, key)
}

// Set inserts or updates [key].
func (c *Context) Set(mapping string, key, value program.Value) error {
	op, err := c.mappings.UpdateKeyValue(c.programID, mapping, key, value)
	if err != nil {
		return err
	}
	*c.ops = append(*c.ops, op)
	return nil
}

// Remove deletes [key]. Removing a missing key is a no-op.
func (c *Context) Remove(mapping string, key program.Value) error {
	op, err := c.mappings.RemoveKeyValue(c.programID, mapping, key)
	if errors.Is(err, state.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	*c.ops = append(*c.ops, op)
	return nil
}

// GetExternal reads [key] from a mapping owned by another program.
func (c *Context) GetExternal(programID, mapping string, key program.Value) (program.Value, bool, error) {
	return c.mappings.GetValue(programID, mapping, key)
}

// Await schedules [f] to run right after the current body returns, before
// any future that was already pending.
func (c *Context) Await(f program.Future) {
	c.pending = append(c.pending, f)
}

func (c *Context) Add(a, b uint64) (uint64, error) {
	v, err := safemath.Add64(a, b)
	if err != nil {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return v, nil
}

func (c *Context) Sub(a, b uint64) (uint64, error) {
	v, err := safemath.Sub64(a, b)
	if err != nil {
		return 0, fmt.Errorf("%w: %d - %d", ErrUnderflow, a, b)
	}
	return v, nil
}

func (c *Context) Mul(a, b uint64) (uint64, error) {
	v, err := safemath.Mul64(a, b)
	if err != nil {
		return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, a, b)
	}
	return v, nil
}

// Abort fails the body with [reason].
func (c *Context) Abort(reason string) error {
	return fmt.Errorf("%w: %s", ErrAborted, reason)
}
