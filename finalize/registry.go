// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalize

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ava-labs/finalizevm/program"
	"github.com/ava-labs/finalizevm/state"
)

// Function is the finalize body of a program function. Arguments are bound
// positionally from the future that invoked it.
type Function func(ctx *Context, args []program.Value) error

// Program is a deployed program: the mappings it owns and its finalize
// functions.
type Program struct {
	ID        string
	Mappings  []string
	Functions map[string]Function
}

// Initialize creates every mapping of [p] in [m].
func (p *Program) Initialize(m *state.Mappings) ([]state.Operation, error) {
	ops := make([]state.Operation, 0, len(p.Mappings))
	for _, name := range p.Mappings {
		op, err := m.InitializeMapping(p.ID, name)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s/%s: %w", p.ID, name, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Registry resolves futures to finalize bodies.
type Registry interface {
	Lookup(programID, function string) (Function, error)
}

var _ Registry = (*MapRegistry)(nil)

// MapRegistry is an in-memory Registry.
type MapRegistry struct {
	lock     sync.RWMutex
	programs map[string]*Program
}

func NewRegistry(programs ...*Program) (*MapRegistry, error) {
	r := &MapRegistry{programs: make(map[string]*Program)}
	for _, p := range programs {
		if err := r.Deploy(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Deploy registers [p]. Programs are immutable once deployed.
func (r *MapRegistry) Deploy(p *Program) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.programs[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrProgramExists, p.ID)
	}
	r.programs[p.ID] = p
	return nil
}

func (r *MapRegistry) Lookup(programID, function string) (Function, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	p, ok := r.programs[programID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, programID)
	}
	f, ok := p.Functions[function]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownFunction, programID, function)
	}
	return f, nil
}

// Program returns the deployed program [programID].
func (r *MapRegistry) Program(programID string) (*Program, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	p, ok := r.programs[programID]
	return p, ok
}

// Programs returns every deployed program ordered by ID.
func (r *MapRegistry) Programs() []*Program {
	r.lock.RLock()
	defer r.lock.RUnlock()

	programs := make([]*Program, 0, len(r.programs))
	for _, p := range r.programs {
		programs = append(programs, p)
	}
	sort.Slice(programs, func(i, j int) bool { return programs[i].ID < programs[j].ID })
	return programs
}

// ExpectArgs checks that [args] has exactly the given kinds and that every
// payload is well formed.
func ExpectArgs(args []program.Value, kinds ...program.Kind) error {
	if len(args) != len(kinds) {
		return fmt.Errorf("%w: expected %d arguments but got %d", ErrInvalidArguments, len(kinds), len(args))
	}
	for i, kind := range kinds {
		if args[i].Kind() != kind {
			return fmt.Errorf("%w: argument %d is %s, expected %s", ErrInvalidArguments, i, args[i].Kind(), kind)
		}
		if err := args[i].Verify(); err != nil {
			return fmt.Errorf("%w: argument %d: %v", ErrInvalidArguments, i, err)
		}
	}
	return nil
}
