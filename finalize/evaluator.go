// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalize

import (
	"context"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/finalizevm/program"
	"github.com/ava-labs/finalizevm/state"
)

const (
	DefaultMaxCalls = 1024
	DefaultMaxDepth = 32
)

// Config bounds the work one transaction's finalize may do.
type Config struct {
	MaxCalls int `json:"maxCalls"`
	MaxDepth int `json:"maxDepth"`
}

func DefaultConfig() Config {
	return Config{
		MaxCalls: DefaultMaxCalls,
		MaxDepth: DefaultMaxDepth,
	}
}

// Evaluator runs the futures of a transaction against a scratch state.
type Evaluator struct {
	registry Registry
	config   Config
	log      log.Logger
}

func New(registry Registry, config Config, logger log.Logger) *Evaluator {
	if config.MaxCalls <= 0 {
		config.MaxCalls = DefaultMaxCalls
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Evaluator{
		registry: registry,
		config:   config,
		log:      logger.New("module", "finalize"),
	}
}

type frame struct {
	future program.Future
	depth  int
}

// Finalize evaluates [futures] depth-first and left-to-right: the futures
// awaited by a body run right after it, before its remaining siblings.
//
// All writes are made inside a checkpoint of [scratch] that is merged on
// success and discarded on failure, so a failed call leaves [scratch] as it
// found it. Body failures are returned as *Error. Cancellation of [ctx]
// is returned unwrapped.
func (e *Evaluator) Finalize(ctx context.Context, futures []program.Future, scratch *state.Scratch) ([]state.Operation, error) {
	scratch.Checkpoint()
	ops, err := e.run(ctx, futures, scratch.Mappings())
	if err != nil {
		if discardErr := scratch.Discard(); discardErr != nil {
			return nil, discardErr
		}
		return nil, err
	}
	if err := scratch.Merge(); err != nil {
		return nil, err
	}
	return ops, nil
}

func (e *Evaluator) run(ctx context.Context, futures []program.Future, mappings *state.Mappings) ([]state.Operation, error) {
	var (
		ops   []state.Operation
		stack = make([]frame, 0, len(futures))
		calls int
	)
	push := func(fs []program.Future, depth int) {
		for i := len(fs) - 1; i >= 0; i-- {
			stack = append(stack, frame{future: fs[i], depth: depth})
		}
	}
	push(futures, 0)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		f := top.future
		fail := func(err error) error {
			return &Error{
				ProgramID: f.ProgramID,
				Function:  f.Function,
				Depth:     top.depth,
				Err:       err,
			}
		}

		calls++
		if calls > e.config.MaxCalls {
			return nil, fail(ErrCallLimit)
		}
		if top.depth > e.config.MaxDepth {
			return nil, fail(ErrDepthLimit)
		}
		if err := f.Verify(); err != nil {
			return nil, fail(err)
		}
		body, err := e.registry.Lookup(f.ProgramID, f.Function)
		if err != nil {
			return nil, fail(err)
		}

		c := &Context{
			ctx:       ctx,
			programID: f.ProgramID,
			function:  f.Function,
			depth:     top.depth,
			mappings:  mappings,
			ops:       &ops,
		}
		if err := body(c, f.Arguments); err != nil {
			return nil, fail(err)
		}
		e.log.Debug("finalized future", "future", f, "depth", top.depth, "awaited", len(c.pending))
		push(c.pending, top.depth+1)
	}
	return ops, nil
}
