// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalize

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/finalizevm/program"
	"github.com/ava-labs/finalizevm/state"
)

const traceID = "trace.aleo"

var counterKey = program.Bool(true)

// record appends its argument to the "order" mapping.
func record(ctx *Context, args []program.Value) error {
	if err := ExpectArgs(args, program.KindBytes); err != nil {
		return err
	}
	n, err := ctx.GetOrDefault("meta", counterKey, program.U64(0))
	if err != nil {
		return err
	}
	seq, err := n.U64()
	if err != nil {
		return err
	}
	if err := ctx.Set("order", program.U64(seq), args[0]); err != nil {
		return err
	}
	next, err := ctx.Add(seq, 1)
	if err != nil {
		return err
	}
	return ctx.Set("meta", counterKey, program.U64(next))
}

func newTraceProgram() *Program {
	return &Program{
		ID:       traceID,
		Mappings: []string{"meta", "order"},
		Functions: map[string]Function{
			"record": record,
			// parent records itself then awaits <name>a and <name>b
			"parent": func(ctx *Context, args []program.Value) error {
				if err := record(ctx, args); err != nil {
					return err
				}
				name := string(args[0].Data())
				ctx.Await(program.NewFuture(traceID, "record", program.Bytes([]byte(name+"a"))))
				ctx.Await(program.NewFuture(traceID, "record", program.Bytes([]byte(name+"b"))))
				return nil
			},
			"abort": func(ctx *Context, _ []program.Value) error {
				return ctx.Abort("no")
			},
			"require": func(ctx *Context, args []program.Value) error {
				_, err := ctx.Require("order", args[0])
				return err
			},
			"overflow": func(ctx *Context, _ []program.Value) error {
				_, err := ctx.Add(math.MaxUint64, 1)
				return err
			},
			"underflow": func(ctx *Context, _ []program.Value) error {
				_, err := ctx.Sub(0, 1)
				return err
			},
			"recurse": func(ctx *Context, _ []program.Value) error {
				ctx.Await(program.NewFuture(traceID, "recurse"))
				return nil
			},
			"fanout": func(ctx *Context, _ []program.Value) error {
				for i := 0; i < 4; i++ {
					ctx.Await(program.NewFuture(traceID, "record", program.Bytes([]byte{byte(i)})))
				}
				return nil
			},
			"orphan": func(ctx *Context, _ []program.Value) error {
				return ctx.Set("ghost", counterKey, program.U64(1))
			},
			// nested awaits a failing future after recording
			"nested": func(ctx *Context, args []program.Value) error {
				if err := record(ctx, args); err != nil {
					return err
				}
				ctx.Await(program.NewFuture(traceID, "abort"))
				return nil
			},
		},
	}
}

func recordCall(name string) program.Future {
	return program.NewFuture(traceID, "record", program.Bytes([]byte(name)))
}

type evaluatorTest struct {
	store     *state.Store
	scratch   *state.Scratch
	evaluator *Evaluator
}

func newEvaluatorTest(t *testing.T, config Config) *evaluatorTest {
	t.Helper()
	require := require.New(t)

	store, err := state.NewMemory(nil)
	require.NoError(err)
	t.Cleanup(func() { _ = store.Close() })

	p := newTraceProgram()
	registry, err := NewRegistry(p)
	require.NoError(err)

	scratch, err := store.NewScratch()
	require.NoError(err)
	t.Cleanup(scratch.Release)
	_, err = p.Initialize(scratch.Mappings())
	require.NoError(err)

	return &evaluatorTest{
		store:     store,
		scratch:   scratch,
		evaluator: New(registry, config, nil),
	}
}

func (et *evaluatorTest) order(t *testing.T) []string {
	t.Helper()
	entries, err := et.scratch.Mappings().Entries(traceID, "order")
	require.NoError(t, err)

	names := make([]string, len(entries))
	for _, e := range entries {
		seq, err := e.Key.U64()
		require.NoError(t, err)
		require.Less(t, int(seq), len(names))
		names[seq] = string(e.Val.Data())
	}
	return names
}

func TestFinalizeDepthFirst(t *testing.T) {
	require := require.New(t)
	et := newEvaluatorTest(t, DefaultConfig())

	futures := []program.Future{
		program.NewFuture(traceID, "parent", program.Bytes([]byte("F1"))),
		recordCall("F2"),
		program.NewFuture(traceID, "parent", program.Bytes([]byte("F3"))),
	}
	ops, err := et.evaluator.Finalize(context.Background(), futures, et.scratch)
	require.NoError(err)
	require.Equal([]string{"F1", "F1a", "F1b", "F2", "F3", "F3a", "F3b"}, et.order(t))

	// every record writes the order entry and bumps the counter
	require.Len(ops, 14)
	require.Equal(state.InsertKeyValue, ops[0].Kind)
	require.Equal(state.InsertKeyValue, ops[1].Kind)
	require.Equal(state.UpdateKeyValue, ops[3].Kind)
	require.Zero(et.scratch.Depth())
}

func TestFinalizeFailureDiscardsWrites(t *testing.T) {
	require := require.New(t)
	et := newEvaluatorTest(t, DefaultConfig())

	_, err := et.evaluator.Finalize(context.Background(), []program.Future{recordCall("kept")}, et.scratch)
	require.NoError(err)

	futures := []program.Future{
		recordCall("x"),
		program.NewFuture(traceID, "abort"),
		recordCall("never"),
	}
	_, err = et.evaluator.Finalize(context.Background(), futures, et.scratch)
	require.ErrorIs(err, ErrAborted)
	fe, ok := IsError(err)
	require.True(ok)
	require.Equal("abort", fe.Function)
	require.Zero(fe.Depth)

	require.Equal([]string{"kept"}, et.order(t))
	require.Zero(et.scratch.Depth())
}

func TestFinalizeNestedFailureReportsDepth(t *testing.T) {
	require := require.New(t)
	et := newEvaluatorTest(t, DefaultConfig())

	futures := []program.Future{
		program.NewFuture(traceID, "nested", program.Bytes([]byte("outer"))),
		recordCall("after"),
	}
	_, err := et.evaluator.Finalize(context.Background(), futures, et.scratch)
	fe, ok := IsError(err)
	require.True(ok)
	require.Equal(1, fe.Depth)
	require.ErrorIs(err, ErrAborted)
	require.Empty(et.order(t))
}

func TestFinalizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		future program.Future
		want   error
	}{
		{
			name:   "unknown program",
			future: program.NewFuture("missing.aleo", "record"),
			want:   ErrUnknownProgram,
		},
		{
			name:   "unknown function",
			future: program.NewFuture(traceID, "missing"),
			want:   ErrUnknownFunction,
		},
		{
			name:   "overflow",
			future: program.NewFuture(traceID, "overflow"),
			want:   ErrOverflow,
		},
		{
			name:   "underflow",
			future: program.NewFuture(traceID, "underflow"),
			want:   ErrUnderflow,
		},
		{
			name:   "bad arguments",
			future: program.NewFuture(traceID, "record", program.U64(1)),
			want:   ErrInvalidArguments,
		},
		{
			name:   "uninitialized mapping",
			future: program.NewFuture(traceID, "orphan"),
			want:   state.ErrMappingNotInitialized,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			et := newEvaluatorTest(t, DefaultConfig())

			_, err := et.evaluator.Finalize(context.Background(), []program.Future{test.future}, et.scratch)
			require.ErrorIs(err, test.want)
			_, ok := IsError(err)
			require.True(ok)
		})
	}
}

func TestFinalizeMissingKey(t *testing.T) {
	require := require.New(t)
	et := newEvaluatorTest(t, DefaultConfig())

	_, err := et.evaluator.Finalize(
		context.Background(),
		[]program.Future{program.NewFuture(traceID, "require", program.U64(7))},
		et.scratch,
	)
	me, ok := IsMissingKeyError(err)
	require.True(ok)
	require.Equal(traceID, me.ProgramID)
	require.Equal("order", me.Mapping)
	require.Equal(program.U64(7), me.Key)
}

func TestFinalizeLimits(t *testing.T) {
	require := require.New(t)

	et := newEvaluatorTest(t, Config{MaxCalls: 100, MaxDepth: 3})
	_, err := et.evaluator.Finalize(context.Background(), []program.Future{program.NewFuture(traceID, "recurse")}, et.scratch)
	require.ErrorIs(err, ErrDepthLimit)
	fe, _ := IsError(err)
	require.Equal(4, fe.Depth)

	et = newEvaluatorTest(t, Config{MaxCalls: 3, MaxDepth: 3})
	_, err = et.evaluator.Finalize(context.Background(), []program.Future{program.NewFuture(traceID, "fanout")}, et.scratch)
	require.ErrorIs(err, ErrCallLimit)
	require.Empty(et.order(t))
}

func TestFinalizeCanceled(t *testing.T) {
	require := require.New(t)
	et := newEvaluatorTest(t, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := et.evaluator.Finalize(ctx, []program.Future{recordCall("x")}, et.scratch)
	require.True(errors.Is(err, context.Canceled))
	_, ok := IsError(err)
	require.False(ok)
	require.Empty(et.order(t))
}

func TestRegistry(t *testing.T) {
	require := require.New(t)

	registry, err := NewRegistry(newTraceProgram())
	require.NoError(err)
	require.ErrorIs(registry.Deploy(newTraceProgram()), ErrProgramExists)
	require.NoError(registry.Deploy(&Program{ID: "a.aleo"}))

	programs := registry.Programs()
	require.Len(programs, 2)
	require.Equal("a.aleo", programs[0].ID)
	require.Equal(traceID, programs[1].ID)

	_, err = registry.Lookup("a.aleo", "record")
	require.ErrorIs(err, ErrUnknownFunction)
}
