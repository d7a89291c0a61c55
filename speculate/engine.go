// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package speculate

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/cache/metercacher"
	"github.com/ava-labs/avalanchego/ids"
	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/finalizevm/finalize"
	"github.com/ava-labs/finalizevm/merkle"
	"github.com/ava-labs/finalizevm/programs/credits"
	"github.com/ava-labs/finalizevm/state"
	"github.com/ava-labs/finalizevm/tx"
)

const (
	DefaultTreeArity      = 8
	DefaultProofCacheSize = 4096
)

type Config struct {
	TreeArity      int `json:"treeArity"`
	VerifyWorkers  int `json:"verifyWorkers"`
	ProofCacheSize int `json:"proofCacheSize"`
}

func DefaultConfig() Config {
	return Config{
		TreeArity:      DefaultTreeArity,
		VerifyWorkers:  runtime.NumCPU(),
		ProofCacheSize: DefaultProofCacheSize,
	}
}

// Engine applies ordered batches of transactions to scratch state.
type Engine struct {
	config    Config
	verifier  Verifier
	evaluator *finalize.Evaluator
	verified  cache.Cacher
	metrics   *metrics
	log       log.Logger
}

// New returns an engine. A nil [registerer] keeps metrics in a private
// registry.
func New(
	config Config,
	verifier Verifier,
	evaluator *finalize.Evaluator,
	registerer prometheus.Registerer,
	logger log.Logger,
) (*Engine, error) {
	if err := merkle.CheckArity(config.TreeArity); err != nil {
		return nil, err
	}
	if config.VerifyWorkers <= 0 {
		config.VerifyWorkers = runtime.NumCPU()
	}
	if config.ProofCacheSize <= 0 {
		config.ProofCacheSize = DefaultProofCacheSize
	}
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = log.Root()
	}

	verified, err := metercacher.New(
		"proof_cache",
		registerer,
		&cache.LRU{Size: config.ProofCacheSize},
	)
	if err != nil {
		return nil, err
	}
	m, err := newMetrics("speculate", registerer)
	if err != nil {
		return nil, err
	}
	return &Engine{
		config:    config,
		verifier:  verifier,
		evaluator: evaluator,
		verified:  verified,
		metrics:   m,
		log:       logger.New("module", "speculate"),
	}, nil
}

// Arity returns the arity of the commitment trees built by the engine.
func (e *Engine) Arity() int { return e.config.TreeArity }

// Speculate applies [txs] in order to a scratch state over a snapshot of
// [store]. Either every transaction gets a result, in input order, or a
// batch-level error is returned and nothing is staged. The caller owns the
// returned speculation and must Commit or Discard it.
func (e *Engine) Speculate(ctx context.Context, txs []*tx.Tx, store *state.Store) (*Speculation, error) {
	start := time.Now()

	seen := make(map[ids.ID]struct{}, len(txs))
	for _, t := range txs {
		if _, ok := seen[t.ID()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTx, t.ID())
		}
		seen[t.ID()] = struct{}{}
	}

	if err := e.verifyAll(ctx, txs); err != nil {
		e.log.Warn("batch failed verification", "txs", len(txs), "err", err)
		return nil, err
	}

	scratch, err := store.NewScratch()
	if err != nil {
		return nil, err
	}
	s := &Speculation{
		store:   store,
		scratch: scratch,
		arity:   e.config.TreeArity,
		txs:     txs,
		Results: make([]*Result, 0, len(txs)),
	}
	for i, t := range txs {
		if err := ctx.Err(); err != nil {
			scratch.Release()
			return nil, err
		}
		result, err := e.apply(ctx, scratch, t)
		if err != nil {
			scratch.Release()
			return nil, fmt.Errorf("failed to apply tx %s at index %d: %w", t.ID(), i, err)
		}
		s.Results = append(s.Results, result)
		if result.Accepted() {
			s.Leaves = append(s.Leaves, t.Leaf())
		}
		e.metrics.txs.WithLabelValues(result.Status.String()).Inc()
	}

	e.metrics.batches.Inc()
	e.metrics.duration.Observe(time.Since(start).Seconds())
	e.log.Debug("speculated batch", "txs", len(txs), "accepted", len(s.Leaves), "duration", time.Since(start))
	return s, nil
}

// apply runs one transaction past its proof check. Per-transaction failures
// end in a rejected result; the returned error is reserved for failures
// that invalidate the whole pass.
func (e *Engine) apply(ctx context.Context, scratch *state.Scratch, t *tx.Tx) (*Result, error) {
	result := &Result{
		TxID:   t.ID(),
		Status: ProofVerified,
	}

	scratch.Checkpoint()
	feeOps, err := chargeFee(scratch.Mappings(), t.Fee)
	if errors.Is(err, credits.ErrInsufficientBalance) {
		if err := scratch.Discard(); err != nil {
			return nil, err
		}
		result.Status = RejectedInsufficientFee
		result.Reason = fmt.Errorf("%w: %v", ErrInsufficientFee, err)
		e.log.Warn("rejected tx", "txID", t.ID(), "status", result.Status, "reason", result.Reason)
		return result, nil
	}
	if err != nil {
		_ = scratch.Discard()
		return nil, fmt.Errorf("failed to charge fee: %w", err)
	}
	if err := scratch.Merge(); err != nil {
		return nil, err
	}
	result.Status = FeeDeducted
	result.Fee = t.Fee.Amount
	result.Operations = feeOps

	futures := t.Futures()
	if len(futures) > 0 {
		ops, err := e.evaluator.Finalize(ctx, futures, scratch)
		if _, ok := finalize.IsError(err); ok {
			result.Status = RejectedFinalizeFailed
			result.Reason = err
			e.log.Warn("rejected tx", "txID", t.ID(), "status", result.Status, "reason", err)
			return result, nil
		}
		if err != nil {
			return nil, err
		}
		result.Operations = append(result.Operations, ops...)
	}

	result.Status = Accepted
	result.Outputs = t.Execution.Outputs
	e.log.Debug("accepted tx", "txID", t.ID(), "fee", result.Fee, "futures", len(futures))
	return result, nil
}

// chargeFee deducts a public fee from the payer's credits balance. Private
// fees are paid by a record consumed in the proven execution.
func chargeFee(m *state.Mappings, fee tx.Fee) ([]state.Operation, error) {
	if fee.Mode != tx.FeePublic || fee.Amount == 0 {
		return nil, nil
	}
	op, err := credits.Debit(m, fee.Payer, fee.Amount)
	if err != nil {
		return nil, err
	}
	return []state.Operation{op}, nil
}
