// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package speculate

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/finalizevm/tx"
)

// Verifier checks a proof against its public inputs.
type Verifier interface {
	Verify(proof []byte, publicInputs []ids.ID) bool
}

// Verify checks the proofs of [txs] without touching state. Verified
// transactions are remembered, so speculating them later skips the work.
func (e *Engine) Verify(ctx context.Context, txs []*tx.Tx) error {
	return e.verifyAll(ctx, txs)
}

// verifyAll checks every proof concurrently. Failures are reported by the
// lowest failing index so the result does not depend on completion order.
func (e *Engine) verifyAll(ctx context.Context, txs []*tx.Tx) error {
	valid := make([]bool, len(txs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.VerifyWorkers)
	for i, t := range txs {
		i, t := i, t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			valid[i] = e.verify(t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, ok := range valid {
		if !ok {
			return &ProofError{Index: i, TxID: txs[i].ID()}
		}
	}
	return nil
}

// verify consults the cache of verified transactions first. The tx ID
// commits to the proof and the outputs, so a hit needs no re-verification.
func (e *Engine) verify(t *tx.Tx) bool {
	if _, ok := e.verified.Get(t.ID()); ok {
		return true
	}
	e.metrics.proofChecks.Inc()
	if !e.verifier.Verify(t.Execution.Proof, t.PublicInputs()) {
		e.metrics.proofFailures.Inc()
		return false
	}
	e.verified.Put(t.ID(), struct{}{})
	return true
}
