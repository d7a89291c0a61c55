// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package speculate

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/finalizevm/merkle"
	"github.com/ava-labs/finalizevm/state"
	"github.com/ava-labs/finalizevm/tx"
)

// Speculation is the staged outcome of a batch. Nothing reaches the store
// until Commit.
type Speculation struct {
	store   *state.Store
	scratch *state.Scratch
	arity   int
	tree    *merkle.Tree
	txs     []*tx.Tx
	done    bool

	// Results holds one entry per input transaction, in input order.
	Results []*Result
	// Leaves holds the leaf of every accepted transaction, in input order.
	Leaves []ids.ID
}

// Txs returns the speculated transactions in input order.
func (s *Speculation) Txs() []*tx.Tx { return s.txs }

// Tree returns the commitment tree over the accepted leaves.
func (s *Speculation) Tree() *merkle.Tree {
	if s.tree == nil {
		// the arity was checked when the engine was built
		s.tree, _ = merkle.Build(s.Leaves, s.arity)
	}
	return s.tree
}

// Root returns the commitment root over the accepted leaves.
func (s *Speculation) Root() ids.ID { return s.Tree().Root() }

// Path returns the inclusion path of the [index]th accepted leaf.
func (s *Speculation) Path(index int) (*merkle.Path, error) {
	return s.Tree().Path(index)
}

// Accepted returns the results of accepted transactions.
func (s *Speculation) Accepted() []*Result {
	accepted := make([]*Result, 0, len(s.Leaves))
	for _, r := range s.Results {
		if r.Accepted() {
			accepted = append(accepted, r)
		}
	}
	return accepted
}

// Rejected returns the results of rejected transactions.
func (s *Speculation) Rejected() []*Result {
	rejected := make([]*Result, 0, len(s.Results)-len(s.Leaves))
	for _, r := range s.Results {
		if !r.Accepted() {
			rejected = append(rejected, r)
		}
	}
	return rejected
}

// StateRoot returns the state root the store would have after Commit.
func (s *Speculation) StateRoot() (ids.ID, error) {
	if s.done {
		return ids.Empty, errCommitted
	}
	return s.scratch.Mappings().StateRoot(s.arity)
}

// Scratch exposes the staged state so callers can stage their own records,
// such as the block itself, to be committed in the same batch.
func (s *Speculation) Scratch() *state.Scratch { return s.scratch }

// Commit atomically applies the staged writes to the store.
func (s *Speculation) Commit() error {
	if s.done {
		return errCommitted
	}
	s.done = true
	return s.store.Commit(s.scratch)
}

// Discard drops the staged writes. It is safe to call after Commit.
func (s *Speculation) Discard() {
	s.done = true
	s.scratch.Release()
}
