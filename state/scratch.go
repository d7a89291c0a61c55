// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/versiondb"
)

// Scratch is a copy-on-write overlay holding the uncommitted writes of a
// speculation pass. Reads fall through the open checkpoints and the batch
// overlay to the pinned snapshot; writes only land in the innermost layer.
//
// Checkpoints nest: Merge folds the innermost layer into its parent and
// Discard drops it. Only the batch overlay is ever applied to the store,
// through Store.Commit.
type Scratch struct {
	view   *View
	base   *versiondb.Database
	layers []*versiondb.Database

	closed bool
}

// NewScratch layers a fresh overlay over [view]. The scratch state owns the
// view and releases it on Release or commit.
func NewScratch(view *View) *Scratch {
	return &Scratch{
		view: view,
		base: versiondb.New(view),
	}
}

// Database returns the innermost writable layer. Callers may keep extra
// namespaces in it; they are committed together with mapping state.
func (s *Scratch) Database() database.Database {
	if n := len(s.layers); n > 0 {
		return s.layers[n-1]
	}
	return s.base
}

// Mappings returns mapping accessors bound to the innermost layer.
func (s *Scratch) Mappings() *Mappings {
	return newMappings(s.Database())
}

// Checkpoint opens a nested layer.
func (s *Scratch) Checkpoint() {
	s.layers = append(s.layers, versiondb.New(s.Database()))
}

// Merge folds the innermost checkpoint into its parent.
func (s *Scratch) Merge() error {
	n := len(s.layers)
	if n == 0 {
		return errNoCheckpoint
	}
	layer := s.layers[n-1]
	s.layers = s.layers[:n-1]
	return layer.Commit()
}

// Discard drops every write made since the innermost checkpoint.
func (s *Scratch) Discard() error {
	n := len(s.layers)
	if n == 0 {
		return errNoCheckpoint
	}
	s.layers[n-1].Abort()
	s.layers = s.layers[:n-1]
	return nil
}

// Depth returns the number of open checkpoints.
func (s *Scratch) Depth() int { return len(s.layers) }

// Release abandons every staged write and releases the snapshot. It is safe
// to call more than once.
func (s *Scratch) Release() {
	if s.closed {
		return
	}
	s.closed = true
	for i := len(s.layers) - 1; i >= 0; i-- {
		s.layers[i].Abort()
	}
	s.layers = nil
	s.base.Abort()
	_ = s.view.Close()
}
