// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"sync"

	log "github.com/inconshreveable/log15"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/ava-labs/finalizevm/program"
)

// Store is the persistent ledger store. It is read through immutable
// snapshots and mutated only by atomically committing a scratch state.
type Store struct {
	db   *leveldb.DB
	sync bool
	log  log.Logger

	// lock serializes commits against snapshot creation
	lock       sync.Mutex
	generation uint64
}

// Open opens (or creates) a leveldb store at [path].
func Open(path string, logger log.Logger) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	return newStore(db, true, logger), nil
}

// NewMemory returns a store backed by in-memory leveldb storage.
func NewMemory(logger log.Logger) (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	return newStore(db, false, logger), nil
}

func newStore(db *leveldb.DB, sync bool, logger log.Logger) *Store {
	if logger == nil {
		logger = log.Root()
	}
	return &Store{
		db:   db,
		sync: sync,
		log:  logger.New("module", "store"),
	}
}

// Snapshot returns a read view that will not observe later commits.
func (s *Store) Snapshot() (*View, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, &StoreError{Op: "snapshot", Err: err}
	}
	return newView(snap, s.generation), nil
}

// NewScratch opens a scratch state over a fresh snapshot.
func (s *Store) NewScratch() (*Scratch, error) {
	view, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return NewScratch(view), nil
}

// Get reads a mapping entry from the latest committed state.
func (s *Store) Get(programID, mapping string, key program.Value) (program.Value, bool, error) {
	view, err := s.Snapshot()
	if err != nil {
		return program.Value{}, false, err
	}
	defer view.Close()

	return newReader(view).GetValue(programID, mapping, key)
}

// Read runs [f] against a snapshot of the latest committed state.
func (s *Store) Read(f func(*Mappings) error) error {
	view, err := s.Snapshot()
	if err != nil {
		return err
	}
	defer view.Close()

	return f(newReader(view))
}

// Commit atomically applies every write staged in [scratch]. On failure
// nothing is written. The scratch state is released in both cases.
func (s *Store) Commit(scratch *Scratch) error {
	if scratch.closed {
		return errClosed
	}
	if len(scratch.layers) != 0 {
		return errOpenCheckpoints
	}
	defer scratch.Release()

	s.lock.Lock()
	defer s.lock.Unlock()

	if scratch.view.generation != s.generation {
		return ErrStaleSnapshot
	}

	recorded, err := scratch.base.CommitBatch()
	if err != nil {
		return &StoreError{Op: "collect", Err: err}
	}
	batch := new(leveldb.Batch)
	if err := recorded.Replay(&batchWriter{batch: batch}); err != nil {
		return &StoreError{Op: "replay", Err: err}
	}
	if err := s.db.Write(batch, &opt.WriteOptions{Sync: s.sync}); err != nil {
		return &StoreError{Op: "write", Err: err}
	}
	s.generation++

	s.log.Debug("committed scratch state", "writes", batch.Len(), "generation", s.generation)
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
