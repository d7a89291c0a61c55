// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"bytes"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var _ database.Database = (*View)(nil)

// View is an immutable read view of the store, pinned to a leveldb
// snapshot. It satisfies database.Database so overlays can be layered on
// top of it. Writes are refused; batches created from a view only record
// operations so a scratch state can replay them into the store.
type View struct {
	// recorder supplies batches and the remaining database methods. It
	// never holds data.
	database.Database

	snap       *leveldb.Snapshot
	generation uint64
}

func newView(snap *leveldb.Snapshot, generation uint64) *View {
	return &View{
		Database:   memdb.New(),
		snap:       snap,
		generation: generation,
	}
}

func (v *View) Has(key []byte) (bool, error) {
	return v.snap.Has(key, nil)
}

func (v *View) Get(key []byte) ([]byte, error) {
	value, err := v.snap.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, database.ErrNotFound
	}
	return value, err
}

func (v *View) Put([]byte, []byte) error { return ErrReadOnly }

func (v *View) Delete([]byte) error { return ErrReadOnly }

func (v *View) NewIterator() database.Iterator {
	return v.NewIteratorWithStartAndPrefix(nil, nil)
}

func (v *View) NewIteratorWithStart(start []byte) database.Iterator {
	return v.NewIteratorWithStartAndPrefix(start, nil)
}

func (v *View) NewIteratorWithPrefix(prefix []byte) database.Iterator {
	return v.NewIteratorWithStartAndPrefix(nil, prefix)
}

func (v *View) NewIteratorWithStartAndPrefix(start, prefix []byte) database.Iterator {
	r := util.BytesPrefix(prefix)
	if bytes.Compare(start, prefix) > 0 {
		r.Start = start
	}
	return &iter{Iterator: v.snap.NewIterator(r, nil)}
}

// Mappings returns read accessors over the view.
func (v *View) Mappings() *Mappings { return newReader(v) }

// Close releases the underlying snapshot.
func (v *View) Close() error {
	v.snap.Release()
	return v.Database.Close()
}

// iter copies keys and values out of leveldb's reused buffers.
type iter struct {
	iterator.Iterator
}

func (it *iter) Key() []byte {
	return append([]byte(nil), it.Iterator.Key()...)
}

func (it *iter) Value() []byte {
	return append([]byte(nil), it.Iterator.Value()...)
}

// batchWriter replays recorded batch operations into a leveldb batch.
type batchWriter struct {
	batch *leveldb.Batch
}

func (w *batchWriter) Put(key, value []byte) error {
	w.batch.Put(key, value)
	return nil
}

func (w *batchWriter) Delete(key []byte) error {
	w.batch.Delete(key)
	return nil
}
