// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalizevm

import (
	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
)

var (
	// These are prefixes for db keys.
	// They must not collide with the mapping namespaces of the ledger.
	singletonStatePrefix = []byte("singleton")
	blockStatePrefix     = []byte("block")
	heightStatePrefix    = []byte("height")
	txStatePrefix        = []byte("tx")

	_ State = (*chainState)(nil)
)

// State is the chain bookkeeping kept next to the mapping state. It is
// bound to one database layer: a snapshot view for reads or the scratch
// state of a speculation for writes, so block records are committed in the
// same batch as the state they describe.
type State interface {
	SingletonState
	BlockState
	TxState
}

type chainState struct {
	SingletonState
	BlockState
	TxState
}

func NewState(db database.Database, blkCache cache.Cacher) State {
	return &chainState{
		SingletonState: NewSingletonState(prefixdb.New(singletonStatePrefix, db)),
		BlockState: NewBlockState(
			prefixdb.New(blockStatePrefix, db),
			prefixdb.New(heightStatePrefix, db),
			blkCache,
		),
		TxState: NewTxState(prefixdb.New(txStatePrefix, db)),
	}
}
