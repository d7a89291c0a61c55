// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalizevm

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
)

var _ TxState = (*txState)(nil)

// TxState indexes the transactions that took effect in a block, accepted
// or charged a fee, by the block that included them.
type TxState interface {
	GetTxBlock(txID ids.ID) (ids.ID, error)
	HasTx(txID ids.ID) (bool, error)
	PutTx(txID, blkID ids.ID) error
}

type txState struct {
	txDB database.Database
}

func NewTxState(db database.Database) TxState {
	return &txState{
		txDB: db,
	}
}

func (s *txState) GetTxBlock(txID ids.ID) (ids.ID, error) {
	b, err := s.txDB.Get(txID[:])
	if err != nil {
		return ids.Empty, err
	}
	return ids.ToID(b)
}

func (s *txState) HasTx(txID ids.ID) (bool, error) {
	return s.txDB.Has(txID[:])
}

func (s *txState) PutTx(txID, blkID ids.ID) error {
	return s.txDB.Put(txID[:], blkID[:])
}
