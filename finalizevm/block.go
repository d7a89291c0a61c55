// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalizevm

import (
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/ava-labs/finalizevm/program"
	"github.com/ava-labs/finalizevm/speculate"
	"github.com/ava-labs/finalizevm/tx"
)

// RejectedTx records a transaction that was included in a block but whose
// effects, other than its fee, were dropped.
type RejectedTx struct {
	TxID   ids.ID           `serialize:"true" json:"txID"`
	Status speculate.Status `serialize:"true" json:"status"`
	Fee    uint64           `serialize:"true" json:"fee"`
	Reason string           `serialize:"true" json:"reason"`
}

// Block is a committed batch. Txs holds the accepted transactions in
// execution order; TxRoot commits to their leaves.
type Block struct {
	PrntID    ids.ID       `serialize:"true" json:"parentID"`  // parent's ID
	Hght      uint64       `serialize:"true" json:"height"`    // The genesis block is at height 0.
	Tmstmp    int64        `serialize:"true" json:"timestamp"` // Time this block was built at
	TxRoot    ids.ID       `serialize:"true" json:"txRoot"`
	StateRoot ids.ID       `serialize:"true" json:"stateRoot"` // state root after this block
	Txs       [][]byte     `serialize:"true" json:"txs"`
	Rejected  []RejectedTx `serialize:"true" json:"rejected"`

	id    ids.ID
	bytes []byte
	txs   []*tx.Tx
}

func newBlock(parentID ids.ID, height uint64, timestamp int64, txRoot, stateRoot ids.ID, txs []*tx.Tx, rejected []RejectedTx) (*Block, error) {
	b := &Block{
		PrntID:    parentID,
		Hght:      height,
		Tmstmp:    timestamp,
		TxRoot:    txRoot,
		StateRoot: stateRoot,
		Txs:       make([][]byte, len(txs)),
		Rejected:  rejected,
		txs:       txs,
	}
	for i, t := range txs {
		b.Txs[i] = t.Bytes()
	}
	bytes, err := program.Codec.Marshal(program.CodecVersion, b)
	if err != nil {
		return nil, err
	}
	b.bytes = bytes
	b.id = hashing.ComputeHash256Array(bytes)
	return b, nil
}

// ParseBlock decodes a block and the transactions it carries.
func ParseBlock(bytes []byte) (*Block, error) {
	b := &Block{}
	if err := program.Unmarshal(bytes, b); err != nil {
		return nil, err
	}
	b.txs = make([]*tx.Tx, len(b.Txs))
	for i, txBytes := range b.Txs {
		t, err := tx.Parse(txBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tx %d of block: %w", i, err)
		}
		b.txs[i] = t
	}
	b.bytes = bytes
	b.id = hashing.ComputeHash256Array(bytes)
	return b, nil
}

// ID returns the ID of this block
func (b *Block) ID() ids.ID { return b.id }

// Parent returns [b]'s parent's ID
func (b *Block) Parent() ids.ID { return b.PrntID }

// Height returns this block's height. The genesis block has height 0.
func (b *Block) Height() uint64 { return b.Hght }

// Timestamp returns this block's time.
func (b *Block) Timestamp() time.Time { return time.Unix(b.Tmstmp, 0) }

// Bytes returns the byte repr. of this block
func (b *Block) Bytes() []byte { return b.bytes }

// Transactions returns the accepted transactions.
func (b *Block) Transactions() []*tx.Tx { return b.txs }

// Leaves returns the commitment leaves of the accepted transactions.
func (b *Block) Leaves() []ids.ID {
	leaves := make([]ids.ID, len(b.txs))
	for i, t := range b.txs {
		leaves[i] = t.Leaf()
	}
	return leaves
}

// TxIndex returns the position of an accepted transaction, or -1.
func (b *Block) TxIndex(txID ids.ID) int {
	for i, t := range b.txs {
		if t.ID() == txID {
			return i
		}
	}
	return -1
}
