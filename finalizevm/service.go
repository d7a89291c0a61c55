// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalizevm

import (
	"errors"
	"net/http"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/finalizevm/merkle"
	"github.com/ava-labs/finalizevm/program"
	"github.com/ava-labs/finalizevm/tx"
)

var errCannotGetLastAccepted = errors.New("cannot get last accepted block")

// Service is the API service for this VM
type Service struct{ vm *VM }

// IssueTxArgs carries a hex encoded transaction.
type IssueTxArgs struct {
	Tx string `json:"tx"`
}

type IssueTxReply struct {
	TxID ids.ID `json:"txID"`
}

// IssueTx adds a transaction to the mempool.
func (s *Service) IssueTx(r *http.Request, args *IssueTxArgs, reply *IssueTxReply) error {
	t, err := decodeTx(args.Tx)
	if err != nil {
		return err
	}
	if err := s.vm.IssueTx(r.Context(), t); err != nil {
		return err
	}
	reply.TxID = t.ID()
	return nil
}

type BuildBlockArgs struct{}

type BuildBlockReply struct {
	BlockID  ids.ID      `json:"blockID"`
	Height   json.Uint64 `json:"height"`
	Accepted int         `json:"accepted"`
	Rejected int         `json:"rejected"`
}

// BuildBlock builds a block out of the pending transactions.
func (s *Service) BuildBlock(r *http.Request, _ *BuildBlockArgs, reply *BuildBlockReply) error {
	blk, err := s.vm.BuildBlock(r.Context())
	if err != nil {
		return err
	}
	reply.BlockID = blk.ID()
	reply.Height = json.Uint64(blk.Height())
	reply.Accepted = len(blk.Txs)
	reply.Rejected = len(blk.Rejected)
	return nil
}

// GetBlockArgs are the arguments to GetBlock
type GetBlockArgs struct {
	// ID of the block we're getting.
	// If left blank, gets the latest block
	ID *ids.ID `json:"id"`
}

// GetBlockReply is the reply from GetBlock
type GetBlockReply struct {
	ID        ids.ID       `json:"id"`
	ParentID  ids.ID       `json:"parentID"`
	Height    json.Uint64  `json:"height"`
	Timestamp json.Uint64  `json:"timestamp"`
	TxRoot    ids.ID       `json:"txRoot"`
	StateRoot ids.ID       `json:"stateRoot"`
	TxIDs     []ids.ID     `json:"txIDs"`
	Rejected  []RejectedTx `json:"rejected"`
}

// GetBlock gets the block whose ID is [args.ID]
// If [args.ID] is empty, get the latest block
func (s *Service) GetBlock(r *http.Request, args *GetBlockArgs, reply *GetBlockReply) error {
	var id ids.ID
	if args.ID == nil {
		lastAccepted, err := s.vm.LastAccepted(r.Context())
		if err != nil {
			return errCannotGetLastAccepted
		}
		id = lastAccepted
	} else {
		id = *args.ID
	}

	blk, err := s.vm.GetBlock(r.Context(), id)
	if err != nil {
		return err
	}
	reply.ID = blk.ID()
	reply.ParentID = blk.Parent()
	reply.Height = json.Uint64(blk.Height())
	reply.Timestamp = json.Uint64(blk.Tmstmp)
	reply.TxRoot = blk.TxRoot
	reply.StateRoot = blk.StateRoot
	reply.TxIDs = make([]ids.ID, len(blk.Transactions()))
	for i, t := range blk.Transactions() {
		reply.TxIDs[i] = t.ID()
	}
	reply.Rejected = blk.Rejected
	return nil
}

type GetMappingValueArgs struct {
	ProgramID string        `json:"programID"`
	Mapping   string        `json:"mapping"`
	Key       program.Value `json:"key"`
}

type GetMappingValueReply struct {
	Found bool          `json:"found"`
	Value program.Value `json:"value"`
}

// GetMappingValue reads a mapping entry of the last accepted state.
func (s *Service) GetMappingValue(_ *http.Request, args *GetMappingValueArgs, reply *GetMappingValueReply) error {
	v, ok, err := s.vm.GetMappingValue(args.ProgramID, args.Mapping, args.Key)
	if err != nil {
		return err
	}
	reply.Found = ok
	reply.Value = v
	return nil
}

type GetInclusionPathArgs struct {
	BlockID ids.ID `json:"blockID"`
	TxID    ids.ID `json:"txID"`
}

type GetInclusionPathReply struct {
	Leaf ids.ID       `json:"leaf"`
	Root ids.ID       `json:"root"`
	Path *merkle.Path `json:"path"`
}

// GetInclusionPath proves an accepted transaction against its block's
// tx root.
func (s *Service) GetInclusionPath(r *http.Request, args *GetInclusionPathArgs, reply *GetInclusionPathReply) error {
	blk, err := s.vm.GetBlock(r.Context(), args.BlockID)
	if err != nil {
		return err
	}
	path, err := s.vm.InclusionPath(r.Context(), args.BlockID, args.TxID)
	if err != nil {
		return err
	}
	reply.Leaf = blk.Transactions()[blk.TxIndex(args.TxID)].Leaf()
	reply.Root = blk.TxRoot
	reply.Path = path
	return nil
}

type SimulateArgs struct {
	Txs []string `json:"txs"`
}

type SimulatedTx struct {
	TxID   ids.ID      `json:"txID"`
	Status string      `json:"status"`
	Fee    json.Uint64 `json:"fee"`
	Reason string      `json:"reason,omitempty"`
}

type SimulateReply struct {
	Results []SimulatedTx `json:"results"`
	TxRoot  ids.ID        `json:"txRoot"`
}

// Simulate speculates transactions on the last accepted state without
// committing anything.
func (s *Service) Simulate(r *http.Request, args *SimulateArgs, reply *SimulateReply) error {
	txs := make([]*tx.Tx, len(args.Txs))
	for i, encoded := range args.Txs {
		t, err := decodeTx(encoded)
		if err != nil {
			return err
		}
		txs[i] = t
	}
	results, root, err := s.vm.Simulate(r.Context(), txs)
	if err != nil {
		return err
	}
	reply.Results = make([]SimulatedTx, len(results))
	for i, result := range results {
		reply.Results[i] = SimulatedTx{
			TxID:   result.TxID,
			Status: result.Status.String(),
			Fee:    json.Uint64(result.Fee),
		}
		if result.Reason != nil {
			reply.Results[i].Reason = result.Reason.Error()
		}
	}
	reply.TxRoot = root
	return nil
}

func decodeTx(encoded string) (*tx.Tx, error) {
	b, err := formatting.Decode(formatting.Hex, encoded)
	if err != nil {
		return nil, err
	}
	return tx.Parse(b)
}

// EncodeTx is the wire form of a transaction on this API.
func EncodeTx(t *tx.Tx) (string, error) {
	return formatting.EncodeWithChecksum(formatting.Hex, t.Bytes())
}
