// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package speculate

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/finalizevm/state"
	"github.com/ava-labs/finalizevm/tx"
)

// Status is the position of a transaction in the speculation state machine:
//
//	Pending -> ProofVerified -> FeeDeducted -> Accepted
//	                                        -> RejectedInsufficientFee
//	                                        -> RejectedFinalizeFailed
//
// A transaction leaves FeeDeducted as RejectedInsufficientFee when the fee
// step could not be paid, in which case it charged nothing.
type Status uint8

const (
	Pending Status = iota
	ProofVerified
	FeeDeducted
	Accepted
	RejectedInsufficientFee
	RejectedFinalizeFailed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case ProofVerified:
		return "proof_verified"
	case FeeDeducted:
		return "fee_deducted"
	case Accepted:
		return "accepted"
	case RejectedInsufficientFee:
		return "rejected_insufficient_fee"
	case RejectedFinalizeFailed:
		return "rejected_finalize_failed"
	default:
		return "unknown"
	}
}

// Decided reports whether [s] is terminal.
func (s Status) Decided() bool {
	return s == Accepted || s == RejectedInsufficientFee || s == RejectedFinalizeFailed
}

// Result is the outcome of one transaction of a batch.
type Result struct {
	TxID   ids.ID
	Status Status
	// Fee is the amount charged. It is zero when the fee could not be paid.
	Fee     uint64
	Outputs []tx.Output
	// Operations holds the fee deduction followed by the finalize writes.
	Operations []state.Operation
	// Reason is set for rejected transactions.
	Reason error
}

func (r *Result) Accepted() bool { return r.Status == Accepted }
