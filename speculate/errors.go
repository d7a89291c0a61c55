// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package speculate

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
)

var (
	ErrDuplicateTx     = errors.New("duplicate transaction in batch")
	ErrInsufficientFee = errors.New("insufficient balance to pay fee")

	errCommitted = errors.New("speculation already committed or discarded")
)

// ProofError reports the first transaction, in input order, whose proof
// does not verify. The whole batch is invalid.
type ProofError struct {
	Index int
	TxID  ids.ID
}

func (e *ProofError) Error() string {
	return fmt.Sprintf("proof of tx %s at index %d does not verify", e.TxID, e.Index)
}

// IsProofError returns the proof failure wrapped in [err], if any.
func IsProofError(err error) (*ProofError, bool) {
	var pe *ProofError
	ok := errors.As(err, &pe)
	return pe, ok
}
