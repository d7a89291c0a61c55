// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tx

import (
	"context"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
)

// Executor is the program interpreter and prover. Execute runs one call and
// returns its outputs; Prove attests to the public inputs of a whole
// transaction.
type Executor interface {
	Execute(ctx context.Context, call Call) ([]Output, error)
	Prove(ctx context.Context, publicInputs []ids.ID) ([]byte, error)
}

// Build executes [calls] in order and assembles the proven transaction.
// Outputs keep call order.
func Build(ctx context.Context, executor Executor, calls []Call, fee Fee) (*Tx, error) {
	var outputs []Output
	for i, call := range calls {
		out, err := executor.Execute(ctx, call)
		if err != nil {
			return nil, fmt.Errorf("failed to execute call %d (%s/%s): %w", i, call.ProgramID, call.Function, err)
		}
		outputs = append(outputs, out...)
	}
	proof, err := executor.Prove(ctx, PublicInputs(calls, outputs, fee))
	if err != nil {
		return nil, fmt.Errorf("failed to prove execution: %w", err)
	}
	return New(calls, Execution{Outputs: outputs, Proof: proof}, fee)
}
