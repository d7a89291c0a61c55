// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/finalizevm/program"
)

// echoExecutor emits a future for every call and proves by hashing.
type echoExecutor struct {
	fail bool
}

func (e *echoExecutor) Execute(_ context.Context, call Call) ([]Output, error) {
	if e.fail {
		return nil, errors.New("boom")
	}
	out, err := FutureOutput(program.NewFuture(call.ProgramID, call.Function, call.Arguments...))
	if err != nil {
		return nil, err
	}
	return []Output{{Kind: OutputPrivate, Commitment: ids.ID{byte(len(call.Arguments))}}, out}, nil
}

func (*echoExecutor) Prove(_ context.Context, inputs []ids.ID) ([]byte, error) {
	var b []byte
	for _, input := range inputs {
		b = append(b, input[:]...)
	}
	h := hashing.ComputeHash256(b)
	return h, nil
}

var testFee = Fee{Payer: ids.ShortID{9}, Amount: 3, Mode: FeePublic}

func testCalls() []Call {
	return []Call{
		{ProgramID: "credits.aleo", Function: "transfer_public", Arguments: []program.Value{program.U64(1), program.U64(2)}},
		{ProgramID: "token.aleo", Function: "mint", Arguments: []program.Value{program.Bool(true)}},
	}
}

func TestBuildAndParse(t *testing.T) {
	require := require.New(t)

	tx, err := Build(context.Background(), &echoExecutor{}, testCalls(), testFee)
	require.NoError(err)
	require.Len(tx.Execution.Outputs, 4)
	require.Equal(ids.ID(hashing.ComputeHash256Array(tx.Bytes())), tx.ID())

	futures := tx.Futures()
	require.Len(futures, 2)
	require.Equal("transfer_public", futures[0].Function)
	require.Equal("token.aleo", futures[1].ProgramID)

	parsed, err := Parse(tx.Bytes())
	require.NoError(err)
	require.Equal(tx.ID(), parsed.ID())
	require.Equal(tx.Futures(), parsed.Futures())
	require.Equal(tx.Leaf(), parsed.Leaf())
	require.Equal(tx.PublicInputs(), parsed.PublicInputs())
}

func TestBuildFailure(t *testing.T) {
	_, err := Build(context.Background(), &echoExecutor{fail: true}, testCalls(), testFee)
	require.Error(t, err)
}

func TestIdentityCoversOutputOrder(t *testing.T) {
	require := require.New(t)

	tx, err := Build(context.Background(), &echoExecutor{}, testCalls(), testFee)
	require.NoError(err)

	outputs := append([]Output(nil), tx.Execution.Outputs...)
	outputs[0], outputs[1] = outputs[1], outputs[0]
	swapped, err := New(tx.Calls, Execution{Outputs: outputs, Proof: tx.Execution.Proof}, tx.Fee)
	require.NoError(err)
	require.NotEqual(tx.ID(), swapped.ID())
	require.NotEqual(tx.Leaf(), swapped.Leaf())
}

func TestStatementCoversFee(t *testing.T) {
	require := require.New(t)

	other := testFee
	other.Amount++
	require.NotEqual(Statement(testCalls(), testFee), Statement(testCalls(), other))
	other = testFee
	other.Mode = FeePrivate
	require.NotEqual(Statement(testCalls(), testFee), Statement(testCalls(), other))
}

func TestVerify(t *testing.T) {
	future, err := FutureOutput(program.NewFuture("a.aleo", "f"))
	require.NoError(t, err)
	tampered := future
	tampered.Commitment = ids.ID{1}

	tests := []struct {
		name    string
		calls   []Call
		outputs []Output
		proof   []byte
		fee     Fee
		want    error
	}{
		{
			name:  "no calls",
			proof: []byte{1},
			want:  errNoCalls,
		},
		{
			name:  "no proof",
			calls: testCalls(),
			want:  errNoProof,
		},
		{
			name:  "bad fee mode",
			calls: testCalls(),
			proof: []byte{1},
			fee:   Fee{Mode: 7},
			want:  errUnknownFeeMode,
		},
		{
			name:    "descriptor on public output",
			calls:   testCalls(),
			outputs: []Output{{Kind: OutputPublic, Descriptor: []byte{1}}},
			proof:   []byte{1},
			want:    errUnexpectedDescr,
		},
		{
			name:    "unknown output kind",
			calls:   testCalls(),
			outputs: []Output{{Kind: 9}},
			proof:   []byte{1},
			want:    errUnknownOutputKind,
		},
		{
			name:    "commitment mismatch",
			calls:   testCalls(),
			outputs: []Output{tampered},
			proof:   []byte{1},
			want:    errCommitmentMismatch,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := New(test.calls, Execution{Outputs: test.outputs, Proof: test.proof}, test.fee)
			require.ErrorIs(t, err, test.want)
		})
	}
}
