// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalizevm

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/finalizevm/merkle"
	"github.com/ava-labs/finalizevm/program"
	"github.com/ava-labs/finalizevm/programs/credits"
	"github.com/ava-labs/finalizevm/programs/token"
	"github.com/ava-labs/finalizevm/prover"
	"github.com/ava-labs/finalizevm/speculate"
	"github.com/ava-labs/finalizevm/state"
	"github.com/ava-labs/finalizevm/tx"
)

var (
	alice = ids.ShortID{1}
	bob   = ids.ShortID{2}
	carol = ids.ShortID{3}

	testProver = prover.New(ids.ID{42})
)

func testGenesis(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(&Genesis{
		Timestamp:   100,
		Programs:    []string{credits.ProgramID, token.ProgramID},
		Allocations: []Allocation{{Address: alice, Balance: 1000}},
	})
	require.NoError(t, err)
	return b
}

func newTestVM(t *testing.T, store *state.Store) *VM {
	t.Helper()
	require := require.New(t)

	factory := &Factory{Verifier: testProver}
	vm, err := factory.New(nil)
	require.NoError(err)
	require.NoError(vm.Initialize(context.Background(), store, testGenesis(t), []byte(`{"treeArity":3}`)))
	return vm
}

func newTestStore(t *testing.T) *state.Store {
	t.Helper()
	store, err := state.NewMemory(nil)
	require.NoError(t, err)
	return store
}

func buildTx(t *testing.T, f program.Future, fee tx.Fee) *tx.Tx {
	t.Helper()
	calls := []tx.Call{{ProgramID: f.ProgramID, Function: f.Function, Arguments: f.Arguments}}
	built, err := tx.Build(context.Background(), testProver, calls, fee)
	require.NoError(t, err)
	return built
}

func publicFee(payer ids.ShortID, amount uint64) tx.Fee {
	return tx.Fee{Payer: payer, Amount: amount, Mode: tx.FeePublic}
}

func balance(t *testing.T, vm *VM, addr ids.ShortID) uint64 {
	t.Helper()
	v, ok, err := vm.GetMappingValue(credits.ProgramID, credits.Account, program.Address(addr))
	require.NoError(t, err)
	if !ok {
		return 0
	}
	n, err := v.U64()
	require.NoError(t, err)
	return n
}

func TestGenesis(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	vm := newTestVM(t, newTestStore(t))
	defer func() { require.NoError(vm.Shutdown()) }()

	lastAccepted, err := vm.LastAccepted(ctx)
	require.NoError(err)
	require.NotEqual(ids.Empty, lastAccepted)

	genesisBlock, err := vm.GetBlock(ctx, lastAccepted)
	require.NoError(err)
	require.Zero(genesisBlock.Height())
	require.Equal(ids.Empty, genesisBlock.Parent())
	require.Equal(int64(100), genesisBlock.Tmstmp)
	require.Equal(merkle.EmptyRoot, genesisBlock.TxRoot)

	stateRoot, err := vm.StateRoot()
	require.NoError(err)
	require.Equal(stateRoot, genesisBlock.StateRoot)

	genesisBlockID, err := vm.GetBlockIDAtHeight(ctx, 0)
	require.NoError(err)
	require.Equal(lastAccepted, genesisBlockID)

	require.Equal(uint64(1000), balance(t, vm, alice))
}

func TestGenesisRequiresCredits(t *testing.T) {
	_, err := ParseGenesis([]byte(`{"programs":["token.aleo"]}`))
	require.ErrorIs(t, err, errMissingCredits)
}

func TestInvalidConfig(t *testing.T) {
	require := require.New(t)

	vm, err := (&Factory{Verifier: testProver}).New(nil)
	require.NoError(err)
	err = vm.Initialize(context.Background(), newTestStore(t), testGenesis(t), []byte(`{"treeArity":1}`))
	_, ok := merkle.IsConfigError(err)
	require.True(ok)
}

func TestRestartResumesChain(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	vm := newTestVM(t, store)
	require.NoError(vm.IssueTx(ctx, buildTx(t, credits.TransferPublic(alice, bob, 10), publicFee(alice, 1))))
	blk, err := vm.BuildBlock(ctx)
	require.NoError(err)

	// a second VM over the same store parses blocks from disk
	restarted := newTestVM(t, store)
	lastAccepted, err := restarted.LastAccepted(ctx)
	require.NoError(err)
	require.Equal(blk.ID(), lastAccepted)

	fromDisk, err := restarted.GetBlock(ctx, blk.ID())
	require.NoError(err)
	require.Equal(blk.Bytes(), fromDisk.Bytes())
	require.Equal(blk.Leaves(), fromDisk.Leaves())

	// genesis allocations were not applied twice
	require.Equal(uint64(989), balance(t, restarted, alice))
}

func TestBuildBlock(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	vm := newTestVM(t, newTestStore(t))

	txs := []*tx.Tx{
		buildTx(t, credits.TransferPublic(alice, bob, 100), publicFee(alice, 2)),
		buildTx(t, credits.TransferPublic(bob, carol, 500), publicFee(bob, 1)),
		buildTx(t, token.Buy(alice, 50), publicFee(alice, 2)),
		buildTx(t, credits.TransferPublic(carol, alice, 1), publicFee(carol, 1)),
	}
	for _, issued := range txs {
		require.NoError(vm.IssueTx(ctx, issued))
	}

	blk, err := vm.BuildBlock(ctx)
	require.NoError(err)
	require.Equal(uint64(1), blk.Height())

	// bob's transfer pays its fee but fails in finalize, carol cannot pay
	require.Len(blk.Transactions(), 2)
	require.Equal(txs[0].ID(), blk.Transactions()[0].ID())
	require.Equal(txs[2].ID(), blk.Transactions()[1].ID())
	require.Len(blk.Rejected, 2)
	require.Equal(txs[1].ID(), blk.Rejected[0].TxID)
	require.Equal(speculate.RejectedFinalizeFailed, blk.Rejected[0].Status)
	require.Equal(uint64(1), blk.Rejected[0].Fee)
	require.Equal(speculate.RejectedInsufficientFee, blk.Rejected[1].Status)
	require.Zero(blk.Rejected[1].Fee)

	require.Equal(uint64(1000-2-100-2-50), balance(t, vm, alice))
	require.Equal(uint64(99), balance(t, vm, bob))
	require.Zero(balance(t, vm, carol))

	stateRoot, err := vm.StateRoot()
	require.NoError(err)
	require.Equal(stateRoot, blk.StateRoot)

	lastAccepted, err := vm.LastAccepted(ctx)
	require.NoError(err)
	require.Equal(blk.ID(), lastAccepted)

	for _, accepted := range blk.Transactions() {
		path, err := vm.InclusionPath(ctx, blk.ID(), accepted.ID())
		require.NoError(err)
		require.True(path.Verify(accepted.Leaf(), blk.TxRoot))
	}
	_, err = vm.InclusionPath(ctx, blk.ID(), txs[1].ID())
	require.ErrorIs(err, errTxNotInBlock)

	_, err = vm.BuildBlock(ctx)
	require.ErrorIs(err, errEmptyMempool)
}

func TestIncludedTxCannotBeReplayed(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	vm := newTestVM(t, newTestStore(t))

	transfer := buildTx(t, credits.TransferPublic(alice, bob, 100), publicFee(alice, 10))
	failing := buildTx(t, credits.TransferPublic(bob, carol, 500), publicFee(bob, 1))
	unpaid := buildTx(t, credits.TransferPublic(carol, alice, 1), publicFee(carol, 1))
	for _, issued := range []*tx.Tx{transfer, failing, unpaid} {
		require.NoError(vm.IssueTx(ctx, issued))
	}
	blk, err := vm.BuildBlock(ctx)
	require.NoError(err)
	require.Equal(uint64(890), balance(t, vm, alice))
	require.Equal(uint64(99), balance(t, vm, bob))

	for _, included := range []*tx.Tx{transfer, failing} {
		blkID, err := vm.GetTxBlock(ctx, included.ID())
		require.NoError(err)
		require.Equal(blk.ID(), blkID)

		err = vm.IssueTx(ctx, included)
		require.ErrorIs(err, errTxCommitted)
	}

	// The rejected-for-fee transaction never took effect.
	_, err = vm.GetTxBlock(ctx, unpaid.ID())
	require.ErrorIs(err, database.ErrNotFound)
	require.NoError(vm.IssueTx(ctx, unpaid))
	_, err = vm.mempool.Take(1)
	require.NoError(err)

	// A replay that reaches the mempool directly is dropped at build time.
	require.NoError(vm.mempool.Add(transfer))
	_, err = vm.BuildBlock(ctx)
	require.ErrorIs(err, errEmptyMempool)
	require.Zero(vm.mempool.Len())

	lastAccepted, err := vm.LastAccepted(ctx)
	require.NoError(err)
	require.Equal(blk.ID(), lastAccepted)
	require.Equal(uint64(890), balance(t, vm, alice))
	require.Equal(uint64(99), balance(t, vm, bob))
}

func TestBlockTimestampNeverDecreases(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	vm := newTestVM(t, newTestStore(t))

	vm.clock.Set(time.Unix(50, 0))
	require.NoError(vm.IssueTx(ctx, buildTx(t, credits.TransferPublic(alice, bob, 1), publicFee(alice, 1))))
	blk, err := vm.BuildBlock(ctx)
	require.NoError(err)
	require.Equal(int64(100), blk.Tmstmp)

	vm.clock.Set(time.Unix(200, 0))
	require.NoError(vm.IssueTx(ctx, buildTx(t, credits.TransferPublic(alice, bob, 2), publicFee(alice, 1))))
	blk, err = vm.BuildBlock(ctx)
	require.NoError(err)
	require.Equal(int64(200), blk.Tmstmp)
	require.Equal(uint64(2), blk.Height())
}

func TestIssueTx(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	vm := newTestVM(t, newTestStore(t))

	valid := buildTx(t, credits.TransferPublic(alice, bob, 1), publicFee(alice, 1))
	require.NoError(vm.IssueTx(ctx, valid))
	require.ErrorIs(vm.IssueTx(ctx, valid), errDuplicateTx)

	forged, err := tx.New(valid.Calls, tx.Execution{Outputs: valid.Execution.Outputs, Proof: []byte{1}}, publicFee(alice, 2))
	require.NoError(err)
	err = vm.IssueTx(ctx, forged)
	_, ok := speculate.IsProofError(err)
	require.True(ok)
	require.Equal(1, vm.mempool.Len())
}

func TestSimulateDoesNotCommit(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	vm := newTestVM(t, newTestStore(t))

	before, err := vm.StateRoot()
	require.NoError(err)

	results, root, err := vm.Simulate(ctx, []*tx.Tx{
		buildTx(t, credits.TransferPublic(alice, bob, 10), publicFee(alice, 1)),
	})
	require.NoError(err)
	require.Len(results, 1)
	require.True(results[0].Accepted())
	require.NotEqual(merkle.EmptyRoot, root)

	after, err := vm.StateRoot()
	require.NoError(err)
	require.Equal(before, after)
	require.Equal(uint64(1000), balance(t, vm, alice))
}

func TestGetMissingBlock(t *testing.T) {
	vm := newTestVM(t, newTestStore(t))
	_, err := vm.GetBlock(context.Background(), ids.ID{9})
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestService(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t, newTestStore(t))
	service := &Service{vm: vm}
	req := &http.Request{}

	issued := buildTx(t, token.Buy(alice, 5), publicFee(alice, 1))
	encoded, err := EncodeTx(issued)
	require.NoError(err)

	simulated := &SimulateReply{}
	require.NoError(service.Simulate(req, &SimulateArgs{Txs: []string{encoded}}, simulated))
	require.Len(simulated.Results, 1)
	require.Equal(speculate.Accepted.String(), simulated.Results[0].Status)

	issueReply := &IssueTxReply{}
	require.NoError(service.IssueTx(req, &IssueTxArgs{Tx: encoded}, issueReply))
	require.Equal(issued.ID(), issueReply.TxID)

	buildReply := &BuildBlockReply{}
	require.NoError(service.BuildBlock(req, &BuildBlockArgs{}, buildReply))
	require.Equal(1, buildReply.Accepted)

	blockReply := &GetBlockReply{}
	require.NoError(service.GetBlock(req, &GetBlockArgs{}, blockReply))
	require.Equal(buildReply.BlockID, blockReply.ID)
	require.Equal([]ids.ID{issued.ID()}, blockReply.TxIDs)

	pathReply := &GetInclusionPathReply{}
	require.NoError(service.GetInclusionPath(req, &GetInclusionPathArgs{BlockID: blockReply.ID, TxID: issued.ID()}, pathReply))
	require.True(pathReply.Path.Verify(pathReply.Leaf, pathReply.Root))

	valueReply := &GetMappingValueReply{}
	require.NoError(service.GetMappingValue(req, &GetMappingValueArgs{
		ProgramID: token.ProgramID,
		Mapping:   token.Balances,
		Key:       program.Address(alice),
	}, valueReply))
	require.True(valueReply.Found)
	require.Equal(program.U64(5), valueReply.Value)

	handlers, err := vm.CreateHandlers()
	require.NoError(err)
	require.Contains(handlers, "")
}

func TestEncodeTxRoundTrip(t *testing.T) {
	require := require.New(t)

	issued := buildTx(t, credits.TransferPublic(alice, bob, 1), publicFee(alice, 1))
	encoded, err := EncodeTx(issued)
	require.NoError(err)

	decoded, err := decodeTx(encoded)
	require.NoError(err)
	require.Equal(issued.ID(), decoded.ID())
	require.Equal(issued.Bytes(), decoded.Bytes())

	// flipping a payload digit breaks the checksum
	mangled := []byte(encoded)
	if mangled[2] == '0' {
		mangled[2] = '1'
	} else {
		mangled[2] = '0'
	}
	_, err = decodeTx(string(mangled))
	require.Error(err)
}
