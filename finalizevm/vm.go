// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalizevm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/cache/metercacher"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/gorilla/rpc/v2"
	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/finalizevm/finalize"
	"github.com/ava-labs/finalizevm/merkle"
	"github.com/ava-labs/finalizevm/program"
	"github.com/ava-labs/finalizevm/programs/credits"
	"github.com/ava-labs/finalizevm/speculate"
	"github.com/ava-labs/finalizevm/state"
	"github.com/ava-labs/finalizevm/tx"
)

const Name = "finalizevm"

var (
	Version = "v0.1.0"

	errNotInitialized = errors.New("vm is not initialized")
	errTxNotInBlock   = errors.New("tx is not an accepted tx of the block")
	errTxCommitted    = errors.New("tx was already included in a block")
	errRootMismatch   = errors.New("stored tx root does not match block transactions")
)

// VM assembles blocks out of issued transactions. Every block is the
// committed outcome of one speculation pass.
type VM struct {
	registry   *finalize.MapRegistry
	verifier   speculate.Verifier
	registerer prometheus.Registerer
	log        log.Logger

	// Clock used for block building
	clock mockable.Clock

	config   Config
	store    *state.Store
	engine   *speculate.Engine
	mempool  *mempool
	blkCache cache.Cacher

	// buildLock serializes block building so each pass sees the last block
	buildLock sync.Mutex
}

// New returns a VM that finalizes the programs of [registry] and checks
// proofs with [verifier]. A nil [registerer] keeps metrics private.
func New(
	registry *finalize.MapRegistry,
	verifier speculate.Verifier,
	registerer prometheus.Registerer,
	logger log.Logger,
) *VM {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = log.Root()
	}
	return &VM{
		registry:   registry,
		verifier:   verifier,
		registerer: registerer,
		log:        logger.New("module", Name),
	}
}

// Initialize this vm over [store]. If the store is empty, the genesis in
// [genesisBytes] is applied: its programs get their mappings, allocations
// are credited and the genesis block is written, all in one commit.
func (vm *VM) Initialize(ctx context.Context, store *state.Store, genesisBytes, configBytes []byte) error {
	config, err := ParseConfig(configBytes)
	if err != nil {
		vm.log.Error("error initializing vm", "err", err)
		return err
	}
	vm.log.Info("initializing vm", "version", Version, "treeArity", config.TreeArity)

	vm.config = config
	vm.store = store
	vm.mempool = newMempool(config.MempoolSize)
	vm.blkCache, err = metercacher.New(
		"block_cache",
		vm.registerer,
		&cache.LRU{Size: blockCacheSize},
	)
	if err != nil {
		return err
	}
	evaluator := finalize.New(vm.registry, config.finalize(), vm.log)
	vm.engine, err = speculate.New(config.speculate(), vm.verifier, evaluator, vm.registerer, vm.log)
	if err != nil {
		return err
	}

	var initialized bool
	err = vm.read(func(s State, _ *state.Mappings) error {
		initialized, err = s.IsInitialized()
		return err
	})
	if err != nil {
		return err
	}
	if initialized {
		lastAccepted, err := vm.LastAccepted(ctx)
		if err != nil {
			return err
		}
		vm.log.Info("resuming chain", "lastAccepted", lastAccepted)
		return nil
	}
	return vm.initGenesis(genesisBytes)
}

func (vm *VM) initGenesis(genesisBytes []byte) error {
	genesis, err := ParseGenesis(genesisBytes)
	if err != nil {
		return err
	}

	scratch, err := vm.store.NewScratch()
	if err != nil {
		return err
	}
	defer scratch.Release()

	m := scratch.Mappings()
	for _, programID := range genesis.Programs {
		p, ok := vm.registry.Program(programID)
		if !ok {
			return fmt.Errorf("%w: %s", finalize.ErrUnknownProgram, programID)
		}
		if _, err := p.Initialize(m); err != nil {
			return err
		}
	}
	for _, alloc := range genesis.Allocations {
		if _, err := credits.Credit(m, alloc.Address, alloc.Balance); err != nil {
			return fmt.Errorf("failed to allocate to %s: %w", alloc.Address, err)
		}
	}
	stateRoot, err := m.StateRoot(vm.config.TreeArity)
	if err != nil {
		return err
	}

	// Create the genesis block. It has no parent and no transactions.
	genesisBlock, err := newBlock(ids.Empty, 0, genesis.Timestamp, merkle.EmptyRoot, stateRoot, nil, nil)
	if err != nil {
		return err
	}
	s := NewState(scratch.Database(), vm.blkCache)
	if err := s.PutBlock(genesisBlock); err != nil {
		return fmt.Errorf("error while saving genesis block: %w", err)
	}
	if err := s.SetLastAccepted(genesisBlock.ID()); err != nil {
		return err
	}
	if err := s.SetInitialized(); err != nil {
		return fmt.Errorf("error while setting db to initialized: %w", err)
	}
	if err := vm.store.Commit(scratch); err != nil {
		vm.log.Error("error while committing genesis", "err", err)
		return err
	}
	vm.blkCache.Put(genesisBlock.ID(), genesisBlock)
	vm.log.Info("applied genesis", "blkID", genesisBlock.ID(), "stateRoot", stateRoot, "programs", len(genesis.Programs))
	return nil
}

// read runs [f] against a snapshot of the committed chain.
func (vm *VM) read(f func(State, *state.Mappings) error) error {
	if vm.store == nil {
		return errNotInitialized
	}
	view, err := vm.store.Snapshot()
	if err != nil {
		return err
	}
	defer view.Close()

	return f(NewState(view, vm.blkCache), view.Mappings())
}

// IssueTx checks the proof of [t] and adds it to the mempool. Transactions
// already included in a block are refused.
func (vm *VM) IssueTx(ctx context.Context, t *tx.Tx) error {
	if vm.mempool == nil {
		return errNotInitialized
	}
	var committed bool
	err := vm.read(func(s State, _ *state.Mappings) error {
		var err error
		committed, err = s.HasTx(t.ID())
		return err
	})
	if err != nil {
		return err
	}
	if committed {
		return fmt.Errorf("%w: %s", errTxCommitted, t.ID())
	}
	if err := vm.engine.Verify(ctx, []*tx.Tx{t}); err != nil {
		return err
	}
	if err := vm.mempool.Add(t); err != nil {
		return err
	}
	vm.log.Debug("issued tx", "txID", t.ID(), "fee", t.Fee.Amount, "mempool", vm.mempool.Len())
	return nil
}

// Pending is signaled when the mempool holds transactions.
func (vm *VM) Pending() <-chan struct{} { return vm.mempool.Pending() }

// BuildBlock speculates the oldest mempool transactions on top of the last
// accepted block and commits the block, its state and the new last accepted
// marker together. If the batch fails as a whole nothing is committed; a
// transaction with an invalid proof is dropped and the rest are requeued.
func (vm *VM) BuildBlock(ctx context.Context) (*Block, error) {
	vm.buildLock.Lock()
	defer vm.buildLock.Unlock()

	if vm.mempool == nil {
		return nil, errNotInitialized
	}
	txs, err := vm.mempool.Take(vm.config.BlockTxs)
	if err != nil {
		return nil, err
	}
	txs, err = vm.dropCommitted(txs)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, errEmptyMempool
	}

	parentID, err := vm.LastAccepted(ctx)
	if err != nil {
		vm.mempool.Requeue(txs)
		return nil, err
	}
	parent, err := vm.GetBlock(ctx, parentID)
	if err != nil {
		vm.mempool.Requeue(txs)
		return nil, fmt.Errorf("couldn't get parent block: %w", err)
	}

	s, err := vm.engine.Speculate(ctx, txs, vm.store)
	if err != nil {
		vm.requeueValid(txs, err)
		return nil, err
	}
	defer s.Discard()

	blk, err := vm.stageBlock(parent, s)
	if err != nil {
		vm.mempool.Requeue(txs)
		return nil, err
	}
	if err := s.Commit(); err != nil {
		vm.mempool.Requeue(txs)
		vm.log.Error("failed to commit block", "blkID", blk.ID(), "err", err)
		return nil, err
	}
	vm.blkCache.Put(blk.ID(), blk)

	vm.log.Info("built block",
		"blkID", blk.ID(),
		"height", blk.Height(),
		"accepted", len(blk.Txs),
		"rejected", len(blk.Rejected),
		"txRoot", blk.TxRoot,
		"stateRoot", blk.StateRoot,
	)
	return blk, nil
}

// stageBlock writes the block for [s] into its scratch state.
func (vm *VM) stageBlock(parent *Block, s *speculate.Speculation) (*Block, error) {
	stateRoot, err := s.StateRoot()
	if err != nil {
		return nil, err
	}

	var (
		accepted []*tx.Tx
		rejected []RejectedTx
	)
	byID := make(map[ids.ID]*tx.Tx, len(s.Results))
	for _, t := range s.Txs() {
		byID[t.ID()] = t
	}
	for _, r := range s.Results {
		if r.Accepted() {
			accepted = append(accepted, byID[r.TxID])
			continue
		}
		rejected = append(rejected, RejectedTx{
			TxID:   r.TxID,
			Status: r.Status,
			Fee:    r.Fee,
			Reason: r.Reason.Error(),
		})
	}

	timestamp := vm.clock.Time().Unix()
	if timestamp < parent.Tmstmp {
		timestamp = parent.Tmstmp
	}
	blk, err := newBlock(parent.ID(), parent.Height()+1, timestamp, s.Root(), stateRoot, accepted, rejected)
	if err != nil {
		return nil, fmt.Errorf("couldn't build block: %w", err)
	}

	st := NewState(s.Scratch().Database(), vm.blkCache)
	if err := st.PutBlock(blk); err != nil {
		return nil, err
	}
	// A transaction that could not pay had no effect and may be retried.
	for _, r := range s.Results {
		if r.Status == speculate.RejectedInsufficientFee {
			continue
		}
		if err := st.PutTx(r.TxID, blk.ID()); err != nil {
			return nil, fmt.Errorf("failed to index tx %s: %w", r.TxID, err)
		}
	}
	if err := st.SetLastAccepted(blk.ID()); err != nil {
		return nil, fmt.Errorf("failed to update last accepted block to %s: %w", blk.ID(), err)
	}
	return blk, nil
}

// dropCommitted filters out transactions that an accepted block already
// included. They were issued again after their block was built.
func (vm *VM) dropCommitted(txs []*tx.Tx) ([]*tx.Tx, error) {
	fresh := make([]*tx.Tx, 0, len(txs))
	err := vm.read(func(s State, _ *state.Mappings) error {
		for _, t := range txs {
			committed, err := s.HasTx(t.ID())
			if err != nil {
				return err
			}
			if committed {
				vm.log.Warn("dropping already included tx", "txID", t.ID())
				continue
			}
			fresh = append(fresh, t)
		}
		return nil
	})
	if err != nil {
		vm.mempool.Requeue(txs)
		return nil, err
	}
	return fresh, nil
}

// requeueValid returns the transactions of a failed batch to the mempool,
// except one whose proof does not verify.
func (vm *VM) requeueValid(txs []*tx.Tx, err error) {
	pe, ok := speculate.IsProofError(err)
	if !ok {
		vm.mempool.Requeue(txs)
		return
	}
	vm.log.Warn("dropping tx with invalid proof", "txID", pe.TxID)
	valid := make([]*tx.Tx, 0, len(txs)-1)
	valid = append(valid, txs[:pe.Index]...)
	valid = append(valid, txs[pe.Index+1:]...)
	vm.mempool.Requeue(valid)
}

// Simulate speculates [txs] on the last accepted state and discards the
// outcome.
func (vm *VM) Simulate(ctx context.Context, txs []*tx.Tx) ([]*speculate.Result, ids.ID, error) {
	if vm.engine == nil {
		return nil, ids.Empty, errNotInitialized
	}
	s, err := vm.engine.Speculate(ctx, txs, vm.store)
	if err != nil {
		return nil, ids.Empty, err
	}
	defer s.Discard()

	return s.Results, s.Root(), nil
}

func (vm *VM) GetBlock(_ context.Context, blkID ids.ID) (*Block, error) {
	var blk *Block
	err := vm.read(func(s State, _ *state.Mappings) error {
		var err error
		blk, err = s.GetBlock(blkID)
		return err
	})
	return blk, err
}

func (vm *VM) GetBlockIDAtHeight(_ context.Context, height uint64) (ids.ID, error) {
	var blkID ids.ID
	err := vm.read(func(s State, _ *state.Mappings) error {
		var err error
		blkID, err = s.GetBlockIDAtHeight(height)
		return err
	})
	return blkID, err
}

func (vm *VM) LastAccepted(_ context.Context) (ids.ID, error) {
	var blkID ids.ID
	err := vm.read(func(s State, _ *state.Mappings) error {
		var err error
		blkID, err = s.GetLastAccepted()
		if err != nil {
			return fmt.Errorf("failed to get last accepted blockID: %w", err)
		}
		return nil
	})
	return blkID, err
}

// GetTxBlock returns the block that included [txID].
func (vm *VM) GetTxBlock(_ context.Context, txID ids.ID) (ids.ID, error) {
	var blkID ids.ID
	err := vm.read(func(s State, _ *state.Mappings) error {
		var err error
		blkID, err = s.GetTxBlock(txID)
		return err
	})
	return blkID, err
}

// InclusionPath proves that [txID] is an accepted transaction of [blkID].
func (vm *VM) InclusionPath(ctx context.Context, blkID, txID ids.ID) (*merkle.Path, error) {
	blk, err := vm.GetBlock(ctx, blkID)
	if err != nil {
		return nil, err
	}
	index := blk.TxIndex(txID)
	if index < 0 {
		return nil, fmt.Errorf("%w: %s in %s", errTxNotInBlock, txID, blkID)
	}
	tree, err := merkle.Build(blk.Leaves(), vm.config.TreeArity)
	if err != nil {
		return nil, err
	}
	if tree.Root() != blk.TxRoot {
		return nil, errRootMismatch
	}
	return tree.Path(index)
}

// GetMappingValue reads a mapping entry from the last accepted state.
func (vm *VM) GetMappingValue(programID, mapping string, key program.Value) (program.Value, bool, error) {
	if vm.store == nil {
		return program.Value{}, false, errNotInitialized
	}
	return vm.store.Get(programID, mapping, key)
}

// StateRoot returns the state root of the last accepted state.
func (vm *VM) StateRoot() (ids.ID, error) {
	var root ids.ID
	err := vm.read(func(_ State, m *state.Mappings) error {
		var err error
		root, err = m.StateRoot(vm.config.TreeArity)
		return err
	})
	return root, err
}

// CreateHandlers returns the JSON-RPC handler of this VM's API.
func (vm *VM) CreateHandlers() (map[string]http.Handler, error) {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return map[string]http.Handler{
		"": server,
	}, server.RegisterService(&Service{vm: vm}, Name)
}

// Shutdown closes the store.
func (vm *VM) Shutdown() error {
	if vm.store == nil {
		return nil
	}
	return vm.store.Close()
}
