// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalizevm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/finalizevm/tx"
)

var (
	errMempoolFull  = errors.New("mempool is full")
	errDuplicateTx  = errors.New("tx already in mempool")
	errEmptyMempool = errors.New("empty mempool")
)

// mempool is a bounded FIFO of issued transactions.
type mempool struct {
	lock    sync.Mutex
	size    int
	txs     []*tx.Tx
	issued  map[ids.ID]struct{}
	pending chan struct{}
}

func newMempool(size int) *mempool {
	return &mempool{
		size:    size,
		issued:  make(map[ids.ID]struct{}),
		pending: make(chan struct{}, 1),
	}
}

func (m *mempool) Add(t *tx.Tx) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	txID := t.ID()
	if _, ok := m.issued[txID]; ok {
		return fmt.Errorf("%w: %s", errDuplicateTx, txID)
	}
	if len(m.txs) >= m.size {
		return fmt.Errorf("failed to add tx %s to mempool due to full at size (%d): %w", txID, m.size, errMempoolFull)
	}
	m.txs = append(m.txs, t)
	m.issued[txID] = struct{}{}
	m.notify()
	return nil
}

// Take removes up to [max] transactions in issue order.
func (m *mempool) Take(max int) ([]*tx.Tx, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if len(m.txs) == 0 {
		return nil, errEmptyMempool
	}
	n := len(m.txs)
	if n > max {
		n = max
	}
	taken := make([]*tx.Tx, n)
	copy(taken, m.txs)
	m.txs = m.txs[n:]
	for _, t := range taken {
		delete(m.issued, t.ID())
	}
	if len(m.txs) > 0 {
		m.notify()
	}
	return taken, nil
}

// Requeue puts [txs] back at the front, keeping their order. Transactions
// issued again in the meantime are skipped.
func (m *mempool) Requeue(txs []*tx.Tx) {
	m.lock.Lock()
	defer m.lock.Unlock()

	front := make([]*tx.Tx, 0, len(txs)+len(m.txs))
	for _, t := range txs {
		if _, ok := m.issued[t.ID()]; ok {
			continue
		}
		front = append(front, t)
		m.issued[t.ID()] = struct{}{}
	}
	m.txs = append(front, m.txs...)
	if len(m.txs) > 0 {
		m.notify()
	}
}

func (m *mempool) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.txs)
}

// Pending is signaled whenever transactions are waiting to be built.
func (m *mempool) Pending() <-chan struct{} { return m.pending }

func (m *mempool) notify() {
	select {
	case m.pending <- struct{}{}:
	default:
	}
}
