// Package mempool holds admitted transactions waiting for block inclusion,
// in arrival order.
package mempool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// Mempool errors.
var (
	ErrAlreadyExists = errors.New("transaction already in mempool")
	ErrConflict      = errors.New("transaction conflicts with existing mempool entry")
	ErrPoolFull      = errors.New("mempool is full")
)

// DefaultMaxSize is the pool capacity used when New is given a non-positive size.
const DefaultMaxSize = 5000

// Pool holds unconfirmed transactions in FIFO order. It tracks which
// outputs each pooled transaction spends and creates, so a second spend
// of one output and a second output with one id are both rejected.
// Funds checks are the ledger's job.
type Pool struct {
	mu      sync.RWMutex
	txs     map[string]*tx.Transaction // tx id -> tx
	order   []string                   // tx ids, oldest first
	spends  map[string]string          // output id -> spending tx id
	creates map[string]string          // output id -> creating tx id
	maxSize int
}

// New creates a new mempool holding at most maxSize transactions.
func New(maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Pool{
		txs:     make(map[string]*tx.Transaction),
		spends:  make(map[string]string),
		creates: make(map[string]string),
		maxSize: maxSize,
	}
}

// Add appends a transaction to the pool. Rejects duplicates, spends of
// outputs already spent by a pooled transaction, outputs whose id a
// pooled transaction already creates, and additions beyond capacity.
func (p *Pool) Add(t *tx.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.txs[t.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, t.ID)
	}
	for _, in := range t.Inputs {
		if other, exists := p.spends[in.PreviousOutputID]; exists {
			return fmt.Errorf("%w: output %s already spent by %s", ErrConflict, in.PreviousOutputID, other)
		}
	}
	for _, out := range t.Outputs {
		if other, exists := p.creates[out.ID]; exists {
			return fmt.Errorf("%w: output id %s already created by %s", ErrConflict, out.ID, other)
		}
	}
	if len(p.txs) >= p.maxSize {
		return fmt.Errorf("%w: %d transactions", ErrPoolFull, len(p.txs))
	}

	p.txs[t.ID] = t
	p.order = append(p.order, t.ID)
	for _, in := range t.Inputs {
		p.spends[in.PreviousOutputID] = t.ID
	}
	for _, out := range t.Outputs {
		p.creates[out.ID] = t.ID
	}
	return nil
}

// Remove removes a transaction by id. Returns false if it was not pooled.
func (p *Pool) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.removeLocked(id) {
		return false
	}
	p.compactLocked()
	return true
}

// RemoveConfirmed removes every transaction that was included in a block
// and returns how many were pooled.
func (p *Pool) RemoveConfirmed(transactions []*tx.Transaction) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range transactions {
		if p.removeLocked(t.ID) {
			n++
		}
	}
	if n > 0 {
		p.compactLocked()
	}
	return n
}

func (p *Pool) removeLocked(id string) bool {
	t, exists := p.txs[id]
	if !exists {
		return false
	}
	for _, in := range t.Inputs {
		if p.spends[in.PreviousOutputID] == id {
			delete(p.spends, in.PreviousOutputID)
		}
	}
	for _, out := range t.Outputs {
		if p.creates[out.ID] == id {
			delete(p.creates, out.ID)
		}
	}
	delete(p.txs, id)
	return true
}

// compactLocked drops removed ids from the arrival order.
func (p *Pool) compactLocked() {
	kept := p.order[:0]
	for _, id := range p.order {
		if _, ok := p.txs[id]; ok {
			kept = append(kept, id)
		}
	}
	p.order = kept
}

// Clear empties the pool.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txs = make(map[string]*tx.Transaction)
	p.spends = make(map[string]string)
	p.creates = make(map[string]string)
	p.order = nil
}

// Has checks if a transaction exists in the mempool.
func (p *Pool) Has(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.txs[id]
	return exists
}

// Get retrieves a transaction from the mempool, or nil.
func (p *Pool) Get(id string) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.txs[id]
}

// SpentBy returns the id of the pooled transaction spending outputID.
func (p *Pool) SpentBy(outputID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.spends[outputID]
	return id, ok
}

// CreatedBy returns the id of the pooled transaction creating outputID.
func (p *Pool) CreatedBy(outputID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.creates[outputID]
	return id, ok
}

// Count returns the number of transactions in the mempool.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// IDs returns the pooled transaction ids, oldest first.
func (p *Pool) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.order...)
}

// Pending returns the pooled transactions, oldest first. The slice is a
// snapshot; the transactions themselves must not be modified.
func (p *Pool) Pending() []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*tx.Transaction, len(p.order))
	for i, id := range p.order {
		out[i] = p.txs[id]
	}
	return out
}
