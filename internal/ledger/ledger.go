// Package ledger implements the single-node ledger: the confirmed chain,
// the pending pool and the UTXO index, guarded by one lock.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/consensus"
	"github.com/Klingon-tech/klingnet-ledger/internal/mempool"
	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Ledger errors.
var (
	ErrUnknownOutput        = tx.ErrUnknownOutput
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrLinkMismatch         = errors.New("block does not link to chain tip")
	ErrInvalidProof         = consensus.ErrInvalidProof
	ErrBlockNotFound        = errors.New("block not found")
)

// Ledger owns the chain, the pool of unconfirmed transactions and the
// index of unspent outputs. Every check-then-mutate sequence runs under
// the write lock, so two submissions can never both consume one output.
type Ledger struct {
	mu sync.RWMutex

	chain     []*block.Block
	confirmed map[string]struct{} // ids of transactions in the chain
	outputIDs map[string]struct{} // ids of every output ever created, spent or not

	pool     *mempool.Pool
	policy   *mempool.Policy
	reserved map[string]tx.Output // output id -> output held by a pooled transaction

	utxos  utxo.Set
	engine consensus.Engine

	difficulty int
	allocs     []tx.Output // outputs created from genesis allocations

	clock  func() time.Time
	logger zerolog.Logger

	tipCh  chan struct{}
	poolCh chan struct{}
}

// New creates a ledger holding only the genesis block. The UTXO set is
// cleared and seeded with one output per genesis allocation. A nil pool
// gets a pool of default capacity.
func New(gen *config.Genesis, utxoSet utxo.Set, engine consensus.Engine, pool *mempool.Pool) (*Ledger, error) {
	if gen == nil {
		return nil, fmt.Errorf("genesis is nil")
	}
	if utxoSet == nil {
		return nil, fmt.Errorf("utxo set is nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("consensus engine is nil")
	}
	if err := gen.Validate(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	if err := consensus.ValidateDifficulty(gen.Difficulty); err != nil {
		return nil, err
	}
	if pool == nil {
		pool = mempool.New(0)
	}

	allocs, err := GenesisOutputs(gen)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		chain:      []*block.Block{block.Genesis()},
		confirmed:  make(map[string]struct{}),
		outputIDs:  make(map[string]struct{}, len(allocs)),
		pool:       pool,
		policy:     mempool.DefaultPolicy(),
		reserved:   make(map[string]tx.Output),
		utxos:      utxoSet,
		engine:     engine,
		difficulty: gen.Difficulty,
		allocs:     allocs,
		clock:      time.Now,
		logger:     zerolog.Nop(),
		tipCh:      make(chan struct{}),
		poolCh:     make(chan struct{}),
	}

	for _, out := range allocs {
		l.outputIDs[out.ID] = struct{}{}
	}

	if err := utxoSet.ClearAll(); err != nil {
		return nil, fmt.Errorf("clear utxo set: %w", err)
	}
	if err := utxoSet.Apply(nil, allocs); err != nil {
		return nil, fmt.Errorf("apply genesis allocations: %w", err)
	}
	return l, nil
}

// SetLogger sets the logger used for accepted and rejected submissions.
func (l *Ledger) SetLogger(logger zerolog.Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = logger
}

// SetClock replaces the time source used for candidate block timestamps.
func (l *Ledger) SetClock(clock func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = clock
}

// SetPolicy replaces the local admission policy. Nil disables it.
func (l *Ledger) SetPolicy(p *mempool.Policy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.policy = p
}

// invariant reports a broken internal invariant. It is never caused by
// bad input, only by a bug in the ledger or its UTXO set.
func invariant(format string, args ...any) {
	panic(fmt.Sprintf("invariant: "+format, args...))
}

// ── Queries ─────────────────────────────────────────────────────────

// Height returns the index of the tip block.
func (l *Ledger) Height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.chain) - 1)
}

// Tip returns a copy of the last block in the chain.
func (l *Ledger) Tip() *block.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1].Clone()
}

// Block returns a copy of the block at index.
func (l *Ledger) Block(index uint64) (*block.Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index >= uint64(len(l.chain)) {
		return nil, fmt.Errorf("%w: index %d, height %d", ErrBlockNotFound, index, len(l.chain)-1)
	}
	return l.chain[index].Clone(), nil
}

// Chain returns a copy of every block, genesis first.
func (l *Ledger) Chain() []*block.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*block.Block, len(l.chain))
	for i, b := range l.chain {
		out[i] = b.Clone()
	}
	return out
}

// Dump returns the chain in its serializable dump form.
func (l *Ledger) Dump() *block.Dump {
	return block.NewDump(l.Chain())
}

// Difficulty returns the current proof-of-work target.
func (l *Ledger) Difficulty() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.difficulty
}

// SetDifficulty changes the proof-of-work target for blocks committed
// from now on. Running miners are told to start over.
func (l *Ledger) SetDifficulty(d int) error {
	if err := consensus.ValidateDifficulty(d); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if d == l.difficulty {
		return nil
	}
	l.logger.Info().Int("from", l.difficulty).Int("to", d).Msg("Difficulty changed")
	l.difficulty = d
	l.signalTipLocked()
	return nil
}

// Balance returns the sum of the unspent outputs held by addr. Outputs
// reserved by pooled transactions are not counted.
func (l *Ledger) Balance(addr types.Address) (uint64, error) {
	outs, err := l.UTXOs(addr)
	if err != nil {
		return 0, err
	}
	return utxo.Sum(outs)
}

// UTXOs returns the unspent outputs held by addr, ordered by output id.
func (l *Ledger) UTXOs(addr types.Address) ([]tx.Output, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	outs, err := l.utxos.GetByAddress(addr)
	if err != nil {
		return nil, fmt.Errorf("utxos for %s: %w", addr.Short(), err)
	}
	sort.Slice(outs, func(i, j int) bool { return outs[i].ID < outs[j].ID })
	return outs, nil
}

// Pending returns copies of the pooled transactions in arrival order.
func (l *Ledger) Pending() []*tx.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pending := l.pool.Pending()
	out := make([]*tx.Transaction, len(pending))
	for i, t := range pending {
		out[i] = t.Clone()
	}
	return out
}

// PendingCount returns the number of pooled transactions.
func (l *Ledger) PendingCount() int {
	return l.pool.Count()
}

// IsConfirmed reports whether a transaction with id is in the chain.
func (l *Ledger) IsConfirmed(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.confirmed[id]
	return ok
}

// GenesisAllocations returns the outputs seeded from genesis.
func (l *Ledger) GenesisAllocations() []tx.Output {
	return append([]tx.Output(nil), l.allocs...)
}

// UTXOCommitment hashes the current UTXO index.
func (l *Ledger) UTXOCommitment() (types.Hash, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return utxo.Commitment(l.utxos)
}

// ── Notifications ───────────────────────────────────────────────────

// TipChanged returns a channel that is closed at the next block commit,
// restore or difficulty change.
func (l *Ledger) TipChanged() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tipCh
}

// PoolChanged returns a channel that is closed when the next transaction
// enters the pool.
func (l *Ledger) PoolChanged() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.poolCh
}

func (l *Ledger) signalTipLocked() {
	close(l.tipCh)
	l.tipCh = make(chan struct{})
}

func (l *Ledger) signalPoolLocked() {
	close(l.poolCh)
	l.poolCh = make(chan struct{})
}
