// Package miner runs proof-of-work in the background: it waits for
// pending transactions, mines a block on the current tip and commits it.
package miner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// retryInterval bounds how long the miner idles after a failed round.
const retryInterval = time.Second

// ErrAlreadyRunning is returned by Start when the miner is running.
var ErrAlreadyRunning = errors.New("miner already running")

// Ledger is the ledger surface the miner drives.
type Ledger interface {
	Mine(ctx context.Context) (*block.Block, error)
	AddBlock(b *block.Block) error
	PendingCount() int
	TipChanged() <-chan struct{}
	PoolChanged() <-chan struct{}
}

// BlockHandler is called after the miner commits a block.
type BlockHandler func(*block.Block)

// Status is a snapshot of the miner's state.
type Status struct {
	Running     bool       `json:"running"`
	Mining      bool       `json:"mining"`
	BlocksMined uint64     `json:"blocks_mined"`
	LastHash    types.Hash `json:"last_hash"`
	LastError   string     `json:"last_error,omitempty"`
}

// Miner is the dedicated mining worker. A nonce search is abandoned when
// the tip or difficulty changes, or when the miner is stopped.
type Miner struct {
	ledger  Ledger
	logger  zerolog.Logger
	onBlock BlockHandler

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	mining  bool
	mined   uint64
	last    types.Hash
	lastErr error
}

// New creates a stopped miner for l.
func New(l Ledger, logger zerolog.Logger) *Miner {
	return &Miner{ledger: l, logger: logger}
}

// SetBlockHandler sets the hook run after each committed block.
func (m *Miner) SetBlockHandler(fn BlockHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onBlock = fn
}

// Start launches the mining loop. It runs until ctx is cancelled or Stop
// is called.
func (m *Miner) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	go m.run(ctx, m.done)
	m.logger.Info().Msg("Miner started")
	return nil
}

// Stop cancels any search in progress and waits for the loop to exit.
// Stopping a stopped miner is a no-op.
func (m *Miner) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
	m.logger.Info().Msg("Miner stopped")
}

// Running reports whether the mining loop is active.
func (m *Miner) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Status returns a snapshot of the miner's state.
func (m *Miner) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{
		Running:     m.running,
		Mining:      m.mining,
		BlocksMined: m.mined,
		LastHash:    m.last,
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

func (m *Miner) run(ctx context.Context, done chan struct{}) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mining = false
		m.mu.Unlock()
		close(done)
	}()

	for {
		// Subscribe before looking so a submission in between is not missed.
		poolCh := m.ledger.PoolChanged()
		if m.ledger.PendingCount() == 0 {
			select {
			case <-ctx.Done():
				return
			case <-poolCh:
				continue
			}
		}

		tipCh := m.ledger.TipChanged()
		blk, err := m.mineOnce(ctx, tipCh)
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, context.Canceled):
			m.logger.Debug().Msg("Search superseded, restarting on new tip")
			continue
		case err != nil:
			m.recordErr(err)
			m.logger.Error().Err(err).Msg("Mining failed")
			if !m.backoff(ctx, tipCh) {
				return
			}
			continue
		}

		if err := m.ledger.AddBlock(blk); err != nil {
			m.recordErr(err)
			m.logger.Warn().Err(err).Uint64("index", blk.Index).Msg("Mined block rejected")
			if !m.backoff(ctx, tipCh) {
				return
			}
			continue
		}

		m.mu.Lock()
		m.mined++
		m.last = blk.Hash
		m.lastErr = nil
		onBlock := m.onBlock
		m.mu.Unlock()

		m.logger.Info().
			Uint64("index", blk.Index).
			Str("hash", blk.Hash.String()[:16]+"...").
			Uint64("nonce", blk.Nonce).
			Int("txs", len(blk.Transactions)).
			Msg("Block mined")

		if onBlock != nil {
			onBlock(blk)
		}
	}
}

// mineOnce runs one search that is cancelled when tipCh closes.
func (m *Miner) mineOnce(ctx context.Context, tipCh <-chan struct{}) (*block.Block, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-tipCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	m.setMining(true)
	defer m.setMining(false)
	return m.ledger.Mine(ctx)
}

// backoff waits for the tip to move or a retry interval to pass. It
// returns false when ctx is done.
func (m *Miner) backoff(ctx context.Context, tipCh <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-tipCh:
	case <-time.After(retryInterval):
	}
	return true
}

func (m *Miner) setMining(v bool) {
	m.mu.Lock()
	m.mining = v
	m.mu.Unlock()
}

func (m *Miner) recordErr(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
