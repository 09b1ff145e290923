package ledger

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// Candidate builds an unsealed block on top of the current tip holding
// every pooled transaction in arrival order, and returns it with the
// difficulty it must meet.
func (l *Ledger) Candidate() (*block.Block, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pending := l.pool.Pending()
	txs := make([]*tx.Transaction, len(pending))
	for i, t := range pending {
		txs[i] = t.Clone()
	}
	tip := l.chain[len(l.chain)-1]
	blk := block.New(uint64(len(l.chain)), tip.Hash, txs, l.clock().Unix())
	return blk, l.difficulty
}

// Mine builds a candidate block from a snapshot of the pool and searches
// for a nonce meeting the difficulty. The search runs without holding
// the ledger lock and stops with ctx.Err() when ctx is cancelled. Mine
// never changes ledger state; commit the result with AddBlock.
func (l *Ledger) Mine(ctx context.Context) (*block.Block, error) {
	blk, difficulty := l.Candidate()
	if err := l.engine.Seal(ctx, blk, difficulty); err != nil {
		return nil, fmt.Errorf("seal block %d: %w", blk.Index, err)
	}
	return blk, nil
}
