package ledger

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// AddBlock verifies b against the tip and the difficulty target and
// appends it. Every output of every transaction in b becomes spendable
// and the block's transactions leave the pool.
//
// Transactions that were never pooled here (blocks from peers) must
// spend outputs the sender holds. If such a transaction spends an
// output reserved by a pooled transaction, or creates an output id a
// pooled transaction also creates, the block wins: the pooled
// transaction is evicted and its other reserved outputs are released.
// No output may reuse the id of an output created earlier.
func (l *Ledger) AddBlock(b *block.Block) error {
	if b == nil {
		return fmt.Errorf("%w: nil block", ErrLinkMismatch)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.commitLocked(b.Clone()); err != nil {
		l.logger.Debug().Err(err).Uint64("index", b.Index).Msg("Block rejected")
		return err
	}
	return nil
}

// blockPlan is the set of index and pool changes a block causes.
type blockPlan struct {
	spent   []utxo.Ref
	created []tx.Output
	release []string // reserved output ids to drop
	evict   []string // pooled transaction ids that conflict with the block
}

func (l *Ledger) commitLocked(b *block.Block) error {
	tip := l.chain[len(l.chain)-1]
	if b.PreviousHash != tip.Hash {
		return fmt.Errorf("%w: previous hash %s, tip %s", ErrLinkMismatch, b.PreviousHash, tip.Hash)
	}
	if b.Index != uint64(len(l.chain)) {
		return fmt.Errorf("%w: index %d, want %d", ErrLinkMismatch, b.Index, len(l.chain))
	}
	if err := l.engine.Verify(b, l.difficulty); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}

	plan, err := l.planLocked(b)
	if err != nil {
		return err
	}

	if err := l.utxos.Apply(plan.spent, plan.created); err != nil {
		invariant("applying block %d: %v", b.Index, err)
	}
	for _, id := range plan.release {
		delete(l.reserved, id)
	}
	for _, id := range plan.evict {
		l.pool.Remove(id)
	}
	removed := l.pool.RemoveConfirmed(b.Transactions)
	for _, t := range b.Transactions {
		l.confirmed[t.ID] = struct{}{}
		for _, out := range t.Outputs {
			l.outputIDs[out.ID] = struct{}{}
		}
	}
	l.chain = append(l.chain, b)

	l.logger.Info().
		Uint64("index", b.Index).
		Str("hash", b.Hash.String()[:16]+"...").
		Int("txs", len(b.Transactions)).
		Int("from_pool", removed).
		Int("evicted", len(plan.evict)).
		Msg("Block added")
	l.signalTipLocked()
	return nil
}

// planLocked checks every transaction of b against the pool and the
// UTXO index and works out the resulting changes. It mutates nothing.
func (l *Ledger) planLocked(b *block.Block) (*blockPlan, error) {
	plan := &blockPlan{}
	evicted := make(map[string]bool)
	created := make(map[string]bool)

	for i, t := range b.Transactions {
		if _, ok := l.confirmed[t.ID]; ok {
			return nil, fmt.Errorf("tx %d: %w: %s is already confirmed", i, ErrDuplicateTransaction, t.ID)
		}

		if pooled := l.pool.Get(t.ID); pooled != nil {
			if !pooled.Equal(t) {
				return nil, fmt.Errorf("tx %d: %w: %s differs from the pooled transaction",
					i, ErrDuplicateTransaction, t.ID)
			}
			// Inputs were taken from the index on admission.
			for _, in := range t.Inputs {
				plan.release = append(plan.release, in.PreviousOutputID)
			}
		} else {
			for j, in := range t.Inputs {
				if err := l.planInputLocked(plan, evicted, t, j, in); err != nil {
					return nil, fmt.Errorf("tx %d: %w", i, err)
				}
			}
		}

		for _, out := range t.Outputs {
			if created[out.ID] {
				return nil, fmt.Errorf("tx %d: %w: output id %s repeated in block",
					i, tx.ErrMalformedTransaction, out.ID)
			}
			if _, ok := l.outputIDs[out.ID]; ok {
				return nil, fmt.Errorf("tx %d: %w: output id %s already exists",
					i, tx.ErrMalformedTransaction, out.ID)
			}
			if by, ok := l.pool.CreatedBy(out.ID); ok && by != t.ID {
				evicted[by] = true
			}
			created[out.ID] = true
			plan.created = append(plan.created, out)
		}
	}

	// Evicted transactions give back the reservations the block did not take.
	taken := make(map[string]bool, len(plan.release))
	for _, id := range plan.release {
		taken[id] = true
	}
	for id := range evicted {
		plan.evict = append(plan.evict, id)
		for _, in := range l.pool.Get(id).Inputs {
			if taken[in.PreviousOutputID] {
				continue
			}
			out, ok := l.reserved[in.PreviousOutputID]
			if !ok {
				invariant("pooled transaction %s holds no reservation for %s", id, in.PreviousOutputID)
			}
			plan.created = append(plan.created, out)
			plan.release = append(plan.release, in.PreviousOutputID)
		}
	}
	return plan, nil
}

// planInputLocked resolves one input of a transaction that was not
// pooled. The output comes either from the index or from a reservation
// held by a pooled transaction, which is then evicted.
func (l *Ledger) planInputLocked(plan *blockPlan, evicted map[string]bool, t *tx.Transaction, j int, in tx.Input) error {
	out, err := l.utxos.Get(t.Sender, in.PreviousOutputID)
	if err == nil {
		if out.Amount != in.Amount {
			return fmt.Errorf("%w: input %d (%s): declared amount %d, output holds %d",
				tx.ErrMalformedTransaction, j, in.PreviousOutputID, in.Amount, out.Amount)
		}
		plan.spent = append(plan.spent, utxo.Ref{Owner: t.Sender, ID: in.PreviousOutputID})
		return nil
	}

	held, ok := l.reserved[in.PreviousOutputID]
	if !ok || held.Recipient != t.Sender {
		return fmt.Errorf("input %d (%s): %w", j, in.PreviousOutputID, ErrUnknownOutput)
	}
	if held.Amount != in.Amount {
		return fmt.Errorf("%w: input %d (%s): declared amount %d, output holds %d",
			tx.ErrMalformedTransaction, j, in.PreviousOutputID, in.Amount, held.Amount)
	}
	by, ok := l.pool.SpentBy(in.PreviousOutputID)
	if !ok {
		invariant("reserved output %s has no pooled spender", in.PreviousOutputID)
	}
	evicted[by] = true
	plan.release = append(plan.release, in.PreviousOutputID)
	return nil
}
