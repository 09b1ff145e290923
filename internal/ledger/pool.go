package ledger

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// indexProvider exposes a utxo.Set as a tx.UTXOProvider.
type indexProvider struct {
	set utxo.Set
}

func (p indexProvider) GetUTXO(owner types.Address, id string) (tx.Output, bool) {
	out, err := p.set.Get(owner, id)
	if err != nil {
		return tx.Output{}, false
	}
	return out, true
}

// AddTransaction admits t to the pool. The transaction must be
// structurally valid and every input must name an unspent output held by
// the sender with the declared amount. On success the consumed outputs
// leave the UTXO index and t is appended to the pool, as one step.
//
// Signatures are not checked here; callers verify them first.
func (l *Ledger) AddTransaction(t *tx.Transaction) error {
	if t == nil {
		return fmt.Errorf("%w: nil transaction", tx.ErrMalformedTransaction)
	}
	if err := t.Validate(); err != nil {
		return err
	}
	t = t.Clone()

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.admitLocked(t); err != nil {
		l.logger.Debug().Err(err).Str("tx", t.ID).Msg("Transaction rejected")
		return err
	}

	l.logger.Debug().
		Str("tx", t.ID).
		Str("sender", t.Sender.Short()).
		Uint64("amount", t.Amount).
		Int("pool", l.pool.Count()).
		Msg("Transaction added to pool")
	l.signalPoolLocked()
	return nil
}

func (l *Ledger) admitLocked(t *tx.Transaction) error {
	if l.pool.Has(t.ID) {
		return fmt.Errorf("%w: %s is already pooled", ErrDuplicateTransaction, t.ID)
	}
	if _, ok := l.confirmed[t.ID]; ok {
		return fmt.Errorf("%w: %s is already confirmed", ErrDuplicateTransaction, t.ID)
	}
	if l.policy != nil {
		if err := l.policy.Check(t); err != nil {
			return err
		}
	}

	// Output ids are unique across the chain, the allocations and the pool.
	for _, out := range t.Outputs {
		if _, ok := l.outputIDs[out.ID]; ok {
			return fmt.Errorf("%w: output id %s already exists", tx.ErrMalformedTransaction, out.ID)
		}
		if by, ok := l.pool.CreatedBy(out.ID); ok {
			return fmt.Errorf("%w: output id %s already created by pooled transaction %s",
				tx.ErrMalformedTransaction, out.ID, by)
		}
	}

	// An output held by a pooled transaction is already spent.
	for _, in := range t.Inputs {
		if by, ok := l.pool.SpentBy(in.PreviousOutputID); ok {
			return fmt.Errorf("%w: output %s already spent by pooled transaction %s",
				ErrInsufficientFunds, in.PreviousOutputID, by)
		}
	}
	if err := t.ValidateWithUTXOs(indexProvider{set: l.utxos}); err != nil {
		return err
	}

	spent := make([]utxo.Ref, len(t.Inputs))
	outs := make([]tx.Output, len(t.Inputs))
	for i, in := range t.Inputs {
		out, err := l.utxos.Get(t.Sender, in.PreviousOutputID)
		if err != nil {
			invariant("output %s checked present but unreadable: %v", in.PreviousOutputID, err)
		}
		spent[i] = utxo.RefOf(out)
		outs[i] = out
	}

	// The pool rejects on capacity before anything is mutated.
	if err := l.pool.Add(t); err != nil {
		return err
	}
	if err := l.utxos.Apply(spent, nil); err != nil {
		invariant("reserving outputs of %s: %v", t.ID, err)
	}
	for _, out := range outs {
		l.reserved[out.ID] = out
	}
	return nil
}
