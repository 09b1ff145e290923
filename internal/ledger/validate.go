package ledger

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// ValidateChain audits the whole chain: genesis must be the fixed
// genesis block, every stored hash must match recomputation and every
// block must link to its predecessor. The UTXO index is not re-derived.
func (l *Ledger) ValidateChain() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return ValidateChain(l.chain)
}

// ValidateChain audits a chain without a ledger, e.g. a decoded dump.
func ValidateChain(chain []*block.Block) error {
	if len(chain) == 0 {
		return fmt.Errorf("%w: empty chain", ErrLinkMismatch)
	}
	if !chain[0].Equal(block.Genesis()) {
		return fmt.Errorf("%w: block 0 is not the genesis block", ErrLinkMismatch)
	}
	for i := 1; i < len(chain); i++ {
		b, prev := chain[i], chain[i-1]
		if b == nil {
			return fmt.Errorf("%w: block %d is nil", ErrLinkMismatch, i)
		}
		if computed := b.ComputeHash(); b.Hash != computed {
			return fmt.Errorf("%w: block %d stored hash %s, computed %s", ErrInvalidProof, i, b.Hash, computed)
		}
		if b.PreviousHash != prev.Hash {
			return fmt.Errorf("%w: block %d previous hash %s, want %s", ErrLinkMismatch, i, b.PreviousHash, prev.Hash)
		}
		if b.Index != uint64(i) {
			return fmt.Errorf("%w: block at position %d has index %d", ErrLinkMismatch, i, b.Index)
		}
		if err := b.Validate(); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	return nil
}

// Restore replaces the ledger state with the chain in d. The chain is
// audited, then the UTXO index is rebuilt from the genesis allocations
// by replaying every block, and the pool is emptied. Nothing changes if
// any step fails.
func (l *Ledger) Restore(d *block.Dump) error {
	if d == nil {
		return fmt.Errorf("nil dump")
	}
	if d.Length != len(d.Chain) {
		return fmt.Errorf("%w: length %d, chain has %d blocks", block.ErrSerialization, d.Length, len(d.Chain))
	}
	if err := ValidateChain(d.Chain); err != nil {
		return err
	}

	chain := make([]*block.Block, len(d.Chain))
	for i, b := range d.Chain {
		chain[i] = b.Clone()
	}

	// Replay into a scratch index so a bad chain leaves ours untouched.
	scratch := utxo.NewStore(storage.NewMemory())
	confirmed, outputIDs, err := replay(scratch, l.allocs, chain)
	if err != nil {
		return err
	}
	var outs []tx.Output
	if err := scratch.ForEach(func(out tx.Output) error {
		outs = append(outs, out)
		return nil
	}); err != nil {
		return fmt.Errorf("read rebuilt index: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.utxos.ClearAll(); err != nil {
		invariant("clearing utxo index: %v", err)
	}
	if err := l.utxos.Apply(nil, outs); err != nil {
		invariant("writing rebuilt utxo index: %v", err)
	}
	want, err := utxo.Commitment(scratch)
	if err != nil {
		invariant("commitment of rebuilt index: %v", err)
	}
	got, err := utxo.Commitment(l.utxos)
	if err != nil || got != want {
		invariant("utxo index commitment %s after restore, rebuilt %s (err %v)", got, want, err)
	}

	l.chain = chain
	l.confirmed = confirmed
	l.outputIDs = outputIDs
	l.pool.Clear()
	l.reserved = make(map[string]tx.Output)

	l.logger.Info().
		Int("blocks", len(chain)).
		Int("utxos", len(outs)).
		Str("commitment", got.String()[:16]+"...").
		Msg("Ledger restored")
	l.signalTipLocked()
	return nil
}

// replay applies allocs and then every block after genesis to set,
// checking that each input spends an output the sender holds and that
// no output reuses an earlier id. Returns the ids of all replayed
// transactions and of all created outputs.
func replay(set utxo.Set, allocs []tx.Output, chain []*block.Block) (confirmed, outputIDs map[string]struct{}, err error) {
	if err := set.Apply(nil, allocs); err != nil {
		return nil, nil, fmt.Errorf("apply genesis allocations: %w", err)
	}
	outputIDs = make(map[string]struct{}, len(allocs))
	for _, out := range allocs {
		outputIDs[out.ID] = struct{}{}
	}
	provider := indexProvider{set: set}
	confirmed = make(map[string]struct{})
	for _, b := range chain[1:] {
		var spent []utxo.Ref
		var created []tx.Output
		for i, t := range b.Transactions {
			if _, ok := confirmed[t.ID]; ok {
				return nil, nil, fmt.Errorf("block %d tx %d: %w: %s", b.Index, i, ErrDuplicateTransaction, t.ID)
			}
			confirmed[t.ID] = struct{}{}
			if err := t.ValidateWithUTXOs(provider); err != nil {
				return nil, nil, fmt.Errorf("block %d tx %d: %w", b.Index, i, err)
			}
			for _, in := range t.Inputs {
				spent = append(spent, utxo.Ref{Owner: t.Sender, ID: in.PreviousOutputID})
			}
			for _, out := range t.Outputs {
				if _, ok := outputIDs[out.ID]; ok {
					return nil, nil, fmt.Errorf("block %d tx %d: %w: output id %s already exists",
						b.Index, i, tx.ErrMalformedTransaction, out.ID)
				}
				outputIDs[out.ID] = struct{}{}
			}
			created = append(created, t.Outputs...)
		}
		if err := set.Apply(spent, created); err != nil {
			return nil, nil, fmt.Errorf("block %d: %w", b.Index, err)
		}
	}
	return confirmed, outputIDs, nil
}
