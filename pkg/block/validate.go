package block

import (
	"errors"
	"fmt"
)

// Block validation errors.
var (
	ErrDuplicateTx         = errors.New("duplicate transaction in block")
	ErrDuplicateBlockInput = errors.New("duplicate input across transactions in block")
	ErrNilTransaction      = errors.New("nil transaction in block")
)

// Validate checks the block's transactions for structural validity and
// for outputs spent twice within the block. It does NOT check linkage or
// proof-of-work; the ledger and consensus engine do that.
func (b *Block) Validate() error {
	txIDs := make(map[string]int, len(b.Transactions))
	spent := make(map[string]int)
	for i, t := range b.Transactions {
		if t == nil {
			return fmt.Errorf("tx %d: %w", i, ErrNilTransaction)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
		if prev, ok := txIDs[t.ID]; ok {
			return fmt.Errorf("tx %d: %w: %s also at tx %d", i, ErrDuplicateTx, t.ID, prev)
		}
		txIDs[t.ID] = i
		for _, in := range t.Inputs {
			if prev, ok := spent[in.PreviousOutputID]; ok {
				return fmt.Errorf("tx %d: %w: output %s also spent in tx %d",
					i, ErrDuplicateBlockInput, in.PreviousOutputID, prev)
			}
			spent[in.PreviousOutputID] = i
		}
	}
	return nil
}
