package wallet

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// Coin selection errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoUTXOs           = errors.New("no UTXOs available")
)

// CoinSelection holds the result of coin selection.
type CoinSelection struct {
	Inputs []tx.Output // Selected outputs to spend.
	Total  uint64      // Sum of selected amounts.
	Change uint64      // Total - target.
}

// SelectCoins picks outputs to fund target, largest amount first with
// ties broken by ascending id, stopping as soon as the target is covered.
// The result depends only on the set of outputs, not their order.
func SelectCoins(utxos []tx.Output, target uint64) (*CoinSelection, error) {
	if target == 0 {
		return nil, fmt.Errorf("target must be positive")
	}

	candidates := make([]tx.Output, 0, len(utxos))
	var available uint64
	for _, u := range utxos {
		if u.Amount == 0 {
			continue
		}
		candidates = append(candidates, u)
		available += u.Amount
	}
	if len(candidates) == 0 {
		return nil, ErrNoUTXOs
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Amount != candidates[j].Amount {
			return candidates[i].Amount > candidates[j].Amount
		}
		return candidates[i].ID < candidates[j].ID
	})

	sel := &CoinSelection{}
	for _, u := range candidates {
		sel.Inputs = append(sel.Inputs, u)
		sel.Total += u.Amount
		if sel.Total >= target {
			sel.Change = sel.Total - target
			return sel, nil
		}
	}
	return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, available, target)
}
