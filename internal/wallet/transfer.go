package wallet

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// BuildTransfer assembles an unsigned transfer of amount from sender to
// recipient, funded from utxos. The recipient output comes first; change
// back to the sender follows only when non-zero. Nothing is reserved here:
// the outputs stay spendable until the ledger admits the transaction.
func BuildTransfer(ids tx.IDGenerator, sender, recipient types.Address, amount uint64, utxos []tx.Output) (*tx.Transaction, error) {
	if err := sender.Validate(); err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	if err := recipient.Validate(); err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}

	owned := make([]tx.Output, 0, len(utxos))
	for _, u := range utxos {
		if u.Recipient == sender {
			owned = append(owned, u)
		}
	}
	sel, err := SelectCoins(owned, amount)
	if err != nil {
		return nil, err
	}

	b := tx.NewBuilder(ids, sender, recipient, amount)
	for _, u := range sel.Inputs {
		b.Spend(u)
	}
	b.Pay(recipient, amount)
	if sel.Change > 0 {
		b.Pay(sender, sel.Change)
	}
	return b.Build()
}
