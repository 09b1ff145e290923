package tx

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// UTXOProvider gives read-only access to the unspent outputs of an address.
type UTXOProvider interface {
	GetUTXO(owner types.Address, id string) (Output, bool)
}

// ValidateWithUTXOs checks the transaction's structure and that every
// input spends an output currently unspent under the sender's address
// with exactly the declared amount.
func (t *Transaction) ValidateWithUTXOs(provider UTXOProvider) error {
	if err := t.Validate(); err != nil {
		return err
	}
	for i, in := range t.Inputs {
		out, ok := provider.GetUTXO(t.Sender, in.PreviousOutputID)
		if !ok {
			return fmt.Errorf("input %d (%s): %w", i, in.PreviousOutputID, ErrUnknownOutput)
		}
		if out.Amount != in.Amount {
			return fmt.Errorf("%w: input %d (%s): declared amount %d, output holds %d",
				ErrMalformedTransaction, i, in.PreviousOutputID, in.Amount, out.Amount)
		}
	}
	return nil
}
