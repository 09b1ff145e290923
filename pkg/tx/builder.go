package tx

import (
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Builder constructs transactions incrementally.
type Builder struct {
	ids IDGenerator
	tx  *Transaction
}

// NewBuilder starts a transfer of amount from sender to recipient.
// The transaction id is assigned immediately so outputs can refer to it.
func NewBuilder(ids IDGenerator, sender, recipient types.Address, amount uint64) *Builder {
	return &Builder{
		ids: ids,
		tx:  New(ids, sender, recipient, amount, nil, nil),
	}
}

// Spend adds an input consuming out.
func (b *Builder) Spend(out Output) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, InputFromOutput(out))
	return b
}

// Pay adds a new output of amount owned by recipient.
func (b *Builder) Pay(recipient types.Address, amount uint64) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, NewOutput(b.ids, b.tx.ID, recipient, amount))
	return b
}

// Build validates and returns the constructed transaction.
func (b *Builder) Build() (*Transaction, error) {
	if err := b.tx.Validate(); err != nil {
		return nil, err
	}
	return b.tx, nil
}
