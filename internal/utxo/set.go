// Package utxo maintains the index of unspent outputs, keyed by owner.
package utxo

import (
	"errors"

	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// UTXO set errors.
var (
	ErrNotFound = errors.New("utxo not found")
	ErrExists   = errors.New("utxo already exists")
)

// Ref identifies one output held by an owner.
type Ref struct {
	Owner types.Address
	ID    string
}

// RefOf returns the reference to out under its recipient.
func RefOf(out tx.Output) Ref {
	return Ref{Owner: out.Recipient, ID: out.ID}
}

// Set is the interface for UTXO storage.
type Set interface {
	Get(owner types.Address, id string) (tx.Output, error)
	Has(owner types.Address, id string) (bool, error)
	Put(out tx.Output) error
	Delete(owner types.Address, id string) error
	// Apply removes spent and adds created as one write. It never
	// overwrites an output already in the set.
	Apply(spent []Ref, created []tx.Output) error
	GetByAddress(owner types.Address) ([]tx.Output, error)
	ForEach(fn func(tx.Output) error) error
	ClearAll() error
}
