package mempool

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// ErrPolicy is returned when a transaction breaks a local acceptance rule.
var ErrPolicy = errors.New("transaction rejected by policy")

// Policy defines transaction acceptance rules.
type Policy struct {
	MaxTxSize int // Maximum transaction size in signing bytes.
}

// DefaultPolicy returns a policy with the configured defaults.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxTxSize: config.MaxTxSize,
	}
}

// Check validates a transaction against policy rules. These are local
// limits applied before admission, separate from structural validation.
func (p *Policy) Check(t *tx.Transaction) error {
	if len(t.Inputs) > config.MaxTxInputs {
		return fmt.Errorf("%w: too many inputs: %d, max %d", ErrPolicy, len(t.Inputs), config.MaxTxInputs)
	}
	if len(t.Outputs) > config.MaxTxOutputs {
		return fmt.Errorf("%w: too many outputs: %d, max %d", ErrPolicy, len(t.Outputs), config.MaxTxOutputs)
	}
	size := len(t.SigningBytes())
	if p.MaxTxSize > 0 && size > p.MaxTxSize {
		return fmt.Errorf("%w: transaction too large: %d bytes, max %d", ErrPolicy, size, p.MaxTxSize)
	}
	return nil
}
