package tx

import (
	"errors"
	"fmt"
)

// Transaction errors.
var (
	ErrMalformedTransaction = errors.New("malformed transaction")
	ErrSerialization        = errors.New("serialization error")
	ErrVerification         = errors.New("signature verification failed")
	ErrUnknownOutput        = errors.New("unknown output")
)

// Validate checks transaction structure and the conservation rule
// sum(inputs) == sum(outputs). It does NOT check that the inputs exist;
// see ValidateWithUTXOs.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: empty transaction id", ErrMalformedTransaction)
	}
	if err := t.Sender.Validate(); err != nil {
		return fmt.Errorf("%w: sender: %v", ErrMalformedTransaction, err)
	}
	if err := t.Recipient.Validate(); err != nil {
		return fmt.Errorf("%w: recipient: %v", ErrMalformedTransaction, err)
	}
	if len(t.Inputs) == 0 {
		return fmt.Errorf("%w: no inputs", ErrMalformedTransaction)
	}
	if len(t.Outputs) == 0 {
		return fmt.Errorf("%w: no outputs", ErrMalformedTransaction)
	}

	seenIn := make(map[string]bool, len(t.Inputs))
	for i, in := range t.Inputs {
		if in.PreviousOutputID == "" {
			return fmt.Errorf("%w: input %d: empty previous_output_id", ErrMalformedTransaction, i)
		}
		if seenIn[in.PreviousOutputID] {
			return fmt.Errorf("%w: input %d: duplicate input %s", ErrMalformedTransaction, i, in.PreviousOutputID)
		}
		seenIn[in.PreviousOutputID] = true
	}

	seenOut := make(map[string]bool, len(t.Outputs))
	for i, out := range t.Outputs {
		if out.ID == "" {
			return fmt.Errorf("%w: output %d: empty id", ErrMalformedTransaction, i)
		}
		if seenOut[out.ID] {
			return fmt.Errorf("%w: output %d: duplicate output id %s", ErrMalformedTransaction, i, out.ID)
		}
		seenOut[out.ID] = true
		if out.TransactionID != t.ID {
			return fmt.Errorf("%w: output %d: transaction_id %q does not match %q",
				ErrMalformedTransaction, i, out.TransactionID, t.ID)
		}
		if err := out.Recipient.Validate(); err != nil {
			return fmt.Errorf("%w: output %d: recipient: %v", ErrMalformedTransaction, i, err)
		}
	}

	totalIn, err := t.TotalInputValue()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	totalOut, err := t.TotalOutputValue()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	if totalIn != totalOut {
		return fmt.Errorf("%w: inputs=%d outputs=%d", ErrMalformedTransaction, totalIn, totalOut)
	}
	return nil
}
