package tx

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Wire shapes with pointer fields so absent keys can be told apart from
// zero values.
type inputJSON struct {
	PreviousOutputID *string `json:"previous_output_id"`
	Amount           *uint64 `json:"amount"`
}

type outputJSON struct {
	ID            *string        `json:"id"`
	TransactionID *string        `json:"transaction_id"`
	Recipient     *types.Address `json:"recipient_address"`
	Amount        *uint64        `json:"amount"`
}

type transactionJSON struct {
	ID        *string            `json:"transaction_id"`
	Sender    *types.Address     `json:"sender_address"`
	Recipient *types.Address     `json:"recipient_address"`
	Amount    *uint64            `json:"amount"`
	Inputs    *[]json.RawMessage `json:"transaction_inputs"`
	Outputs   *[]json.RawMessage `json:"transaction_outputs"`
}

func missing(entity, field string) error {
	return fmt.Errorf("%w: %s: missing field %q", ErrSerialization, entity, field)
}

// UnmarshalJSON decodes an input document, requiring every field.
func (in *Input) UnmarshalJSON(data []byte) error {
	var j inputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("%w: input: %v", ErrSerialization, err)
	}
	if j.PreviousOutputID == nil {
		return missing("input", "previous_output_id")
	}
	if j.Amount == nil {
		return missing("input", "amount")
	}
	*in = Input{PreviousOutputID: *j.PreviousOutputID, Amount: *j.Amount}
	return nil
}

// UnmarshalJSON decodes an output document, requiring every field.
func (out *Output) UnmarshalJSON(data []byte) error {
	var j outputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("%w: output: %v", ErrSerialization, err)
	}
	switch {
	case j.ID == nil:
		return missing("output", "id")
	case j.TransactionID == nil:
		return missing("output", "transaction_id")
	case j.Recipient == nil:
		return missing("output", "recipient_address")
	case j.Amount == nil:
		return missing("output", "amount")
	}
	*out = Output{
		ID:            *j.ID,
		TransactionID: *j.TransactionID,
		Recipient:     *j.Recipient,
		Amount:        *j.Amount,
	}
	return nil
}

// MarshalJSON encodes the transaction document. Empty input and output
// lists encode as [] rather than null.
func (t Transaction) MarshalJSON() ([]byte, error) {
	type plain Transaction
	p := plain(t)
	if p.Inputs == nil {
		p.Inputs = []Input{}
	}
	if p.Outputs == nil {
		p.Outputs = []Output{}
	}
	return json.Marshal(p)
}

// UnmarshalJSON decodes a transaction document, requiring every field of
// the transaction and of each nested input and output.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var j transactionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("%w: transaction: %v", ErrSerialization, err)
	}
	switch {
	case j.ID == nil:
		return missing("transaction", "transaction_id")
	case j.Sender == nil:
		return missing("transaction", "sender_address")
	case j.Recipient == nil:
		return missing("transaction", "recipient_address")
	case j.Amount == nil:
		return missing("transaction", "amount")
	case j.Inputs == nil:
		return missing("transaction", "transaction_inputs")
	case j.Outputs == nil:
		return missing("transaction", "transaction_outputs")
	}

	inputs := make([]Input, len(*j.Inputs))
	for i, raw := range *j.Inputs {
		if err := inputs[i].UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("transaction_inputs[%d]: %w", i, err)
		}
	}
	outputs := make([]Output, len(*j.Outputs))
	for i, raw := range *j.Outputs {
		if err := outputs[i].UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("transaction_outputs[%d]: %w", i, err)
		}
	}

	*t = Transaction{
		ID:        *j.ID,
		Sender:    *j.Sender,
		Recipient: *j.Recipient,
		Amount:    *j.Amount,
		Inputs:    inputs,
		Outputs:   outputs,
	}
	return nil
}

// Decode parses a transaction document.
func Decode(data []byte) (*Transaction, error) {
	var t Transaction
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, decodeError(err)
	}
	return &t, nil
}

// decodeError reports a document that is not valid JSON, or does not
// have the expected shape, as ErrSerialization.
func decodeError(err error) error {
	if errors.Is(err, ErrSerialization) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrSerialization, err)
}
