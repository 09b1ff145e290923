// Package tx defines the transaction model, its canonical encoding,
// structural validation and signing.
package tx

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Transaction moves value from a sender to a recipient by consuming
// previously unspent outputs and creating new ones.
type Transaction struct {
	ID        string        `json:"transaction_id"`
	Sender    types.Address `json:"sender_address"`
	Recipient types.Address `json:"recipient_address"`
	Amount    uint64        `json:"amount"`
	Inputs    []Input       `json:"transaction_inputs"`
	Outputs   []Output      `json:"transaction_outputs"`
}

// Input references exactly one unspent output by id. Amount repeats the
// referenced output's amount and is checked against it on admission.
type Input struct {
	PreviousOutputID string `json:"previous_output_id"`
	Amount           uint64 `json:"amount"`
}

// Output is a spendable amount owned by a recipient.
type Output struct {
	ID            string        `json:"id"`
	TransactionID string        `json:"transaction_id"`
	Recipient     types.Address `json:"recipient_address"`
	Amount        uint64        `json:"amount"`
}

// New creates a transaction with an id drawn from ids.
func New(ids IDGenerator, sender, recipient types.Address, amount uint64, inputs []Input, outputs []Output) *Transaction {
	return &Transaction{
		ID:        ids.NewID(),
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Inputs:    inputs,
		Outputs:   outputs,
	}
}

// NewOutput creates an output owned by recipient, created by transactionID.
func NewOutput(ids IDGenerator, transactionID string, recipient types.Address, amount uint64) Output {
	return Output{
		ID:            ids.NewID(),
		TransactionID: transactionID,
		Recipient:     recipient,
		Amount:        amount,
	}
}

// InputFromOutput returns an input that spends out.
func InputFromOutput(out Output) Input {
	return Input{PreviousOutputID: out.ID, Amount: out.Amount}
}

// SigningBytes returns the canonical byte representation used for hashing
// and signing. Strings are length-prefixed, integers little-endian.
// Format: id | sender | recipient | amount(8) | input_count(4) | [prev_id | amount(8)]...
// | output_count(4) | [id | transaction_id | recipient | amount(8)]...
func (t *Transaction) SigningBytes() []byte {
	return t.AppendSigningBytes(nil)
}

// AppendSigningBytes appends the canonical encoding of t to buf.
func (t *Transaction) AppendSigningBytes(buf []byte) []byte {
	buf = appendString(buf, t.ID)
	buf = appendString(buf, string(t.Sender))
	buf = appendString(buf, string(t.Recipient))
	buf = binary.LittleEndian.AppendUint64(buf, t.Amount)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = appendString(buf, in.PreviousOutputID)
		buf = binary.LittleEndian.AppendUint64(buf, in.Amount)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Outputs)))
	for _, out := range t.Outputs {
		buf = appendString(buf, out.ID)
		buf = appendString(buf, out.TransactionID)
		buf = appendString(buf, string(out.Recipient))
		buf = binary.LittleEndian.AppendUint64(buf, out.Amount)
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// Digest is the BLAKE3 hash of the signing bytes. Signatures commit to it.
func (t *Transaction) Digest() types.Hash {
	return crypto.Hash(t.SigningBytes())
}

// TotalInputValue returns the sum of all declared input amounts.
// Returns an error if the sum overflows uint64.
func (t *Transaction) TotalInputValue() (uint64, error) {
	var total uint64
	for _, in := range t.Inputs {
		if total > math.MaxUint64-in.Amount {
			return 0, fmt.Errorf("input value overflow")
		}
		total += in.Amount
	}
	return total, nil
}

// TotalOutputValue returns the sum of all output amounts.
// Returns an error if the sum overflows uint64.
func (t *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for _, out := range t.Outputs {
		if total > math.MaxUint64-out.Amount {
			return 0, fmt.Errorf("output value overflow")
		}
		total += out.Amount
	}
	return total, nil
}

// Equal reports whether t and other have identical fields.
// A nil input or output slice equals an empty one.
func (t *Transaction) Equal(other *Transaction) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.ID != other.ID || t.Sender != other.Sender ||
		t.Recipient != other.Recipient || t.Amount != other.Amount {
		return false
	}
	if len(t.Inputs) != len(other.Inputs) || len(t.Outputs) != len(other.Outputs) {
		return false
	}
	for i := range t.Inputs {
		if t.Inputs[i] != other.Inputs[i] {
			return false
		}
	}
	for i := range t.Outputs {
		if t.Outputs[i] != other.Outputs[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of t.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	c.Inputs = append([]Input(nil), t.Inputs...)
	c.Outputs = append([]Output(nil), t.Outputs...)
	return &c
}
