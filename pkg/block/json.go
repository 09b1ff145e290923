package block

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// ErrSerialization wraps tx.ErrSerialization so either sentinel matches
// a malformed block or dump document.
var ErrSerialization = fmt.Errorf("block: %w", tx.ErrSerialization)

type blockJSON struct {
	Index        *uint64            `json:"index"`
	PreviousHash *types.Hash        `json:"previous_hash"`
	Transactions *[]json.RawMessage `json:"transactions"`
	Timestamp    *int64             `json:"timestamp"`
	Nonce        *uint64            `json:"nonce"`
	Hash         *types.Hash        `json:"hash"`
}

func missing(entity, field string) error {
	return fmt.Errorf("%w: %s: missing field %q", ErrSerialization, entity, field)
}

// MarshalJSON encodes the block document. An empty transaction list
// encodes as [].
func (b Block) MarshalJSON() ([]byte, error) {
	type plain Block
	p := plain(b)
	if p.Transactions == nil {
		p.Transactions = []*tx.Transaction{}
	}
	return json.Marshal(p)
}

// UnmarshalJSON decodes a block document, requiring every field. Each
// transaction goes through the transaction decoder.
func (b *Block) UnmarshalJSON(data []byte) error {
	var j blockJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	switch {
	case j.Index == nil:
		return missing("block", "index")
	case j.PreviousHash == nil:
		return missing("block", "previous_hash")
	case j.Transactions == nil:
		return missing("block", "transactions")
	case j.Timestamp == nil:
		return missing("block", "timestamp")
	case j.Nonce == nil:
		return missing("block", "nonce")
	case j.Hash == nil:
		return missing("block", "hash")
	}

	txs := make([]*tx.Transaction, len(*j.Transactions))
	for i, raw := range *j.Transactions {
		t := new(tx.Transaction)
		if err := t.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("%w: transactions[%d]: %w", ErrSerialization, i, err)
		}
		txs[i] = t
	}

	*b = Block{
		Index:        *j.Index,
		PreviousHash: *j.PreviousHash,
		Transactions: txs,
		Timestamp:    *j.Timestamp,
		Nonce:        *j.Nonce,
		Hash:         *j.Hash,
	}
	return nil
}

// Decode parses a block document.
func Decode(data []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, decodeError(err)
	}
	return &b, nil
}

// decodeError reports a document that is not valid JSON, or does not
// have the expected shape, as ErrSerialization.
func decodeError(err error) error {
	if errors.Is(err, ErrSerialization) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrSerialization, err)
}
