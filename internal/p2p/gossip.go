package p2p

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// ErrNotStarted is returned when broadcasting before Start.
var ErrNotStarted = errors.New("p2p node not started")

// TxMessage is the payload of the transaction topic: a transaction
// document and the sender's signature over it.
type TxMessage struct {
	Transaction *tx.Transaction `json:"transaction"`
	Signature   string          `json:"signature"`
}

// BroadcastTx publishes a signed transaction.
func (n *Node) BroadcastTx(t *tx.Transaction, signature string) error {
	if n.topicTx == nil {
		return ErrNotStarted
	}
	data, err := json.Marshal(TxMessage{Transaction: t, Signature: signature})
	if err != nil {
		return fmt.Errorf("marshal tx: %w", err)
	}
	return n.topicTx.Publish(n.ctx, data)
}

// BroadcastBlock publishes a block document.
func (n *Node) BroadcastBlock(b *block.Block) error {
	if n.topicBlock == nil {
		return ErrNotStarted
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}
	return n.topicBlock.Publish(n.ctx, data)
}

// DecodeTxMessage parses a transaction topic payload. Both fields are
// required.
func DecodeTxMessage(data []byte) (*tx.Transaction, string, error) {
	var raw struct {
		Transaction json.RawMessage `json:"transaction"`
		Signature   *string         `json:"signature"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, "", fmt.Errorf("%w: %v", tx.ErrSerialization, err)
	}
	if len(raw.Transaction) == 0 || string(raw.Transaction) == "null" {
		return nil, "", fmt.Errorf("%w: missing transaction", tx.ErrSerialization)
	}
	if raw.Signature == nil {
		return nil, "", fmt.Errorf("%w: missing signature", tx.ErrSerialization)
	}
	t, err := tx.Decode(raw.Transaction)
	if err != nil {
		return nil, "", err
	}
	return t, *raw.Signature, nil
}
