// Package block defines blocks, their canonical hash and the chain dump
// document.
package block

import (
	"encoding/binary"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// GenesisPrevHash is the previous_hash sentinel carried by the genesis block.
var GenesisPrevHash = types.Hash{}

// Block is an ordered batch of transactions linked to its predecessor.
// Hash is derived from the other fields and is only trusted after
// recomputation.
type Block struct {
	Index        uint64            `json:"index"`
	PreviousHash types.Hash        `json:"previous_hash"`
	Transactions []*tx.Transaction `json:"transactions"`
	Timestamp    int64             `json:"timestamp"`
	Nonce        uint64            `json:"nonce"`
	Hash         types.Hash        `json:"hash"`
}

// New creates an unsealed block. Nonce starts at zero and Hash is left
// empty until the block is sealed.
func New(index uint64, prev types.Hash, txs []*tx.Transaction, timestamp int64) *Block {
	return &Block{
		Index:        index,
		PreviousHash: prev,
		Transactions: txs,
		Timestamp:    timestamp,
	}
}

// Genesis returns the fixed first block of every chain. All of its fields
// are constants, so its hash is the same on every node.
func Genesis() *Block {
	b := New(0, GenesisPrevHash, []*tx.Transaction{}, 0)
	b.Hash = b.ComputeHash()
	return b
}

// SigningPrefix returns the canonical encoding of every hashed field
// except the nonce, which always comes last.
// Format: index(8) | previous_hash(32) | tx_count(4) | [tx_len(4) | tx]... | timestamp(8)
func (b *Block) SigningPrefix() []byte {
	buf := make([]byte, 0, 64)
	buf = binary.LittleEndian.AppendUint64(buf, b.Index)
	buf = append(buf, b.PreviousHash[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b.Transactions)))
	for _, t := range b.Transactions {
		enc := t.SigningBytes()
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(enc)))
		buf = append(buf, enc...)
	}
	buf = binary.LittleEndian.AppendUint64(buf, uint64(b.Timestamp))
	return buf
}

// SigningBytes returns the bytes that are hashed: SigningPrefix | nonce(8).
// The stored Hash is excluded.
func (b *Block) SigningBytes() []byte {
	return binary.LittleEndian.AppendUint64(b.SigningPrefix(), b.Nonce)
}

// ComputeHash returns the BLAKE3 hash of the block's signing bytes.
func (b *Block) ComputeHash() types.Hash {
	return crypto.Hash(b.SigningBytes())
}

// HashWithNonce computes the hash for a given prefix and nonce without
// re-encoding the block.
func HashWithNonce(prefix []byte, nonce uint64) types.Hash {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], nonce)
	return crypto.HashParts(prefix, n[:])
}

// Equal reports whether b and other have identical fields, comparing
// transactions structurally.
func (b *Block) Equal(other *Block) bool {
	if b == nil || other == nil {
		return b == other
	}
	if b.Index != other.Index || b.PreviousHash != other.PreviousHash ||
		b.Timestamp != other.Timestamp || b.Nonce != other.Nonce || b.Hash != other.Hash {
		return false
	}
	if len(b.Transactions) != len(other.Transactions) {
		return false
	}
	for i := range b.Transactions {
		if !b.Transactions[i].Equal(other.Transactions[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of b.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	c := *b
	c.Transactions = make([]*tx.Transaction, len(b.Transactions))
	for i, t := range b.Transactions {
		c.Transactions[i] = t.Clone()
	}
	return &c
}
