package utxo

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Commitment computes a single hash over every output in the set.
// Each output is hashed deterministically, the hashes are sorted and
// hashed together. Returns a zero hash for an empty set.
func Commitment(set Set) (types.Hash, error) {
	var hashes []types.Hash
	err := set.ForEach(func(out tx.Output) error {
		hashes = append(hashes, hashOutput(out))
		return nil
	})
	if err != nil {
		return types.Hash{}, fmt.Errorf("utxo commitment: %w", err)
	}
	if len(hashes) == 0 {
		return types.Hash{}, nil
	}

	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
	parts := make([][]byte, len(hashes))
	for i := range hashes {
		parts[i] = hashes[i][:]
	}
	return crypto.HashParts(parts...), nil
}

// hashOutput hashes the canonical encoding of a lone output.
func hashOutput(out tx.Output) types.Hash {
	t := tx.Transaction{Outputs: []tx.Output{out}}
	return crypto.Hash(t.SigningBytes())
}
