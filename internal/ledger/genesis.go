package ledger

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// AllocationID returns the output id of the genesis allocation to addr:
// the hex BLAKE3 hash of the genesis block hash followed by the address.
func AllocationID(addr types.Address) string {
	genesis := block.Genesis().Hash
	h := crypto.HashParts(genesis[:], []byte(addr))
	return hex.EncodeToString(h[:])
}

// GenesisOutputs turns the genesis allocations into outputs, ordered by
// address. Zero allocations are skipped.
func GenesisOutputs(gen *config.Genesis) ([]tx.Output, error) {
	addrs := make([]string, 0, len(gen.Alloc))
	for a := range gen.Alloc {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	outs := make([]tx.Output, 0, len(addrs))
	seen := make(map[types.Address]bool, len(addrs))
	for _, a := range addrs {
		amount := gen.Alloc[a]
		if amount == 0 {
			continue
		}
		addr, err := types.ParseAddress(a)
		if err != nil {
			return nil, fmt.Errorf("genesis alloc %q: %w", a, err)
		}
		if seen[addr] {
			return nil, fmt.Errorf("genesis alloc %q: duplicate address", a)
		}
		seen[addr] = true
		outs = append(outs, tx.Output{
			ID:            AllocationID(addr),
			TransactionID: config.GenesisTransactionID,
			Recipient:     addr,
			Amount:        amount,
		})
	}
	return outs, nil
}
