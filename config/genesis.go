package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// =============================================================================
// Ledger Rules (defined in genesis)
// =============================================================================

// Difficulty bounds, counted in leading zero hex characters of a block hash.
const (
	DefaultDifficulty = 4
	MaxDifficulty     = 64
)

// Transaction size limits applied before pool admission.
const (
	MaxTxInputs  = 2500      // Max inputs per transaction
	MaxTxOutputs = 2500      // Max outputs per transaction
	MaxTxSize    = 1_000_000 // Max signing bytes per transaction
)

// GenesisTransactionID is the transaction_id carried by outputs created
// from genesis allocations.
const GenesisTransactionID = "genesis"

// Genesis holds the initial ledger configuration.
type Genesis struct {
	ChainID string `json:"chain_id"`

	// Required leading zero hex characters in a block hash.
	Difficulty int `json:"difficulty"`

	// Initial allocations (address -> amount)
	Alloc map[string]uint64 `json:"alloc"`
}

// =============================================================================
// Testnet Identity
//
// Derived from the well-known BIP-39 test mnemonic (DO NOT use on mainnet):
//
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon art
//
// Derivation path: m/44'/8888'/0'/0/0 (no passphrase)
// =============================================================================

const (
	// TestnetMnemonic is the well-known seed phrase for the testnet allocation.
	TestnetMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

	// TestnetPrivKey is the private key (hex) derived from TestnetMnemonic.
	TestnetPrivKey = "1f0717e6e34acc6721021f4dfed54558ec8452452b6195545d06dd348b220091"

	// TestnetAddress is the address derived from TestnetMnemonic. Addresses
	// are compressed public keys, hex encoded.
	TestnetAddress = "030bef68f8657df88098a0546da1712c88b459788bea1a6bbe964004166a25144f"
)

// =============================================================================
// Pre-defined genesis configurations
// =============================================================================

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	return &Genesis{
		ChainID:    "klingnet-ledger-1",
		Difficulty: DefaultDifficulty,
		Alloc: map[string]uint64{
			"03cba4d0ee4c55f5ea620393a6e6e9dafe959bfa6ddff964221126a3e41ad0487d": 1_000_000,
		},
	}
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.ChainID = "klingnet-ledger-testnet-1"
	g.Difficulty = 3

	// Testnet allocation to the well-known testnet address.
	g.Alloc = map[string]uint64{
		TestnetAddress: 1_000_000,
	}
	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// =============================================================================
// Genesis file I/O
// =============================================================================

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is valid.
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}

	if g.Difficulty < 0 || g.Difficulty > MaxDifficulty {
		return fmt.Errorf("difficulty must be between 0 and %d", MaxDifficulty)
	}

	// Validate alloc addresses and make sure the total fits in a uint64.
	var totalAlloc uint64
	for addrStr, v := range g.Alloc {
		if _, err := types.ParseAddress(addrStr); err != nil {
			return fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		if totalAlloc > math.MaxUint64-v {
			return fmt.Errorf("genesis allocations overflow")
		}
		totalAlloc += v
	}

	return nil
}

// TotalAlloc returns the sum of all allocations.
func (g *Genesis) TotalAlloc() uint64 {
	var total uint64
	for _, v := range g.Alloc {
		total += v
	}
	return total
}

// Hash returns a BLAKE3 hash of the genesis configuration.
// Used to identify the chain and detect genesis mismatches.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}
