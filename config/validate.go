package config

import (
	"fmt"
	"strings"
)

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.P2P.Port < 0 || cfg.P2P.Port > 65535 {
		return fmt.Errorf("p2p.port must be in range [0, 65535]")
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	if cfg.Mining.Threads < 0 {
		return fmt.Errorf("mining.threads must not be negative")
	}
	if cfg.Mempool.MaxSize < 0 {
		return fmt.Errorf("mempool.maxsize must not be negative")
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendMemory
	}
	switch cfg.Storage.Backend {
	case BackendMemory, BackendBadger:
	default:
		return fmt.Errorf("storage.backend must be %q or %q", BackendMemory, BackendBadger)
	}

	if cfg.Wallet.Enabled && strings.TrimSpace(cfg.Wallet.Name) == "" {
		return fmt.Errorf("wallet.enabled requires wallet.name")
	}

	for i, seed := range cfg.P2P.Seeds {
		if !strings.HasPrefix(seed, "/") {
			return fmt.Errorf("p2p.seeds[%d] must be a multiaddr, got %q", i, seed)
		}
	}

	return nil
}
