package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// loadGenesis returns the genesis file named by the config, or the
// built-in genesis of the configured network.
func loadGenesis(cfg *config.Config) (*config.Genesis, error) {
	if cfg.Genesis == "" {
		return config.GenesisFor(cfg.Network), nil
	}
	g, err := config.LoadGenesis(expandHome(cfg.Genesis))
	if err != nil {
		return nil, fmt.Errorf("load genesis %s: %w", cfg.Genesis, err)
	}
	return g, nil
}

// openStorage opens the UTXO index backend. Both backends are volatile;
// the index is rebuilt from genesis on every start.
func openStorage(backend string) (storage.DB, error) {
	switch backend {
	case "", config.BackendMemory:
		return storage.NewMemory(), nil
	case config.BackendBadger:
		db, err := storage.NewBadgerInMemory()
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
