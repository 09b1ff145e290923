// Klingnet ledger node daemon.
//
// Usage:
//
//	ledgerd [--mine --threads=N] [--wallet --wallet-name=...]  Run node
//	ledgerd --help                                           Show help
//
// The wallet password is read from LEDGER_WALLET_PASSWORD when set,
// otherwise it is prompted for on the terminal.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/node"
)

const passwordEnv = "LEDGER_WALLET_PASSWORD"

func main() {
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	n, err := node.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Wallet.Enabled {
		password, err := walletPassword(cfg.Wallet.Name)
		if err == nil {
			err = n.UnlockWallet(password)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			n.Stop()
			os.Exit(1)
		}
	}

	if err := n.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		n.Stop()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	n.Stop()
}

func walletPassword(name string) ([]byte, error) {
	if pw, ok := os.LookupEnv(passwordEnv); ok {
		return []byte(pw), nil
	}
	fmt.Fprintf(os.Stderr, "Password for wallet %q: ", name)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return password, nil
}
