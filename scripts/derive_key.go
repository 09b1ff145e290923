// derive_key.go prints the private key, address and a genesis alloc entry
// for a BIP-39 mnemonic or a hex-encoded private key file.
//
// Usage:
//
//	go run scripts/derive_key.go --mnemonic "abandon ... art" [--account 0] [--amount 1000000]
//	go run scripts/derive_key.go <keyfile>
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/klingnet-ledger/internal/wallet"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
)

func main() {
	mnemonic := flag.String("mnemonic", "", "BIP-39 mnemonic")
	account := flag.Uint("account", 0, "BIP-44 account index")
	amount := flag.Uint64("amount", 1_000_000, "Genesis allocation")
	flag.Parse()

	var w *wallet.Wallet
	switch {
	case *mnemonic != "":
		var err error
		w, err = wallet.FromMnemonic("", *mnemonic, "", uint32(*account))
		if err != nil {
			fail(err)
		}
	case flag.NArg() == 1:
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fail(err)
		}
		key, err := crypto.PrivateKeyFromHex(strings.TrimSpace(string(data)))
		if err != nil {
			fail(err)
		}
		w = wallet.FromKey(key)
	default:
		fmt.Fprintln(os.Stderr, "usage: derive_key --mnemonic \"...\" | derive_key <keyfile>")
		os.Exit(1)
	}
	defer w.Close()

	alloc, err := json.Marshal(map[string]uint64{w.Address().String(): *amount})
	if err != nil {
		fail(err)
	}
	fmt.Printf("privkey=%s\n", w.PrivateKeyHex())
	fmt.Printf("address=%s\n", w.Address())
	fmt.Printf("alloc=%s\n", alloc)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
