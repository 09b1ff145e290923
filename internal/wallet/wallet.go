package wallet

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Wallet is an unlocked signing key for one ledger address.
type Wallet struct {
	name    string
	account uint32
	key     *crypto.PrivateKey
}

// FromSeed derives the wallet key at m/44'/8888'/account'/0/0.
func FromSeed(name string, seed []byte, account uint32) (*Wallet, error) {
	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	child, err := master.DeriveAddress(account, 0)
	if err != nil {
		return nil, err
	}
	key, err := child.Signer()
	if err != nil {
		return nil, err
	}
	return &Wallet{name: name, account: account, key: key}, nil
}

// FromMnemonic derives the wallet key for account from a BIP-39 phrase.
func FromMnemonic(name, mnemonic, passphrase string, account uint32) (*Wallet, error) {
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	defer zero(seed)
	return FromSeed(name, seed, account)
}

// FromKey wraps an existing private key. Such a wallet has no keystore
// entry.
func FromKey(key *crypto.PrivateKey) *Wallet {
	return &Wallet{key: key}
}

// Generate creates a fresh mnemonic, stores its seed in ks under name and
// returns the unlocked wallet for account 0 together with the mnemonic.
func Generate(ks *Keystore, name string, password []byte, params EncryptionParams) (*Wallet, string, error) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		return nil, "", err
	}
	w, err := Import(ks, name, mnemonic, password, params)
	if err != nil {
		return nil, "", err
	}
	return w, mnemonic, nil
}

// Import stores the seed of an existing mnemonic in ks under name.
func Import(ks *Keystore, name, mnemonic string, password []byte, params EncryptionParams) (*Wallet, error) {
	seed, err := SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return nil, err
	}
	defer zero(seed)

	if err := ks.Create(name, seed, password, params); err != nil {
		return nil, err
	}
	w, err := FromSeed(name, seed, 0)
	if err != nil {
		return nil, err
	}
	if err := ks.AddAccount(name, w.entry()); err != nil {
		return nil, err
	}
	return w, nil
}

// Open unlocks the named wallet and derives the key for account.
func Open(ks *Keystore, name string, password []byte, account uint32) (*Wallet, error) {
	seed, err := ks.Load(name, password)
	if err != nil {
		return nil, err
	}
	defer zero(seed)

	w, err := FromSeed(name, seed, account)
	if err != nil {
		return nil, err
	}
	if err := ks.AddAccount(name, w.entry()); err != nil {
		return nil, fmt.Errorf("record account: %w", err)
	}
	return w, nil
}

func (w *Wallet) entry() AccountEntry {
	return AccountEntry{Account: w.account, Index: 0, Address: string(w.Address())}
}

// Name returns the keystore name, empty for key-only wallets.
func (w *Wallet) Name() string { return w.name }

// Account returns the BIP-44 account index.
func (w *Wallet) Account() uint32 { return w.account }

// Address returns the wallet's ledger address.
func (w *Wallet) Address() types.Address {
	return w.key.Address()
}

// PrivateKeyHex returns the raw private key, hex encoded.
func (w *Wallet) PrivateKeyHex() string {
	return fmt.Sprintf("%x", w.key.Serialize())
}

// Sign signs t with the wallet key and returns the hex signature.
func (w *Wallet) Sign(t *tx.Transaction) (string, error) {
	return tx.Sign(t, w.key)
}

// Close wipes the key from memory.
func (w *Wallet) Close() {
	w.key.Zero()
}
