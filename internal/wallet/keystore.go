package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

// Keystore errors.
var (
	ErrWalletExists   = errors.New("wallet already exists")
	ErrWalletNotFound = errors.New("wallet not found")
	ErrInvalidName    = errors.New("invalid wallet name")
)

const (
	keystoreVersion = 1
	walletExt       = ".wallet"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// keystoreFile is the on-disk JSON format for an encrypted wallet.
type keystoreFile struct {
	Version       int            `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	EncryptedSeed []byte         `json:"encrypted_seed"`
	Accounts      []AccountEntry `json:"accounts"`
}

// AccountEntry records an address derived from the wallet seed.
type AccountEntry struct {
	Account uint32 `json:"account"`
	Index   uint32 `json:"index"`
	Address string `json:"address"`
}

// Keystore manages encrypted wallet files in one directory.
type Keystore struct {
	path string
}

// NewKeystore opens a keystore rooted at path, creating the directory if
// needed.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path}, nil
}

// Path returns the keystore directory.
func (ks *Keystore) Path() string {
	return ks.path
}

func (ks *Keystore) walletPath(name string) (string, error) {
	if !nameRe.MatchString(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(ks.path, name+walletExt), nil
}

// Exists reports whether a wallet called name is present.
func (ks *Keystore) Exists(name string) bool {
	path, err := ks.walletPath(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Create writes a new wallet holding seed encrypted under password.
func (ks *Keystore) Create(name string, seed, password []byte, params EncryptionParams) error {
	path, err := ks.walletPath(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %q", ErrWalletExists, name)
	}

	encrypted, err := Encrypt(seed, password, params)
	if err != nil {
		return fmt.Errorf("encrypt seed: %w", err)
	}
	kf := keystoreFile{
		Version:       keystoreVersion,
		CreatedAt:     time.Now().UTC(),
		EncryptedSeed: encrypted,
		Accounts:      []AccountEntry{},
	}
	return writeFile(path, &kf, true)
}

// Load decrypts a wallet and returns its seed.
func (ks *Keystore) Load(name string, password []byte) ([]byte, error) {
	kf, _, err := ks.read(name)
	if err != nil {
		return nil, err
	}
	seed, err := Decrypt(kf.EncryptedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("unlock wallet %q: %w", name, err)
	}
	return seed, nil
}

// AddAccount records a derived address. Recording the same entry twice is
// a no-op.
func (ks *Keystore) AddAccount(name string, acct AccountEntry) error {
	kf, path, err := ks.read(name)
	if err != nil {
		return err
	}
	for _, existing := range kf.Accounts {
		if existing.Account == acct.Account && existing.Index == acct.Index {
			if existing.Address == acct.Address {
				return nil
			}
			return fmt.Errorf("account %d/%d already recorded with address %s", acct.Account, acct.Index, existing.Address)
		}
	}
	kf.Accounts = append(kf.Accounts, acct)
	return writeFile(path, kf, false)
}

// ListAccounts returns the recorded accounts of a wallet.
func (ks *Keystore) ListAccounts(name string) ([]AccountEntry, error) {
	kf, _, err := ks.read(name)
	if err != nil {
		return nil, err
	}
	return kf.Accounts, nil
}

// List returns the names of all wallets, sorted.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != walletExt {
			continue
		}
		names = append(names, e.Name()[:len(e.Name())-len(walletExt)])
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a wallet file.
func (ks *Keystore) Delete(name string) error {
	path, err := ks.walletPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %q", ErrWalletNotFound, name)
		}
		return fmt.Errorf("delete wallet: %w", err)
	}
	return nil
}

func (ks *Keystore) read(name string) (*keystoreFile, string, error) {
	path, err := ks.walletPath(name)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %q", ErrWalletNotFound, name)
		}
		return nil, "", fmt.Errorf("read wallet: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, "", fmt.Errorf("parse wallet: %w", err)
	}
	if kf.Version != keystoreVersion {
		return nil, "", fmt.Errorf("unsupported wallet version: %d", kf.Version)
	}
	return &kf, path, nil
}

// writeFile stores kf at path. New wallets are created exclusively;
// updates go through a temp file and rename.
func writeFile(path string, kf *keystoreFile, exclusive bool) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	if exclusive {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				return fmt.Errorf("%w: %s", ErrWalletExists, filepath.Base(path))
			}
			return fmt.Errorf("write wallet: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("write wallet: %w", err)
		}
		return f.Close()
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write wallet: %w", err)
	}
	return nil
}
