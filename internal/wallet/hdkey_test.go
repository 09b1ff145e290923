package wallet

import (
	"bytes"
	"testing"

	"github.com/tyler-smith/go-bip32"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// testSeed returns the seed of the BIP-39 "abandon ... about" vector with
// passphrase "TREZOR".
func testSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := SeedFromMnemonic(vectorMnemonic, "TREZOR")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	return seed
}

func testMaster(t *testing.T) *HDKey {
	t.Helper()
	master, err := NewMasterKey(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterKey() error: %v", err)
	}
	return master
}

func TestNewMasterKey(t *testing.T) {
	master := testMaster(t)
	if n := len(master.PrivateKeyBytes()); n != 32 {
		t.Errorf("private key length = %d, want 32", n)
	}
	if n := len(master.PublicKeyBytes()); n != types.PubKeySize {
		t.Errorf("public key length = %d, want %d", n, types.PubKeySize)
	}
	if !bytes.Equal(master.PrivateKeyBytes(), testMaster(t).PrivateKeyBytes()) {
		t.Error("same seed should produce same master key")
	}
}

func TestNewMasterKey_InvalidSeedLength(t *testing.T) {
	for _, n := range []int{0, 32, 128} {
		if _, err := NewMasterKey(make([]byte, n)); err == nil {
			t.Errorf("NewMasterKey(%d bytes) should fail", n)
		}
	}
}

func TestDerivePath(t *testing.T) {
	master := testMaster(t)
	c1, err := master.DeriveChild(PurposeBIP44)
	if err != nil {
		t.Fatalf("DeriveChild() error: %v", err)
	}
	c2, err := c1.DeriveChild(CoinType)
	if err != nil {
		t.Fatalf("DeriveChild() error: %v", err)
	}
	combined, err := master.DerivePath(PurposeBIP44, CoinType)
	if err != nil {
		t.Fatalf("DerivePath() error: %v", err)
	}
	if !bytes.Equal(c2.PrivateKeyBytes(), combined.PrivateKeyBytes()) {
		t.Error("DerivePath should equal sequential DeriveChild")
	}
}

func TestDeriveAddress(t *testing.T) {
	master := testMaster(t)
	key, err := master.DeriveAddress(0, 0)
	if err != nil {
		t.Fatalf("DeriveAddress() error: %v", err)
	}
	// m / purpose' / coin' / account' / change / index
	want, err := master.DerivePath(PurposeBIP44, CoinType, bip32.FirstHardenedChild, ChangeExternal, 0)
	if err != nil {
		t.Fatalf("DerivePath() error: %v", err)
	}
	if key.Address() != want.Address() {
		t.Errorf("DeriveAddress(0, 0) = %s, want %s", key.Address(), want.Address())
	}

	other, err := master.DeriveAddress(1, 0)
	if err != nil {
		t.Fatalf("DeriveAddress() error: %v", err)
	}
	next, err := master.DeriveAddress(0, 1)
	if err != nil {
		t.Fatalf("DeriveAddress() error: %v", err)
	}
	if key.Address() == other.Address() || key.Address() == next.Address() {
		t.Error("distinct paths should produce distinct addresses")
	}
	if err := key.Address().Validate(); err != nil {
		t.Errorf("derived address invalid: %v", err)
	}
}

func TestDeriveAddress_TestnetIdentity(t *testing.T) {
	seed, err := SeedFromMnemonic(config.TestnetMnemonic, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	master, err := NewMasterKey(seed)
	if err != nil {
		t.Fatalf("NewMasterKey() error: %v", err)
	}
	key, err := master.DeriveAddress(0, 0)
	if err != nil {
		t.Fatalf("DeriveAddress() error: %v", err)
	}
	if got := key.Address(); got != types.Address(config.TestnetAddress) {
		t.Errorf("address = %s, want %s", got, config.TestnetAddress)
	}
	signer, err := key.Signer()
	if err != nil {
		t.Fatalf("Signer() error: %v", err)
	}
	if got := hexKey(signer); got != config.TestnetPrivKey {
		t.Errorf("private key = %s, want %s", got, config.TestnetPrivKey)
	}
}

func hexKey(k *crypto.PrivateKey) string {
	return FromKey(k).PrivateKeyHex()
}

func TestSigner(t *testing.T) {
	key, err := testMaster(t).DeriveAddress(0, 0)
	if err != nil {
		t.Fatalf("DeriveAddress() error: %v", err)
	}
	signer, err := key.Signer()
	if err != nil {
		t.Fatalf("Signer() error: %v", err)
	}
	if signer.Address() != key.Address() {
		t.Error("signer address should match HD key address")
	}

	hash := crypto.Hash([]byte("test message"))
	sig, err := signer.Sign(hash[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if !crypto.VerifySignature(hash[:], sig, signer.PublicKey()) {
		t.Error("signature from HD-derived key should verify")
	}
}
