package tx

import (
	"errors"
	"strings"
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
)

func signedTx(t *testing.T) (*Transaction, *crypto.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	txn := testTx(t, key.Address(), testAddress(t))
	sig, err := Sign(txn, key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return txn, key, sig
}

func TestSign_Verify(t *testing.T) {
	txn, key, sig := signedTx(t)

	if len(sig) != SignatureHexLen {
		t.Errorf("signature length = %d, want %d", len(sig), SignatureHexLen)
	}
	if err := Verify(txn, sig, key.Address()); err != nil {
		t.Errorf("Verify: %v", err)
	}
	if err := VerifySender(txn, sig); err != nil {
		t.Errorf("VerifySender: %v", err)
	}
}

func TestVerify_MutatedTransaction(t *testing.T) {
	txn, key, sig := signedTx(t)

	mutations := map[string]func(*Transaction){
		"amount":        func(x *Transaction) { x.Amount = 16 },
		"recipient":     func(x *Transaction) { x.Recipient = x.Sender },
		"input":         func(x *Transaction) { x.Inputs[0].PreviousOutputID = "other" },
		"output amount": func(x *Transaction) { x.Outputs[0].Amount = 14 },
		"id":            func(x *Transaction) { x.ID = "forged" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			c := txn.Clone()
			mutate(c)
			if err := Verify(c, sig, key.Address()); !errors.Is(err, ErrVerification) {
				t.Errorf("Verify = %v, want ErrVerification", err)
			}
		})
	}
}

func TestVerify_FlippedSignatureByte(t *testing.T) {
	txn, key, sig := signedTx(t)

	raw := []byte(sig)
	for i := 0; i < len(raw); i += 2 {
		flipped := append([]byte(nil), raw...)
		if flipped[i] == '0' {
			flipped[i] = '1'
		} else {
			flipped[i] = '0'
		}
		if err := Verify(txn, string(flipped), key.Address()); !errors.Is(err, ErrVerification) {
			t.Fatalf("byte %d flipped: Verify = %v, want ErrVerification", i/2, err)
		}
	}
}

func TestVerify_WrongAddress(t *testing.T) {
	txn, _, sig := signedTx(t)
	if err := Verify(txn, sig, testAddress(t)); !errors.Is(err, ErrVerification) {
		t.Errorf("Verify = %v, want ErrVerification", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	txn, key, sig := signedTx(t)

	tests := []struct {
		name string
		sig  string
		addr string
	}{
		{"empty signature", "", key.Address().String()},
		{"short signature", sig[:64], key.Address().String()},
		{"non-hex signature", strings.Repeat("zz", 64), key.Address().String()},
		{"bad address", sig, "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Verify(txn, tt.sig, addrOf(tt.addr)); !errors.Is(err, ErrVerification) {
				t.Errorf("Verify = %v, want ErrVerification", err)
			}
		})
	}

	if err := Verify(nil, sig, key.Address()); !errors.Is(err, ErrVerification) {
		t.Errorf("Verify(nil) = %v, want ErrVerification", err)
	}
}
