package tx

import (
	"encoding/hex"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// SignatureHexLen is the length of a hex-encoded transaction signature.
const SignatureHexLen = 2 * crypto.SignatureSize

// Sign signs the transaction digest and returns the hex-encoded signature.
func Sign(t *Transaction, signer crypto.Signer) (string, error) {
	digest := t.Digest()
	sig, err := signer.Sign(digest[:])
	if err != nil {
		return "", fmt.Errorf("sign tx %s: %w", t.ID, err)
	}
	return hex.EncodeToString(sig), nil
}

// Verify checks a hex-encoded signature over the transaction digest
// against the public key carried by address. Every failure wraps
// ErrVerification.
func Verify(t *Transaction, signature string, address types.Address) error {
	if t == nil {
		return fmt.Errorf("%w: nil transaction", ErrVerification)
	}
	if len(signature) != SignatureHexLen {
		return fmt.Errorf("%w: signature must be %d hex chars, got %d", ErrVerification, SignatureHexLen, len(signature))
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: malformed signature: %v", ErrVerification, err)
	}
	pubKey, err := address.PubKey()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	digest := t.Digest()
	if !crypto.VerifySignature(digest[:], sig, pubKey) {
		return fmt.Errorf("%w: signature does not match %s", ErrVerification, address.Short())
	}
	return nil
}

// VerifySender checks the signature against the transaction's own sender.
func VerifySender(t *Transaction, signature string) error {
	if t == nil {
		return fmt.Errorf("%w: nil transaction", ErrVerification)
	}
	return Verify(t, signature, t.Sender)
}
