package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// PubKeySize is the length of a compressed secp256k1 public key.
const PubKeySize = 33

// ErrInvalidAddress is returned when an address is not a hex-encoded
// compressed public key.
var ErrInvalidAddress = errors.New("invalid address")

// Address identifies an account. It is the hex-encoded compressed public
// key of the holder, so the key that authorizes spends can be recovered
// from the address alone.
type Address string

// AddressFromPubKey derives an address from a compressed public key.
func AddressFromPubKey(pubKey []byte) Address {
	return Address(hex.EncodeToString(pubKey))
}

// ParseAddress normalizes and validates a user-supplied address string.
func ParseAddress(s string) (Address, error) {
	a := Address(strings.ToLower(strings.TrimSpace(s)))
	if err := a.Validate(); err != nil {
		return "", err
	}
	return a, nil
}

// String returns the address as a plain string.
func (a Address) String() string {
	return string(a)
}

// IsZero returns true for the empty address.
func (a Address) IsZero() bool {
	return a == ""
}

// PubKey decodes the compressed public key carried by the address.
func (a Address) PubKey() ([]byte, error) {
	b, err := hex.DecodeString(string(a))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(b) != PubKeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidAddress, PubKeySize, len(b))
	}
	if b[0] != 0x02 && b[0] != 0x03 {
		return nil, fmt.Errorf("%w: bad pubkey prefix 0x%02x", ErrInvalidAddress, b[0])
	}
	return b, nil
}

// Validate checks that the address is well formed.
func (a Address) Validate() error {
	_, err := a.PubKey()
	return err
}

// Short returns an abbreviated form for log output.
func (a Address) Short() string {
	if len(a) <= 16 {
		return string(a)
	}
	return string(a[:16]) + "..."
}
