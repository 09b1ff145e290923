package tx

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator assigns identifiers to new transactions and outputs.
type IDGenerator interface {
	NewID() string
}

// IDFunc adapts a plain function to an IDGenerator.
type IDFunc func() string

// NewID calls f.
func (f IDFunc) NewID() string { return f() }

// UUIDGenerator issues random version 4 UUIDs.
type UUIDGenerator struct{}

// NewID returns a new random UUID string.
func (UUIDGenerator) NewID() string { return uuid.NewString() }

// Sequence issues Prefix-1, Prefix-2, ... in order. Safe for concurrent use.
type Sequence struct {
	Prefix string
	n      atomic.Uint64
}

// NewSequence creates a sequence with the given prefix.
func NewSequence(prefix string) *Sequence {
	return &Sequence{Prefix: prefix}
}

// NewID returns the next identifier in the sequence.
func (s *Sequence) NewID() string {
	return s.Prefix + "-" + strconv.FormatUint(s.n.Add(1), 10)
}
