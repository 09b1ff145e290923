// Package storage provides the key-value abstraction behind the UTXO index.
package storage

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch collects writes and applies them together on Commit.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by databases that can commit a Batch atomically.
type Batcher interface {
	NewBatch() Batch
}

// NewBatch returns an atomic batch when db supports one, and otherwise a
// batch that replays its writes one by one on Commit.
func NewBatch(db DB) Batch {
	if b, ok := db.(Batcher); ok {
		return b.NewBatch()
	}
	return &replayBatch{db: db}
}

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

// replayBatch buffers writes and applies them non-atomically.
type replayBatch struct {
	db  DB
	ops []batchOp
}

func (rb *replayBatch) Put(key, value []byte) error {
	rb.ops = append(rb.ops, batchOp{key: clone(key), value: clone(value)})
	return nil
}

func (rb *replayBatch) Delete(key []byte) error {
	rb.ops = append(rb.ops, batchOp{key: clone(key), delete: true})
	return nil
}

func (rb *replayBatch) Commit() error {
	for _, op := range rb.ops {
		var err error
		if op.delete {
			err = rb.db.Delete(op.key)
		} else {
			err = rb.db.Put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	rb.ops = nil
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
