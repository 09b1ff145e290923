package utxo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// prefixAddr namespaces the index: a/<address>/<output id> -> output JSON.
var prefixAddr = []byte("a/")

// Store implements Set backed by a storage.DB.
type Store struct {
	db storage.DB
}

// NewStore creates a new UTXO store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

func ownerPrefix(owner types.Address) []byte {
	key := make([]byte, 0, len(prefixAddr)+len(owner)+1)
	key = append(key, prefixAddr...)
	key = append(key, owner...)
	return append(key, '/')
}

func outputKey(owner types.Address, id string) []byte {
	return append(ownerPrefix(owner), id...)
}

// Get retrieves the output id held by owner.
func (s *Store) Get(owner types.Address, id string) (tx.Output, error) {
	data, err := s.db.Get(outputKey(owner, id))
	if errors.Is(err, storage.ErrNotFound) {
		return tx.Output{}, fmt.Errorf("%w: %s/%s", ErrNotFound, owner.Short(), id)
	}
	if err != nil {
		return tx.Output{}, fmt.Errorf("utxo get: %w", err)
	}
	var out tx.Output
	if err := json.Unmarshal(data, &out); err != nil {
		return tx.Output{}, fmt.Errorf("utxo unmarshal: %w", err)
	}
	return out, nil
}

// GetUTXO implements tx.UTXOProvider. Storage errors read as absent.
func (s *Store) GetUTXO(owner types.Address, id string) (tx.Output, bool) {
	out, err := s.Get(owner, id)
	if err != nil {
		return tx.Output{}, false
	}
	return out, true
}

// Has checks if owner holds output id.
func (s *Store) Has(owner types.Address, id string) (bool, error) {
	return s.db.Has(outputKey(owner, id))
}

// Put stores an output under its recipient.
func (s *Store) Put(out tx.Output) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("utxo marshal: %w", err)
	}
	if err := s.db.Put(outputKey(out.Recipient, out.ID), data); err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}
	return nil
}

// Delete removes output id from owner. Returns ErrNotFound if absent.
func (s *Store) Delete(owner types.Address, id string) error {
	key := outputKey(owner, id)
	ok, err := s.db.Has(key)
	if err != nil {
		return fmt.Errorf("utxo has: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, owner.Short(), id)
	}
	if err := s.db.Delete(key); err != nil {
		return fmt.Errorf("utxo delete: %w", err)
	}
	return nil
}

// Apply removes every spent output and stores every created one in a
// single batch. All spent outputs must exist and no created output may
// already be stored, or be created twice.
func (s *Store) Apply(spent []Ref, created []tx.Output) error {
	batch := storage.NewBatch(s.db)
	for _, r := range spent {
		ok, err := s.db.Has(outputKey(r.Owner, r.ID))
		if err != nil {
			return fmt.Errorf("utxo has: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, r.Owner.Short(), r.ID)
		}
		if err := batch.Delete(outputKey(r.Owner, r.ID)); err != nil {
			return fmt.Errorf("utxo batch delete: %w", err)
		}
	}
	fresh := make(map[string]bool, len(created))
	for _, out := range created {
		key := outputKey(out.Recipient, out.ID)
		ok, err := s.db.Has(key)
		if err != nil {
			return fmt.Errorf("utxo has: %w", err)
		}
		if ok || fresh[string(key)] {
			return fmt.Errorf("%w: %s/%s", ErrExists, out.Recipient.Short(), out.ID)
		}
		fresh[string(key)] = true

		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("utxo marshal: %w", err)
		}
		if err := batch.Put(key, data); err != nil {
			return fmt.Errorf("utxo batch put: %w", err)
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("utxo apply: %w", err)
	}
	return nil
}

// GetByAddress returns all outputs held by owner, ordered by output id.
func (s *Store) GetByAddress(owner types.Address) ([]tx.Output, error) {
	var outs []tx.Output
	err := s.db.ForEach(ownerPrefix(owner), func(_, value []byte) error {
		var out tx.Output
		if err := json.Unmarshal(value, &out); err != nil {
			return fmt.Errorf("utxo unmarshal: %w", err)
		}
		outs = append(outs, out)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan address index: %w", err)
	}
	return outs, nil
}

// Balance returns the total amount held by owner.
func (s *Store) Balance(owner types.Address) (uint64, error) {
	outs, err := s.GetByAddress(owner)
	if err != nil {
		return 0, err
	}
	return Sum(outs)
}

// Sum totals the amounts of outs. Returns an error on overflow.
func Sum(outs []tx.Output) (uint64, error) {
	var total uint64
	for _, out := range outs {
		if total > math.MaxUint64-out.Amount {
			return 0, fmt.Errorf("balance overflow")
		}
		total += out.Amount
	}
	return total, nil
}

// ForEach iterates over every output in the store.
func (s *Store) ForEach(fn func(tx.Output) error) error {
	return s.db.ForEach(prefixAddr, func(_, value []byte) error {
		var out tx.Output
		if err := json.Unmarshal(value, &out); err != nil {
			return fmt.Errorf("utxo unmarshal: %w", err)
		}
		return fn(out)
	})
}

// ClearAll removes every output. Used when the index is rebuilt from a
// restored chain.
func (s *Store) ClearAll() error {
	var keys [][]byte
	if err := s.db.ForEach(prefixAddr, func(key, _ []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return nil
	}); err != nil {
		return fmt.Errorf("scan utxo index: %w", err)
	}
	batch := storage.NewBatch(s.db)
	for _, key := range keys {
		if err := batch.Delete(key); err != nil {
			return fmt.Errorf("delete utxo key: %w", err)
		}
	}
	return batch.Commit()
}
