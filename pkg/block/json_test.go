package block

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

func TestBlock_JSON_RoundTrip(t *testing.T) {
	for name, b := range map[string]*Block{"genesis": Genesis(), "with txs": testBlock(t)} {
		t.Run(name, func(t *testing.T) {
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !got.Equal(b) {
				t.Errorf("roundtrip mismatch:\n got %+v\nwant %+v", got, b)
			}
			if got.ComputeHash() != b.Hash {
				t.Error("decoded block no longer hashes to its stored hash")
			}
		})
	}
}

func TestBlock_JSON_FieldNames(t *testing.T) {
	data, err := json.Marshal(Genesis())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, key := range []string{`"index":0`, `"previous_hash"`, `"transactions":[]`, `"timestamp":0`, `"nonce":0`, `"hash"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("document %s lacks %s", data, key)
		}
	}
}

func TestBlock_JSON_MissingFields(t *testing.T) {
	full := map[string]any{}
	data, _ := json.Marshal(Genesis())
	if err := json.Unmarshal(data, &full); err != nil {
		t.Fatalf("Unmarshal map: %v", err)
	}

	for _, field := range []string{"index", "previous_hash", "transactions", "timestamp", "nonce", "hash"} {
		t.Run(field, func(t *testing.T) {
			doc := make(map[string]any, len(full))
			for k, v := range full {
				if k != field {
					doc[k] = v
				}
			}
			raw, _ := json.Marshal(doc)
			_, err := Decode(raw)
			if !errors.Is(err, ErrSerialization) {
				t.Errorf("Decode = %v, want ErrSerialization", err)
			}
			if !errors.Is(err, tx.ErrSerialization) {
				t.Errorf("Decode = %v, should also match tx.ErrSerialization", err)
			}
		})
	}
}

func TestBlock_JSON_NotJSON(t *testing.T) {
	for _, doc := range []string{`block`, `{"index":1`, ``} {
		_, err := Decode([]byte(doc))
		if !errors.Is(err, ErrSerialization) || !errors.Is(err, tx.ErrSerialization) {
			t.Errorf("Decode(%q) = %v, want ErrSerialization", doc, err)
		}
	}
}

func TestBlock_JSON_BadTransaction(t *testing.T) {
	doc := `{"index":1,"previous_hash":"","transactions":[{"transaction_id":"x"}],"timestamp":1,"nonce":0,"hash":""}`
	_, err := Decode([]byte(doc))
	if !errors.Is(err, ErrSerialization) || !errors.Is(err, tx.ErrSerialization) {
		t.Errorf("Decode = %v, want ErrSerialization", err)
	}
}
