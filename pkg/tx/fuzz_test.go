package tx

import (
	"encoding/json"
	"testing"
)

// FuzzTxUnmarshal tests that arbitrary JSON input does not panic
// when decoded into a Transaction.
func FuzzTxUnmarshal(f *testing.F) {
	f.Add([]byte(`{"transaction_id":"t","sender_address":"s","recipient_address":"r","amount":1,"transaction_inputs":[{"previous_output_id":"p","amount":1}],"transaction_outputs":[{"id":"o","transaction_id":"t","recipient_address":"r","amount":1}]}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"transaction_inputs":null,"transaction_outputs":null}`))
	f.Add([]byte(`{"transaction_inputs":[null],"transaction_outputs":[{}]}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var txn Transaction
		if err := json.Unmarshal(data, &txn); err != nil {
			return
		}
		// If decoding succeeded, these must not panic.
		txn.Digest()
		txn.Validate()
		Verify(&txn, "", txn.Sender)
		if _, err := json.Marshal(txn); err != nil {
			t.Fatalf("re-encode: %v", err)
		}
	})
}
