package block

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

func TestBlock_Validate_Valid(t *testing.T) {
	if err := testBlock(t).Validate(); err != nil {
		t.Errorf("valid block should pass: %v", err)
	}
	if err := Genesis().Validate(); err != nil {
		t.Errorf("genesis should pass: %v", err)
	}
}

func TestBlock_Validate_MalformedTx(t *testing.T) {
	b := testBlock(t)
	b.Transactions[1].Outputs[0].Amount++
	if err := b.Validate(); !errors.Is(err, tx.ErrMalformedTransaction) {
		t.Errorf("Validate = %v, want ErrMalformedTransaction", err)
	}
}

func TestBlock_Validate_DuplicateInput(t *testing.T) {
	ids := tx.NewSequence("dup")
	b := New(1, Genesis().Hash, []*tx.Transaction{
		testTransfer(t, ids, "same", 10),
		testTransfer(t, ids, "same", 10),
	}, 1)
	if err := b.Validate(); !errors.Is(err, ErrDuplicateBlockInput) {
		t.Errorf("Validate = %v, want ErrDuplicateBlockInput", err)
	}
}

func TestBlock_Validate_DuplicateTx(t *testing.T) {
	ids := tx.NewSequence("dup")
	txn := testTransfer(t, ids, "a", 10)
	b := New(1, Genesis().Hash, []*tx.Transaction{txn, txn}, 1)
	err := b.Validate()
	if !errors.Is(err, ErrDuplicateTx) {
		t.Errorf("Validate = %v, want ErrDuplicateTx", err)
	}
}

func TestBlock_Validate_NilTx(t *testing.T) {
	b := New(1, Genesis().Hash, []*tx.Transaction{nil}, 1)
	if err := b.Validate(); !errors.Is(err, ErrNilTransaction) {
		t.Errorf("Validate = %v, want ErrNilTransaction", err)
	}
}
