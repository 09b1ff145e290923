package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

func TestMine_DifficultyFour(t *testing.T) {
	alice, bob := testAddress(t), testAddress(t)
	l := testLedger(t, 4, map[types.Address]uint64{alice: 20})
	txn := transfer(t, tx.NewSequence("t"), alice, bob, 15, utxosOf(t, l, alice)...)
	if err := l.AddTransaction(txn); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	blk, err := l.Mine(context.Background())
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if !strings.HasPrefix(blk.Hash.String(), "0000") {
		t.Errorf("hash %s does not start with 0000", blk.Hash)
	}
	if blk.Hash != blk.ComputeHash() {
		t.Error("stored hash differs from recomputation")
	}
	if blk.Index != 1 || blk.PreviousHash != block.Genesis().Hash {
		t.Errorf("index %d prev %s", blk.Index, blk.PreviousHash)
	}
	if len(blk.Transactions) != 1 || !blk.Transactions[0].Equal(txn) {
		t.Error("candidate does not hold the pooled transaction")
	}
}

func TestMine_DoesNotMutate(t *testing.T) {
	alice, bob := testAddress(t), testAddress(t)
	l := testLedger(t, 1, map[types.Address]uint64{alice: 20})
	if err := l.AddTransaction(transfer(t, tx.NewSequence("t"), alice, bob, 20, utxosOf(t, l, alice)...)); err != nil {
		t.Fatal(err)
	}
	before, _ := l.UTXOCommitment()

	if _, err := l.Mine(context.Background()); err != nil {
		t.Fatalf("Mine: %v", err)
	}
	after, _ := l.UTXOCommitment()
	if l.Height() != 0 || l.PendingCount() != 1 || before != after {
		t.Error("Mine changed ledger state")
	}
}

func TestMine_PoolOrderAndTimestamp(t *testing.T) {
	alice, bob, carol := testAddress(t), testAddress(t), testAddress(t)
	l := testLedger(t, 1, map[types.Address]uint64{alice: 20, bob: 10})
	now := time.Unix(1_700_000_000, 0)
	l.SetClock(func() time.Time { return now })

	first := transfer(t, tx.NewSequence("z"), bob, carol, 10, utxosOf(t, l, bob)...)
	second := transfer(t, tx.NewSequence("a"), alice, carol, 20, utxosOf(t, l, alice)...)
	for _, txn := range []*tx.Transaction{first, second} {
		if err := l.AddTransaction(txn); err != nil {
			t.Fatal(err)
		}
	}

	blk, _ := l.Candidate()
	if blk.Timestamp != now.Unix() {
		t.Errorf("timestamp = %d, want %d", blk.Timestamp, now.Unix())
	}
	if len(blk.Transactions) != 2 || blk.Transactions[0].ID != first.ID || blk.Transactions[1].ID != second.ID {
		t.Error("candidate does not keep arrival order")
	}
}

func TestMine_EmptyPool(t *testing.T) {
	l := testLedger(t, 1, nil)
	blk := mineAndAdd(t, l)
	if len(blk.Transactions) != 0 || l.Height() != 1 {
		t.Errorf("empty block: txs=%d height=%d", len(blk.Transactions), l.Height())
	}
}

func TestMine_Cancelled(t *testing.T) {
	l := testLedger(t, 64, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	blk, err := l.Mine(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Mine = %v, want DeadlineExceeded", err)
	}
	if blk != nil {
		t.Error("cancelled Mine returned a block")
	}
}
