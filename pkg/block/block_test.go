package block

import (
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

func testAddress(t *testing.T) types.Address {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key.Address()
}

// testTransfer builds a balanced transfer spending the given output id.
func testTransfer(t *testing.T, ids tx.IDGenerator, spend string, amount uint64) *tx.Transaction {
	t.Helper()
	sender, recipient := testAddress(t), testAddress(t)
	txn, err := tx.NewBuilder(ids, sender, recipient, amount).
		Spend(tx.Output{ID: spend, Recipient: sender, Amount: amount}).
		Pay(recipient, amount).
		Build()
	if err != nil {
		t.Fatalf("build transfer: %v", err)
	}
	return txn
}

func testBlock(t *testing.T) *Block {
	t.Helper()
	ids := tx.NewSequence("blk")
	b := New(1, Genesis().Hash, []*tx.Transaction{
		testTransfer(t, ids, "a", 10),
		testTransfer(t, ids, "b", 20),
	}, 1700000000)
	b.Nonce = 7
	b.Hash = b.ComputeHash()
	return b
}

func TestGenesis_Deterministic(t *testing.T) {
	g1, g2 := Genesis(), Genesis()
	if g1.Index != 0 {
		t.Errorf("genesis index = %d, want 0", g1.Index)
	}
	if g1.PreviousHash != GenesisPrevHash {
		t.Errorf("genesis previous_hash = %s, want sentinel", g1.PreviousHash)
	}
	if len(g1.Transactions) != 0 {
		t.Errorf("genesis has %d transactions", len(g1.Transactions))
	}
	if g1.Hash != g2.Hash || g1.Hash.IsZero() {
		t.Errorf("genesis hash not deterministic: %s vs %s", g1.Hash, g2.Hash)
	}
	if g1.Hash != g1.ComputeHash() {
		t.Error("genesis hash does not match recomputation")
	}
}

func TestComputeHash_ExcludesStoredHash(t *testing.T) {
	b := testBlock(t)
	want := b.ComputeHash()
	b.Hash = types.Hash{0xff}
	if got := b.ComputeHash(); got != want {
		t.Errorf("ComputeHash depends on stored hash: %s != %s", got, want)
	}
}

func TestComputeHash_IdenticalFields(t *testing.T) {
	b := testBlock(t)
	c := b.Clone()
	if b.ComputeHash() != c.ComputeHash() {
		t.Error("identical blocks computed different hashes")
	}
}

func TestComputeHash_ChangesOnMutation(t *testing.T) {
	base := testBlock(t)
	want := base.ComputeHash()

	mutations := map[string]func(*Block){
		"index":      func(b *Block) { b.Index++ },
		"prev hash":  func(b *Block) { b.PreviousHash[0] ^= 1 },
		"timestamp":  func(b *Block) { b.Timestamp++ },
		"nonce":      func(b *Block) { b.Nonce++ },
		"tx dropped": func(b *Block) { b.Transactions = b.Transactions[:1] },
		"tx order": func(b *Block) {
			b.Transactions[0], b.Transactions[1] = b.Transactions[1], b.Transactions[0]
		},
		"tx field": func(b *Block) { b.Transactions[0].Amount++ },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			c := base.Clone()
			mutate(c)
			if c.ComputeHash() == want {
				t.Error("hash unchanged after mutation")
			}
		})
	}
}

func TestHashWithNonce_MatchesComputeHash(t *testing.T) {
	b := testBlock(t)
	prefix := b.SigningPrefix()
	for _, nonce := range []uint64{0, 1, 65536, 1 << 40} {
		b.Nonce = nonce
		if got, want := HashWithNonce(prefix, nonce), b.ComputeHash(); got != want {
			t.Errorf("nonce %d: HashWithNonce = %s, want %s", nonce, got, want)
		}
	}
}

func TestEqualAndClone(t *testing.T) {
	b := testBlock(t)
	c := b.Clone()
	if !b.Equal(c) {
		t.Fatal("clone should equal original")
	}
	c.Transactions[0].Amount = 999
	if b.Transactions[0].Amount == 999 {
		t.Error("Clone shares transactions")
	}
	if b.Equal(c) {
		t.Error("modified clone should not equal original")
	}
	if b.Equal(nil) {
		t.Error("block should not equal nil")
	}
}
