package utxo

import (
	"testing"

	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

func TestCommitment_Empty(t *testing.T) {
	c, err := Commitment(testStore(t))
	if err != nil {
		t.Fatalf("Commitment() error: %v", err)
	}
	if c != (types.Hash{}) {
		t.Errorf("empty commitment = %s, want zero", c)
	}
}

func TestCommitment_OrderIndependent(t *testing.T) {
	alice, bob := testAddress(t), testAddress(t)
	s1, s2 := testStore(t), testStore(t)

	s1.Put(makeOutput("a", alice, 1))
	s1.Put(makeOutput("b", bob, 2))
	s2.Put(makeOutput("b", bob, 2))
	s2.Put(makeOutput("a", alice, 1))

	c1, _ := Commitment(s1)
	c2, _ := Commitment(s2)
	if c1 != c2 {
		t.Errorf("insertion order changed commitment: %s != %s", c1, c2)
	}
	if c1.IsZero() {
		t.Error("non-empty commitment should not be zero")
	}
}

func TestCommitment_ChangesOnModification(t *testing.T) {
	alice := testAddress(t)
	s := testStore(t)
	s.Put(makeOutput("a", alice, 1))
	before, _ := Commitment(s)

	s.Put(makeOutput("a", alice, 2))
	changed, _ := Commitment(s)
	if changed == before {
		t.Error("commitment unchanged after amount change")
	}

	s.Delete(alice, "a")
	deleted, _ := Commitment(s)
	if deleted == changed {
		t.Error("commitment unchanged after delete")
	}
}
