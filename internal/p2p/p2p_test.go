package p2p

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

func newTestNode(t *testing.T, cfg Config) *Node {
	t.Helper()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1"
	}
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

// startTestNode creates, starts, and returns a P2P node on a random port.
func startTestNode(t *testing.T) *Node {
	t.Helper()
	n := newTestNode(t, Config{})
	if err := n.Start(); err != nil {
		t.Fatalf("start node: %v", err)
	}
	t.Cleanup(func() { n.Stop() })
	return n
}

// connectNodes connects node B to node A via direct libp2p connect.
func connectNodes(t *testing.T, a, b *Node) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.host.Connect(ctx, peer.AddrInfo{ID: a.host.ID(), Addrs: a.host.Addrs()}); err != nil {
		t.Fatalf("connect nodes: %v", err)
	}
	// Give GossipSub time to establish mesh.
	time.Sleep(300 * time.Millisecond)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func signedTx(t *testing.T) (*tx.Transaction, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	to, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	txn, err := tx.NewBuilder(tx.NewSequence("g"), key.Address(), to.Address(), 5).
		Spend(tx.Output{ID: "funding", TransactionID: "genesis", Recipient: key.Address(), Amount: 5}).
		Pay(to.Address(), 5).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sig, err := tx.Sign(txn, key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return txn, sig
}

// --- Lifecycle ---

func TestNode_New(t *testing.T) {
	n := newTestNode(t, Config{})
	if n.host != nil || n.ID() != "" || n.Addrs() != nil {
		t.Error("node should have no host before Start")
	}
	if err := n.Stop(); err != nil {
		t.Errorf("Stop before Start: %v", err)
	}
}

func TestNode_New_BadSeed(t *testing.T) {
	if _, err := New(Config{Seeds: []string{"/ip4/127.0.0.1/tcp/1"}}); !errors.Is(err, ErrBadSeed) {
		t.Errorf("New = %v, want ErrBadSeed", err)
	}
}

func TestNode_StartStop(t *testing.T) {
	n := newTestNode(t, Config{DataDir: t.TempDir()})
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n.ID() == "" || len(n.Addrs()) == 0 {
		t.Error("started node should have an id and addresses")
	}
	for _, a := range n.Addrs() {
		if _, err := ParseSeed(a); err != nil {
			t.Errorf("own address %s is not a valid seed: %v", a, err)
		}
	}
	if err := n.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestNode_BroadcastNotStarted(t *testing.T) {
	n := newTestNode(t, Config{})
	txn, sig := signedTx(t)
	if err := n.BroadcastTx(txn, sig); !errors.Is(err, ErrNotStarted) {
		t.Errorf("BroadcastTx = %v, want ErrNotStarted", err)
	}
	if err := n.BroadcastBlock(block.Genesis()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("BroadcastBlock = %v, want ErrNotStarted", err)
	}
}

func TestIdentity_Persistent(t *testing.T) {
	dir := t.TempDir()
	k1, err := loadOrCreateIdentity(dir)
	if err != nil {
		t.Fatalf("loadOrCreateIdentity: %v", err)
	}
	k2, err := loadOrCreateIdentity(dir)
	if err != nil {
		t.Fatalf("loadOrCreateIdentity: %v", err)
	}
	if !k1.Equals(k2) {
		t.Error("identity should be reloaded, not regenerated")
	}
}

// --- Peers ---

func TestNode_AddRemovePeer(t *testing.T) {
	n := newTestNode(t, Config{MaxPeers: 2})

	if !n.addPeer("a", SourceGossip) || !n.addPeer("a", SourceGossip) {
		t.Fatal("addPeer should accept")
	}
	if n.PeerCount() != 1 {
		t.Errorf("PeerCount = %d, want 1", n.PeerCount())
	}
	n.addPeer("b", SourceInbound)
	if n.addPeer("c", SourceInbound) {
		t.Error("addPeer should refuse above MaxPeers")
	}
	if len(n.PeerList()) != 2 {
		t.Errorf("PeerList = %d entries, want 2", len(n.PeerList()))
	}
	n.removePeer("a")
	if n.PeerCount() != 1 {
		t.Errorf("PeerCount = %d, want 1", n.PeerCount())
	}
}

func TestConnNotifier_TracksConnections(t *testing.T) {
	a := startTestNode(t)
	b := startTestNode(t)
	connectNodes(t, a, b)

	waitFor(t, "both sides to record the peer", func() bool {
		return a.PeerCount() == 1 && b.PeerCount() == 1
	})
	if got := b.PeerList()[0]; got.ID != a.ID().String() {
		t.Errorf("b peer = %s, want %s", got.ID, a.ID())
	}

	if err := b.DisconnectPeer(a.ID()); err != nil {
		t.Fatalf("DisconnectPeer: %v", err)
	}
	waitFor(t, "a to forget b", func() bool { return a.PeerCount() == 0 })
}

func TestNode_SeedConnect(t *testing.T) {
	a := startTestNode(t)
	b := newTestNode(t, Config{Seeds: a.Addrs()})
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { b.Stop() })

	waitFor(t, "seed connection", func() bool { return b.PeerCount() == 1 })
	if src := b.PeerList()[0].Source; src != SourceSeed {
		t.Errorf("source = %q, want %q", src, SourceSeed)
	}
}

// --- Gossip ---

func TestTwoNodes_TxGossip(t *testing.T) {
	a := startTestNode(t)
	b := startTestNode(t)

	var received atomic.Pointer[TxMessage]
	b.SetTxHandler(func(_ peer.ID, txn *tx.Transaction, sig string) {
		received.Store(&TxMessage{Transaction: txn, Signature: sig})
	})
	connectNodes(t, a, b)

	txn, sig := signedTx(t)
	waitFor(t, "tx gossip", func() bool {
		if received.Load() == nil {
			a.BroadcastTx(txn, sig)
		}
		return received.Load() != nil
	})

	got := received.Load()
	if !got.Transaction.Equal(txn) || got.Signature != sig {
		t.Fatal("received tx differs from broadcast")
	}
	if err := tx.VerifySender(got.Transaction, got.Signature); err != nil {
		t.Errorf("received signature does not verify: %v", err)
	}
}

func TestTwoNodes_BlockGossip(t *testing.T) {
	a := startTestNode(t)
	b := startTestNode(t)

	var received atomic.Pointer[block.Block]
	b.SetBlockHandler(func(_ peer.ID, blk *block.Block) { received.Store(blk) })
	connectNodes(t, a, b)

	txn, _ := signedTx(t)
	blk := block.New(1, block.Genesis().Hash, []*tx.Transaction{txn}, 1700000000)
	blk.Hash = blk.ComputeHash()

	waitFor(t, "block gossip", func() bool {
		if received.Load() == nil {
			a.BroadcastBlock(blk)
		}
		return received.Load() != nil
	})
	if !received.Load().Equal(blk) {
		t.Error("received block differs from broadcast")
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	a := startTestNode(t)
	b := startTestNode(t)

	var calls atomic.Int32
	b.SetBlockHandler(func(peer.ID, *block.Block) {
		calls.Add(1)
		panic("handler failure")
	})
	connectNodes(t, a, b)

	for i := uint64(1); i <= 2; i++ {
		blk := block.New(i, block.Genesis().Hash, nil, int64(i))
		blk.Hash = blk.ComputeHash()
		want := int32(i)
		waitFor(t, "handler call", func() bool {
			if calls.Load() < want {
				a.BroadcastBlock(blk)
			}
			return calls.Load() >= want
		})
	}
}

func TestDecodeTxMessage(t *testing.T) {
	txn, sig := signedTx(t)
	good := []byte(`{"transaction":` + mustJSON(t, txn) + `,"signature":"` + sig + `"}`)

	got, gotSig, err := DecodeTxMessage(good)
	if err != nil {
		t.Fatalf("DecodeTxMessage: %v", err)
	}
	if !got.Equal(txn) || gotSig != sig {
		t.Error("decoded message differs")
	}

	for name, data := range map[string]string{
		"not json":          `{`,
		"missing tx":        `{"signature":"aa"}`,
		"null tx":           `{"transaction":null,"signature":"aa"}`,
		"missing signature": `{"transaction":` + mustJSON(t, txn) + `}`,
		"incomplete tx":     `{"transaction":{"transaction_id":"x"},"signature":"aa"}`,
	} {
		if _, _, err := DecodeTxMessage([]byte(data)); !errors.Is(err, tx.ErrSerialization) {
			t.Errorf("%s: err = %v, want ErrSerialization", name, err)
		}
	}
}

func mustJSON(t *testing.T, txn *tx.Transaction) string {
	t.Helper()
	data, err := txn.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	return string(data)
}
