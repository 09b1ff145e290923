package p2p

import (
	"crypto/rand"
	"errors"
	"testing"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

func testPeerID(t *testing.T) peer.ID {
	t.Helper()
	priv, _, err := libp2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEd25519Key: %v", err)
	}
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		t.Fatalf("IDFromPrivateKey: %v", err)
	}
	return id
}

func TestParseSeeds(t *testing.T) {
	id := testPeerID(t)
	seeds := []string{
		"/ip4/10.0.0.1/tcp/30313/p2p/" + id.String(),
		" /ip4/10.0.0.2/tcp/30313/p2p/" + id.String() + " ",
	}
	infos, err := ParseSeeds(seeds)
	if err != nil {
		t.Fatalf("ParseSeeds: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d peers, want 1 (same id merged)", len(infos))
	}
	if infos[0].ID != id || len(infos[0].Addrs) != 2 {
		t.Errorf("info = %v", infos[0])
	}

	if infos, err := ParseSeeds(nil); err != nil || len(infos) != 0 {
		t.Errorf("ParseSeeds(nil) = %v, %v", infos, err)
	}
}

func TestParseSeed_Invalid(t *testing.T) {
	id := testPeerID(t).String()
	for _, s := range []string{
		"",
		"127.0.0.1:30313",
		"/ip4/127.0.0.1/tcp/30313",
		"/p2p/" + id,
		"/ip4/127.0.0.1/tcp/30313/p2p/notapeer",
	} {
		if _, err := ParseSeed(s); !errors.Is(err, ErrBadSeed) {
			t.Errorf("ParseSeed(%q) = %v, want ErrBadSeed", s, err)
		}
	}
}
