package p2p

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Peer sources.
const (
	SourceSeed    = "seed"
	SourceInbound = "inbound"
	SourceGossip  = "gossip"
)

// Peer represents a connected peer.
type Peer struct {
	ID          peer.ID
	ConnectedAt time.Time
	Source      string
}

// PeerInfo is the exported view of a peer.
type PeerInfo struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
	Source      string    `json:"source"`
}
