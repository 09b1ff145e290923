package p2p

import (
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/Klingon-tech/klingnet-ledger/config"
)

// GossipSub topic names.
const (
	TopicTransactions = "/klingnet-ledger/tx/1.0.0"
	TopicBlocks       = "/klingnet-ledger/block/1.0.0"
)

// Handshake protocol constants.
const (
	// HandshakeProtocol is the stream protocol used to check that a peer
	// follows the same genesis.
	HandshakeProtocol = protocol.ID("/klingnet-ledger/handshake/1.0.0")

	// ProtocolVersion is advertised during the handshake.
	ProtocolVersion uint32 = 1

	// MinProtocolVersion is the lowest version accepted from peers.
	MinProtocolVersion uint32 = 1
)

// MaxMessageSize bounds gossip payloads. A block may carry a full pool.
const MaxMessageSize = 8 * config.MaxTxSize
