package p2p

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

const (
	// handshakeTimeout is the max time for a complete handshake exchange.
	handshakeTimeout = 10 * time.Second

	// maxHandshakeBytes limits handshake message size.
	maxHandshakeBytes = 4096
)

// HandshakeMessage is exchanged between peers to verify compatibility.
type HandshakeMessage struct {
	ProtocolVersion uint32     `json:"protocol_version"`
	GenesisHash     types.Hash `json:"genesis_hash"`
	NetworkID       string     `json:"network_id"`
	Height          uint64     `json:"height"`
}

// registerHandshakeHandler answers handshakes started by dialing peers.
func (n *Node) registerHandshakeHandler() {
	n.host.SetStreamHandler(HandshakeProtocol, func(stream network.Stream) {
		defer stream.Close()
		remote := stream.Conn().RemotePeer()
		_ = stream.SetDeadline(time.Now().Add(handshakeTimeout))

		var theirs HandshakeMessage
		if err := json.NewDecoder(io.LimitReader(stream, maxHandshakeBytes)).Decode(&theirs); err != nil {
			n.logger.Debug().Err(err).Str("peer", shortID(remote)).Msg("Handshake read failed")
			return
		}
		ours := n.buildHandshakeMessage()
		if err := json.NewEncoder(stream).Encode(&ours); err != nil {
			n.logger.Debug().Err(err).Str("peer", shortID(remote)).Msg("Handshake write failed")
			return
		}
		n.checkHandshake(remote, theirs)
	})
}

// doHandshake runs the dialer side of the handshake.
func (n *Node) doHandshake(id peer.ID) {
	ctx, cancel := context.WithTimeout(n.ctx, handshakeTimeout)
	defer cancel()

	stream, err := n.host.NewStream(ctx, id, HandshakeProtocol)
	if err != nil {
		n.logger.Debug().Err(err).Str("peer", shortID(id)).Msg("Handshake stream failed")
		return
	}
	defer stream.Close()
	_ = stream.SetDeadline(time.Now().Add(handshakeTimeout))

	ours := n.buildHandshakeMessage()
	if err := json.NewEncoder(stream).Encode(&ours); err != nil {
		n.logger.Debug().Err(err).Str("peer", shortID(id)).Msg("Handshake send failed")
		return
	}
	stream.CloseWrite()

	var theirs HandshakeMessage
	if err := json.NewDecoder(io.LimitReader(stream, maxHandshakeBytes)).Decode(&theirs); err != nil {
		n.logger.Debug().Err(err).Str("peer", shortID(id)).Msg("Handshake response read failed")
		return
	}
	n.checkHandshake(id, theirs)
}

// checkHandshake disconnects peers that follow a different chain.
func (n *Node) checkHandshake(id peer.ID, msg HandshakeMessage) {
	reason := n.validateHandshake(msg)
	if reason == "" {
		n.logger.Debug().Str("peer", shortID(id)).Uint64("height", msg.Height).Msg("Handshake complete")
		return
	}
	n.logger.Warn().Str("peer", shortID(id)).Str("reason", reason).Msg("Handshake rejected, disconnecting")
	n.DisconnectPeer(id)
}

// validateHandshake returns an empty string when the peer is compatible,
// or the reason it is not.
func (n *Node) validateHandshake(msg HandshakeMessage) string {
	if msg.ProtocolVersion < MinProtocolVersion {
		return fmt.Sprintf("protocol version too low: peer=%d min=%d", msg.ProtocolVersion, MinProtocolVersion)
	}
	if msg.GenesisHash != n.genesisHash {
		return fmt.Sprintf("genesis mismatch: peer=%s local=%s",
			msg.GenesisHash.String()[:16], n.genesisHash.String()[:16])
	}
	if n.config.NetworkID != "" && msg.NetworkID != n.config.NetworkID {
		return fmt.Sprintf("network mismatch: peer=%q local=%q", msg.NetworkID, n.config.NetworkID)
	}
	return ""
}

func (n *Node) buildHandshakeMessage() HandshakeMessage {
	msg := HandshakeMessage{
		ProtocolVersion: ProtocolVersion,
		GenesisHash:     n.genesisHash,
		NetworkID:       n.config.NetworkID,
	}
	if n.heightFn != nil {
		msg.Height = n.heightFn()
	}
	return msg
}
