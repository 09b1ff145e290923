package p2p

import (
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/multiformats/go-multiaddr"
)

// connNotifier keeps the peer table in step with libp2p connections.
type connNotifier struct {
	node *Node
}

// Connected records the remote peer, or drops the connection when the
// peer limit is reached.
func (cn *connNotifier) Connected(_ network.Network, conn network.Conn) {
	remote := conn.RemotePeer()
	if remote == cn.node.host.ID() {
		return
	}
	source := SourceInbound
	if conn.Stat().Direction == network.DirOutbound {
		source = SourceSeed
	}
	if !cn.node.addPeer(remote, source) {
		cn.node.logger.Debug().Str("peer", shortID(remote)).Msg("Peer limit reached, dropping connection")
		go conn.Close()
		return
	}
	// The dialer starts the handshake; the stream handler answers it.
	if cn.node.handshakeEnabled && conn.Stat().Direction == network.DirOutbound {
		go cn.node.doHandshake(remote)
	}
}

// Disconnected forgets the peer once its last connection closes.
func (cn *connNotifier) Disconnected(net network.Network, conn network.Conn) {
	remote := conn.RemotePeer()
	if len(net.ConnsToPeer(remote)) == 0 {
		cn.node.removePeer(remote)
	}
}

// Listen is part of network.Notifiee.
func (cn *connNotifier) Listen(network.Network, multiaddr.Multiaddr) {}

// ListenClose is part of network.Notifiee.
func (cn *connNotifier) ListenClose(network.Network, multiaddr.Multiaddr) {}
