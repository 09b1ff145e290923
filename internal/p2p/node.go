// Package p2p gossips transactions and blocks between ledger nodes over
// libp2p GossipSub. Peers come from a static seed list.
package p2p

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

const (
	// seedConnectTimeout bounds one dial to a seed.
	seedConnectTimeout = 10 * time.Second

	// seedRetryInterval is how often seeds are redialed while no peer is
	// connected.
	seedRetryInterval = 10 * time.Second
)

// Config holds P2P node configuration.
type Config struct {
	ListenAddr string
	Port       int
	Seeds      []string
	MaxPeers   int    // 0 = unlimited
	NetworkID  string // chain id, checked during the handshake
	DataDir    string // where the node identity is kept ("" = ephemeral)
}

// TxHandler receives a decoded transaction and its signature.
type TxHandler func(from peer.ID, t *tx.Transaction, signature string)

// BlockHandler receives a decoded block.
type BlockHandler func(from peer.ID, b *block.Block)

// Node is a libp2p host subscribed to the ledger's gossip topics.
type Node struct {
	host   host.Host
	pubsub *pubsub.PubSub
	config Config
	logger zerolog.Logger
	seeds  []peer.AddrInfo
	ctx    context.Context
	cancel context.CancelFunc

	topicTx    *pubsub.Topic
	topicBlock *pubsub.Topic
	subTx      *pubsub.Subscription
	subBlock   *pubsub.Subscription

	handlerMu    sync.RWMutex
	txHandler    TxHandler
	blockHandler BlockHandler

	mu    sync.RWMutex
	peers map[peer.ID]*Peer

	connNotify *connNotifier

	genesisHash      types.Hash
	handshakeEnabled bool
	heightFn         func() uint64
}

// New creates a P2P node. Seeds are validated here so that a bad address
// fails at startup rather than in the retry loop.
func New(cfg Config) (*Node, error) {
	seeds, err := ParseSeeds(cfg.Seeds)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		config: cfg,
		logger: zerolog.Nop(),
		seeds:  seeds,
		ctx:    ctx,
		cancel: cancel,
		peers:  make(map[peer.ID]*Peer),
	}, nil
}

// SetLogger sets the node's logger.
func (n *Node) SetLogger(logger zerolog.Logger) {
	n.logger = logger
}

// Start creates the libp2p host, joins the gossip topics and dials the
// seeds.
func (n *Node) Start() error {
	addr := fmt.Sprintf("/ip4/%s/tcp/%d", n.config.ListenAddr, n.config.Port)
	opts := []libp2p.Option{libp2p.ListenAddrStrings(addr)}

	// A persistent identity keeps the peer id stable across restarts.
	if n.config.DataDir != "" {
		privKey, err := loadOrCreateIdentity(n.config.DataDir)
		if err != nil {
			return fmt.Errorf("load p2p identity: %w", err)
		}
		opts = append(opts, libp2p.Identity(privKey))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return fmt.Errorf("create libp2p host: %w", err)
	}
	n.host = h

	n.connNotify = &connNotifier{node: n}
	h.Network().Notify(n.connNotify)

	ps, err := pubsub.NewGossipSub(n.ctx, h, pubsub.WithMaxMessageSize(MaxMessageSize))
	if err != nil {
		h.Close()
		return fmt.Errorf("create pubsub: %w", err)
	}
	n.pubsub = ps

	if err := n.joinTopics(); err != nil {
		h.Close()
		return err
	}

	if n.handshakeEnabled {
		n.registerHandshakeHandler()
	}

	go n.readLoop(n.subTx, n.handleTxMessage)
	go n.readLoop(n.subBlock, n.handleBlockMessage)

	if len(n.seeds) > 0 {
		n.logger.Info().Int("seeds", len(n.seeds)).Msg("Connecting to seeds...")
		n.connectSeedsOnce()
		go n.connectSeedsLoop()
	}

	n.logger.Info().Str("id", h.ID().String()).Strs("addrs", n.Addrs()).Msg("P2P started")
	return nil
}

// Stop shuts down the P2P node.
func (n *Node) Stop() error {
	n.cancel()
	if n.subTx != nil {
		n.subTx.Cancel()
	}
	if n.subBlock != nil {
		n.subBlock.Cancel()
	}
	if n.host != nil {
		return n.host.Close()
	}
	return nil
}

// Host returns the underlying libp2p host (nil before Start).
func (n *Node) Host() host.Host {
	return n.host
}

// SetGenesisHash sets the genesis hash checked during the handshake.
// A non-zero hash enables the handshake protocol.
func (n *Node) SetGenesisHash(h types.Hash) {
	n.genesisHash = h
	n.handshakeEnabled = !h.IsZero()
}

// SetHeightFn sets the function used to report chain height during the
// handshake.
func (n *Node) SetHeightFn(fn func() uint64) {
	n.heightFn = fn
}

// SetTxHandler registers the callback for incoming transactions.
func (n *Node) SetTxHandler(fn TxHandler) {
	n.handlerMu.Lock()
	defer n.handlerMu.Unlock()
	n.txHandler = fn
}

// SetBlockHandler registers the callback for incoming blocks.
func (n *Node) SetBlockHandler(fn BlockHandler) {
	n.handlerMu.Lock()
	defer n.handlerMu.Unlock()
	n.blockHandler = fn
}

// DisconnectPeer closes all connections to a peer.
func (n *Node) DisconnectPeer(id peer.ID) error {
	if n.host == nil {
		return ErrNotStarted
	}
	n.removePeer(id)
	return n.host.Network().ClosePeer(id)
}

// ID returns the peer ID of this node.
func (n *Node) ID() peer.ID {
	if n.host == nil {
		return ""
	}
	return n.host.ID()
}

// Addrs returns the full multiaddrs of this node, suitable as seeds.
func (n *Node) Addrs() []string {
	if n.host == nil {
		return nil
	}
	var addrs []string
	for _, a := range n.host.Addrs() {
		addrs = append(addrs, fmt.Sprintf("%s/p2p/%s", a, n.host.ID()))
	}
	return addrs
}

// PeerCount returns the number of connected peers.
func (n *Node) PeerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.peers)
}

// PeerList returns a snapshot of connected peers.
func (n *Node) PeerList() []PeerInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]PeerInfo, 0, len(n.peers))
	for _, p := range n.peers {
		out = append(out, PeerInfo{ID: p.ID.String(), ConnectedAt: p.ConnectedAt, Source: p.Source})
	}
	return out
}

// addPeer records id. It returns false when the peer limit is reached.
func (n *Node) addPeer(id peer.ID, source string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.peers[id]; exists {
		return true
	}
	if n.config.MaxPeers > 0 && len(n.peers) >= n.config.MaxPeers {
		return false
	}
	n.peers[id] = &Peer{ID: id, ConnectedAt: time.Now(), Source: source}
	return true
}

func (n *Node) removePeer(id peer.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.peers, id)
}

func (n *Node) joinTopics() error {
	var err error
	n.topicTx, err = n.pubsub.Join(TopicTransactions)
	if err != nil {
		return fmt.Errorf("join tx topic: %w", err)
	}
	n.topicBlock, err = n.pubsub.Join(TopicBlocks)
	if err != nil {
		return fmt.Errorf("join block topic: %w", err)
	}
	n.subTx, err = n.topicTx.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe tx: %w", err)
	}
	n.subBlock, err = n.topicBlock.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe block: %w", err)
	}
	return nil
}

func (n *Node) readLoop(sub *pubsub.Subscription, handler func(*pubsub.Message)) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			return // Context cancelled.
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		n.dispatch(handler, msg)
	}
}

// dispatch runs one handler, containing any panic so one bad message
// cannot stop the read loop.
func (n *Node) dispatch(handler func(*pubsub.Message), msg *pubsub.Message) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error().Interface("panic", r).Str("peer", shortID(msg.ReceivedFrom)).Msg("Gossip handler panicked")
		}
	}()
	handler(msg)
}

func (n *Node) handleTxMessage(msg *pubsub.Message) {
	n.addPeer(msg.ReceivedFrom, SourceGossip)
	t, sig, err := DecodeTxMessage(msg.Data)
	if err != nil {
		n.logger.Debug().Err(err).Str("peer", shortID(msg.ReceivedFrom)).Msg("Dropping bad tx message")
		return
	}
	n.handlerMu.RLock()
	fn := n.txHandler
	n.handlerMu.RUnlock()
	if fn != nil {
		fn(msg.ReceivedFrom, t, sig)
	}
}

func (n *Node) handleBlockMessage(msg *pubsub.Message) {
	n.addPeer(msg.ReceivedFrom, SourceGossip)
	b, err := block.Decode(msg.Data)
	if err != nil {
		n.logger.Debug().Err(err).Str("peer", shortID(msg.ReceivedFrom)).Msg("Dropping bad block message")
		return
	}
	n.handlerMu.RLock()
	fn := n.blockHandler
	n.handlerMu.RUnlock()
	if fn != nil {
		fn(msg.ReceivedFrom, b)
	}
}

// connectSeedsOnce dials every seed once. Returns true if at least one
// connection succeeded.
func (n *Node) connectSeedsOnce() bool {
	connected := false
	for _, info := range n.seeds {
		if info.ID == n.host.ID() {
			continue
		}
		ctx, cancel := context.WithTimeout(n.ctx, seedConnectTimeout)
		err := n.host.Connect(ctx, info)
		cancel()
		if err != nil {
			n.logger.Warn().Str("peer", shortID(info.ID)).Err(err).Msg("Seed connect failed")
			continue
		}
		n.mu.Lock()
		if p, ok := n.peers[info.ID]; ok {
			p.Source = SourceSeed
		}
		n.mu.Unlock()
		n.logger.Info().Str("peer", shortID(info.ID)).Msg("Seed connected")
		connected = true
	}
	return connected
}

// connectSeedsLoop redials the seeds while the node has no peers.
func (n *Node) connectSeedsLoop() {
	ticker := time.NewTicker(seedRetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			if n.PeerCount() == 0 {
				n.logger.Info().Int("seeds", len(n.seeds)).Msg("No peers, retrying seeds...")
				n.connectSeedsOnce()
			}
		}
	}
}

func shortID(id peer.ID) string {
	s := id.String()
	if len(s) > 16 {
		return s[:16]
	}
	return s
}

// loadOrCreateIdentity loads the libp2p identity key kept in dataDir, or
// generates and saves a new one.
func loadOrCreateIdentity(dataDir string) (libp2pcrypto.PrivKey, error) {
	keyPath := filepath.Join(dataDir, "node.key")

	data, err := os.ReadFile(keyPath)
	if err == nil {
		keyBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("decode node key: %w", err)
		}
		return libp2pcrypto.UnmarshalEd25519PrivateKey(keyBytes)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read node key: %w", err)
	}

	priv, _, err := libp2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	raw, err := priv.Raw()
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(raw)), 0600); err != nil {
		return nil, fmt.Errorf("save node key: %w", err)
	}
	return priv, nil
}
