// Package node provides a reusable ledger node that can be embedded in
// any binary (daemon, tests, tooling).
package node

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/consensus"
	"github.com/Klingon-tech/klingnet-ledger/internal/ledger"
	klog "github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/mempool"
	"github.com/Klingon-tech/klingnet-ledger/internal/miner"
	"github.com/Klingon-tech/klingnet-ledger/internal/p2p"
	"github.com/Klingon-tech/klingnet-ledger/internal/rpc"
	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/internal/wallet"
	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// ErrNoKeystore is returned by UnlockWallet when wallet.enabled is false.
var ErrNoKeystore = errors.New("wallet not enabled")

// Node is a fully-initialized ledger node.
type Node struct {
	cfg     *config.Config
	genesis *config.Genesis
	logger  zerolog.Logger

	// Core
	db        storage.DB
	utxoStore *utxo.Store
	engine    *consensus.PoW
	ledger    *ledger.Ledger
	pool      *mempool.Pool
	miner     *miner.Miner

	// Wallet
	keystore *wallet.Keystore
	wallet   *wallet.Wallet

	// Networking
	p2pNode *p2p.Node

	// RPC
	rpcServer *rpc.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates and initializes a new Node. It performs all setup steps
// (logger, genesis, storage, consensus, ledger, miner, P2P, RPC) but does
// NOT start mining. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(cfg.LogsDir(), "ledger.log")
	}
	if err := ensureDir(filepath.Dir(logFile)); err != nil {
		return nil, fmt.Errorf("creating logs dir: %w", err)
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	// ── 2. Genesis ──────────────────────────────────────────────────
	genesis, err := loadGenesis(cfg)
	if err != nil {
		return nil, err
	}
	genesisHash, err := genesis.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash genesis: %w", err)
	}

	logger.Info().
		Str("chain_id", genesis.ChainID).
		Str("network", string(cfg.Network)).
		Int("difficulty", genesis.Difficulty).
		Int("allocations", len(genesis.Alloc)).
		Msg("Starting Klingnet Ledger Node")

	// ── 3. Open storage ─────────────────────────────────────────────
	db, err := openStorage(cfg.Storage.Backend)
	if err != nil {
		return nil, err
	}
	utxoStore := utxo.NewStore(storage.NewPrefixDB(db, []byte("utxo/")))
	logger.Info().Str("backend", cfg.Storage.Backend).Msg("UTXO index opened")

	// ── 4. Consensus engine ─────────────────────────────────────────
	engine := consensus.NewPoW(cfg.Mining.Threads)

	// ── 5. Ledger ───────────────────────────────────────────────────
	pool := mempool.New(cfg.Mempool.MaxSize)
	l, err := ledger.New(genesis, utxoStore, engine, pool)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger: %w", err)
	}
	l.SetLogger(klog.Ledger)

	logger.Info().
		Str("genesis", l.Tip().Hash.String()).
		Uint64("supply", genesis.TotalAlloc()).
		Msg("Ledger initialized")

	// ── 6. Miner ────────────────────────────────────────────────────
	m := miner.New(l, klog.Miner)

	// ── 7. Wallet keystore ──────────────────────────────────────────
	var ks *wallet.Keystore
	if cfg.Wallet.Enabled {
		ks, err = wallet.NewKeystore(cfg.KeystoreDir())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create wallet keystore: %w", err)
		}
		logger.Info().Str("path", ks.Path()).Msg("Wallet keystore opened")
	}

	// ── 8. P2P network ──────────────────────────────────────────────
	var p2pNode *p2p.Node
	if cfg.P2P.Enabled {
		p2pNode, err = p2p.New(p2p.Config{
			ListenAddr: cfg.P2P.ListenAddr,
			Port:       cfg.P2P.Port,
			Seeds:      cfg.P2P.Seeds,
			MaxPeers:   cfg.P2P.MaxPeers,
			NetworkID:  genesis.ChainID,
			DataDir:    cfg.ChainDataDir(),
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create P2P node: %w", err)
		}
		p2pNode.SetLogger(klog.P2P)
		p2pNode.SetGenesisHash(genesisHash)
		p2pNode.SetHeightFn(l.Height)

		// Transaction handler.
		p2pNode.SetTxHandler(func(from peer.ID, t *tx.Transaction, sig string) {
			if err := t.Validate(); err != nil {
				logger.Debug().Err(err).Str("peer", from.String()).Msg("Dropped malformed gossip tx")
				return
			}
			if err := tx.VerifySender(t, sig); err != nil {
				logger.Debug().Err(err).Str("tx", t.ID).Str("peer", from.String()).Msg("Dropped unsigned gossip tx")
				return
			}
			if err := l.AddTransaction(t); err != nil {
				logger.Debug().Err(err).Str("tx", t.ID).Msg("Rejected gossip tx")
				return
			}
			logger.Debug().Str("tx", t.ID).Str("peer", from.String()).Msg("Gossip tx added to pool")
		})

		// Block handler.
		p2pNode.SetBlockHandler(func(from peer.ID, b *block.Block) {
			if err := l.AddBlock(b); err != nil {
				ev := logger.Debug()
				if !errors.Is(err, ledger.ErrLinkMismatch) {
					ev = logger.Warn()
				}
				ev.Err(err).Uint64("index", b.Index).Str("peer", from.String()).Msg("Rejected gossip block")
				return
			}
			logger.Info().
				Uint64("height", b.Index).
				Str("hash", b.Hash.String()).
				Int("txs", len(b.Transactions)).
				Str("peer", from.String()).
				Msg("Block accepted from peer")
		})

		if err := p2pNode.Start(); err != nil {
			db.Close()
			return nil, fmt.Errorf("start P2P: %w", err)
		}

		logger.Info().
			Str("id", p2pNode.ID().String()).
			Int("port", cfg.P2P.Port).
			Int("seeds", len(cfg.P2P.Seeds)).
			Msg("P2P node started")

		m.SetBlockHandler(func(b *block.Block) {
			if err := p2pNode.BroadcastBlock(b); err != nil {
				logger.Warn().Err(err).Uint64("index", b.Index).Msg("Failed to broadcast mined block")
			}
		})
	} else {
		logger.Warn().Msg("P2P disabled by config; node will run offline")
	}

	// ── 9. RPC server ───────────────────────────────────────────────
	var rpcServer *rpc.Server
	if cfg.RPC.Enabled {
		rpcAddr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		rpcServer = rpc.New(rpcAddr, l, genesis, cfg.RPC)
		rpcServer.SetMiner(m)
		if p2pNode != nil {
			rpcServer.SetP2P(p2pNode)
		}
		if ks != nil {
			rpcServer.SetKeystore(ks)
		}
		if err := rpcServer.Start(); err != nil {
			if p2pNode != nil {
				p2pNode.Stop()
			}
			db.Close()
			return nil, fmt.Errorf("start RPC at %s: %w", rpcAddr, err)
		}
		logger.Info().Str("addr", rpcServer.Addr()).Msg("RPC server started")
	} else {
		if cfg.Wallet.Enabled {
			logger.Warn().Msg("wallet.enabled is true but RPC is disabled; wallet RPC endpoints unavailable")
		}
		logger.Warn().Msg("RPC disabled by config")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		cfg:       cfg,
		genesis:   genesis,
		logger:    logger,
		db:        db,
		utxoStore: utxoStore,
		engine:    engine,
		ledger:    l,
		pool:      pool,
		miner:     m,
		keystore:  ks,
		p2pNode:   p2pNode,
		rpcServer: rpcServer,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// UnlockWallet opens the configured keystore wallet and makes it the
// node's signing key for tx_sign.
func (n *Node) UnlockWallet(password []byte) error {
	if n.keystore == nil {
		return ErrNoKeystore
	}
	w, err := wallet.Open(n.keystore, n.cfg.Wallet.Name, password, n.cfg.Wallet.Account)
	if err != nil {
		return fmt.Errorf("open wallet %q: %w", n.cfg.Wallet.Name, err)
	}
	if n.wallet != nil {
		n.wallet.Close()
	}
	n.wallet = w
	if n.rpcServer != nil {
		n.rpcServer.SetWallet(w)
	}

	klog.Wallet.Info().
		Str("wallet", w.Name()).
		Uint32("account", w.Account()).
		Str("address", w.Address().Short()).
		Msg("Wallet unlocked")
	return nil
}

// Start launches the background miner when mining is enabled.
func (n *Node) Start() error {
	if n.cfg.Mining.Enabled {
		if err := n.miner.Start(n.ctx); err != nil {
			return fmt.Errorf("start miner: %w", err)
		}
		n.logger.Info().
			Int("threads", n.cfg.Mining.Threads).
			Int("difficulty", n.ledger.Difficulty()).
			Msg("Block production enabled")
	}

	n.logger.Info().
		Uint64("height", n.ledger.Height()).
		Str("tip", n.ledger.Tip().Hash.String()).
		Bool("mining", n.cfg.Mining.Enabled).
		Msg("Node started successfully")

	return nil
}

// Stop performs graceful shutdown in reverse order.
func (n *Node) Stop() {
	n.cancel()
	n.miner.Stop()

	if n.rpcServer != nil {
		n.rpcServer.Stop()
	}
	if n.p2pNode != nil {
		n.p2pNode.Stop()
	}
	if n.wallet != nil {
		n.wallet.Close()
	}
	if n.db != nil {
		n.db.Close()
	}

	n.logger.Info().Msg("Goodbye!")
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Height returns the current chain height.
func (n *Node) Height() uint64 {
	return n.ledger.Height()
}

// Ledger returns the node's ledger.
func (n *Node) Ledger() *ledger.Ledger { return n.ledger }

// Miner returns the node's miner.
func (n *Node) Miner() *miner.Miner { return n.miner }

// P2P returns the P2P node, or nil when networking is disabled.
func (n *Node) P2P() *p2p.Node { return n.p2pNode }

// Genesis returns the genesis configuration the node started from.
func (n *Node) Genesis() *config.Genesis { return n.genesis }
