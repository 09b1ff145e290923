package rpc

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-ledger/internal/consensus"
	"github.com/Klingon-tech/klingnet-ledger/internal/ledger"
	"github.com/Klingon-tech/klingnet-ledger/internal/mempool"
	"github.com/Klingon-tech/klingnet-ledger/internal/miner"
	"github.com/Klingon-tech/klingnet-ledger/internal/p2p"
	"github.com/Klingon-tech/klingnet-ledger/internal/wallet"
	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// ── Chain endpoints ─────────────────────────────────────────────────────

func (s *Server) handleChainGetInfo(_ *Request) (interface{}, *Error) {
	commitment, err := s.ledger.UTXOCommitment()
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("utxo commitment: %v", err)}
	}
	tip := s.ledger.Tip()
	return &ChainInfoResult{
		ChainID:        s.genesis.ChainID,
		Height:         tip.Index,
		Length:         int(tip.Index) + 1,
		TipHash:        tip.Hash.String(),
		Difficulty:     s.ledger.Difficulty(),
		Pending:        s.ledger.PendingCount(),
		UTXOCommitment: commitment.String(),
	}, nil
}

func (s *Server) handleChainGetBlock(req *Request) (interface{}, *Error) {
	var params IndexParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	blk, err := s.ledger.Block(params.Index)
	if err != nil {
		return nil, ledgerError(err)
	}
	return blk, nil
}

func (s *Server) handleChainGetDump(_ *Request) (interface{}, *Error) {
	return s.ledger.Dump(), nil
}

func (s *Server) handleChainValidate(_ *Request) (interface{}, *Error) {
	result := &ValidateResult{Valid: true, Length: int(s.ledger.Height()) + 1}
	if err := s.ledger.ValidateChain(); err != nil {
		result.Valid = false
		result.Error = err.Error()
	}
	return result, nil
}

// ── UTXO endpoints ──────────────────────────────────────────────────────

func (s *Server) handleUTXOGetByAddress(req *Request) (interface{}, *Error) {
	addr, rpcErr := addressParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	outs, err := s.ledger.UTXOs(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	if outs == nil {
		outs = []tx.Output{}
	}
	return &UTXOListResult{Address: addr.String(), UTXOs: outs}, nil
}

func (s *Server) handleUTXOGetBalance(req *Request) (interface{}, *Error) {
	addr, rpcErr := addressParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.ledger.Balance(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	return &BalanceResult{Address: addr.String(), Balance: balance}, nil
}

func (s *Server) handleMempoolGetContent(_ *Request) (interface{}, *Error) {
	pending := s.ledger.Pending()
	return &MempoolContentResult{Count: len(pending), Transactions: pending}, nil
}

// ── Transaction endpoints ───────────────────────────────────────────────

func (s *Server) handleTxCreate(req *Request) (interface{}, *Error) {
	var params TxCreateParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	sender, rpcErr := decodeAddress("sender_address", params.Sender)
	if rpcErr != nil {
		return nil, rpcErr
	}
	recipient, rpcErr := decodeAddress("recipient_address", params.Recipient)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if params.Amount == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "amount must be positive"}
	}

	utxos, err := s.ledger.UTXOs(sender)
	if err != nil {
		return nil, ledgerError(err)
	}
	t, err := wallet.BuildTransfer(s.ids, sender, recipient, params.Amount, utxos)
	if err != nil {
		return nil, ledgerError(err)
	}
	return t, nil
}

func (s *Server) handleTxSign(req *Request) (interface{}, *Error) {
	w := s.Wallet()
	if w == nil {
		return nil, &Error{Code: CodeInternalError, Message: "no wallet loaded (call wallet_generate or start node with --wallet)"}
	}

	var params TxSignParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Transaction == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "transaction is required"}
	}
	if params.Transaction.Sender != w.Address() {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("sender %s is not the node wallet %s",
			params.Transaction.Sender.Short(), w.Address().Short())}
	}

	sig, err := w.Sign(params.Transaction)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return &TxSignResult{Signature: sig}, nil
}

func (s *Server) handleTxSubmit(req *Request) (interface{}, *Error) {
	var params TxSubmitParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Transaction == nil || params.Signature == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "transaction and signature are required"}
	}

	t := params.Transaction
	if err := t.Validate(); err != nil {
		return nil, ledgerError(err)
	}
	if err := tx.VerifySender(t, params.Signature); err != nil {
		return nil, ledgerError(err)
	}
	if err := s.ledger.AddTransaction(t); err != nil {
		return nil, ledgerError(err)
	}

	result := &TxSubmitResult{TransactionID: t.ID, Message: "Transaction added."}
	if params.Broadcast && s.p2pNode != nil {
		if err := s.p2pNode.BroadcastTx(t, params.Signature); err != nil {
			s.logger.Warn().Err(err).Str("tx", t.ID).Msg("Failed to broadcast transaction")
		} else {
			result.Broadcast = true
		}
	}
	return result, nil
}

func (s *Server) handleBlockSubmit(req *Request) (interface{}, *Error) {
	var params BlockSubmitParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Block == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "block is required"}
	}

	b := params.Block
	if err := s.ledger.AddBlock(b); err != nil {
		return nil, ledgerError(err)
	}

	result := &BlockSubmitResult{Hash: b.Hash.String(), Height: b.Index}
	if params.Broadcast && s.p2pNode != nil {
		if err := s.p2pNode.BroadcastBlock(b); err != nil {
			s.logger.Warn().Err(err).Uint64("index", b.Index).Msg("Failed to broadcast block")
		} else {
			result.Broadcast = true
		}
	}
	return result, nil
}

// ── Mining endpoints ────────────────────────────────────────────────────

func (s *Server) requireMiner() *Error {
	if s.miner == nil {
		return &Error{Code: CodeInternalError, Message: "mining not enabled"}
	}
	return nil
}

func (s *Server) miningStatus() *MiningStatusResult {
	return &MiningStatusResult{
		Status:     s.miner.Status(),
		Difficulty: s.ledger.Difficulty(),
		Pending:    s.ledger.PendingCount(),
	}
}

func (s *Server) handleMiningStart(_ *Request) (interface{}, *Error) {
	if err := s.requireMiner(); err != nil {
		return nil, err
	}
	if err := s.miner.Start(context.Background()); err != nil && !errors.Is(err, miner.ErrAlreadyRunning) {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return s.miningStatus(), nil
}

func (s *Server) handleMiningStop(_ *Request) (interface{}, *Error) {
	if err := s.requireMiner(); err != nil {
		return nil, err
	}
	s.miner.Stop()
	return s.miningStatus(), nil
}

func (s *Server) handleMiningGetStatus(_ *Request) (interface{}, *Error) {
	if err := s.requireMiner(); err != nil {
		return nil, err
	}
	return s.miningStatus(), nil
}

func (s *Server) handleMiningSetDifficulty(req *Request) (interface{}, *Error) {
	var params DifficultyParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if err := s.ledger.SetDifficulty(params.Difficulty); err != nil {
		return nil, ledgerError(err)
	}
	return &DifficultyResult{Difficulty: s.ledger.Difficulty()}, nil
}

// ── Network endpoints ───────────────────────────────────────────────────

func (s *Server) handleNetGetPeerInfo(_ *Request) (interface{}, *Error) {
	if s.p2pNode == nil {
		return &PeerInfoResult{Peers: []p2p.PeerInfo{}}, nil
	}
	peers := s.p2pNode.PeerList()
	sort.Slice(peers, func(i, j int) bool { return peers[i].ID < peers[j].ID })
	return &PeerInfoResult{
		Enabled: true,
		ID:      s.p2pNode.ID().String(),
		Addrs:   s.p2pNode.Addrs(),
		Count:   len(peers),
		Peers:   peers,
	}, nil
}

// ── Helpers ─────────────────────────────────────────────────────────────

func addressParam(req *Request) (types.Address, *Error) {
	var params AddressParam
	if err := parseParams(req, &params); err != nil {
		return "", err
	}
	return decodeAddress("address", params.Address)
}

func decodeAddress(field, s string) (types.Address, *Error) {
	if s == "" {
		return "", &Error{Code: CodeInvalidParams, Message: field + " is required"}
	}
	addr, err := types.ParseAddress(s)
	if err != nil {
		return "", &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid %s: %v", field, err)}
	}
	return addr, nil
}

// rejections are errors caused by the submitted data rather than the node.
var rejections = []error{
	tx.ErrMalformedTransaction,
	tx.ErrSerialization,
	tx.ErrVerification,
	tx.ErrUnknownOutput,
	ledger.ErrInsufficientFunds,
	ledger.ErrDuplicateTransaction,
	ledger.ErrLinkMismatch,
	ledger.ErrInvalidProof,
	block.ErrDuplicateTx,
	block.ErrDuplicateBlockInput,
	block.ErrNilTransaction,
	mempool.ErrAlreadyExists,
	mempool.ErrConflict,
	mempool.ErrPoolFull,
	mempool.ErrPolicy,
	wallet.ErrInsufficientFunds,
	wallet.ErrNoUTXOs,
}

// ledgerError maps a ledger, transaction or wallet error to an RPC error.
func ledgerError(err error) *Error {
	switch {
	case errors.Is(err, ledger.ErrBlockNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, types.ErrInvalidAddress), errors.Is(err, consensus.ErrBadDifficulty):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	for _, r := range rejections {
		if errors.Is(err, r) {
			return &Error{Code: CodeRejected, Message: err.Error()}
		}
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}
