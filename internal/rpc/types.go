package rpc

import (
	"github.com/Klingon-tech/klingnet-ledger/internal/miner"
	"github.com/Klingon-tech/klingnet-ledger/internal/p2p"
	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeRejected       = -32001 // Ledger or validation rejected the request.
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// IndexParam is used by chain_getBlock.
type IndexParam struct {
	Index uint64 `json:"index"`
}

// AddressParam is used by utxo_getByAddress and utxo_getBalance.
type AddressParam struct {
	Address string `json:"address"`
}

// TxCreateParam is used by tx_create.
type TxCreateParam struct {
	Sender    string `json:"sender_address"`
	Recipient string `json:"recipient_address"`
	Amount    uint64 `json:"amount"`
}

// TxSignParam is used by tx_sign.
type TxSignParam struct {
	Transaction *tx.Transaction `json:"transaction"`
}

// TxSubmitParam is used by tx_submit.
type TxSubmitParam struct {
	Transaction *tx.Transaction `json:"transaction"`
	Signature   string          `json:"signature"`
	Broadcast   bool            `json:"broadcast,omitempty"`
}

// BlockSubmitParam is used by block_submit.
type BlockSubmitParam struct {
	Block     *block.Block `json:"block"`
	Broadcast bool         `json:"broadcast,omitempty"`
}

// DifficultyParam is used by mining_setDifficulty.
type DifficultyParam struct {
	Difficulty int `json:"difficulty"`
}

// WalletGenerateParam is used by wallet_generate. With an empty name the
// key is kept in memory only.
type WalletGenerateParam struct {
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty"`
}

// ── Result types ────────────────────────────────────────────────────────

// ChainInfoResult is returned by chain_getInfo.
type ChainInfoResult struct {
	ChainID        string `json:"chain_id"`
	Height         uint64 `json:"height"`
	Length         int    `json:"length"`
	TipHash        string `json:"tip_hash"`
	Difficulty     int    `json:"difficulty"`
	Pending        int    `json:"pending"`
	UTXOCommitment string `json:"utxo_commitment"`
}

// ValidateResult is returned by chain_validate.
type ValidateResult struct {
	Valid  bool   `json:"valid"`
	Length int    `json:"length"`
	Error  string `json:"error,omitempty"`
}

// UTXOListResult is returned by utxo_getByAddress.
type UTXOListResult struct {
	Address string      `json:"address"`
	UTXOs   []tx.Output `json:"utxos"`
}

// BalanceResult is returned by utxo_getBalance.
type BalanceResult struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

// MempoolContentResult is returned by mempool_getContent.
type MempoolContentResult struct {
	Count        int               `json:"count"`
	Transactions []*tx.Transaction `json:"transactions"`
}

// TxSignResult is returned by tx_sign.
type TxSignResult struct {
	Signature string `json:"signature"`
}

// TxSubmitResult is returned by tx_submit.
type TxSubmitResult struct {
	TransactionID string `json:"transaction_id"`
	Broadcast     bool   `json:"broadcast"`
	Message       string `json:"message"`
}

// BlockSubmitResult is returned by block_submit.
type BlockSubmitResult struct {
	Hash      string `json:"hash"`
	Height    uint64 `json:"height"`
	Broadcast bool   `json:"broadcast"`
}

// MiningStatusResult is returned by the mining_* endpoints.
type MiningStatusResult struct {
	miner.Status
	Difficulty int `json:"difficulty"`
	Pending    int `json:"pending"`
}

// DifficultyResult is returned by mining_setDifficulty.
type DifficultyResult struct {
	Difficulty int `json:"difficulty"`
}

// WalletGenerateResult is returned by wallet_generate. The public key is
// also the wallet's address.
type WalletGenerateResult struct {
	Name       string `json:"name,omitempty"`
	Address    string `json:"address"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
	Mnemonic   string `json:"mnemonic,omitempty"`
}

// WalletInfoResult is returned by wallet_getInfo.
type WalletInfoResult struct {
	Loaded  bool   `json:"loaded"`
	Name    string `json:"name,omitempty"`
	Account uint32 `json:"account"`
	Address string `json:"address,omitempty"`
	Balance uint64 `json:"balance"`
}

// PeerInfoResult is returned by net_getPeerInfo.
type PeerInfoResult struct {
	Enabled bool           `json:"enabled"`
	ID      string         `json:"id,omitempty"`
	Addrs   []string       `json:"addrs,omitempty"`
	Count   int            `json:"count"`
	Peers   []p2p.PeerInfo `json:"peers"`
}
