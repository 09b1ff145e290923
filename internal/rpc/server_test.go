package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/consensus"
	"github.com/Klingon-tech/klingnet-ledger/internal/ledger"
	klog "github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/internal/utxo"
	"github.com/Klingon-tech/klingnet-ledger/internal/wallet"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

const testAlloc = 1000

// testEnv holds all components for an RPC test.
type testEnv struct {
	server  *Server
	ledger  *ledger.Ledger
	genesis *config.Genesis
	key     *crypto.PrivateKey
	addr    types.Address
	other   types.Address
	url     string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupTestEnvWithConfig(t, config.RPCConfig{})
}

func setupTestEnvWithConfig(t *testing.T, rpcCfg config.RPCConfig) *testEnv {
	t.Helper()
	return setupTestEnvWith(t, rpcCfg, nil)
}

// setupTestEnvWith runs setup on the server before it starts listening.
func setupTestEnvWith(t *testing.T, rpcCfg config.RPCConfig, setup func(*Server, *ledger.Ledger)) *testEnv {
	t.Helper()
	klog.Init("error", false, "")

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	otherKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	gen := &config.Genesis{
		ChainID:    "klingnet-test-rpc",
		Difficulty: 1,
		Alloc:      map[string]uint64{key.Address().String(): testAlloc},
	}
	l, err := ledger.New(gen, utxo.NewStore(storage.NewMemory()), consensus.NewPoW(1), nil)
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}

	srv := New("127.0.0.1:0", l, gen, rpcCfg)
	if setup != nil {
		setup(srv, l)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return &testEnv{
		server:  srv,
		ledger:  l,
		genesis: gen,
		key:     key,
		addr:    key.Address(),
		other:   otherKey.Address(),
		url:     fmt.Sprintf("http://%s/", srv.Addr()),
	}
}

func startServer(t *testing.T, l *ledger.Ledger, gen *config.Genesis, rpcCfg config.RPCConfig) *Server {
	t.Helper()
	srv := New("127.0.0.1:0", l, gen, rpcCfg)
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func rpcCall(t *testing.T, url, method string, params interface{}) Response {
	t.Helper()
	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", method, err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&rpcResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rpcResp
}

// mustCall invokes method and decodes its result into out.
func mustCall(t *testing.T, url, method string, params, out interface{}) {
	t.Helper()
	resp := rpcCall(t, url, method, params)
	if resp.Error != nil {
		t.Fatalf("%s: unexpected error %d: %s", method, resp.Error.Code, resp.Error.Message)
	}
	if out == nil {
		return
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("%s: re-marshal result: %v", method, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("%s: decode result: %v", method, err)
	}
}

// expectCode invokes method and checks it fails with code.
func expectCode(t *testing.T, url, method string, params interface{}, code int) *Error {
	t.Helper()
	resp := rpcCall(t, url, method, params)
	if resp.Error == nil {
		t.Fatalf("%s: expected error code %d, got result %v", method, code, resp.Result)
	}
	if resp.Error.Code != code {
		t.Fatalf("%s: error code = %d (%s), want %d", method, resp.Error.Code, resp.Error.Message, code)
	}
	return resp.Error
}

// createSigned builds a transfer through tx_create and signs it locally.
func createSigned(t *testing.T, env *testEnv, amount uint64) (*tx.Transaction, string) {
	t.Helper()
	var created tx.Transaction
	mustCall(t, env.url, "tx_create", TxCreateParam{
		Sender:    env.addr.String(),
		Recipient: env.other.String(),
		Amount:    amount,
	}, &created)
	sig, err := tx.Sign(&created, env.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return &created, sig
}

// ── Chain ───────────────────────────────────────────────────────────────

func TestRPC_ChainGetInfo(t *testing.T) {
	env := setupTestEnv(t)

	var result ChainInfoResult
	mustCall(t, env.url, "chain_getInfo", nil, &result)

	if result.ChainID != "klingnet-test-rpc" {
		t.Errorf("chain_id = %q, want %q", result.ChainID, "klingnet-test-rpc")
	}
	if result.Height != 0 || result.Length != 1 {
		t.Errorf("height = %d, length = %d, want 0 and 1", result.Height, result.Length)
	}
	if result.TipHash != env.ledger.Tip().Hash.String() {
		t.Errorf("tip_hash = %q, want genesis hash", result.TipHash)
	}
	if result.Difficulty != 1 {
		t.Errorf("difficulty = %d, want 1", result.Difficulty)
	}
	commitment, _ := env.ledger.UTXOCommitment()
	if result.UTXOCommitment != commitment.String() {
		t.Errorf("utxo_commitment = %q, want %q", result.UTXOCommitment, commitment)
	}
}

func TestRPC_ChainGetBlock(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, "chain_getBlock", IndexParam{Index: 0})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}
	data, _ := json.Marshal(resp.Result)
	if !strings.Contains(string(data), `"transactions":[]`) {
		t.Errorf("genesis block should encode empty transactions, got %s", data)
	}
	if !strings.Contains(string(data), env.ledger.Tip().Hash.String()) {
		t.Errorf("genesis block missing hash: %s", data)
	}
}

func TestRPC_ChainGetBlock_NotFound(t *testing.T) {
	env := setupTestEnv(t)
	expectCode(t, env.url, "chain_getBlock", IndexParam{Index: 5}, CodeNotFound)
}

func TestRPC_ChainGetDump(t *testing.T) {
	env := setupTestEnv(t)

	var dump struct {
		Chain  []json.RawMessage `json:"chain"`
		Length int               `json:"length"`
	}
	mustCall(t, env.url, "chain_getDump", nil, &dump)
	if dump.Length != 1 || len(dump.Chain) != 1 {
		t.Errorf("dump length = %d with %d blocks, want 1", dump.Length, len(dump.Chain))
	}
}

func TestRPC_ChainValidate(t *testing.T) {
	env := setupTestEnv(t)

	var result ValidateResult
	mustCall(t, env.url, "chain_validate", nil, &result)
	if !result.Valid || result.Length != 1 {
		t.Errorf("validate = %+v, want valid chain of length 1", result)
	}
}

// ── UTXO ────────────────────────────────────────────────────────────────

func TestRPC_UTXOGetByAddress(t *testing.T) {
	env := setupTestEnv(t)

	var result UTXOListResult
	mustCall(t, env.url, "utxo_getByAddress", AddressParam{Address: env.addr.String()}, &result)
	if len(result.UTXOs) != 1 {
		t.Fatalf("utxos = %d, want 1", len(result.UTXOs))
	}
	u := result.UTXOs[0]
	if u.ID != ledger.AllocationID(env.addr) || u.Amount != testAlloc {
		t.Errorf("utxo = %+v, want genesis allocation", u)
	}

	var empty UTXOListResult
	mustCall(t, env.url, "utxo_getByAddress", AddressParam{Address: env.other.String()}, &empty)
	if empty.UTXOs == nil || len(empty.UTXOs) != 0 {
		t.Errorf("unfunded address utxos = %v, want empty list", empty.UTXOs)
	}
}

func TestRPC_UTXOGetBalance(t *testing.T) {
	env := setupTestEnv(t)

	var result BalanceResult
	mustCall(t, env.url, "utxo_getBalance", AddressParam{Address: env.addr.String()}, &result)
	if result.Balance != testAlloc {
		t.Errorf("balance = %d, want %d", result.Balance, testAlloc)
	}
}

func TestRPC_InvalidAddress(t *testing.T) {
	env := setupTestEnv(t)
	expectCode(t, env.url, "utxo_getBalance", AddressParam{Address: "alice"}, CodeInvalidParams)
	expectCode(t, env.url, "utxo_getBalance", AddressParam{}, CodeInvalidParams)
}

// ── Transactions ────────────────────────────────────────────────────────

func TestRPC_TxCreate(t *testing.T) {
	env := setupTestEnv(t)

	created, _ := createSigned(t, env, 300)
	if created.Sender != env.addr || created.Recipient != env.other || created.Amount != 300 {
		t.Fatalf("created = %+v", created)
	}
	if len(created.Inputs) != 1 || created.Inputs[0].PreviousOutputID != ledger.AllocationID(env.addr) {
		t.Errorf("inputs = %+v, want the genesis allocation", created.Inputs)
	}
	if len(created.Outputs) != 2 {
		t.Fatalf("outputs = %d, want 2", len(created.Outputs))
	}
	if created.Outputs[0].Recipient != env.other || created.Outputs[0].Amount != 300 {
		t.Errorf("outputs[0] = %+v, want 300 to recipient", created.Outputs[0])
	}
	if created.Outputs[1].Recipient != env.addr || created.Outputs[1].Amount != 700 {
		t.Errorf("outputs[1] = %+v, want 700 change", created.Outputs[1])
	}

	// tx_create reserves nothing.
	if b, _ := env.ledger.Balance(env.addr); b != testAlloc {
		t.Errorf("balance after tx_create = %d, want %d", b, testAlloc)
	}
}

func TestRPC_TxCreate_Errors(t *testing.T) {
	env := setupTestEnv(t)

	expectCode(t, env.url, "tx_create", TxCreateParam{
		Sender: env.addr.String(), Recipient: env.other.String(), Amount: testAlloc + 1,
	}, CodeRejected)
	expectCode(t, env.url, "tx_create", TxCreateParam{
		Sender: env.other.String(), Recipient: env.addr.String(), Amount: 1,
	}, CodeRejected)
	expectCode(t, env.url, "tx_create", TxCreateParam{
		Sender: env.addr.String(), Recipient: env.other.String(),
	}, CodeInvalidParams)
	expectCode(t, env.url, "tx_create", TxCreateParam{
		Sender: env.addr.String(), Recipient: "bob", Amount: 1,
	}, CodeInvalidParams)
}

func TestRPC_TxSubmit(t *testing.T) {
	env := setupTestEnv(t)

	created, sig := createSigned(t, env, 300)

	var result TxSubmitResult
	mustCall(t, env.url, "tx_submit", TxSubmitParam{Transaction: created, Signature: sig, Broadcast: true}, &result)
	if result.TransactionID != created.ID {
		t.Errorf("transaction_id = %q, want %q", result.TransactionID, created.ID)
	}
	if result.Broadcast {
		t.Error("broadcast reported without a p2p node")
	}

	var content MempoolContentResult
	mustCall(t, env.url, "mempool_getContent", nil, &content)
	if content.Count != 1 || content.Transactions[0].ID != created.ID {
		t.Fatalf("mempool = %+v, want the submitted transaction", content)
	}

	// The spent allocation is reserved until the block commits.
	var bal BalanceResult
	mustCall(t, env.url, "utxo_getBalance", AddressParam{Address: env.addr.String()}, &bal)
	if bal.Balance != 0 {
		t.Errorf("sender balance = %d, want 0 while pending", bal.Balance)
	}

	expectCode(t, env.url, "tx_submit", TxSubmitParam{Transaction: created, Signature: sig}, CodeRejected)
}

func TestRPC_TxSubmit_Rejected(t *testing.T) {
	env := setupTestEnv(t)

	created, sig := createSigned(t, env, 300)

	t.Run("missing signature", func(t *testing.T) {
		expectCode(t, env.url, "tx_submit", TxSubmitParam{Transaction: created}, CodeInvalidParams)
	})

	t.Run("wrong signer", func(t *testing.T) {
		other, _ := crypto.GenerateKey()
		bad, _ := tx.Sign(created, other)
		expectCode(t, env.url, "tx_submit", TxSubmitParam{Transaction: created, Signature: bad}, CodeRejected)
	})

	t.Run("tampered amount", func(t *testing.T) {
		tampered := created.Clone()
		tampered.Outputs[0].Amount++
		tampered.Outputs[1].Amount--
		expectCode(t, env.url, "tx_submit", TxSubmitParam{Transaction: tampered, Signature: sig}, CodeRejected)
	})

	t.Run("unbalanced", func(t *testing.T) {
		unbalanced := created.Clone()
		unbalanced.Outputs[1].Amount++
		s, _ := tx.Sign(unbalanced, env.key)
		expectCode(t, env.url, "tx_submit", TxSubmitParam{Transaction: unbalanced, Signature: s}, CodeRejected)
	})

	if env.ledger.PendingCount() != 0 {
		t.Errorf("pending = %d, want 0 after rejections", env.ledger.PendingCount())
	}
}

func TestRPC_TxSign(t *testing.T) {
	env := setupTestEnv(t)
	created, _ := createSigned(t, env, 10)

	expectCode(t, env.url, "tx_sign", TxSignParam{Transaction: created}, CodeInternalError)

	env.server.SetWallet(wallet.FromKey(env.key))

	var result TxSignResult
	mustCall(t, env.url, "tx_sign", TxSignParam{Transaction: created}, &result)
	if err := tx.VerifySender(created, result.Signature); err != nil {
		t.Fatalf("signature from tx_sign does not verify: %v", err)
	}

	foreign := created.Clone()
	foreign.Sender = env.other
	expectCode(t, env.url, "tx_sign", TxSignParam{Transaction: foreign}, CodeInvalidParams)
}

func TestRPC_LargeAmountsKeepPrecision(t *testing.T) {
	env := setupTestEnv(t)
	rich := env.addr.String()

	gen := &config.Genesis{ChainID: "rich", Difficulty: 1, Alloc: map[string]uint64{rich: 1<<62 + 1}}
	l, err := ledger.New(gen, utxo.NewStore(storage.NewMemory()), consensus.NewPoW(1), nil)
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	srv := startServer(t, l, gen, config.RPCConfig{})
	url := fmt.Sprintf("http://%s/", srv.Addr())

	var created tx.Transaction
	mustCall(t, url, "tx_create", TxCreateParam{
		Sender: rich, Recipient: env.other.String(), Amount: 1<<62 - 1,
	}, &created)
	if created.Amount != 1<<62-1 || created.Outputs[1].Amount != 2 {
		t.Fatalf("amounts = %d / %d, want exact values", created.Amount, created.Outputs[1].Amount)
	}

	sig, _ := tx.Sign(&created, env.key)
	mustCall(t, url, "tx_submit", TxSubmitParam{Transaction: &created, Signature: sig}, nil)
	if b, _ := l.Balance(env.other); b != 0 {
		t.Errorf("recipient balance = %d before the block, want 0", b)
	}
	if pending := l.Pending(); len(pending) != 1 || pending[0].Amount != 1<<62-1 {
		t.Errorf("pending = %+v, want the exact amount", pending)
	}
}

// ── Blocks & mining ─────────────────────────────────────────────────────

func TestRPC_BlockSubmit(t *testing.T) {
	env := setupTestEnv(t)

	created, sig := createSigned(t, env, 300)
	mustCall(t, env.url, "tx_submit", TxSubmitParam{Transaction: created, Signature: sig}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	blk, err := env.ledger.Mine(ctx)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}

	var result BlockSubmitResult
	mustCall(t, env.url, "block_submit", BlockSubmitParam{Block: blk}, &result)
	if result.Height != 1 || result.Hash != blk.Hash.String() {
		t.Errorf("block_submit = %+v", result)
	}
	if env.ledger.Height() != 1 || env.ledger.PendingCount() != 0 {
		t.Errorf("height = %d, pending = %d, want 1 and 0", env.ledger.Height(), env.ledger.PendingCount())
	}

	var bal BalanceResult
	mustCall(t, env.url, "utxo_getBalance", AddressParam{Address: env.other.String()}, &bal)
	if bal.Balance != 300 {
		t.Errorf("recipient balance = %d, want 300", bal.Balance)
	}

	// Resubmitting no longer links to the tip.
	expectCode(t, env.url, "block_submit", BlockSubmitParam{Block: blk}, CodeRejected)
	expectCode(t, env.url, "block_submit", map[string]interface{}{}, CodeInvalidParams)
}

func TestRPC_MiningDisabled(t *testing.T) {
	env := setupTestEnv(t)
	expectCode(t, env.url, "mining_start", nil, CodeInternalError)
	expectCode(t, env.url, "mining_getStatus", nil, CodeInternalError)
}

func TestRPC_MiningSetDifficulty(t *testing.T) {
	env := setupTestEnv(t)

	var result DifficultyResult
	mustCall(t, env.url, "mining_setDifficulty", DifficultyParam{Difficulty: 3}, &result)
	if result.Difficulty != 3 || env.ledger.Difficulty() != 3 {
		t.Errorf("difficulty = %d (ledger %d), want 3", result.Difficulty, env.ledger.Difficulty())
	}

	expectCode(t, env.url, "mining_setDifficulty", DifficultyParam{Difficulty: consensus.MaxDifficulty + 1}, CodeInvalidParams)
	expectCode(t, env.url, "mining_setDifficulty", DifficultyParam{Difficulty: -1}, CodeInvalidParams)
}

// ── Network ─────────────────────────────────────────────────────────────

func TestRPC_NetGetPeerInfo_Disabled(t *testing.T) {
	env := setupTestEnv(t)

	var result PeerInfoResult
	mustCall(t, env.url, "net_getPeerInfo", nil, &result)
	if result.Enabled || result.Count != 0 || len(result.Peers) != 0 {
		t.Errorf("peer info = %+v, want disabled", result)
	}
}

// ── Protocol ────────────────────────────────────────────────────────────

func TestRPC_MethodNotFound(t *testing.T) {
	env := setupTestEnv(t)
	expectCode(t, env.url, "chain_nope", nil, CodeMethodNotFound)
}

func TestRPC_InvalidParams(t *testing.T) {
	env := setupTestEnv(t)
	expectCode(t, env.url, "chain_getBlock", nil, CodeInvalidParams)
	expectCode(t, env.url, "chain_getBlock", map[string]string{"index": "one"}, CodeInvalidParams)
}

func TestRPC_InvalidJSON(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Post(env.url, "application/json", bytes.NewReader([]byte("not json")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	json.NewDecoder(resp.Body).Decode(&rpcResp)

	if rpcResp.Error == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if rpcResp.Error.Code != CodeParseError {
		t.Errorf("error code = %d, want %d", rpcResp.Error.Code, CodeParseError)
	}
}

func TestRPC_WrongVersion(t *testing.T) {
	env := setupTestEnv(t)

	body := []byte(`{"jsonrpc":"1.0","method":"chain_getInfo","id":7}`)
	resp, err := http.Post(env.url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	json.NewDecoder(resp.Body).Decode(&rpcResp)
	if rpcResp.Error == nil || rpcResp.Error.Code != CodeInvalidRequest {
		t.Fatalf("error = %+v, want invalid request", rpcResp.Error)
	}
	if id, ok := rpcResp.ID.(float64); !ok || id != 7 {
		t.Errorf("id = %v, want 7", rpcResp.ID)
	}
}

func TestRPC_BodyTooLarge(t *testing.T) {
	env := setupTestEnv(t)

	body := bytes.Repeat([]byte(" "), maxBodySize+1)
	resp, err := http.Post(env.url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	json.NewDecoder(resp.Body).Decode(&rpcResp)
	if rpcResp.Error == nil || rpcResp.Error.Code != CodeInvalidRequest {
		t.Errorf("error = %+v, want invalid request", rpcResp.Error)
	}
}

func TestRPC_GetMethodNotAllowed(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Get(env.url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	json.NewDecoder(resp.Body).Decode(&rpcResp)

	if rpcResp.Error == nil {
		t.Fatal("expected error for GET request")
	}
	if rpcResp.Error.Code != CodeInvalidRequest {
		t.Errorf("error code = %d, want %d", rpcResp.Error.Code, CodeInvalidRequest)
	}
}

// --- IP Filtering ---

func TestRPC_IPFilter_Allowed(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.RPCConfig{
		AllowedIPs: []string{"127.0.0.1"},
	})

	resp := rpcCall(t, env.url, "chain_getInfo", nil)
	if resp.Error != nil {
		t.Errorf("expected success for 127.0.0.1, got error: %s", resp.Error.Message)
	}
}

func TestRPC_IPFilter_Blocked(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.RPCConfig{
		AllowedIPs: []string{"10.0.0.0/8"},
	})

	req := Request{JSONRPC: "2.0", Method: "chain_getInfo", ID: 1}
	body, _ := json.Marshal(req)
	resp, err := http.Post(env.url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}

func TestParseAllowedIPs(t *testing.T) {
	nets := parseAllowedIPs([]string{"10.0.0.0/8", "127.0.0.1", "::1", "garbage"})
	if len(nets) != 3 {
		t.Fatalf("parsed %d networks, want 3", len(nets))
	}
}

// --- CORS ---

func TestRPC_CORS_SpecificOrigin(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.RPCConfig{
		CORSOrigins: []string{"http://myapp.com"},
	})

	post := func(origin string) *http.Response {
		body, _ := json.Marshal(Request{JSONRPC: "2.0", Method: "chain_getInfo", ID: 1})
		httpReq, _ := http.NewRequest(http.MethodPost, env.url, bytes.NewReader(body))
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(httpReq)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		return resp
	}

	if got := post("http://myapp.com").Header.Get("Access-Control-Allow-Origin"); got != "http://myapp.com" {
		t.Errorf("CORS origin = %q, want %q", got, "http://myapp.com")
	}
	if got := post("http://evil.com").Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("non-matching origin should have no CORS header, got %q", got)
	}
}

func TestRPC_CORS_Preflight(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.RPCConfig{
		CORSOrigins: []string{"*"},
	})

	httpReq, _ := http.NewRequest(http.MethodOptions, env.url, nil)
	httpReq.Header.Set("Origin", "http://example.com")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("preflight should allow any origin")
	}
	if resp.Header.Get("Access-Control-Allow-Methods") == "" {
		t.Error("preflight should have Allow-Methods header")
	}
}
