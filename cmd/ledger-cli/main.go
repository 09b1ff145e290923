// ledger-cli is a command-line client for interacting with a ledgerd node.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/rpc"
	"github.com/Klingon-tech/klingnet-ledger/internal/rpcclient"
	"github.com/Klingon-tech/klingnet-ledger/internal/wallet"
	"github.com/Klingon-tech/klingnet-ledger/pkg/block"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// keystoreDir returns the keystore path matching ledgerd's layout:
// <datadir>/<network>/keystore
func keystoreDir(dataDir, network string) string {
	return filepath.Join(dataDir, network, "keystore")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	rpcURL := ""
	dataDir := config.DefaultDataDir()
	network := string(config.Mainnet)

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			network = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = args[0][len("--network="):]
			args = args[1:]
		case args[0] == "--testnet":
			network = string(config.Testnet)
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	if rpcURL == "" {
		rpcURL = defaultRPCURL(config.NetworkType(network))
	}

	ksDir := keystoreDir(dataDir, network)
	client := rpcclient.New(rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "status":
		cmdStatus(client)
	case "chain":
		cmdChain(client)
	case "block":
		cmdBlock(client, cmdArgs)
	case "validate":
		cmdValidate(client)
	case "balance":
		cmdBalance(client, cmdArgs)
	case "utxos":
		cmdUTXOs(client, cmdArgs)
	case "mempool":
		cmdMempool(client)
	case "send":
		cmdSend(client, cmdArgs, ksDir)
	case "submit-block":
		cmdSubmitBlock(client, cmdArgs)
	case "peers":
		cmdPeers(client)
	case "wallet":
		cmdWallet(client, cmdArgs, ksDir)
	case "mining":
		cmdMining(client, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: ledger-cli [global flags] <command> [flags]

Global flags:
  --rpc <url>         RPC endpoint (default: http://127.0.0.1:8555, testnet :8655)
  --datadir <path>    Data directory (default: ~/.klingnet-ledger)
  --network <net>     mainnet (default) or testnet
  --testnet           Shorthand for --network testnet

Commands:
  status                          Show chain status
  chain                           Dump the full chain as JSON
  block <index>                   Show block details
  validate                        Re-validate the chain from genesis
  balance <address>               Show address balance
  utxos <address>                 List unspent outputs of an address
  mempool                         Show pending transactions
  send --wallet <w> --to <addr> --amount <n> [--account 0] [--broadcast]
                                  Sign locally and submit a transfer
  submit-block <file.json> [--broadcast]
                                  Submit a mined block
  peers                           Show connected peers

  wallet create --name <n>        Create a new wallet
  wallet import --name <n> --mnemonic "..."
                                  Import wallet from mnemonic
  wallet list                     List wallets
  wallet address --wallet <w>     List opened account addresses
  wallet info                     Show the node wallet

  mining start                    Start the node miner
  mining stop                     Stop the node miner
  mining status                   Show miner status
  mining difficulty <n>           Change the mining difficulty
`)
}

func defaultRPCURL(network config.NetworkType) string {
	cfg := config.Default(network)
	return fmt.Sprintf("http://%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
}

// ── status ──────────────────────────────────────────────────────────────

func cmdStatus(client *rpcclient.Client) {
	var info rpc.ChainInfoResult
	if err := client.Call("chain_getInfo", nil, &info); err != nil {
		fatal("chain_getInfo: %v", err)
	}

	fmt.Printf("Chain:      %s\n", info.ChainID)
	fmt.Printf("Height:     %d\n", info.Height)
	fmt.Printf("Tip:        %s\n", info.TipHash)
	fmt.Printf("Difficulty: %d\n", info.Difficulty)
	fmt.Printf("Pending:    %d\n", info.Pending)
	fmt.Printf("UTXO root:  %s\n", info.UTXOCommitment)

	var peers rpc.PeerInfoResult
	if err := client.Call("net_getPeerInfo", nil, &peers); err != nil {
		fatal("net_getPeerInfo: %v", err)
	}
	if peers.Enabled {
		fmt.Printf("Peers:      %d\n", peers.Count)
	} else {
		fmt.Println("Peers:      offline")
	}
}

// ── chain ───────────────────────────────────────────────────────────────

func cmdChain(client *rpcclient.Client) {
	var dump block.Dump
	if err := client.Call("chain_getDump", nil, &dump); err != nil {
		fatal("chain_getDump: %v", err)
	}
	printJSON(dump)
}

func cmdBlock(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: ledger-cli block <index>")
	}
	index, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fatal("invalid index %q", args[0])
	}

	var blk block.Block
	if err := client.Call("chain_getBlock", rpc.IndexParam{Index: index}, &blk); err != nil {
		fatal("chain_getBlock: %v", err)
	}

	fmt.Printf("Index:        %d\n", blk.Index)
	fmt.Printf("Hash:         %s\n", blk.Hash)
	fmt.Printf("Prev:         %s\n", blk.PreviousHash)
	fmt.Printf("Nonce:        %d\n", blk.Nonce)
	ts := time.Unix(blk.Timestamp, 0).UTC()
	fmt.Printf("Timestamp:    %s\n", ts.Format("2006-01-02 15:04:05 UTC"))
	fmt.Printf("Transactions: %d\n", len(blk.Transactions))
	for i, t := range blk.Transactions {
		fmt.Printf("  [%d] %s  %s -> %s  %d\n", i, t.ID, t.Sender.Short(), t.Recipient.Short(), t.Amount)
	}
}

func cmdValidate(client *rpcclient.Client) {
	var result rpc.ValidateResult
	if err := client.Call("chain_validate", nil, &result); err != nil {
		fatal("chain_validate: %v", err)
	}
	if !result.Valid {
		fatal("chain invalid (%d blocks): %s", result.Length, result.Error)
	}
	fmt.Printf("Chain valid (%d blocks)\n", result.Length)
}

// ── balances ────────────────────────────────────────────────────────────

func cmdBalance(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: ledger-cli balance <address>")
	}

	var result rpc.BalanceResult
	if err := client.Call("utxo_getBalance", rpc.AddressParam{Address: args[0]}, &result); err != nil {
		fatal("utxo_getBalance: %v", err)
	}
	fmt.Printf("Address: %s\n", result.Address)
	fmt.Printf("Balance: %d\n", result.Balance)
}

func cmdUTXOs(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: ledger-cli utxos <address>")
	}

	var result rpc.UTXOListResult
	if err := client.Call("utxo_getByAddress", rpc.AddressParam{Address: args[0]}, &result); err != nil {
		fatal("utxo_getByAddress: %v", err)
	}
	if len(result.UTXOs) == 0 {
		fmt.Println("No unspent outputs.")
		return
	}
	for _, out := range result.UTXOs {
		fmt.Printf("  %s  %d  (tx %s)\n", out.ID, out.Amount, out.TransactionID)
	}
}

func cmdMempool(client *rpcclient.Client) {
	var content rpc.MempoolContentResult
	if err := client.Call("mempool_getContent", nil, &content); err != nil {
		fatal("mempool_getContent: %v", err)
	}

	fmt.Printf("Count: %d\n", content.Count)
	for _, t := range content.Transactions {
		fmt.Printf("  %s  %s -> %s  %d\n", t.ID, t.Sender.Short(), t.Recipient.Short(), t.Amount)
	}
}

// ── send ────────────────────────────────────────────────────────────────

func cmdSend(client *rpcclient.Client, args []string, ksDir string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	account := fs.Uint("account", 0, "BIP-44 account index")
	toAddr := fs.String("to", "", "Recipient address")
	amountStr := fs.String("amount", "", "Amount to send (whole units)")
	broadcast := fs.Bool("broadcast", false, "Gossip the transaction to peers")
	fs.Parse(args)

	if *walletName == "" || *toAddr == "" || *amountStr == "" {
		fatal("Usage: ledger-cli send --wallet <name> --to <addr> --amount <n>")
	}

	amount, err := parseAmount(*amountStr)
	if err != nil {
		fatal("invalid amount: %v", err)
	}
	if _, err := types.ParseAddress(*toAddr); err != nil {
		fatal("invalid recipient address: %v", err)
	}

	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}

	ks, err := wallet.NewKeystore(ksDir)
	if err != nil {
		fatal("open keystore: %v", err)
	}
	w, err := wallet.Open(ks, *walletName, password, uint32(*account))
	if err != nil {
		fatal("open wallet: %v", err)
	}
	defer w.Close()

	// The node builds the transfer from its UTXO view; signing stays local.
	var t tx.Transaction
	if err := client.Call("tx_create", rpc.TxCreateParam{
		Sender:    w.Address().String(),
		Recipient: *toAddr,
		Amount:    amount,
	}, &t); err != nil {
		fatal("tx_create: %v", err)
	}

	sig, err := w.Sign(&t)
	if err != nil {
		fatal("sign: %v", err)
	}

	var result rpc.TxSubmitResult
	if err := client.Call("tx_submit", rpc.TxSubmitParam{
		Transaction: &t,
		Signature:   sig,
		Broadcast:   *broadcast,
	}, &result); err != nil {
		fatal("tx_submit: %v", err)
	}
	fmt.Printf("Submitted: %s\n", result.TransactionID)
	if *broadcast && !result.Broadcast {
		fmt.Println("Warning: transaction was not broadcast")
	}
}

func cmdSubmitBlock(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("submit-block", flag.ExitOnError)
	broadcast := fs.Bool("broadcast", false, "Gossip the block to peers")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal("Usage: ledger-cli submit-block <file.json> [--broadcast]")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fatal("read block: %v", err)
	}
	var blk block.Block
	if err := json.Unmarshal(data, &blk); err != nil {
		fatal("decode block: %v", err)
	}

	var result rpc.BlockSubmitResult
	if err := client.Call("block_submit", rpc.BlockSubmitParam{Block: &blk, Broadcast: *broadcast}, &result); err != nil {
		fatal("block_submit: %v", err)
	}
	fmt.Printf("Accepted block %d: %s\n", result.Height, result.Hash)
}

// ── peers ───────────────────────────────────────────────────────────────

func cmdPeers(client *rpcclient.Client) {
	var peers rpc.PeerInfoResult
	if err := client.Call("net_getPeerInfo", nil, &peers); err != nil {
		fatal("net_getPeerInfo: %v", err)
	}
	if !peers.Enabled {
		fmt.Println("P2P disabled on this node.")
		return
	}

	fmt.Printf("Node ID: %s\n", peers.ID)
	for _, a := range peers.Addrs {
		fmt.Printf("  Listen: %s\n", a)
	}
	fmt.Printf("Peers:   %d\n", peers.Count)
	for _, p := range peers.Peers {
		fmt.Printf("  %s (%s, connected: %s)\n", p.ID, p.Source, p.ConnectedAt.Format(time.RFC3339))
	}
}

// ── wallet ──────────────────────────────────────────────────────────────

func cmdWallet(client *rpcclient.Client, args []string, ksDir string) {
	if len(args) < 1 {
		fatal("Usage: ledger-cli wallet <create|import|list|address|info> [flags]")
	}

	switch args[0] {
	case "create":
		cmdWalletCreate(args[1:], ksDir)
	case "import":
		cmdWalletImport(args[1:], ksDir)
	case "list":
		cmdWalletList(ksDir)
	case "address":
		cmdWalletAddress(args[1:], ksDir)
	case "info":
		cmdWalletInfo(client)
	default:
		fatal("Unknown wallet command: %s\nUsage: ledger-cli wallet <create|import|list|address|info> [flags]", args[0])
	}
}

func newPassword() []byte {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}
	return password
}

func cmdWalletCreate(args []string, ksDir string) {
	fs := flag.NewFlagSet("wallet create", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: ledger-cli wallet create --name <name>")
	}

	ks, err := wallet.NewKeystore(ksDir)
	if err != nil {
		fatal("create keystore: %v", err)
	}
	password := newPassword()

	w, mnemonic, err := wallet.Generate(ks, *name, password, wallet.DefaultParams())
	if err != nil {
		fatal("create wallet: %v", err)
	}
	defer w.Close()

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)
	fmt.Printf("Wallet created: %s\n", w.Name())
	fmt.Printf("Address: %s\n", w.Address())
}

func cmdWalletImport(args []string, ksDir string) {
	fs := flag.NewFlagSet("wallet import", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	mnemonic := fs.String("mnemonic", "", "BIP-39 mnemonic")
	fs.Parse(args)

	if *name == "" || *mnemonic == "" {
		fatal("Usage: ledger-cli wallet import --name <name> --mnemonic \"...\"")
	}
	if !wallet.ValidateMnemonic(*mnemonic) {
		fatal("invalid mnemonic")
	}

	ks, err := wallet.NewKeystore(ksDir)
	if err != nil {
		fatal("create keystore: %v", err)
	}
	password := newPassword()

	w, err := wallet.Import(ks, *name, *mnemonic, password, wallet.DefaultParams())
	if err != nil {
		fatal("import wallet: %v", err)
	}
	defer w.Close()

	fmt.Printf("Wallet imported: %s\n", w.Name())
	fmt.Printf("Address: %s\n", w.Address())
}

func cmdWalletList(ksDir string) {
	ks, err := wallet.NewKeystore(ksDir)
	if err != nil {
		fatal("open keystore: %v", err)
	}

	names, err := ks.List()
	if err != nil {
		fatal("list wallets: %v", err)
	}

	if len(names) == 0 {
		fmt.Println("No wallets found.")
		return
	}

	for _, name := range names {
		fmt.Println(name)
	}
}

func cmdWalletAddress(args []string, ksDir string) {
	fs := flag.NewFlagSet("wallet address", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: ledger-cli wallet address --wallet <name>")
	}

	ks, err := wallet.NewKeystore(ksDir)
	if err != nil {
		fatal("open keystore: %v", err)
	}

	accounts, err := ks.ListAccounts(*walletName)
	if err != nil {
		fatal("list accounts: %v", err)
	}

	if len(accounts) == 0 {
		fmt.Println("No addresses found.")
		return
	}

	for _, acct := range accounts {
		fmt.Printf("  [%d] %s\n", acct.Account, acct.Address)
	}
}

func cmdWalletInfo(client *rpcclient.Client) {
	var info rpc.WalletInfoResult
	if err := client.Call("wallet_getInfo", nil, &info); err != nil {
		fatal("wallet_getInfo: %v", err)
	}
	if !info.Loaded {
		fmt.Println("No wallet loaded on the node.")
		return
	}
	if info.Name != "" {
		fmt.Printf("Wallet:  %s (account %d)\n", info.Name, info.Account)
	}
	fmt.Printf("Address: %s\n", info.Address)
	fmt.Printf("Balance: %d\n", info.Balance)
}

// ── mining ──────────────────────────────────────────────────────────────

func cmdMining(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: ledger-cli mining <start|stop|status|difficulty> [args]")
	}

	var status rpc.MiningStatusResult
	switch args[0] {
	case "start":
		if err := client.Call("mining_start", nil, &status); err != nil {
			fatal("mining_start: %v", err)
		}
	case "stop":
		if err := client.Call("mining_stop", nil, &status); err != nil {
			fatal("mining_stop: %v", err)
		}
	case "status":
		if err := client.Call("mining_getStatus", nil, &status); err != nil {
			fatal("mining_getStatus: %v", err)
		}
	case "difficulty":
		if len(args) < 2 {
			fatal("Usage: ledger-cli mining difficulty <n>")
		}
		d, err := strconv.Atoi(args[1])
		if err != nil {
			fatal("invalid difficulty %q", args[1])
		}
		var result rpc.DifficultyResult
		if err := client.Call("mining_setDifficulty", rpc.DifficultyParam{Difficulty: d}, &result); err != nil {
			fatal("mining_setDifficulty: %v", err)
		}
		fmt.Printf("Difficulty: %d\n", result.Difficulty)
		return
	default:
		fatal("Unknown mining command: %s", args[0])
	}

	fmt.Printf("Running:     %t\n", status.Running)
	fmt.Printf("Mining:      %t\n", status.Mining)
	fmt.Printf("Difficulty:  %d\n", status.Difficulty)
	fmt.Printf("Pending:     %d\n", status.Pending)
	fmt.Printf("Blocks:      %d\n", status.BlocksMined)
	if status.BlocksMined > 0 {
		fmt.Printf("Last block:  %s\n", status.LastHash)
	}
	if status.LastError != "" {
		fmt.Printf("Last error:  %s\n", status.LastError)
	}
}

// ── Helpers ─────────────────────────────────────────────────────────────

// parseAmount parses a positive integer amount in base units.
func parseAmount(s string) (uint64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	if v == 0 {
		return 0, fmt.Errorf("amount must be positive")
	}
	return v, nil
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("encode: %v", err)
	}
	fmt.Println(string(data))
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
