package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
)

// flagSpec binds a command-line flag to a config key.
type flagSpec struct {
	name   string
	key    string
	usage  string
	isBool bool
}

// configFlags are the flags that override config file keys. Flags not set
// on the command line leave the file value alone.
var configFlags = []flagSpec{
	{name: "genesis", key: "genesis", usage: "Genesis JSON file path"},

	{name: "p2p", key: "p2p.enabled", usage: "Enable P2P gossip", isBool: true},
	{name: "p2p-port", key: "p2p.port", usage: "P2P listen port"},
	{name: "seeds", key: "p2p.seeds", usage: "Seed nodes as comma-separated libp2p multiaddrs"},
	{name: "maxpeers", key: "p2p.maxpeers", usage: "Maximum number of peers"},

	{name: "rpc", key: "rpc.enabled", usage: "Enable RPC server", isBool: true},
	{name: "rpc-addr", key: "rpc.addr", usage: "RPC listen address"},
	{name: "rpc-port", key: "rpc.port", usage: "RPC listen port"},
	{name: "rpc-allowed", key: "rpc.allowed", usage: "Allowed IPs for RPC"},
	{name: "rpc-cors", key: "rpc.cors", usage: "Allowed CORS origins for RPC"},

	{name: "wallet", key: "wallet.enabled", usage: "Unlock a keystore wallet at startup", isBool: true},
	{name: "wallet-name", key: "wallet.name", usage: "Keystore wallet name"},
	{name: "wallet-account", key: "wallet.account", usage: "Account index within the wallet"},

	{name: "mine", key: "mining.enabled", usage: "Enable block production", isBool: true},
	{name: "threads", key: "mining.threads", usage: "Mining threads"},

	{name: "mempool-size", key: "mempool.maxsize", usage: "Maximum pending transactions"},
	{name: "storage", key: "storage.backend", usage: "UTXO index backend (memory or badger)"},

	{name: "log-level", key: "log.level", usage: "Log level (debug, info, warn, error)"},
	{name: "log-file", key: "log.file", usage: "Log file path"},
	{name: "log-json", key: "log.json", usage: "Output logs as JSON", isBool: true},
}

// Flags holds parsed command-line flags.
type Flags struct {
	Help    bool
	Version bool

	// Network, DataDir and Config pick the defaults and the config file,
	// so they are resolved before any file is read.
	Network string
	DataDir string
	Config  string

	// Values holds the config overrides given on the command line, by key.
	Values map[string]string

	// Remaining args
	Args []string
}

// rawFlag records the text of a config flag.
type rawFlag struct {
	values map[string]string
	key    string
	isBool bool
}

func (r *rawFlag) String() string {
	if r == nil || r.values == nil {
		return ""
	}
	return r.values[r.key]
}

func (r *rawFlag) Set(s string) error {
	r.values[r.key] = s
	return nil
}

func (r *rawFlag) IsBoolFlag() bool { return r.isBool }

// ParseFlags parses the process command line. Exits on parse errors.
func ParseFlags() *Flags {
	f, err := ParseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return f
}

// ParseArgs parses command-line arguments.
func ParseArgs(args []string) (*Flags, error) {
	f := &Flags{Values: make(map[string]string)}
	fs := flag.NewFlagSet("ledgerd", flag.ContinueOnError)
	fs.Usage = printUsage

	for _, name := range []string{"help", "h"} {
		fs.BoolVar(&f.Help, name, false, "Show help message")
	}
	for _, name := range []string{"version", "v"} {
		fs.BoolVar(&f.Version, name, false, "Show version information")
	}
	for _, name := range []string{"config", "c"} {
		fs.StringVar(&f.Config, name, "", "Config file path")
	}
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	testnet := fs.Bool("testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")

	for _, cf := range configFlags {
		fs.Var(&rawFlag{values: f.Values, key: cf.key, isBool: cf.isBool}, cf.name, cf.usage)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *testnet {
		f.Network = string(Testnet)
	}
	f.Args = fs.Args()

	// A positional argument stops the parser; anything flag-like after it
	// would be silently dropped.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}
	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) error {
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if err := ApplyFileConfig(cfg, f.Values); err != nil {
		return fmt.Errorf("flag: %w", err)
	}
	return nil
}

func printUsage() {
	var b strings.Builder
	b.WriteString(`Klingnet Ledger - single-node proof-of-work UTXO ledger

Usage:
  ledgerd [options]

Options:
  --help, -h      Show this help message
  --version, -v   Show version information
  --network       Network type: mainnet (default) or testnet
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.klingnet-ledger)
  --config, -c    Config file path (default: <datadir>/ledger.conf)
`)
	for _, cf := range configFlags {
		fmt.Fprintf(&b, "  --%-14s %s (%s)\n", cf.name, cf.usage, cf.key)
	}
	b.WriteString(`
Examples:
  # Start a testnet node that mines with 4 threads
  ledgerd --testnet --mine --threads=4

  # Gossip with a peer
  ledgerd --p2p --seeds=/ip4/203.0.113.1/tcp/30313/p2p/12D3KooW...

Note:
  All ledger state is held in memory and is lost when the node stops.
`)
	fmt.Print(b.String())
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("ledgerd version 0.1.0")
		os.Exit(0)
	}

	cfg, err := loadWith(flags)
	if err != nil {
		return nil, nil, err
	}
	return cfg, flags, nil
}

func loadWith(flags *Flags) (*Config, error) {
	network := Mainnet
	if strings.ToLower(flags.Network) == string(Testnet) {
		network = Testnet
	}
	cfg := Default(network)
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}

	if err := ApplyFlags(cfg, flags); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// EnsureDataDirs creates the data directory layout and, on first start, a
// default config file. It is idempotent.
func EnsureDataDirs(cfg *Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.ChainDataDir(), cfg.KeystoreDir(), cfg.LogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
