// Package log provides structured, colored logging for the ledger node.
package log

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// consoleTimeFormat is the timestamp layout of human-readable output.
const consoleTimeFormat = "15:04:05"

// Logger is the global logger instance.
var Logger zerolog.Logger

// Component loggers, rebuilt by Init.
var (
	Ledger  zerolog.Logger
	Miner   zerolog.Logger
	P2P     zerolog.Logger
	RPC     zerolog.Logger
	Wallet  zerolog.Logger
	Storage zerolog.Logger
)

func init() {
	setRoot(NewConsoleLogger(os.Stdout, "info"))
}

// Init configures the global logger. Console output is colored unless
// jsonOutput is set. A non-empty file additionally receives every entry
// as JSON, whatever the console format.
func Init(level string, jsonOutput bool, file string) error {
	var console io.Writer = os.Stdout
	if !jsonOutput {
		console = consoleWriter(os.Stdout)
	}

	out := console
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		out = zerolog.MultiLevelWriter(console, f)
	}

	setRoot(newLogger(out, level))
	return nil
}

// NewConsoleLogger creates a colored console logger.
func NewConsoleLogger(w io.Writer, level string) zerolog.Logger {
	return newLogger(consoleWriter(w), level)
}

// NewJSONLogger creates a structured JSON logger.
func NewJSONLogger(w io.Writer, level string) zerolog.Logger {
	return newLogger(w, level)
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
}

// parseLevel converts a config level name to a zerolog level. Unknown
// names fall back to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func setRoot(l zerolog.Logger) {
	Logger = l
	Ledger = WithComponent("ledger")
	Miner = WithComponent("miner")
	P2P = WithComponent("p2p")
	RPC = WithComponent("rpc")
	Wallet = WithComponent("wallet")
	Storage = WithComponent("storage")
}

// WithComponent returns a logger with a component field.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// Nop returns a disabled logger, for tests and embedded use.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
