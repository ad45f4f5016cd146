// Command monicindex is the main entry point for the monicindex daemon:
// it drives the ingestor and commit engine against an upstream RPC
// endpoint and serves the read-only query HTTP surface.
//
// Usage:
//
//	monicindex [flags]
//
// Flags:
//
//	-config        Path to a TOML-like config file (optional)
//	-datadir       Data directory for the pebble store (default: ~/.monicindex)
//	-rpc_url       Upstream JSON-RPC endpoint (default: http://127.0.0.1:8545)
//	-start_block   First block to index if no head metadata exists (default: 0)
//	-batch_size    Max blocks committed per atomic write (default: 1)
//	-bind_addr     Listen address for the query HTTP server (default: 127.0.0.1:8645)
//	-metrics_addr  Listen address for the Prometheus /metrics endpoint (empty disables)
//	-verbosity     Log level 0-5 (0=silent, 5=trace; default: 3)
//	-version       Print version and exit
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"

	"github.com/monicindex/monicindex/node"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. This pattern
// makes it easy to test the binary without calling os.Exit directly.
func run(args []string) int {
	cfg, configPath, exit, code := parseFlags(args)
	if exit {
		return code
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: read config %s: %v\n", configPath, err)
			return 2
		}
		fc, err := node.LoadConfig(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: parse config %s: %v\n", configPath, err)
			return 2
		}
		cfg = fc.AsConfig()
	}

	setupLogging(cfg.Verbosity)

	log.Info("starting monicindex",
		"version", version,
		"commit", commit,
		"datadir", cfg.DataDir,
		"rpc_url", cfg.RPCURL,
		"bind_addr", cfg.BindAddr,
		"batch_size", cfg.BatchSize,
	)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		return 1
	}

	n, err := node.New(&cfg)
	if err != nil {
		log.Error("failed to create node", "err", err)
		return 1
	}

	if err := n.Start(); err != nil {
		log.Error("failed to start node", "err", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received signal, shutting down", "signal", sig)

	if err := n.Stop(); err != nil {
		log.Error("error during shutdown", "err", err)
		return 1
	}

	log.Info("shutdown complete")
	return 0
}

// parseFlags parses CLI arguments into a Config. Returns the config, the
// -config path (if set), whether the caller should exit immediately, and
// the exit code.
func parseFlags(args []string) (node.Config, string, bool, int) {
	cfg := node.DefaultConfig()
	fs := newCustomFlagSet("monicindex")

	configPath := fs.String("config", "", "path to a TOML-like config file (overrides other flags)")
	fs.StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "data directory for the pebble store")
	fs.StringVar(&cfg.RPCURL, "rpc_url", cfg.RPCURL, "upstream JSON-RPC endpoint")
	fs.Uint64Var(&cfg.StartBlock, "start_block", cfg.StartBlock, "first block to index if no head metadata exists")
	fs.IntVar(&cfg.BatchSize, "batch_size", cfg.BatchSize, "max blocks committed per atomic write")
	fs.StringVar(&cfg.BindAddr, "bind_addr", cfg.BindAddr, "listen address for the query HTTP server")
	fs.StringVar(&cfg.MetricsAddr, "metrics_addr", cfg.MetricsAddr, "listen address for the Prometheus /metrics endpoint (empty disables)")
	fs.IntVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, "log level 0-5 (0=silent, 5=trace)")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, "", true, 2
	}

	if *showVersion {
		fmt.Printf("monicindex %s (commit %s)\n", version, commit)
		return cfg, "", true, 0
	}

	return cfg, *configPath, false, 0
}

// setupLogging configures go-ethereum's structured logger from a numeric
// verbosity level (0=silent .. 5=trace).
func setupLogging(verbosity int) {
	var lvl slog.Level
	switch {
	case verbosity <= 0:
		lvl = log.LevelCrit
	case verbosity == 1:
		lvl = slog.LevelError
	case verbosity == 2:
		lvl = slog.LevelWarn
	case verbosity == 3:
		lvl = slog.LevelInfo
	case verbosity == 4:
		lvl = slog.LevelDebug
	default:
		lvl = log.LevelTrace
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
}
