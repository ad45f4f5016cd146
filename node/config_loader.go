package node

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FileConfig holds the full configuration for a monicindex daemon, parsed
// from a TOML-like configuration file. It mirrors Config but supports
// richer, sectioned structure for file-based overrides.
type FileConfig struct {
	DataDir string

	Ingest  IngestConfig
	Query   QueryConfig
	Metrics MetricsConfig
	Log     LogConfig
}

// IngestConfig holds upstream chain source and commit-engine configuration.
type IngestConfig struct {
	RPCURL     string
	StartBlock uint64
	BatchSize  int
}

// QueryConfig holds the read-only query HTTP server configuration.
type QueryConfig struct {
	BindAddr string
}

// MetricsConfig holds Prometheus metrics server configuration.
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// DefaultFileConfig returns a FileConfig with sensible defaults.
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		DataDir: defaultDataDir(),
		Ingest: IngestConfig{
			RPCURL:     "http://127.0.0.1:8545",
			StartBlock: 0,
			BatchSize:  1,
		},
		Query: QueryConfig{
			BindAddr: "127.0.0.1:8645",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9645",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for correctness.
func (fc *FileConfig) Validate() error {
	if fc.DataDir == "" {
		return errors.New("config: datadir must not be empty")
	}
	if fc.Ingest.RPCURL == "" {
		return errors.New("config: ingest.rpc_url must not be empty")
	}
	if fc.Ingest.BatchSize <= 0 {
		return fmt.Errorf("config: ingest.batch_size must be positive, got %d", fc.Ingest.BatchSize)
	}
	if fc.Query.BindAddr == "" {
		return errors.New("config: query.bind_addr must not be empty")
	}
	if fc.Metrics.Enabled && fc.Metrics.Addr == "" {
		return errors.New("config: metrics.addr must be set when metrics is enabled")
	}
	switch fc.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", fc.Log.Level)
	}
	switch fc.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", fc.Log.Format)
	}
	return nil
}

// AsConfig flattens the sectioned FileConfig into the daemon's Config.
// Log.Level becomes the numeric Verbosity; Log.Format has no Config
// counterpart and is not carried over.
func (fc *FileConfig) AsConfig() Config {
	metricsAddr := ""
	if fc.Metrics.Enabled {
		metricsAddr = fc.Metrics.Addr
	}
	verbosity := map[string]int{"error": 1, "warn": 2, "info": 3, "debug": 4, "trace": 5}[fc.Log.Level]
	return Config{
		DataDir:     fc.DataDir,
		Name:        "monicindex",
		RPCURL:      fc.Ingest.RPCURL,
		StartBlock:  fc.Ingest.StartBlock,
		BatchSize:   fc.Ingest.BatchSize,
		BindAddr:    fc.Query.BindAddr,
		MetricsAddr: metricsAddr,
		Verbosity:   verbosity,
	}
}

// LoadConfig parses a TOML-like configuration from raw bytes into a
// FileConfig. The parser handles key = value pairs and [section] headers,
// and supports string values (quoted or unquoted), integers and booleans.
func LoadConfig(data []byte) (*FileConfig, error) {
	cfg := DefaultFileConfig()
	section := ""

	lines := strings.Split(string(data), "\n")
	for lineNum, raw := range lines {
		line := strings.TrimSpace(raw)

		if line == "" || line[0] == '#' {
			continue
		}

		if line[0] == '[' {
			end := strings.Index(line, "]")
			if end < 0 {
				return nil, fmt.Errorf("line %d: unclosed section header", lineNum+1)
			}
			section = strings.TrimSpace(line[1:end])
			continue
		}

		eqIdx := strings.Index(line, "=")
		if eqIdx < 0 {
			return nil, fmt.Errorf("line %d: expected key = value", lineNum+1)
		}
		key := strings.TrimSpace(line[:eqIdx])
		val := strings.TrimSpace(line[eqIdx+1:])

		if err := applyConfigValue(cfg, section, key, val, lineNum+1); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func applyConfigValue(cfg *FileConfig, section, key, val string, lineNum int) error {
	switch section {
	case "":
		return applyTopLevel(cfg, key, val, lineNum)
	case "ingest":
		return applyIngest(cfg, key, val, lineNum)
	case "query":
		return applyQuery(cfg, key, val, lineNum)
	case "metrics":
		return applyMetrics(cfg, key, val, lineNum)
	case "log":
		return applyLog(cfg, key, val, lineNum)
	default:
		return fmt.Errorf("line %d: unknown section [%s]", lineNum, section)
	}
}

func applyTopLevel(cfg *FileConfig, key, val string, lineNum int) error {
	switch key {
	case "datadir":
		cfg.DataDir = unquote(val)
	default:
		return fmt.Errorf("line %d: unknown key %q in top-level", lineNum, key)
	}
	return nil
}

func applyIngest(cfg *FileConfig, key, val string, lineNum int) error {
	switch key {
	case "rpc_url":
		cfg.Ingest.RPCURL = unquote(val)
	case "start_block":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid start_block: %w", lineNum, err)
		}
		cfg.Ingest.StartBlock = n
	case "batch_size":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("line %d: invalid batch_size: %w", lineNum, err)
		}
		cfg.Ingest.BatchSize = n
	default:
		return fmt.Errorf("line %d: unknown key %q in [ingest]", lineNum, key)
	}
	return nil
}

func applyQuery(cfg *FileConfig, key, val string, lineNum int) error {
	switch key {
	case "bind_addr":
		cfg.Query.BindAddr = unquote(val)
	default:
		return fmt.Errorf("line %d: unknown key %q in [query]", lineNum, key)
	}
	return nil
}

func applyMetrics(cfg *FileConfig, key, val string, lineNum int) error {
	switch key {
	case "enabled":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("line %d: invalid metrics enabled: %w", lineNum, err)
		}
		cfg.Metrics.Enabled = b
	case "addr":
		cfg.Metrics.Addr = unquote(val)
	default:
		return fmt.Errorf("line %d: unknown key %q in [metrics]", lineNum, key)
	}
	return nil
}

func applyLog(cfg *FileConfig, key, val string, lineNum int) error {
	switch key {
	case "level":
		cfg.Log.Level = unquote(val)
	case "format":
		cfg.Log.Format = unquote(val)
	default:
		return fmt.Errorf("line %d: unknown key %q in [log]", lineNum, key)
	}
	return nil
}

// unquote strips surrounding double quotes from a string value.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// MergeFileConfig merges an override config onto a base config.
// Non-zero/non-empty values from override take priority over base.
func MergeFileConfig(base, override *FileConfig) *FileConfig {
	result := *base

	if override.DataDir != "" {
		result.DataDir = override.DataDir
	}
	if override.Ingest.RPCURL != "" {
		result.Ingest.RPCURL = override.Ingest.RPCURL
	}
	if override.Ingest.StartBlock != 0 {
		result.Ingest.StartBlock = override.Ingest.StartBlock
	}
	if override.Ingest.BatchSize != 0 {
		result.Ingest.BatchSize = override.Ingest.BatchSize
	}
	if override.Query.BindAddr != "" {
		result.Query.BindAddr = override.Query.BindAddr
	}
	if override.Metrics.Enabled {
		result.Metrics.Enabled = true
	}
	if override.Metrics.Addr != "" {
		result.Metrics.Addr = override.Metrics.Addr
	}
	if override.Log.Level != "" {
		result.Log.Level = override.Log.Level
	}
	if override.Log.Format != "" {
		result.Log.Format = override.Log.Format
	}

	return &result
}
