package main

import "testing"

func TestParseFlagsDefaults(t *testing.T) {
	cfg, configPath, exit, code := parseFlags(nil)
	if exit {
		t.Fatalf("parseFlags(nil) exit = true, code %d", code)
	}
	if configPath != "" {
		t.Fatalf("configPath = %q, want empty", configPath)
	}
	if cfg.BatchSize != 1 {
		t.Fatalf("BatchSize = %d, want 1", cfg.BatchSize)
	}
	if cfg.BindAddr == "" {
		t.Fatal("BindAddr is empty")
	}
}

func TestParseFlagsOverride(t *testing.T) {
	cfg, _, exit, code := parseFlags([]string{
		"-rpc_url", "http://example.org:8545",
		"-start_block", "100",
		"-batch_size", "8",
		"-bind_addr", "0.0.0.0:9000",
	})
	if exit {
		t.Fatalf("parseFlags exit = true, code %d", code)
	}
	if cfg.RPCURL != "http://example.org:8545" {
		t.Errorf("RPCURL = %q", cfg.RPCURL)
	}
	if cfg.StartBlock != 100 {
		t.Errorf("StartBlock = %d, want 100", cfg.StartBlock)
	}
	if cfg.BatchSize != 8 {
		t.Errorf("BatchSize = %d, want 8", cfg.BatchSize)
	}
	if cfg.BindAddr != "0.0.0.0:9000" {
		t.Errorf("BindAddr = %q", cfg.BindAddr)
	}
}

func TestParseFlagsVersion(t *testing.T) {
	_, _, exit, code := parseFlags([]string{"-version"})
	if !exit || code != 0 {
		t.Fatalf("parseFlags(-version) = exit %v code %d, want exit true code 0", exit, code)
	}
}

func TestParseFlagsInvalid(t *testing.T) {
	_, _, exit, code := parseFlags([]string{"-nosuchflag"})
	if !exit || code != 2 {
		t.Fatalf("parseFlags(-nosuchflag) = exit %v code %d, want exit true code 2", exit, code)
	}
}
