package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/monicindex/monicindex/commit"
	"github.com/monicindex/monicindex/core/rawdb"
	"github.com/monicindex/monicindex/core/types"
)

func seedDB(t *testing.T, dir string) {
	t.Helper()
	db, err := rawdb.NewPebbleDB(dir)
	if err != nil {
		t.Fatalf("open %s: %v", dir, err)
	}
	defer db.Close()

	engine, err := commit.New(db, 0, nil)
	if err != nil {
		t.Fatalf("commit.New: %v", err)
	}
	var author types.Address
	author[len(author)-1] = 1
	var blockHash types.Hash
	blockHash[len(blockHash)-1] = 1
	block := &types.Block{Header: &types.Header{Number: 0, Hash: blockHash, Author: author}}
	if err := engine.CommitBlock(context.Background(), block); err != nil {
		t.Fatalf("CommitBlock: %v", err)
	}
}

func TestRunVerifyOK(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pebble")
	seedDB(t, dir)

	app := &cli.App{
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db_path"},
		},
		Action: runVerify,
	}
	if err := app.Run([]string{"monic-verify", "-db_path", dir}); err != nil {
		t.Fatalf("runVerify: %v", err)
	}
}

func TestRunVerifyEmptyDB(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pebble")
	db, err := rawdb.NewPebbleDB(dir)
	if err != nil {
		t.Fatalf("open %s: %v", dir, err)
	}
	db.Close()

	app := &cli.App{
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db_path"},
		},
		Action: runVerify,
	}
	if err := app.Run([]string{"monic-verify", "-db_path", dir}); err != nil {
		t.Fatalf("runVerify on empty db: %v", err)
	}
}
