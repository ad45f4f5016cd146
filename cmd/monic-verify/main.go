// Command monic-verify is a standalone maintenance tool that runs the
// engine's integrity check against an existing db_path without starting
// the ingestor: it recomputes the trie root from the persisted forward
// map and compares it against the stored trie_root, reporting
// IntegrityViolation on mismatch.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/monicindex/monicindex/commit"
	"github.com/monicindex/monicindex/core/rawdb"
)

var (
	version   = "v0.1.0-dev"
	gitCommit = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "monic-verify",
		Usage:   "recompute and check the monicindex trie root against a db_path",
		Version: fmt.Sprintf("%s (commit %s)", version, gitCommit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db_path",
				Usage:    "filesystem path for the pebble store to verify",
				Required: true,
			},
		},
		Action: runVerify,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "monic-verify: %v\n", err)
		os.Exit(1)
	}
}

func runVerify(c *cli.Context) error {
	dbPath := c.String("db_path")

	db, err := rawdb.NewPebbleDB(dbPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	// startBlock is irrelevant here: IntegrityCheck only walks persisted
	// state and never drives ingestion.
	engine, err := commit.New(db, 0, nil)
	if err != nil {
		return fmt.Errorf("load engine state: %w", err)
	}

	head, ok := engine.Head()
	if !ok {
		fmt.Println("monic-verify: no head metadata found, nothing to verify")
		return nil
	}

	if err := engine.IntegrityCheck(); err != nil {
		return fmt.Errorf("integrity check failed at block %d: %w", head.Number, err)
	}

	fmt.Printf("monic-verify: OK — block %d, %d indices, root %s\n",
		head.Number, head.NextIdx-(1<<18), head.Root.Hex())
	return nil
}
