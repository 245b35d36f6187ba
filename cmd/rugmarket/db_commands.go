package main

import (
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/rugmarket/rugmarket/service/db"
)

// openStore connects to the database from the global --database-url flag.
// The caller must close the returned pool.
func openStore(c *cli.Context) (*db.Store, *pgxpool.Pool, error) {
	databaseURL := c.String("database-url")
	if databaseURL == "" {
		return nil, nil, fmt.Errorf("--database-url or DATABASE_URL is required")
	}

	pool, err := pgxpool.New(c.Context, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(c.Context); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db.NewStore(pool), pool, nil
}

func dbSetupCommand() *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create database tables and indexes (idempotent)",
		Action: func(c *cli.Context) error {
			databaseURL := c.String("database-url")
			if databaseURL == "" {
				return fmt.Errorf("--database-url or DATABASE_URL is required")
			}

			pool, err := pgxpool.New(c.Context, databaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer pool.Close()

			if err := db.EnsureSchema(c.Context, pool); err != nil {
				return fmt.Errorf("failed to create schema: %w", err)
			}

			fmt.Println("database schema ready")
			return nil
		},
	}
}

func dbScansCommand() *cli.Command {
	return &cli.Command{
		Name:      "scans",
		Usage:     "List archived scans for a contract",
		ArgsUsage: "CONTRACT_ADDRESS",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Value: 20,
				Usage: "Maximum number of scans to return",
			},
			jqFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("contract address is required")
			}

			store, pool, err := openStore(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			scans, err := store.ListScans(c.Context, c.Args().Get(0), int32(c.Int("limit")))
			if err != nil {
				return fmt.Errorf("failed to list scans: %w", err)
			}

			return printOutput(os.Stdout, scans, c.String("jq"))
		},
	}
}

func dbMarketsCommand() *cli.Command {
	return &cli.Command{
		Name:  "markets",
		Usage: "List archived market states",
		Flags: []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			store, pool, err := openStore(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			markets, err := store.ListMarkets(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list markets: %w", err)
			}

			return printOutput(os.Stdout, markets, c.String("jq"))
		},
	}
}

func dbPredictionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "predictions",
		Usage:     "List archived predictions for a contract",
		ArgsUsage: "CONTRACT_ADDRESS",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Value: 100,
				Usage: "Maximum number of predictions to return",
			},
			jqFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("contract address is required")
			}

			store, pool, err := openStore(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			predictions, err := store.ListPredictions(c.Context, c.Args().Get(0), int32(c.Int("limit")))
			if err != nil {
				return fmt.Errorf("failed to list predictions: %w", err)
			}

			count, err := store.CountPredictions(c.Context, c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to count predictions: %w", err)
			}
			fmt.Fprintf(os.Stderr, "%d predictions total\n", count)

			return printOutput(os.Stdout, predictions, c.String("jq"))
		},
	}
}
