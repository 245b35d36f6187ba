package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func scanCommands() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Contract security scan commands",
		Subcommands: []*cli.Command{
			startScanCommand(),
			getScanCommand(),
			scanHistoryCommand(),
		},
	}
}

func startScanCommand() *cli.Command {
	return &cli.Command{
		Name:      "start",
		Usage:     "Scan a contract, archive the result, and seed its prediction market",
		ArgsUsage: "CONTRACT_ADDRESS",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "rescan-interval",
				Usage: "Rescan schedule interval (zero uses the server default)",
			},
			jqFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("contract address is required")
			}
			address := c.Args().Get(0)

			cl := serviceClient(c)

			fmt.Fprintf(os.Stderr, "Scanning contract %s...\n", address)
			start := time.Now()

			outcome, err := cl.StartScan(c.Context, address, c.Duration("rescan-interval"))
			if err != nil {
				return fmt.Errorf("failed to scan contract: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Scan completed in %v\n\n", time.Since(start).Round(time.Millisecond))
			return printOutput(os.Stdout, outcome, c.String("jq"))
		},
	}
}

func getScanCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show the latest scan result for a contract",
		ArgsUsage: "CONTRACT_ADDRESS",
		Flags:     []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("contract address is required")
			}

			result, err := serviceClient(c).GetScan(c.Context, c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to get scan: %w", err)
			}

			return printOutput(os.Stdout, result, c.String("jq"))
		},
	}
}

func scanHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show archived scans for a contract, newest first",
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

			scans, err := serviceClient(c).ListScanHistory(c.Context, c.Args().Get(0), c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to list scan history: %w", err)
			}

			return printOutput(os.Stdout, scans, c.String("jq"))
		},
	}
}
