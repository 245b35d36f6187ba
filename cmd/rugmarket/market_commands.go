package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/rugmarket/rugmarket/service/market"
	"github.com/rugmarket/rugmarket/service/scan"
)

func marketCommands() *cli.Command {
	return &cli.Command{
		Name:  "market",
		Usage: "Prediction market commands",
		Subcommands: []*cli.Command{
			listMarketsCommand(),
			getMarketCommand(),
			seedMarketCommand(),
			predictCommand(),
			listPredictionsCommand(),
		},
	}
}

func listMarketsCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all seeded prediction markets",
		Flags: []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			markets, err := serviceClient(c).ListMarkets(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list markets: %w", err)
			}

			return printOutput(os.Stdout, markets, c.String("jq"))
		},
	}
}

func getMarketCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show the current market state for a contract",
		ArgsUsage: "CONTRACT_ADDRESS",
		Flags:     []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("contract address is required")
			}

			m, err := serviceClient(c).GetMarket(c.Context, c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to get market: %w", err)
			}

			return printOutput(os.Stdout, m, c.String("jq"))
		},
	}
}

func seedMarketCommand() *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Seed a prediction market for a contract",
		ArgsUsage: "CONTRACT_ADDRESS",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:     "yes-percentage",
				Usage:    "Initial exploit-likely percentage",
				Required: true,
			},
			&cli.Float64Flag{
				Name:  "total-staked",
				Usage: "Initial total staked amount",
			},
			&cli.IntFlag{
				Name:  "participants",
				Usage: "Initial participant count",
			},
			jqFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("contract address is required")
			}

			m, err := serviceClient(c).SeedMarket(c.Context, c.Args().Get(0), scan.MarketSeed{
				YesPercentage: c.Int("yes-percentage"),
				TotalStaked:   c.Float64("total-staked"),
				Participants:  c.Int("participants"),
			})
			if err != nil {
				return fmt.Errorf("failed to seed market: %w", err)
			}

			return printOutput(os.Stdout, m, c.String("jq"))
		},
	}
}

func predictCommand() *cli.Command {
	return &cli.Command{
		Name:      "predict",
		Usage:     "Submit a prediction against a contract's market (requires a connected wallet)",
		ArgsUsage: "CONTRACT_ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "side",
				Usage:    "Prediction side: 'yes' (will be exploited) or 'no'",
				Required: true,
			},
			&cli.Float64Flag{
				Name:     "amount",
				Usage:    "Stake amount",
				Required: true,
			},
			jqFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("contract address is required")
			}

			m, err := serviceClient(c).SubmitPrediction(c.Context, c.Args().Get(0),
				market.Prediction(c.String("side")), c.Float64("amount"))
			if err != nil {
				return fmt.Errorf("failed to submit prediction: %w", err)
			}

			return printOutput(os.Stdout, m, c.String("jq"))
		},
	}
}

func listPredictionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "predictions",
		Usage:     "Show the archived prediction history for a contract",
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

			predictions, err := serviceClient(c).ListPredictions(c.Context, c.Args().Get(0), c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to list predictions: %w", err)
			}

			return printOutput(os.Stdout, predictions, c.String("jq"))
		},
	}
}
