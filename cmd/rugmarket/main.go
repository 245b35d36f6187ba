package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Load .env if present; real environment variables win
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "rugmarket",
		Usage: "Smart contract scanner and exploit prediction market CLI",
		Description: `A command-line tool for managing and debugging the rugmarket service.

Use this CLI to scan contracts, manage prediction markets, inspect database
state, and manage Temporal rescan schedules.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Contract scan commands (HTTP API)
			scanCommands(),
			// Prediction market commands (HTTP API)
			marketCommands(),
			// Wallet session commands (HTTP API)
			walletCommands(),
			// Database inspection commands
			{
				Name:  "db",
				Usage: "Database setup and inspection commands",
				Subcommands: []*cli.Command{
					dbSetupCommand(),
					dbScansCommand(),
					dbMarketsCommand(),
					dbPredictionsCommand(),
				},
			},
			// Temporal schedule management commands
			{
				Name:  "temporal",
				Usage: "Temporal workflow and schedule management commands",
				Subcommands: []*cli.Command{
					triggerScanCommand(),
					createScheduleCommand(),
					deleteScheduleCommand(),
					listSchedulesCommand(),
					describeScheduleCommand(),
					pauseScheduleCommand(),
					resumeScheduleCommand(),
				},
			},
			// NATS stream commands
			{
				Name:  "nats",
				Usage: "NATS JetStream debugging commands",
				Subcommands: []*cli.Command{
					natsSubscribeCommand(),
					natsInspectStreamCommand(),
				},
			},
			// SSE streaming commands
			{
				Name:  "sse",
				Usage: "Server-Sent Events streaming commands",
				Subcommands: []*cli.Command{
					sseStreamCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Server URL for HTTP API commands",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
