package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"

	natspkg "github.com/rugmarket/rugmarket/service/nats"
)

func natsSubscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to market events for a contract",
		ArgsUsage: "[CONTRACT_ADDRESS]",
		Description: `Subscribe to market events published to NATS JetStream.

Events are published to the subject markets.{contract_address}. Without
an address this subscribes to every market.

Example:
  rugmarket nats subscribe 0x1234567890123456789012345678901234567890 --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output events as JSON, one per line",
			},
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer that survives restarts",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (used for durable consumers)",
				Value: "rugmarket-cli",
			},
		},
		Action: func(c *cli.Context) error {
			subject := natspkg.StreamSubjects
			if c.NArg() > 0 {
				subject = natspkg.MarketSubject(c.Args().Get(0))
			}

			return streamMarketEvents(c.Context, c.String("nats-url"), subject,
				c.Bool("durable"), c.String("consumer-name"), c.Bool("json"))
		},
	}
}

func natsInspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the MARKETS JetStream stream",
		Description: `Show the stream configuration and state: message counts,
sequence numbers, consumers, and storage usage.`,
		Flags: []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			nc, err := nats.Connect(c.String("nats-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			stream, err := js.Stream(c.Context, natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}

			info, err := stream.Info(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			return printOutput(os.Stdout, info, c.String("jq"))
		},
	}
}

// streamMarketEvents consumes the markets stream and prints each event
// until interrupted.
func streamMarketEvents(ctx context.Context, natsURL, subject string, durable bool, consumerName string, jsonOutput bool) error {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if !jsonOutput {
		fmt.Fprintf(os.Stderr, "subscribed to %s (Ctrl-C to exit)\n\n", subject)
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	}
	if durable {
		consumerConfig.Durable = consumerName
		consumerConfig.Name = consumerName
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgChan := make(chan jetstream.Msg, 10)
	consCtx, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}
	defer consCtx.Stop()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.MarketEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				fmt.Fprintf(os.Stderr, "error parsing event: %v\n", err)
				msg.Ack()
				continue
			}
			count++

			if jsonOutput {
				data, _ := json.Marshal(event)
				fmt.Println(string(data))
			} else {
				printMarketEvent(count, event)
			}
			msg.Ack()

		case <-sigChan:
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "\nreceived %d events\n", count)
			}
			return nil

		case <-ctx.Done():
			return nil
		}
	}
}

func printMarketEvent(n int, event natspkg.MarketEvent) {
	fmt.Printf("event #%d: %s\n", n, event.Kind)
	fmt.Printf("  contract:     %s\n", event.ContractAddress)
	fmt.Printf("  odds:         %d%% yes / %d%% no\n", event.YesPercentage, event.NoPercentage)
	fmt.Printf("  total staked: %.2f\n", event.TotalStaked)
	fmt.Printf("  participants: %d\n", event.Participants)
	if event.Kind == natspkg.EventPredictionRecorded {
		fmt.Printf("  prediction:   %s for %.2f by %s\n", event.Prediction, event.Amount, event.Wallet)
	}
	fmt.Printf("  published:    %s\n\n", event.PublishedAt.Format(time.RFC3339))
}
