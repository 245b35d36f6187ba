package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	natspkg "github.com/rugmarket/rugmarket/service/nats"
)

func sseStreamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Tail market events via the server's SSE endpoint",
		ArgsUsage: "[CONTRACT_ADDRESS]",
		Description: `Connect to the server's Server-Sent Events endpoint and print
market events as they arrive. Without an address this tails every market.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output events as JSON, one per line",
			},
		},
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			address := c.Args().First()
			jsonOutput := c.Bool("json")

			url := serverURL + "/api/v1/stream/markets"
			if address != "" {
				url += "/" + address
			}

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigChan
				cancel()
			}()

			req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Accept", "text/event-stream")

			// No timeout for streaming
			httpClient := &http.Client{Timeout: 0}
			resp, err := httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to connect to SSE endpoint: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned status %d", resp.StatusCode)
			}

			if !jsonOutput {
				if address != "" {
					fmt.Fprintf(os.Stderr, "streaming market events for %s (Ctrl-C to stop)\n\n", address)
				} else {
					fmt.Fprintf(os.Stderr, "streaming market events for all contracts (Ctrl-C to stop)\n\n")
				}
			}

			scanner := bufio.NewScanner(resp.Body)
			var currentEvent, currentData string
			count := 0

			for scanner.Scan() {
				line := scanner.Text()

				// Empty line terminates an event
				if line == "" {
					if currentEvent != "" && currentData != "" {
						if err := handleSSEEvent(currentEvent, currentData, jsonOutput, &count); err != nil {
							fmt.Fprintf(os.Stderr, "error handling event: %v\n", err)
						}
					}
					currentEvent = ""
					currentData = ""
					continue
				}

				if strings.HasPrefix(line, "event:") {
					currentEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				} else if strings.HasPrefix(line, "data:") {
					currentData = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				}
			}

			if err := scanner.Err(); err != nil {
				if ctx.Err() != nil {
					if !jsonOutput {
						fmt.Fprintf(os.Stderr, "\ndisconnected after %d events\n", count)
					}
					return nil
				}
				return fmt.Errorf("error reading SSE stream: %w", err)
			}
			return nil
		},
	}
}

func handleSSEEvent(eventType, data string, jsonOutput bool, count *int) error {
	switch eventType {
	case "connected":
		if !jsonOutput {
			var info map[string]interface{}
			if err := json.Unmarshal([]byte(data), &info); err != nil {
				return err
			}
			if contract, ok := info["contract"].(string); ok {
				fmt.Fprintf(os.Stderr, "subscribed to %s\n\n", contract)
			} else if message, ok := info["message"].(string); ok {
				fmt.Fprintf(os.Stderr, "%s\n\n", message)
			}
		}
		return nil

	case natspkg.EventMarketSeeded, natspkg.EventPredictionRecorded:
		var event natspkg.MarketEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return err
		}
		*count++

		if jsonOutput {
			fmt.Println(data)
		} else {
			printMarketEvent(*count, event)
		}
		return nil

	case "error":
		var errInfo map[string]interface{}
		if err := json.Unmarshal([]byte(data), &errInfo); err != nil {
			return err
		}
		return fmt.Errorf("server error: %v", errInfo["error"])

	default:
		// Unknown event type, ignore
		return nil
	}
}
