package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check the server health endpoint",
		Action: func(c *cli.Context) error {
			url := c.String("server-url") + "/health"

			httpClient := &http.Client{Timeout: 10 * time.Second}
			req, err := http.NewRequestWithContext(c.Context, "GET", url, nil)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}

			resp, err := httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server unhealthy: status %d: %s", resp.StatusCode, string(body))
			}

			fmt.Printf("server healthy: %s\n", string(body))
			return nil
		},
	}
}
