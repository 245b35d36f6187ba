package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"github.com/rugmarket/rugmarket/client"
)

// newCLILogger returns a logger that only surfaces errors, so command
// output stays clean.
func newCLILogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// serviceClient builds an HTTP client for the rugmarket service from the
// global --server-url flag.
func serviceClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), nil, newCLILogger())
}

// printOutput renders v as indented JSON, optionally piped through a jq
// filter expression first.
func printOutput(w io.Writer, v interface{}, jqFilter string) error {
	if jqFilter == "" {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	results, err := applyJQFilter(v, jqFilter)
	if err != nil {
		return err
	}

	for _, result := range results {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}

// applyJQFilter runs a jq expression over v and collects the results. v is
// round-tripped through JSON so gojq sees plain maps and slices.
func applyJQFilter(v interface{}, filter string) ([]interface{}, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value for jq: %w", err)
	}
	var plain interface{}
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value for jq: %w", err)
	}

	var results []interface{}
	iter := code.Run(plain)
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := result.(error); isErr {
			return nil, fmt.Errorf("jq filter error: %w", err)
		}
		results = append(results, result)
	}
	return results, nil
}

// jqFlag is the shared --jq output filter flag.
func jqFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "jq",
		Usage: "jq filter expression applied to the JSON output",
	}
}
