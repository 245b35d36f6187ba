package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	sdkclient "go.temporal.io/sdk/client"

	"github.com/rugmarket/rugmarket/service/temporal"
)

// temporalClient builds a Temporal client from the global flags.
func temporalClient(c *cli.Context) (*temporal.Client, error) {
	taskQueue := os.Getenv("TEMPORAL_TASK_QUEUE")
	if taskQueue == "" {
		taskQueue = "rugmarket-contract-scans"
	}

	return temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		taskQueue,
		nil, // no metrics for one-shot CLI invocations
		newCLILogger(),
	)
}

func triggerScanCommand() *cli.Command {
	return &cli.Command{
		Name:      "trigger-scan",
		Usage:     "Run the contract scan workflow once and wait for the result",
		ArgsUsage: "CONTRACT_ADDRESS",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "seed-market",
				Value: true,
				Usage: "Seed a prediction market from the scan result",
			},
			jqFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("contract address is required")
			}
			address := c.Args().Get(0)

			tc, err := temporalClient(c)
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer tc.Close()

			fmt.Fprintf(os.Stderr, "Running scan workflow for %s...\n", address)

			result, err := tc.TriggerScan(c.Context, address, c.Bool("seed-market"))
			if err != nil {
				return fmt.Errorf("scan workflow failed: %w", err)
			}

			return printOutput(os.Stdout, result, c.String("jq"))
		},
	}
}

func createScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "create-schedule",
		Usage:     "Create or update a rescan schedule for a contract",
		ArgsUsage: "CONTRACT_ADDRESS",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Value: 24 * time.Hour,
				Usage: "Rescan interval",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("contract address is required")
			}
			address := c.Args().Get(0)
			interval := c.Duration("interval")

			tc, err := temporalClient(c)
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer tc.Close()

			if err := tc.UpsertRescanSchedule(c.Context, address, interval); err != nil {
				return fmt.Errorf("failed to create schedule: %w", err)
			}

			fmt.Printf("rescan schedule for %s set to every %v\n", address, interval)
			return nil
		},
	}
}

func deleteScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete-schedule",
		Usage:     "Delete the rescan schedule for a contract",
		ArgsUsage: "CONTRACT_ADDRESS",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("contract address is required")
			}
			address := c.Args().Get(0)

			tc, err := temporalClient(c)
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer tc.Close()

			if err := tc.DeleteRescanSchedule(c.Context, address); err != nil {
				return fmt.Errorf("failed to delete schedule: %w", err)
			}

			fmt.Printf("rescan schedule for %s deleted\n", address)
			return nil
		},
	}
}

func listSchedulesCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-schedules",
		Usage:   "List all rescan schedules",
		Aliases: []string{"ls"},
		Action: func(c *cli.Context) error {
			tc, err := temporalClient(c)
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer tc.Close()

			iter, err := tc.SDKClient().ScheduleClient().List(c.Context, sdkclient.ScheduleListOptions{
				PageSize: 100,
			})
			if err != nil {
				return fmt.Errorf("failed to list schedules: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SCHEDULE ID")
			count := 0
			for iter.HasNext() {
				schedule, err := iter.Next()
				if err != nil {
					return fmt.Errorf("failed to iterate schedules: %w", err)
				}
				fmt.Fprintf(w, "%s\n", schedule.ID)
				count++
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\n%d schedules total\n", count)
			return nil
		},
	}
}

func describeScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "describe-schedule",
		Usage:     "Describe the rescan schedule for a contract",
		Aliases:   []string{"desc"},
		ArgsUsage: "CONTRACT_ADDRESS",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("contract address is required")
			}
			id := temporal.RescanScheduleID(c.Args().Get(0))

			tc, err := temporalClient(c)
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer tc.Close()

			handle := tc.SDKClient().ScheduleClient().GetHandle(c.Context, id)
			desc, err := handle.Describe(c.Context)
			if err != nil {
				return fmt.Errorf("failed to describe schedule: %w", err)
			}

			fmt.Printf("Schedule ID: %s\n", id)
			fmt.Printf("Paused:      %v\n", desc.Schedule.State.Paused)
			if note := desc.Schedule.State.Note; note != "" {
				fmt.Printf("Note:        %s\n", note)
			}

			if wa, ok := desc.Schedule.Action.(*sdkclient.ScheduleWorkflowAction); ok {
				fmt.Printf("\nWorkflow:\n")
				fmt.Printf("  Workflow:   %v\n", wa.Workflow)
				fmt.Printf("  Task Queue: %s\n", wa.TaskQueue)
			}

			if len(desc.Schedule.Spec.Intervals) > 0 {
				fmt.Printf("\nIntervals:\n")
				for _, interval := range desc.Schedule.Spec.Intervals {
					fmt.Printf("  every %v\n", interval.Every)
				}
			}

			fmt.Printf("\nRecent actions: %d\n", len(desc.Info.RecentActions))
			if len(desc.Info.RecentActions) > 0 {
				last := desc.Info.RecentActions[len(desc.Info.RecentActions)-1]
				fmt.Printf("Last action:    %s\n", last.ActualTime.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func pauseScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "pause-schedule",
		Usage:     "Pause the rescan schedule for a contract",
		ArgsUsage: "CONTRACT_ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "note",
				Usage: "Note explaining why the schedule is paused",
				Value: "paused via rugmarket CLI",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("contract address is required")
			}
			address := c.Args().Get(0)

			tc, err := temporalClient(c)
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer tc.Close()

			handle := tc.SDKClient().ScheduleClient().GetHandle(c.Context, temporal.RescanScheduleID(address))
			if err := handle.Pause(c.Context, sdkclient.SchedulePauseOptions{Note: c.String("note")}); err != nil {
				return fmt.Errorf("failed to pause schedule: %w", err)
			}

			fmt.Printf("rescan schedule for %s paused\n", address)
			return nil
		},
	}
}

func resumeScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "resume-schedule",
		Usage:     "Resume a paused rescan schedule",
		ArgsUsage: "CONTRACT_ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "note",
				Usage: "Note explaining why the schedule is resumed",
				Value: "resumed via rugmarket CLI",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("contract address is required")
			}
			address := c.Args().Get(0)

			tc, err := temporalClient(c)
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer tc.Close()

			handle := tc.SDKClient().ScheduleClient().GetHandle(c.Context, temporal.RescanScheduleID(address))
			if err := handle.Unpause(c.Context, sdkclient.ScheduleUnpauseOptions{Note: c.String("note")}); err != nil {
				return fmt.Errorf("failed to resume schedule: %w", err)
			}

			fmt.Printf("rescan schedule for %s resumed\n", address)
			return nil
		},
	}
}
