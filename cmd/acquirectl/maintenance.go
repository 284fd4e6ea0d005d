package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/paper-acquisition-service/internal/app"
	"github.com/helixir/paper-acquisition-service/internal/maintenance"
	"github.com/helixir/paper-acquisition-service/internal/observability"
	"github.com/helixir/paper-acquisition-service/internal/priority"
	"github.com/helixir/paper-acquisition-service/internal/temporal"
)

var adjustCmd = &cobra.Command{
	Use:   "adjust-priorities",
	Short: "Recompute source priorities from health statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.App) error {
			result, err := core.Maintenance.AdjustPriorities(ctx)
			if errors.Is(err, maintenance.ErrAdjustmentInProgress) {
				fmt.Println("another priority adjustment is running; nothing changed")
				return nil
			}
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(result)
			}
			if !result.Enabled {
				fmt.Println("automatic priority adjustment is disabled (priority.auto_adjust)")
				return nil
			}
			return printChanges(result.Scored, result.Changes)
		})
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete health events older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		var cutoff *time.Time
		if olderThan > 0 {
			t := time.Now().UTC().Add(-olderThan)
			cutoff = &t
		}
		return withCore(cmd, func(ctx context.Context, core *app.App) error {
			deleted, err := core.Maintenance.PurgeHealthEvents(ctx, cutoff)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(map[string]int64{"deleted_count": deleted})
			}
			fmt.Printf("deleted %d health events\n", deleted)
			return nil
		})
	},
}

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Run the maintenance workflow on Temporal",
	Long: `Maintenance starts the Temporal maintenance workflow, which purges expired
health events and then recomputes source priorities on the worker. Only one
run can be open at a time.`,
	RunE: runMaintenance,
}

func init() {
	purgeCmd.Flags().Duration("older-than", 0, "purge events older than this instead of the configured retention")

	maintenanceCmd.Flags().Duration("older-than", 0, "purge events older than this instead of the configured retention")
	maintenanceCmd.Flags().Bool("skip-purge", false, "only recompute priorities")
	maintenanceCmd.Flags().Bool("skip-adjust", false, "only purge health events")
	maintenanceCmd.Flags().Bool("wait", true, "wait for the workflow result")

	rootCmd.AddCommand(adjustCmd, purgeCmd, maintenanceCmd)
}

func runMaintenance(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	var input temporal.MaintenanceWorkflowInput
	input.SkipPurge, _ = flags.GetBool("skip-purge")
	input.SkipAdjust, _ = flags.GetBool("skip-adjust")
	if olderThan, _ := flags.GetDuration("older-than"); olderThan > 0 {
		t := time.Now().UTC().Add(-olderThan)
		input.Cutoff = &t
	}
	wait, _ := flags.GetBool("wait")

	c, err := temporal.NewClient(temporal.ClientConfig{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		TaskQueue: cfg.Temporal.TaskQueue,
		Logger:    observability.NewTemporalLogger(logger),
	})
	if err != nil {
		return err
	}
	mc := temporal.NewMaintenanceClient(c, cfg.Temporal.TaskQueue)
	defer mc.Close()

	ctx := cmd.Context()
	if !wait {
		workflowID, runID, err := mc.StartMaintenance(ctx, input)
		if temporal.IsWorkflowAlreadyStarted(err) {
			return fmt.Errorf("a maintenance run is already open: %w", err)
		}
		if err != nil {
			return err
		}
		fmt.Printf("started %s (run %s)\n", workflowID, runID)
		return nil
	}

	result, err := mc.RunMaintenance(ctx, input)
	if temporal.IsWorkflowAlreadyStarted(err) {
		return fmt.Errorf("a maintenance run is already open: %w", err)
	}
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(result)
	}
	if result.PurgeError != "" {
		fmt.Printf("purge failed: %s\n", result.PurgeError)
	} else if !input.SkipPurge {
		fmt.Printf("deleted %d health events\n", result.DeletedCount)
	}
	if result.AdjustmentSkipped {
		fmt.Println("priority adjustment skipped: another adjustment was running")
		return nil
	}
	if input.SkipAdjust {
		return nil
	}
	return printChanges(result.Scored, result.PriorityChanges)
}

func printChanges(scored int, changes []priority.Change) error {
	fmt.Printf("scored %d sources, %d priority changes\n", scored, len(changes))
	if len(changes) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tOLD\tNEW\tSCORE")
	for _, c := range changes {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.4f\n", c.SourceID, c.SourceName, c.OldPriority, c.NewPriority, c.Score)
	}
	return w.Flush()
}
