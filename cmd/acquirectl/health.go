package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/paper-acquisition-service/internal/app"
	"github.com/helixir/paper-acquisition-service/internal/domain"
)

var statsCmd = &cobra.Command{
	Use:   "stats [source-id]",
	Short: "Print health statistics of one or all sources",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.App) error {
			var stats []domain.Statistics
			if len(args) == 1 {
				id, err := parseSourceID(args[0])
				if err != nil {
					return err
				}
				s, err := core.Tracker.Statistics(ctx, id)
				if err != nil {
					return err
				}
				stats = []domain.Statistics{*s}
			} else {
				all, err := core.Tracker.AllStatistics(ctx)
				if err != nil {
					return err
				}
				stats = all
			}

			if jsonOutput(cmd) {
				return printJSON(stats)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tHEALTHY\tFAILURE RATE\tRECENT\tTOTAL\tLAST FAILURE")
			for _, s := range stats {
				fmt.Fprintf(w, "%d\t%s\t%t\t%.1f%%\t%d\t%d\t%s\n",
					s.SourceID, s.SourceName, s.IsHealthy, s.FailureRate, s.RecentFailures, s.TotalFailures, formatTime(s.LastFailure))
			}
			return w.Flush()
		})
	},
}

var failuresCmd = &cobra.Command{
	Use:   "failures <source-id>",
	Short: "Print the failure history of a source, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runFailures,
}

func init() {
	failuresCmd.Flags().Duration("since", 0, "only failures within this duration (e.g. 24h)")
	failuresCmd.Flags().String("operation", "", "filter by operation (search, download)")
	failuresCmd.Flags().String("error-kind", "", "filter by error kind")
	failuresCmd.Flags().Int("page", 1, "page number")
	failuresCmd.Flags().Int("page-size", domain.DefaultFailurePageSize, "failures per page")

	rootCmd.AddCommand(statsCmd, failuresCmd)
}

func runFailures(cmd *cobra.Command, args []string) error {
	id, err := parseSourceID(args[0])
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	filter := domain.FailureFilter{SourceID: id}
	filter.Page, _ = flags.GetInt("page")
	filter.PageSize, _ = flags.GetInt("page-size")

	if since, _ := flags.GetDuration("since"); since > 0 {
		t := time.Now().UTC().Add(-since)
		filter.Since = &t
	}
	if op, _ := flags.GetString("operation"); op != "" {
		kind := domain.OperationKind(op)
		if !kind.IsValid() {
			return fmt.Errorf("unknown operation %q", op)
		}
		filter.Operation = &kind
	}
	if ek, _ := flags.GetString("error-kind"); ek != "" {
		kind := domain.ErrorKind(ek)
		if !kind.IsValid() {
			return fmt.Errorf("unknown error kind %q", ek)
		}
		filter.ErrorKind = &kind
	}
	filter.Normalize()

	return withCore(cmd, func(ctx context.Context, core *app.App) error {
		events, total, err := core.Tracker.Failures(ctx, filter)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(map[string]interface{}{"failures": events, "total_count": total})
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tOPERATION\tKIND\tSTATUS\tMESSAGE")
		for _, e := range events {
			status := "-"
			if e.HTTPStatus != nil {
				status = strconv.Itoa(*e.HTTPStatus)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Format(time.RFC3339), e.Operation, e.ErrorKind, status, truncate(e.Message, 80))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d of %d failures (page %d)\n", len(events), total, filter.Page)
		return nil
	})
}

func parseSourceID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid source id %q", s)
	}
	return id, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
