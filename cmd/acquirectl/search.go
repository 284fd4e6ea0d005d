package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/helixir/paper-acquisition-service/internal/app"
	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search every eligible source and print ranked decisions",
	Long: `Search resolves the given catalog references, dispatches the resulting
criteria to every eligible source and prints the deduplicated decisions,
approved first. Failing sources are recorded in the health log and
contribute no results.`,
	RunE: runSearch,
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Print the recent listing of every source that has one",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.App) error {
			releases, err := core.Dispatcher.Recent(ctx)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(releases)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tGUID\tTITLE\tPUBLISHED")
			for _, r := range releases {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.SourceName, r.GUID, truncate(r.Title, 60), r.PublishDate.Format("2006-01-02"))
			}
			return w.Flush()
		})
	},
}

func init() {
	searchCmd.Flags().Int64("author-id", 0, "catalog author or journal id")
	searchCmd.Flags().Int64Slice("book-id", nil, "catalog book ids (repeatable)")
	searchCmd.Flags().String("doi", "", "DOI to look up")
	searchCmd.Flags().String("identifier", "", "source-specific identifier such as an arXiv id")
	searchCmd.Flags().Int("year", 0, "publication year")
	searchCmd.Flags().String("author-query", "", "free-text author query")
	searchCmd.Flags().String("book-query", "", "free-text title query")
	searchCmd.Flags().Bool("interactive", true, "search as a user-initiated search")

	rootCmd.AddCommand(searchCmd, recentCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	req := search.Request{UserInvoked: true}
	req.AuthorID, _ = flags.GetInt64("author-id")
	req.BookIDs, _ = flags.GetInt64Slice("book-id")
	req.DOI, _ = flags.GetString("doi")
	req.Identifier, _ = flags.GetString("identifier")
	req.Year, _ = flags.GetInt("year")
	req.AuthorQuery, _ = flags.GetString("author-query")
	req.BookQuery, _ = flags.GetString("book-query")
	req.Interactive, _ = flags.GetBool("interactive")

	return withCore(cmd, func(ctx context.Context, core *app.App) error {
		criteria, err := search.BuildCriteria(ctx, core.Catalog, req)
		if err != nil {
			return err
		}
		decisions, err := core.Dispatcher.Search(ctx, criteria)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(decisions)
		}
		return printDecisions(decisions)
	})
}

func printDecisions(decisions []domain.Decision) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERDICT\tSOURCE\tGUID\tTITLE\tREJECTIONS")
	for _, d := range decisions {
		verdict := "rejected"
		if d.Approved() {
			verdict = "approved"
		}
		reasons := make([]string, 0, len(d.Rejections))
		for _, r := range d.Rejections {
			reasons = append(reasons, r.Rule)
		}
		r := d.Candidate.Release
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", verdict, r.SourceName, r.GUID, truncate(r.Title, 60), strings.Join(reasons, ","))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
