package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"property-finder/services"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query past runs recorded in the store",
}

var historySearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find past runs whose results mention text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		return runHistory(cmd, fmt.Sprintf("Search: %q", text), func(ctx context.Context, h *services.History, limit int) ([]services.HistoryHit, error) {
			return h.Search(ctx, text, limit)
		})
	},
}

var historySimilarCmd = &cobra.Command{
	Use:   "similar <text>",
	Short: "Find past runs with a similar request",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		return runHistory(cmd, fmt.Sprintf("Similar Results: %q", text), func(ctx context.Context, h *services.History, limit int) ([]services.HistoryHit, error) {
			return h.Similar(ctx, text, limit)
		})
	},
}

var historyIssuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List sessions with problems",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runHistory(cmd, "Sessions with Issues", func(ctx context.Context, h *services.History, limit int) ([]services.HistoryHit, error) {
			return h.Issues(ctx, limit)
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the ranked results of a past run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		doc, err := a.store.LoadRun(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Session  : %s\nDate     : %s\nKeywords : %v\n", doc.SessionID, doc.SearchDate, doc.Keywords)
		services.NewInsightService(a.logger).WithOutput(out).PrintRanked(doc.Results)
		return nil
	},
}

func init() {
	historyCmd.PersistentFlags().IntP("limit", "n", services.DefaultHistoryLimit, "maximum number of results")
	historyCmd.AddCommand(historySearchCmd, historySimilarCmd, historyIssuesCmd, historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

type historyQuery func(ctx context.Context, h *services.History, limit int) ([]services.HistoryHit, error)

func runHistory(cmd *cobra.Command, title string, query historyQuery) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	limit, _ := cmd.Flags().GetInt("limit")
	hits, err := query(ctx, services.NewHistory(a.store, a.logger), limit)
	if err != nil {
		return err
	}
	services.PrintHistory(cmd.OutOrStdout(), title, hits)
	return nil
}
