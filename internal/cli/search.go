package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/bm25"
)

var (
	searchLimit int
	searchK1    float64
	searchB     float64
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the corpus",
	Long: `Ranks documents against the query with Okapi BM25 and prints the best
matches. Scores tie on equal relevance and are then ordered by document id.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Print a document by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print corpus statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "k", 4, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchK1, "k1", 0, "term frequency saturation (default from config)")
	searchCmd.Flags().Float64Var(&searchB, "b", 0, "length normalisation (default from config)")
	rootCmd.AddCommand(searchCmd, getCmd, statsCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	return withSession(cmd, func(ctx context.Context, s *session) error {
		params := bm25.Params{K1: s.cfg.Search.K1, B: s.cfg.Search.B}
		if cmd.Flags().Changed("k1") {
			params.K1 = searchK1
		}
		if cmd.Flags().Changed("b") {
			params.B = searchB
		}
		results, err := s.store.Retrieve(ctx, query, searchLimit, params)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if outputJSON {
			return printJSON(cmd, results)
		}
		if len(results) == 0 {
			cmd.Println("No results found.")
			return nil
		}
		for i, r := range results {
			cmd.Printf("  [%d] #%d (%.4f) %s\n", i+1, r.Document.ID, r.Score, r.Document.Text)
		}
		return nil
	})
}

func runGet(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid document id %q", args[0])
	}
	return withSession(cmd, func(ctx context.Context, s *session) error {
		doc, err := s.store.Get(bm25.DocID(id))
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(cmd, doc)
		}
		cmd.Printf("#%d %s\n", doc.ID, doc.Text)
		for k, v := range doc.Metadata {
			cmd.Printf("  %s: %v\n", k, v)
		}
		return nil
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		stats := s.store.Stats()
		if outputJSON {
			return printJSON(cmd, stats)
		}
		cmd.Printf("Initialized:    %t\n", stats.Initialized)
		cmd.Printf("Documents:      %d\n", stats.Documents)
		cmd.Printf("Terms:          %d\n", stats.Terms)
		cmd.Printf("Average length: %.2f\n", stats.AverageLength)
		return nil
	})
}
