package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pampa-ai/pampa/internal/search"
)

var (
	flagLimit    int
	flagPathGlob string
	flagTags     []string
	flagLangs    []string
	flagReranker string
	flagNoHybrid bool
	flagNoBM25   bool
	flagNoBoost  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed code semantically",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		query := args[0]
		for _, extra := range args[1:] {
			query += " " + extra
		}

		scope := &search.Scope{
			PathGlob: flagPathGlob,
			Tags:     flagTags,
			Lang:     flagLangs,
			Reranker: flagReranker,
		}
		if flagNoHybrid {
			off := false
			scope.Hybrid = &off
		}
		if flagNoBM25 {
			off := false
			scope.BM25 = &off
		}
		if flagNoBoost {
			off := false
			scope.SymbolBoost = &off
		}

		resp := client.SearchCode(cmd.Context(), query, flagLimit, scope)
		if err := printJSON(resp); err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("search failed: %s", resp.Error)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&flagLimit, "limit", "n", 10, "maximum results")
	searchCmd.Flags().StringVar(&flagPathGlob, "path", "", "path glob filter, e.g. src/payments/**")
	searchCmd.Flags().StringSliceVar(&flagTags, "tag", nil, "tag filter (any match)")
	searchCmd.Flags().StringSliceVar(&flagLangs, "lang", nil, "language filter")
	searchCmd.Flags().StringVar(&flagReranker, "reranker", "", "cross-encoder reranking: off or transformers")
	searchCmd.Flags().BoolVar(&flagNoHybrid, "no-hybrid", false, "disable BM25+vector fusion")
	searchCmd.Flags().BoolVar(&flagNoBM25, "no-bm25", false, "disable the BM25 leg")
	searchCmd.Flags().BoolVar(&flagNoBoost, "no-symbol-boost", false, "disable symbol boosting")
	rootCmd.AddCommand(searchCmd)
}
