package cmd

import (
	"github.com/spf13/cobra"
)

var flagInfoLimit int

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show recently indexed chunks and query analytics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		overview := client.GetOverview(cmd.Context(), flagInfoLimit)
		analytics := client.GetQueryAnalytics(cmd.Context())
		return printJSON(map[string]any{
			"overview":  overview,
			"analytics": analytics,
		})
	},
}

var chunkCmd = &cobra.Command{
	Use:   "chunk <sha>",
	Short: "Print the code of a chunk by sha",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		return printJSON(client.GetChunk(args[0]))
	},
}

func init() {
	infoCmd.Flags().IntVarP(&flagInfoLimit, "limit", "n", 20, "maximum chunks to list")
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(chunkCmd)
}
