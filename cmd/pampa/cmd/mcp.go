package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pampa-ai/pampa/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the PAMPA tools over the Model Context Protocol (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		server := mcp.NewServer(client, nil)
		return server.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
