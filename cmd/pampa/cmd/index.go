package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pampa-ai/pampa/pkg/pampa"
)

var flagEncrypt string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index (or incrementally re-index) the repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		res, err := client.IndexProject(cmd.Context(), pampa.IndexOptions{
			Encrypt: flagEncrypt,
			OnProgress: func(processed, total int) {
				fmt.Fprintf(os.Stderr, "\rindexing %d/%d files", processed, total)
				if processed == total {
					fmt.Fprintln(os.Stderr)
				}
			},
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	indexCmd.Flags().StringVar(&flagEncrypt, "encrypt", "", "chunk encryption: on, off, or empty for auto")
	rootCmd.AddCommand(indexCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
