package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pampa-ai/pampa/internal/index"
	"github.com/pampa-ai/pampa/pkg/pampa"
)

var flagDebounceMs int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the repository and re-index changed files on the fly",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		w, err := client.StartWatch(pampa.WatchOptions{
			Debounce: time.Duration(flagDebounceMs) * time.Millisecond,
			Encrypt:  flagEncrypt,
			OnBatch: func(changed, deleted []string, res *index.Result, err error) {
				if err != nil {
					fmt.Fprintf(os.Stderr, "flush failed: %v\n", err)
					return
				}
				fmt.Fprintf(os.Stderr, "reindexed %d changed, %d deleted (%d chunks)\n",
					len(changed), len(deleted), res.ProcessedChunks)
			},
		})
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stderr, "watching", client.RepoPath(), "(ctrl-c to stop)")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		return w.Close()
	},
}

func init() {
	watchCmd.Flags().IntVar(&flagDebounceMs, "debounce", 0, "debounce window in milliseconds (default 500)")
	watchCmd.Flags().StringVar(&flagEncrypt, "encrypt", "", "chunk encryption: on, off, or empty for auto")
	rootCmd.AddCommand(watchCmd)
}
