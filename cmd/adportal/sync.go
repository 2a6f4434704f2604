package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const syncBatch = 50

var syncLimit int

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push quotes the backend has not received yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		d, err := connect(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		n, err := d.quotes.SyncPending(ctx, syncLimit)
		if err != nil {
			return err
		}
		log.Info("Sync finished", zap.Int("synced", n))
		fmt.Fprintf(cmd.OutOrStdout(), "synced %d quote(s)\n", n)
		return nil
	},
}

func init() {
	syncCmd.Flags().IntVar(&syncLimit, "limit", syncBatch, "maximum number of quotes to push")
}
