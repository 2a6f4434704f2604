package main

import (
	"fmt"

	"adportal/internal/storage"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply, roll back or list database migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	RunE:      runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := connect(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	db := d.storage.DB()
	switch args[0] {
	case "up":
		return storage.RunMigrations(ctx, db, log)
	case "down":
		return storage.RollbackMigration(ctx, db, log)
	case "status":
		return storage.MigrationStatus(ctx, db, log)
	}
	return fmt.Errorf("unknown migrate action %q", args[0])
}
