package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/stagekeeper/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	applied, err := db.MigrateUp(database)
	if err != nil {
		return err
	}
	for _, id := range applied {
		logger.Info("applied migration", "migration_id", id)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d migration(s) applied\n", len(applied))
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	statuses, err := db.MigrateStatus(database)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT\tDURATION")
	for _, s := range statuses {
		state, appliedAt, duration := "pending", "-", "-"
		if s.Applied {
			state = "applied"
			duration = fmt.Sprintf("%dms", s.ExecutionMs)
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.UTC().Format(time.RFC3339)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, state, appliedAt, duration)
	}
	return w.Flush()
}
