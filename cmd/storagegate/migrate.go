package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agdev/storagegate/config"
	"github.com/agdev/storagegate/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage catalog schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := database.MigrateUp(cmd.Context(), cfg.Database); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		slog.Info("database migration complete", "type", cfg.Database.Type)
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := database.MigrateDown(cmd.Context(), cfg.Database); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		slog.Info("rolled back one migration", "type", cfg.Database.Type)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which migrations are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		statuses, err := database.Status(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("migration status: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED\tAPPLIED AT")
		for _, s := range statuses {
			appliedAt := "-"
			if s.Applied {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			_, _ = fmt.Fprintf(w, "%d\t%s\t%t\t%s\n", s.Version, s.Name, s.Applied, appliedAt)
		}
		return w.Flush()
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
