package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agdev/storagegate/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "storagegate",
	Short:   "Presigned URL gateway for S3-compatible storage",
	Long: `storagegate issues time-limited presigned URLs for objects in an
S3-compatible store and tracks dynamic object groups in a SQL catalog.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		setupLogging(cfg.Env, cfg.Log.Level)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path(s), merged left to right (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("env", "", "deployment environment (default: dev, env: STORAGEGATE_ENV or PRODUCT_ENV)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: STORAGEGATE_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: storagegate.db, env: STORAGEGATE_DATABASE_DSN)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
