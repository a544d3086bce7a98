package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agdev/storagegate"
	"github.com/agdev/storagegate/config"
	"github.com/agdev/storagegate/database"
)

var endpointCmd = &cobra.Command{
	Use:   "endpoint",
	Short: "Manage storage endpoints in the catalog",
	Long: `Manage the S3-compatible storage endpoints known to the catalog.

Endpoints are immutable once groups reference them; add a new endpoint
instead of editing one.`,
}

var endpointAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a storage endpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runEndpointAdd,
}

var endpointListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List storage endpoints",
	RunE:    runEndpointList,
}

func init() {
	endpointAddCmd.Flags().String("url", "", "endpoint URL, empty for AWS S3")
	endpointAddCmd.Flags().String("region", "us-east-1", "region")
	endpointAddCmd.Flags().String("bucket", "", "bucket name")
	endpointAddCmd.Flags().String("credential-ref", "", "name of the credential used to sign requests")
	_ = endpointAddCmd.MarkFlagRequired("bucket")

	endpointCmd.AddCommand(endpointAddCmd, endpointListCmd)
	rootCmd.AddCommand(endpointCmd)
}

func runEndpointAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	catalog, closeDB, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeDB()

	url, _ := cmd.Flags().GetString("url")
	region, _ := cmd.Flags().GetString("region")
	bucket, _ := cmd.Flags().GetString("bucket")
	credRef, _ := cmd.Flags().GetString("credential-ref")

	ep, err := catalog.CreateEndpoint(ctx, storagegate.StorageEndpoint{
		Name:          args[0],
		URL:           url,
		Region:        region,
		Bucket:        bucket,
		CredentialRef: credRef,
		Type:          "s3",
	})
	if err != nil {
		return fmt.Errorf("add endpoint %s: %w", args[0], err)
	}

	slog.Info("endpoint added", "id", ep.ID, "name", ep.Name, "bucket", ep.Bucket)
	return nil
}

func runEndpointList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	catalog, closeDB, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeDB()

	endpoints, err := catalog.ListEndpoints(ctx)
	if err != nil {
		return fmt.Errorf("list endpoints: %w", err)
	}

	return printEndpoints(os.Stdout, endpoints)
}

func printEndpoints(out io.Writer, endpoints []storagegate.StorageEndpoint) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tURL\tREGION\tBUCKET\tCREDENTIAL")
	for _, ep := range endpoints {
		url := ep.URL
		if url == "" {
			url = "(aws)"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", ep.ID, ep.Name, url, ep.Region, ep.Bucket, ep.CredentialRef)
	}
	return w.Flush()
}
