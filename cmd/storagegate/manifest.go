package main

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agdev/storagegate/config"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Maintain group manifests",
}

var manifestRewriteCmd = &cobra.Command{
	Use:   "rewrite <group-id>...",
	Short: "Write the manifest of one or more groups again",
	Long: `Write manifest.json for existing groups from their catalog rows.

Use this to repair a group whose manifest write failed after the group was
recorded in the catalog.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runManifestRewrite,
}

func init() {
	manifestCmd.AddCommand(manifestRewriteCmd)
	rootCmd.AddCommand(manifestCmd)
}

func runManifestRewrite(cmd *cobra.Command, args []string) error {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return fmt.Errorf("invalid group id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}

	ctx := cmd.Context()
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	var failed int
	for _, id := range ids {
		group, err := a.groups.RewriteManifest(ctx, id)
		if err != nil {
			failed++
			slog.Error("manifest rewrite failed", "group_id", id, "err", err)
			continue
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s/manifest.json\n", group.ID, group.CommonPrefix)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d manifest(s) not rewritten", failed, len(ids))
	}
	return nil
}
