package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agdev/storagegate/clientcli"
)

var (
	downloadTarget  targetFlags
	downloadOutput  string
	downloadStdout  bool
	downloadExpires int
)

var downloadCmd = &cobra.Command{
	Use:   "download <relative-key> [local-path]",
	Short: "Download an object through a presigned URL",
	Long: `Download an object through a presigned URL.

The gateway checks that the object exists before it signs a URL, so a
missing object fails with object_not_found.

Examples:
  storagegate-cli download -d agcore docs/file.txt
  storagegate-cli download -d agcore docs/file.txt ./local-file.txt
  storagegate-cli download -g 0190a6f2-... --stdout result.json | jq .`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDownload,
}

func init() {
	downloadTarget.register(downloadCmd)
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output file path")
	downloadCmd.Flags().BoolVar(&downloadStdout, "stdout", false, "write to stdout")
	downloadCmd.Flags().IntVar(&downloadExpires, "expires", clientcli.DefaultExpires, "presigned URL validity in seconds")
}

func runDownload(_ *cobra.Command, args []string) error {
	loc, err := downloadTarget.resolve()
	if err != nil {
		return err
	}

	localPath := ""
	if len(args) > 1 {
		localPath = args[1]
	}
	if downloadOutput != "" {
		localPath = downloadOutput
	}
	if downloadStdout {
		localPath = "-"
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, reader, err := client.Download(context.Background(), clientcli.DownloadOptions{
		Location:    loc,
		RelativeKey: args[0],
		LocalPath:   localPath,
		ExpiresIn:   downloadExpires,
	})
	if err != nil {
		return handleError(os.Stderr, err)
	}

	if reader != nil {
		defer func() { _ = reader.Close() }()
		if _, err := io.Copy(os.Stdout, reader); err != nil {
			return err
		}
		// metadata goes to stderr so stdout stays the object
		if jsonOutput {
			return getFormatter().FormatDownload(os.Stderr, result)
		}
		return nil
	}

	return getFormatter().FormatDownload(os.Stdout, result)
}
