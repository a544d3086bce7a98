package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agdev/storagegate"
)

var (
	urlTarget      targetFlags
	urlExpires     int
	urlContentType string
	urlPurpose     string
	urlDisposition string
)

var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Print presigned URLs without transferring data",
}

var urlUploadCmd = &cobra.Command{
	Use:   "upload <relative-key>",
	Short: "Print a presigned PUT URL",
	Long: `Print a presigned PUT URL.

For a group target the member is registered as pending.

Examples:
  storagegate-cli url upload -d agcore --content-type image/png logo.png
  storagegate-cli url upload -g 0190a6f2-... --purpose thumbnail thumb.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runURLUpload,
}

var urlDownloadCmd = &cobra.Command{
	Use:   "download <relative-key>",
	Short: "Print a presigned GET URL for an existing object",
	Args:  cobra.ExactArgs(1),
	RunE:  runURLDownload,
}

func init() {
	for _, cmd := range []*cobra.Command{urlUploadCmd, urlDownloadCmd} {
		urlTarget.register(cmd)
		cmd.Flags().IntVar(&urlExpires, "expires", storagegate.DefaultExpiresSeconds, "validity in seconds")
		cmd.Flags().StringVar(&urlContentType, "content-type", "", "content-type to constrain (upload) or override (download)")
		urlCmd.AddCommand(cmd)
	}
	urlUploadCmd.Flags().StringVar(&urlPurpose, "purpose", "", "purpose label of the group member")
	urlDownloadCmd.Flags().StringVar(&urlDisposition, "disposition", "", "response content-disposition")
}

func runURLUpload(_ *cobra.Command, args []string) error {
	loc, err := urlTarget.resolve()
	if err != nil {
		return err
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	url, err := client.UploadURL(context.Background(), loc, args[0], urlPurpose, storagegate.UploadOptions{
		ContentType: urlContentType,
		ExpiresIn:   urlExpires,
	})
	if err != nil {
		return handleError(os.Stderr, err)
	}

	return getFormatter().FormatURL(os.Stdout, url)
}

func runURLDownload(_ *cobra.Command, args []string) error {
	loc, err := urlTarget.resolve()
	if err != nil {
		return err
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	url, err := client.DownloadURL(context.Background(), loc, args[0], storagegate.DownloadOptions{
		ResponseContentType:        urlContentType,
		ResponseContentDisposition: urlDisposition,
		ExpiresIn:                  urlExpires,
	})
	if err != nil {
		return handleError(os.Stderr, err)
	}

	return getFormatter().FormatURL(os.Stdout, url)
}
