package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agdev/storagegate/clientcli"
)

var (
	uploadTarget      targetFlags
	uploadRecursive   bool
	uploadContentType string
	uploadPurpose     string
	uploadExpires     int
)

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> [relative-key]",
	Short: "Upload files through presigned URLs",
	Long: `Upload files through presigned URLs.

Without a relative key the file name is used. With --recursive a directory
is walked and every file is stored under the relative key as a prefix.

Examples:
  storagegate-cli upload -d agcore ./file.txt docs/file.txt
  storagegate-cli upload -d agcore --project p1 --user u1 ./avatar.png
  storagegate-cli upload -g 0190a6f2-... --purpose frame -r ./frames/ frames`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUpload,
}

func init() {
	uploadTarget.register(uploadCmd)
	uploadCmd.Flags().BoolVarP(&uploadRecursive, "recursive", "r", false, "upload directory recursively")
	uploadCmd.Flags().StringVar(&uploadContentType, "content-type", "", "override content-type")
	uploadCmd.Flags().StringVar(&uploadPurpose, "purpose", "", "purpose label of group members")
	uploadCmd.Flags().IntVar(&uploadExpires, "expires", clientcli.DefaultExpires, "presigned URL validity in seconds")
}

func runUpload(_ *cobra.Command, args []string) error {
	loc, err := uploadTarget.resolve()
	if err != nil {
		return err
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	opts := clientcli.UploadOptions{
		Location:    loc,
		LocalPath:   args[0],
		Purpose:     uploadPurpose,
		ContentType: uploadContentType,
		ExpiresIn:   uploadExpires,
		Recursive:   uploadRecursive,
	}
	if len(args) > 1 {
		opts.RelativeKey = args[1]
	}

	results, err := client.Upload(context.Background(), opts)
	if err != nil {
		return handleError(os.Stderr, err)
	}

	if err := getFormatter().FormatUpload(os.Stdout, results); err != nil {
		return err
	}

	for i := range results {
		if results[i].Err != nil {
			return &exitError{code: 1}
		}
	}

	return nil
}
