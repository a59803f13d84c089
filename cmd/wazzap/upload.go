package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(uploadCmd)
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a media file and print its URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", path, err)
		}

		_, session, api, err := setup(newLogger())
		if err != nil {
			return err
		}
		if err := requireSession(session); err != nil {
			return err
		}

		// The client applies its own upload budget.
		res, err := api.UploadMedia(context.Background(), filepath.Base(path), content)
		if err != nil {
			return describeAPIError("upload failed", err)
		}
		fmt.Println(res.URL)
		return nil
	},
}
