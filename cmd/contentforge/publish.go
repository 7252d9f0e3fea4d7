// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/contentforge/internal/export"
	"github.com/pdiddy/contentforge/internal/publish"
)

var publishCmd = &cobra.Command{
	Use:   "publish <project-dir>",
	Short: "Publish an exported report",
	Long: `Publish delivers a report exported with "generate --export". The
document is taken from document.md, so edits made after export are what
gets published. It is uploaded to the SharePoint folder and announced in
the Teams channel, or written under publish.dir when Graph credentials are
not configured. The project is rewritten afterwards with the published
status and links.`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().String("folder", "", "document folder (default publish.folder)")
	publishCmd.Flags().String("channel", "", "announcement channel as <team-id>/<channel-id> (default publish.channel)")
	publishCmd.Flags().Bool("validate", true, "refuse to publish a project with problems")

	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	dir := filepath.Clean(args[0])
	folder, _ := cmd.Flags().GetString("folder")
	channel, _ := cmd.Flags().GetString("channel")
	validate, _ := cmd.Flags().GetBool("validate")
	if folder == "" {
		folder = cfg.Publish.Folder
	}
	if channel == "" {
		channel = cfg.Publish.Channel
	}

	if validate {
		problems, err := export.Validate(dir)
		if err != nil {
			return err
		}
		if len(problems) > 0 {
			return fmt.Errorf("project has problems:\n  %s", strings.Join(problems, "\n  "))
		}
	}

	r, err := export.LoadReport(dir)
	if err != nil {
		return err
	}

	p, err := publish.New(cfg.Publish, logger)
	if err != nil {
		return err
	}
	if err := publish.Report(cmd.Context(), p, r, publish.Destination{Folder: folder, Channel: channel}); err != nil {
		return err
	}
	if _, err := export.WriteProject(filepath.Dir(dir), r); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "document: %s\n", r.SharePointURL)
	if r.TeamsMessageURL != "" {
		fmt.Fprintf(os.Stdout, "message:  %s\n", r.TeamsMessageURL)
	}
	return nil
}
