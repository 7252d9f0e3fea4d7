// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/pdiddy/contentforge/internal/export"
	"github.com/pdiddy/contentforge/internal/publish"
	"github.com/pdiddy/contentforge/internal/workflow"
	"github.com/pdiddy/contentforge/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate a cited document from a prompt",
	Long: `Generate plans the document, researches and drafts each section against
the indexed corpus, then assembles, edits, and appends a reference list.

The finished document is written to stdout and the step log to stderr.
With --export the report is also written as a project directory under
generation.output_dir; with --publish it is delivered to SharePoint and
Teams (or the local publish directory when Graph is not configured).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("type", "", "content type: report, summary, article, marketing_copy, email, presentation")
	generateCmd.Flags().String("style", "", "citation style: APA, MLA, Chicago, IEEE")
	generateCmd.Flags().Int("max-words", 0, "overall word budget (default generation.max_words)")
	generateCmd.Flags().Bool("no-citations", false, "omit the reference list")
	generateCmd.Flags().StringSlice("tag", nil, "tag to attach to the report (repeatable)")
	generateCmd.Flags().Bool("export", false, "write the report as a project directory")
	generateCmd.Flags().Bool("publish", false, "publish the finished report")
	generateCmd.Flags().Bool("json", false, "print the full result as JSON")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctType, _ := cmd.Flags().GetString("type")
	style, _ := cmd.Flags().GetString("style")
	maxWords, _ := cmd.Flags().GetInt("max-words")
	noCitations, _ := cmd.Flags().GetBool("no-citations")
	tags, _ := cmd.Flags().GetStringSlice("tag")
	doExport, _ := cmd.Flags().GetBool("export")
	doPublish, _ := cmd.Flags().GetBool("publish")
	asJSON, _ := cmd.Flags().GetBool("json")

	if style == "" {
		style = string(cfg.Generation.CitationStyle)
	}
	if maxWords == 0 {
		maxWords = cfg.Generation.MaxWords
	}
	include := !noCitations
	req := workflow.Request{
		Prompt:           strings.Join(args, " "),
		ContentType:      types.ContentType(ctType),
		CitationStyle:    types.CitationStyle(style),
		MaxWords:         maxWords,
		IncludeCitations: &include,
		Tags:             tags,
	}
	if err := req.Normalize(); err != nil {
		return err
	}

	a, err := newApp(nil, doPublish)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	res := a.service.Generate(ctx, req)
	if res.Report != nil {
		printSteps(os.Stderr, res.Report)
	}
	fmt.Fprintln(os.Stderr, res.Message)
	if !res.Success {
		if asJSON {
			_ = writeJSON(os.Stdout, res)
		}
		return errors.New(res.Error)
	}

	if doExport {
		dir, err := export.WriteProject(cfg.Generation.OutputDir, res.Report)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported to %s\n", dir)
	}
	if doPublish {
		dest := publish.Destination{Folder: cfg.Publish.Folder, Channel: cfg.Publish.Channel}
		if err := a.service.Publish(ctx, res.Report, dest); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Published %s\n", res.Report.SharePointURL)
		if doExport {
			// Re-export so report.yaml carries the published status and URLs.
			if _, err := export.WriteProject(cfg.Generation.OutputDir, res.Report); err != nil {
				return err
			}
		}
	}

	if asJSON {
		return writeJSON(os.Stdout, res)
	}
	fmt.Fprint(os.Stdout, res.Report.Document)
	return nil
}

// printSteps writes the agent-step log as an aligned table.
func printSteps(w io.Writer, r *types.Report) {
	const agentW, kindW, summaryW = 12, 14, 48
	fmt.Fprintf(w, "%s %s %9s %7s  %s\n",
		runewidth.FillRight("AGENT", agentW),
		runewidth.FillRight("KIND", kindW),
		"DURATION", "TOKENS", "RESULT")
	for _, s := range r.AgentSteps {
		tokens := "-"
		if s.TokensUsed != nil {
			tokens = fmt.Sprintf("%d", *s.TokensUsed)
		}
		result := s.OutputSummary
		if s.Failed() {
			result = "error: " + s.Error
		}
		result = strings.Join(strings.Fields(result), " ")
		fmt.Fprintf(w, "%s %s %9s %7s  %s\n",
			runewidth.FillRight(runewidth.Truncate(s.Agent, agentW, "…"), agentW),
			runewidth.FillRight(string(s.Kind), kindW),
			s.Duration.Round(1e6).String(),
			tokens,
			runewidth.Truncate(result, summaryW, "…"))
	}
	fmt.Fprintf(w, "%d steps, %d tokens, %s, status %s\n",
		len(r.AgentSteps), r.TotalTokensUsed, r.GenerationTime.Round(1e6), r.Status)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
