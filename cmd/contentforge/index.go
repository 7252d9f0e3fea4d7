// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/contentforge/internal/corpus"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index corpus documents for retrieval",
	Long: `Index reads document YAML files from search.corpus_dir (or --dir) and
loads their passages into the SQLite full-text index at search.corpus_db.
Files whose modification time has not changed since the last run are
skipped. With --export the indexed corpus is also written back out as YAML.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().String("dir", "", "corpus directory (default search.corpus_dir)")
	indexCmd.Flags().String("export", "", "write the indexed corpus to this YAML file")

	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	exportPath, _ := cmd.Flags().GetString("export")
	if dir == "" {
		dir = cfg.Search.CorpusDir
	}

	store, err := corpus.NewStore(cfg.Search.CorpusDB, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	summary, err := store.Ingest(ctx, dir, os.Stdout)
	if err != nil {
		return err
	}
	docs, passages, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "corpus: %d documents, %d passages in %s\n", docs, passages, cfg.Search.CorpusDB)

	if exportPath != "" {
		if err := store.ExportYAML(ctx, exportPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "exported to %s\n", exportPath)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed to index", summary.Failed, summary.Total())
	}
	return nil
}
