// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/contentforge/internal/citation"
	"github.com/pdiddy/contentforge/internal/corpus"
	"github.com/pdiddy/contentforge/internal/rag"
	"github.com/pdiddy/contentforge/internal/search"
	"github.com/pdiddy/contentforge/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research <query>...",
	Short: "Show the research context built for queries",
	Long: `Research runs each query against the corpus and prints the numbered
context block a section drafter would receive, followed by the
references for the passages it used. Each argument is one query.

By default the SQLite corpus index is searched. With --from, the YAML
documents in that directory are loaded into an in-memory index, which
needs no prior "index" run; add --corpus to search both and merge the
results.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().String("from", "", "search YAML documents in this directory instead of the corpus index")
	researchCmd.Flags().Bool("corpus", false, "with --from, also search the corpus index")
	researchCmd.Flags().Int("top-k", 0, "passages per query (default search.top_k)")
	researchCmd.Flags().Int("tokens", 2000, "total context token budget")
	researchCmd.Flags().String("style", "", "citation style for the reference list")

	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	both, _ := cmd.Flags().GetBool("corpus")
	topK, _ := cmd.Flags().GetInt("top-k")
	tokens, _ := cmd.Flags().GetInt("tokens")
	styleFlag, _ := cmd.Flags().GetString("style")
	if topK <= 0 {
		topK = cfg.Search.TopK
	}
	if styleFlag == "" {
		styleFlag = string(cfg.Generation.CitationStyle)
	}
	style, err := types.ParseCitationStyle(styleFlag)
	if err != nil {
		return err
	}

	var backends []search.Searcher
	if from != "" {
		idx, err := loadMemIndex(from)
		if err != nil {
			return err
		}
		defer idx.Close()
		backends = append(backends, idx)
	}
	if from == "" || both {
		s, closeSearch, err := newSearcher(nil)
		if err != nil {
			return err
		}
		defer closeSearch()
		backends = append(backends, s)
	}
	var searcher search.Searcher = backends[0]
	if len(backends) > 1 {
		searcher = search.NewMulti(logger, backends...)
	}

	builder := rag.NewBuilder(searcher,
		rag.WithTopK(topK),
		rag.WithMinScore(cfg.Search.MinScore),
		rag.WithLogger(logger),
	)
	text, cs, err := builder.BuildMulti(cmd.Context(), args, tokens)
	if err != nil {
		return err
	}
	if text == "" {
		fmt.Fprintln(os.Stderr, "no passages found")
		return nil
	}
	fmt.Fprintln(os.Stdout, text)
	fmt.Fprintln(os.Stdout)
	fmt.Fprintln(os.Stdout, citation.RenderReferenceList(cs, style))
	fmt.Fprintf(os.Stderr, "%d passages, ~%d tokens\n", len(cs), rag.EstimateTokens(text))
	return nil
}

func loadMemIndex(dir string) (*search.MemIndex, error) {
	docs, err := corpus.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	idx, err := search.NewMemIndex()
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if err := idx.Add(d.SearchPassages()...); err != nil {
			idx.Close()
			return nil, fmt.Errorf("indexing %s: %w", d.ID, err)
		}
	}
	logger.Sugar().Debugf("loaded %d documents, %d passages from %s", len(docs), idx.Len(), dir)
	return idx, nil
}
