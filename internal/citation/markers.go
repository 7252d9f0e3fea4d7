// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citation

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// markerRe matches numeric markers like [1] or [12] in a draft.
	markerRe = regexp.MustCompile(`\[(\d+)\]`)

	// blockHeaderRe matches context block headers: "[3] Source: DocA".
	blockHeaderRe = regexp.MustCompile(`(?m)^\[(\d+)\] Source: (.+)$`)
)

// MarkerReport describes how a draft refers to the numbered context blocks
// it was written from.
type MarkerReport struct {
	// Cited lists marker numbers present in both the draft and the context.
	Cited []int

	// Dangling lists marker numbers in the draft with no matching block.
	Dangling []int

	// Sources lists the sources of cited blocks, sorted and distinct.
	Sources []string

	// Contexts maps each dangling marker to a snippet of surrounding draft text.
	Contexts map[int]string
}

// HasDangling reports whether the draft cites a block that does not exist.
func (r MarkerReport) HasDangling() bool { return len(r.Dangling) > 0 }

// Markers compares the numeric markers in draft with the block headers in
// context. Block numbers restart per research query, so a number maps to
// every source that used it.
func Markers(draft, context string) MarkerReport {
	blocks := make(map[int][]string)
	for _, m := range blockHeaderRe.FindAllStringSubmatch(context, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		blocks[n] = append(blocks[n], strings.TrimSpace(m[2]))
	}

	report := MarkerReport{Contexts: make(map[int]string)}
	seen := make(map[int]bool)
	sources := make(map[string]bool)
	for _, idx := range markerRe.FindAllStringSubmatchIndex(draft, -1) {
		n, err := strconv.Atoi(draft[idx[2]:idx[3]])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		srcs, ok := blocks[n]
		if !ok {
			report.Dangling = append(report.Dangling, n)
			report.Contexts[n] = snippetAround(draft, idx[0], idx[1])
			continue
		}
		report.Cited = append(report.Cited, n)
		for _, s := range srcs {
			sources[s] = true
		}
	}

	sort.Ints(report.Cited)
	sort.Ints(report.Dangling)
	for s := range sources {
		report.Sources = append(report.Sources, s)
	}
	sort.Strings(report.Sources)
	return report
}

// snippetAround returns up to 40 bytes either side of a match, trimmed to
// word boundaries.
func snippetAround(text string, start, end int) string {
	const window = 40
	from := max(start-window, 0)
	to := min(end+window, len(text))
	snippet := text[from:to]
	if from > 0 {
		if i := strings.IndexByte(snippet, ' '); i >= 0 && i < window {
			snippet = snippet[i+1:]
		}
	}
	if to < len(text) {
		if i := strings.LastIndexByte(snippet, ' '); i >= 0 && i > len(snippet)-window {
			snippet = snippet[:i]
		}
	}
	return strings.TrimSpace(snippet)
}
