// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citation deduplicates, formats, and renders citations, and checks
// which context blocks a draft actually cites.
package citation

import (
	"github.com/pdiddy/contentforge/pkg/types"
)

// Deduplicate returns the citations with later duplicates removed, keeping
// first-seen order. Identity is (Source, PageNumber), with a missing page
// treated as its own value. The result never aliases the input.
func Deduplicate(cs []types.Citation) []types.Citation {
	seen := make(map[string]bool, len(cs))
	out := make([]types.Citation, 0, len(cs))
	for _, c := range cs {
		key := c.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c.Clone())
	}
	return out
}

// Register accumulates citations across sections under the same identity
// rule as Deduplicate. It is not safe for concurrent use; the report
// assembler is its single writer.
type Register struct {
	seen      map[string]bool
	citations []types.Citation
}

// NewRegister creates an empty register.
func NewRegister() *Register {
	return &Register{seen: make(map[string]bool)}
}

// Add records citations, ignoring any whose identity is already present.
// It returns the number of new entries.
func (r *Register) Add(cs ...types.Citation) int {
	added := 0
	for _, c := range cs {
		key := c.Key()
		if r.seen[key] {
			continue
		}
		r.seen[key] = true
		r.citations = append(r.citations, c.Clone())
		added++
	}
	return added
}

// Len returns the number of distinct citations.
func (r *Register) Len() int { return len(r.citations) }

// Citations returns a copy of the registered citations in first-seen order.
func (r *Register) Citations() []types.Citation {
	return types.CloneCitations(r.citations)
}
