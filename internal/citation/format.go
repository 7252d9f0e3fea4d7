// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/contentforge/pkg/types"
)

// noDate replaces the year when a citation has no retrieval time.
const noDate = "n.d."

// Year returns the retrieval year or "n.d.".
func Year(c types.Citation) string {
	if c.RetrievedAt.IsZero() {
		return noDate
	}
	return strconv.Itoa(c.RetrievedAt.Year())
}

// Header returns the reference list heading for a style.
func Header(style types.CitationStyle) string {
	switch style {
	case types.StyleMLA:
		return "Works Cited"
	case types.StyleChicago:
		return "Bibliography"
	default:
		return "References"
	}
}

// Format renders a citation as an inline marker or a full reference entry.
// Unknown styles fall back to a bracketed source marker.
func Format(c types.Citation, style types.CitationStyle, inline bool) string {
	if inline {
		return formatInline(c, style)
	}
	return formatReference(c, style)
}

func formatInline(c types.Citation, style types.CitationStyle) string {
	switch style {
	case types.StyleAPA:
		return fmt.Sprintf("(%s, %s)", c.Source, Year(c))
	case types.StyleMLA:
		if c.PageNumber != nil {
			return fmt.Sprintf("(%s %d)", c.Source, *c.PageNumber)
		}
		return "(" + c.Source + ")"
	case types.StyleChicago:
		return "(" + c.Source + ")"
	case types.StyleIEEE:
		return "[" + c.ID + "]"
	default:
		return "[" + c.Source + "]"
	}
}

func formatReference(c types.Citation, style types.CitationStyle) string {
	url := ""
	if c.URL != "" {
		url = " Retrieved from " + c.URL
	}
	year := Year(c)

	switch style {
	case types.StyleAPA:
		page := ""
		if c.PageNumber != nil {
			page = fmt.Sprintf(" (p. %d)", *c.PageNumber)
		}
		return fmt.Sprintf("%s. (%s)%s.%s", c.Source, year, page, url)
	case types.StyleMLA:
		page := ""
		if c.PageNumber != nil {
			page = fmt.Sprintf(" %d", *c.PageNumber)
		}
		return fmt.Sprintf("%s.%s %s.%s", c.Source, page, year, url)
	case types.StyleChicago:
		page := ""
		if c.PageNumber != nil {
			page = fmt.Sprintf(", %d", *c.PageNumber)
		}
		return fmt.Sprintf("%s%s. %s.%s", c.Source, page, year, url)
	case types.StyleIEEE:
		return fmt.Sprintf("[%s] %s, %s.%s", c.ID, c.Source, year, url)
	default:
		return fmt.Sprintf("%s (%s)%s", c.Source, year, url)
	}
}

// SortBySource orders citations case-insensitively by source. The sort is
// stable so citations with equal sources keep their relative order.
func SortBySource(cs []types.Citation) {
	sort.SliceStable(cs, func(i, j int) bool {
		return strings.ToLower(cs[i].Source) < strings.ToLower(cs[j].Source)
	})
}

// RenderReferenceList deduplicates, sorts, and formats citations under the
// style's header. Empty input yields "". Rendering an already deduplicated
// and sorted list gives identical output.
func RenderReferenceList(cs []types.Citation, style types.CitationStyle) string {
	if len(cs) == 0 {
		return ""
	}
	unique := Deduplicate(cs)
	SortBySource(unique)

	entries := make([]string, len(unique))
	for i, c := range unique {
		entries[i] = Format(c, style, false)
	}
	return Header(style) + "\n\n" + strings.Join(entries, "\n\n")
}

// InsertInline appends one inline marker to each paragraph, in citation
// order, until citations run out. Paragraphs are separated by blank lines.
func InsertInline(content string, cs []types.Citation, style types.CitationStyle) string {
	if len(cs) == 0 {
		return content
	}
	paragraphs := strings.Split(content, "\n\n")
	for i := range paragraphs {
		if i >= len(cs) {
			break
		}
		paragraphs[i] = paragraphs[i] + " " + Format(cs[i], style, true)
	}
	return strings.Join(paragraphs, "\n\n")
}
