// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"bytes"
	"io"
	"strconv"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/contentforge/pkg/types"
)

// CSLItem is a bibliographic entry in CSL (Citation Style Language) form.
// Field names follow the CSL-YAML schema so Pandoc and reference managers
// can consume the output.
type CSLItem struct {
	ID       string   `yaml:"id"`
	Type     string   `yaml:"type"`
	Title    string   `yaml:"title"`
	URL      string   `yaml:"URL,omitempty"`
	Page     string   `yaml:"page,omitempty"`
	Accessed *CSLDate `yaml:"accessed,omitempty"`
}

// CSLDate is a date in CSL date-parts form.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes references as a CSL-YAML list to w.
func FormatCSL(refs types.ReferencesFile, w io.Writer) error {
	items := make([]CSLItem, len(refs.Entries))
	for i, e := range refs.Entries {
		items[i] = toCSLItem(e)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

func marshalCSL(refs types.ReferencesFile) ([]byte, error) {
	var buf bytes.Buffer
	if err := FormatCSL(refs, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toCSLItem(e types.ReferenceEntry) CSLItem {
	item := CSLItem{ID: e.CitationKey, Type: "document", Title: e.Source, URL: e.URL}
	if e.URL != "" {
		item.Type = "webpage"
	}
	if e.Page != nil {
		item.Page = strconv.Itoa(*e.Page)
	}
	if e.Year > 0 {
		item.Accessed = &CSLDate{DateParts: [][]int{{e.Year}}}
	}
	return item
}
