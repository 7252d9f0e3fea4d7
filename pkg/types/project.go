// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// OutlineSection describes one section file in an exported report project.
type OutlineSection struct {
	// Number is the two-digit sequence number (e.g. "01", "02").
	Number string `json:"number" yaml:"number"`

	// Title is the section heading.
	Title string `json:"title" yaml:"title"`

	// File is the section's filename (e.g. "01-introduction.md").
	File string `json:"file" yaml:"file"`

	// WordCount is the body word count at export time.
	WordCount int `json:"word_count" yaml:"word_count"`

	// Citations is the number of section-local citations.
	Citations int `json:"citations" yaml:"citations"`
}

// Outline holds the report structure written to outline.yaml.
type Outline struct {
	// Title is the report title.
	Title string `json:"title" yaml:"title"`

	// ContentType is the kind of document.
	ContentType ContentType `json:"content_type" yaml:"content_type"`

	// Status is the report status at export time.
	Status ContentStatus `json:"status" yaml:"status"`

	// Sections lists the report's sections in order.
	Sections []OutlineSection `json:"sections" yaml:"sections"`
}

// ReferenceEntry records a cited source in references.yaml.
type ReferenceEntry struct {
	// CitationKey is the BibTeX key (e.g. "DocA2025").
	CitationKey string `json:"citation_key" yaml:"citation_key"`

	// CitationID links back to the Citation.ID.
	CitationID string `json:"citation_id" yaml:"citation_id"`

	// Source is the cited document title.
	Source string `json:"source" yaml:"source"`

	// Page is the page number, when known.
	Page *int `json:"page,omitempty" yaml:"page,omitempty"`

	// Year is the retrieval year; zero when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// URL links to the source (optional).
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Formatted is the rendered reference in the report's citation style.
	Formatted string `json:"formatted" yaml:"formatted"`
}

// ReferencesFile holds all cited sources from references.yaml.
type ReferencesFile struct {
	// Style is the citation style used for Formatted entries.
	Style CitationStyle `json:"style" yaml:"style"`

	// Entries lists every distinct cited source.
	Entries []ReferenceEntry `json:"entries" yaml:"entries"`
}
