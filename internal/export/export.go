// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes a generated report as a project directory and loads
// it back. A project holds one numbered Markdown file per section
// (NN-slug.md), the assembled document, outline.yaml, references.yaml,
// references.bib, references.csl.yaml, and report.yaml with the full report.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/contentforge/internal/citation"
	"github.com/pdiddy/contentforge/internal/publish"
	"github.com/pdiddy/contentforge/pkg/types"
)

const (
	outlineFile    = "outline.yaml"
	referencesFile = "references.yaml"
	bibFile        = "references.bib"
	cslFile        = "references.csl.yaml"
	reportFile     = "report.yaml"
	documentFile   = "document.md"
)

// sectionFilePattern matches numbered section files: NN-slug.md.
var sectionFilePattern = regexp.MustCompile(`^\d{2}-.+\.md$`)

// ProjectDir is the directory name a report exports to under outDir.
func ProjectDir(outDir string, r *types.Report) string {
	return filepath.Join(outDir, strings.TrimSuffix(publish.FileName(r), ".md"))
}

// WriteProject exports r beneath outDir and returns the project directory.
// Existing files with the same names are overwritten.
func WriteProject(outDir string, r *types.Report) (string, error) {
	dir := ProjectDir(outDir, r)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating project directory: %w", err)
	}

	outline := Outline(r)
	for i, s := range r.Sections {
		body := "## " + s.Title + "\n\n" + strings.TrimSpace(s.Content) + "\n"
		if err := os.WriteFile(filepath.Join(dir, outline.Sections[i].File), []byte(body), 0o644); err != nil {
			return "", fmt.Errorf("writing section %q: %w", s.Title, err)
		}
	}

	refs := References(r)
	files := []struct {
		name string
		data func() ([]byte, error)
	}{
		{outlineFile, func() ([]byte, error) { return yaml.Marshal(outline) }},
		{referencesFile, func() ([]byte, error) { return yaml.Marshal(refs) }},
		{bibFile, func() ([]byte, error) { return []byte(GenerateBibTeX(refs)), nil }},
		{cslFile, func() ([]byte, error) { return marshalCSL(refs) }},
		{reportFile, func() ([]byte, error) { return yaml.Marshal(r) }},
		{documentFile, func() ([]byte, error) { return []byte(r.Document), nil }},
	}
	for _, f := range files {
		data, err := f.data()
		if err != nil {
			return "", fmt.Errorf("encoding %s: %w", f.name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.name), data, 0o644); err != nil {
			return "", fmt.Errorf("writing %s: %w", f.name, err)
		}
	}
	return dir, nil
}

// Outline describes the report's sections and their file names.
func Outline(r *types.Report) types.Outline {
	o := types.Outline{Title: r.Title, ContentType: r.ContentType, Status: r.Status}
	for i, s := range r.Sections {
		num := fmt.Sprintf("%02d", i+1)
		o.Sections = append(o.Sections, types.OutlineSection{
			Number:    num,
			Title:     s.Title,
			File:      num + "-" + publish.Slug(s.Title) + ".md",
			WordCount: s.WordCount(),
			Citations: len(s.Citations),
		})
	}
	return o
}

// References lists the report's distinct sources in reference-list order
// with unique citation keys.
func References(r *types.Report) types.ReferencesFile {
	cs := citation.Deduplicate(r.Citations)
	citation.SortBySource(cs)

	refs := types.ReferencesFile{Style: r.CitationStyle}
	used := make(map[string]int)
	for _, c := range cs {
		key := citationKey(c)
		used[key]++
		if n := used[key]; n > 1 {
			key += string(rune('a' + n - 2))
		}
		e := types.ReferenceEntry{
			CitationKey: key,
			CitationID:  c.ID,
			Source:      c.Source,
			URL:         c.URL,
			Formatted:   citation.Format(c, r.CitationStyle, false),
		}
		if c.PageNumber != nil {
			e.Page = types.IntPtr(*c.PageNumber)
		}
		if !c.RetrievedAt.IsZero() {
			e.Year = c.RetrievedAt.Year()
		}
		refs.Entries = append(refs.Entries, e)
	}
	return refs
}

// citationKey builds a SourceYear key from the letters and digits of the
// source's first three words.
func citationKey(c types.Citation) string {
	var b strings.Builder
	for i, w := range strings.Fields(c.Source) {
		if i == 3 {
			break
		}
		for j, r := range w {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				continue
			}
			if j == 0 {
				r = unicode.ToUpper(r)
			}
			if r < unicode.MaxASCII {
				b.WriteRune(r)
			}
		}
	}
	if b.Len() == 0 {
		b.WriteString("Source")
	}
	if c.RetrievedAt.IsZero() {
		b.WriteString("ND")
	} else {
		fmt.Fprintf(&b, "%d", c.RetrievedAt.Year())
	}
	return b.String()
}

// GenerateBibTeX produces BibTeX entries from a ReferencesFile.
func GenerateBibTeX(refs types.ReferencesFile) string {
	var b strings.Builder
	for _, r := range refs.Entries {
		fmt.Fprintf(&b, "@misc{%s,\n", r.CitationKey)
		fmt.Fprintf(&b, "  title = {%s},\n", r.Source)
		if r.Year > 0 {
			fmt.Fprintf(&b, "  year = {%d},\n", r.Year)
		}
		if r.Page != nil {
			fmt.Fprintf(&b, "  pages = {%d},\n", *r.Page)
		}
		if r.URL != "" {
			fmt.Fprintf(&b, "  howpublished = {\\url{%s}},\n", r.URL)
		}
		fmt.Fprintf(&b, "}\n\n")
	}
	return b.String()
}

// LoadOutline reads outline.yaml from a project directory.
func LoadOutline(projectDir string) (*types.Outline, error) {
	var outline types.Outline
	if err := readYAML(filepath.Join(projectDir, outlineFile), &outline); err != nil {
		return nil, fmt.Errorf("outline: %w", err)
	}
	return &outline, nil
}

// LoadReferences reads references.yaml from a project directory.
func LoadReferences(projectDir string) (*types.ReferencesFile, error) {
	var refs types.ReferencesFile
	if err := readYAML(filepath.Join(projectDir, referencesFile), &refs); err != nil {
		return nil, fmt.Errorf("references: %w", err)
	}
	return &refs, nil
}

// LoadReport reads the full report from a project directory. The assembled
// document is taken from document.md when present, so hand edits made after
// export are what gets published.
func LoadReport(projectDir string) (*types.Report, error) {
	var r types.Report
	if err := readYAML(filepath.Join(projectDir, reportFile), &r); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	if data, err := os.ReadFile(filepath.Join(projectDir, documentFile)); err == nil {
		r.Document = string(data)
	}
	if r.Metadata == nil {
		r.Metadata = map[string]string{}
	}
	return &r, nil
}

// SectionFiles returns the ordered numbered section file paths (NN-*.md) in
// a project directory.
func SectionFiles(projectDir string) ([]string, error) {
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return nil, fmt.Errorf("reading project directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if sectionFilePattern.MatchString(e.Name()) {
			files = append(files, filepath.Join(projectDir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Validate checks that a project's section files match its outline and that
// every reference has a key and a rendering. It returns the problems found.
func Validate(projectDir string) ([]string, error) {
	outline, err := LoadOutline(projectDir)
	if err != nil {
		return nil, err
	}
	refs, err := LoadReferences(projectDir)
	if err != nil {
		return nil, err
	}
	files, err := SectionFiles(projectDir)
	if err != nil {
		return nil, err
	}

	onDisk := make(map[string]bool, len(files))
	for _, f := range files {
		onDisk[filepath.Base(f)] = true
	}
	var problems []string
	listed := make(map[string]bool, len(outline.Sections))
	for _, s := range outline.Sections {
		listed[s.File] = true
		if !onDisk[s.File] {
			problems = append(problems, fmt.Sprintf("section file %s is missing", s.File))
		}
	}
	for _, f := range files {
		if name := filepath.Base(f); !listed[name] {
			problems = append(problems, fmt.Sprintf("section file %s is not in the outline", name))
		}
	}
	keys := make(map[string]bool, len(refs.Entries))
	for _, e := range refs.Entries {
		switch {
		case e.CitationKey == "":
			problems = append(problems, fmt.Sprintf("reference %q has no citation key", e.Source))
		case keys[e.CitationKey]:
			problems = append(problems, fmt.Sprintf("citation key %s is used twice", e.CitationKey))
		}
		keys[e.CitationKey] = true
		if strings.TrimSpace(e.Formatted) == "" {
			problems = append(problems, fmt.Sprintf("reference %q has no formatted entry", e.Source))
		}
	}
	return problems, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}
