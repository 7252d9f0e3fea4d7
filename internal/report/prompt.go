// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/contentforge/pkg/types"
)

const summarySystem = `You are an expert at creating concise, impactful executive summaries.
Focus on the most important takeaways and recommendations.`

var summaryPromptTmpl = template.Must(template.New("summary").Parse(`Create a concise executive summary for the following content.

Title: {{.Title}}

Requirements:
- Maximum {{.MaxWords}} words
- Highlight key findings and main points
- Use clear, professional language
- Be specific and actionable

Content to summarize:
{{.Content}}
`))

const editingSystem = `You are an expert editor specializing in business and technical content.

Your role is to REFINE, not rewrite. Focus on:
1. Grammar, punctuation, and spelling
2. Clarity and readability
3. Logical flow between paragraphs
4. Consistent tone and style
5. Professional formatting

CRITICAL RULES:
- Preserve all factual content
- Do not remove or alter citations
- Do not add new information
- Make minimal, targeted improvements
- Maintain the author's voice
`

// editingTone is the desired voice per content type.
var editingTone = map[types.ContentType]string{
	types.ContentReport:        "formal and analytical",
	types.ContentArticle:       "engaging and informative",
	types.ContentMarketingCopy: "persuasive and compelling",
	types.ContentEmail:         "professional but conversational",
	types.ContentSummary:       "concise and clear",
	types.ContentPresentation:  "punchy and impactful",
}

// Tone returns the editing tone for a content type.
func Tone(ct types.ContentType) string {
	if t, ok := editingTone[ct]; ok {
		return t
	}
	return "professional"
}

var editPromptTmpl = template.Must(template.New("edit").Parse(`Edit and refine the following content.

Content Type: {{.ContentType}}
Desired Tone: {{.Tone}}

Content to Edit:
{{.Content}}

Instructions:
1. Fix any grammar, spelling, or punctuation errors
2. Improve clarity and readability
3. Ensure smooth transitions between ideas
4. Maintain consistent {{.Tone}} tone
5. Keep all factual content and citations intact
6. Format professionally with proper paragraphs

Provide the edited version:
`))

const factCheckSystem = `You are a meticulous fact-checker.
Your job is to ensure every claim has source support.
Be thorough but fair in your assessment.`

var factCheckPromptTmpl = template.Must(template.New("factcheck").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(`Review the following content and verify that all factual claims are supported by the provided sources.

Content:
{{.Content}}

Available Sources:
{{range $i, $c := .Citations}}{{if $i}}

{{end}}[{{inc $i}}] {{$c.Source}}: {{$c.Text}}{{end}}

Identify any claims that are NOT supported by the sources. List them clearly.
If all claims are supported, respond with "VERIFIED: All claims are supported."
`))

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
