// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/contentforge/pkg/types"
)

// draftingContract is the system instruction for every drafting call.
const draftingContract = `You are an expert business content writer specializing in enterprise content.

CRITICAL RULES:
1. Only use information from the provided context
2. Never fabricate data, statistics, or facts
3. If asked about something not in context, state that clearly
4. Cite sources appropriately
5. Write in a professional, clear style

`

// draftingTone adds per-content-type style to the drafting contract.
var draftingTone = map[types.ContentType]string{
	types.ContentReport:        "Use formal, analytical tone. Focus on facts and evidence.",
	types.ContentArticle:       "Use engaging, informative tone. Balance data with narrative.",
	types.ContentMarketingCopy: "Use persuasive, benefit-focused language. Emphasize value.",
	types.ContentEmail:         "Use professional but conversational tone. Be concise.",
	types.ContentSummary:       "Use clear, bullet-point style. Focus on key points only.",
	types.ContentPresentation:  "Use concise, impactful language. Think in slide format.",
}

// SystemInstruction returns the drafting system prompt for a content type.
func SystemInstruction(ct types.ContentType) string {
	return draftingContract + draftingTone[ct]
}

// contextPreamble wraps assembled research context as a second system
// message.
const contextPreamble = "Context:\n%s\n\nBased on the above context, please respond to the following:"

var draftPromptTmpl = template.Must(template.New("draft").Parse(`Generate content for the following section:

Section Title: {{.Title}}
Description: {{.Description}}
Target Length: ~{{.Words}} words
Content Type: {{.ContentType}}
{{if .Topic}}Overall Topic: {{.Topic}}
{{end}}
Requirements:
1. Write clear, professional content
2. Base ALL claims on the provided context
3. Do NOT make up facts or statistics
4. If context lacks information, acknowledge the limitation
5. Use specific examples and evidence
6. Maintain logical flow
7. Target approximately {{.Words}} words
{{if not .HasContext}}
No research context is available for this section. Do not invent supporting evidence; keep claims general and say where sources are lacking.
{{end}}
Write the section content now:
`))

func renderDraftPrompt(job Job, hasContext bool) (string, error) {
	var buf bytes.Buffer
	err := draftPromptTmpl.Execute(&buf, struct {
		Title       string
		Description string
		Words       int
		ContentType types.ContentType
		Topic       string
		HasContext  bool
	}{job.Section.Title, job.Section.Description, job.Section.WordCountTarget, job.ContentType, job.Topic, hasContext})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
