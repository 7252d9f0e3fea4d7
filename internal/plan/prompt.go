// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package plan

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/contentforge/pkg/types"
)

// systemPromptTmpl instructs the model to answer with JSON matching the
// embedded plan schema.
var systemPromptTmpl = template.Must(template.New("plan-system").Parse(`You are a helpful assistant that generates structured JSON output.
Always respond with valid JSON matching this schema:
{{.Schema}}

Do not include any text outside the JSON object.`))

// planningPromptTmpl is the user prompt for the planning call.
var planningPromptTmpl = template.Must(template.New("plan").Parse(`You are an expert content strategist and planner.

User Request: {{.Topic}}

Content Type: {{.ContentType}}
Target Length: {{.MaxWords}} words

Your task is to create a detailed content generation plan.
{{.Guidance}}
Requirements:
1. Create a compelling title
2. Determine if an executive summary is needed
3. Define 3-7 logical sections (fewer for short content, more for long reports)
4. For each section:
   - Provide a clear, descriptive title
   - Describe what should be covered in 1-2 sentences
   - Specify 1-3 research queries to find relevant information
   - Allocate a word count target (total across sections should match {{.MaxWords}})
5. Formulate an overall content strategy
6. Identify 5-8 key points that must be addressed

The plan should be comprehensive, logical, and actionable for content generation agents.
`))

// guidance holds per-content-type planning advice.
var guidance = map[types.ContentType]string{
	types.ContentReport: `
For a REPORT:
- Include executive summary
- Use formal, professional tone
- Structure with clear sections: Introduction, Analysis, Findings, Recommendations, Conclusion
- Emphasize data and evidence
- Include citations for all claims
`,
	types.ContentSummary: `
For a SUMMARY:
- Be concise and focused
- Use bullet points or short paragraphs
- Highlight only the most critical information
- No need for extensive sections
`,
	types.ContentArticle: `
For an ARTICLE:
- Engaging introduction with a hook
- Logical flow of ideas
- Mix of information and narrative
- Strong conclusion
`,
	types.ContentMarketingCopy: `
For MARKETING COPY:
- Focus on benefits and value proposition
- Use persuasive language
- Include clear call-to-action
- Emphasize customer pain points and solutions
`,
	types.ContentEmail: `
For an EMAIL:
- Clear subject line (use as title)
- Brief and scannable
- Professional but personable tone
- Specific call-to-action
`,
	types.ContentPresentation: `
For a PRESENTATION:
- Slide-friendly structure
- Each section = potential slide
- Concise, impactful content
- Visual-first thinking
`,
}

const defaultGuidance = "\nCreate well-structured, professional content.\n"

// Guidance returns the planning advice for a content type.
func Guidance(ct types.ContentType) string {
	if g, ok := guidance[ct]; ok {
		return g
	}
	return defaultGuidance
}

func renderSystemPrompt() (string, error) {
	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, struct{ Schema string }{Schema: planSchemaJSON}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderPlanningPrompt(topic string, ct types.ContentType, maxWords int) (string, error) {
	var buf bytes.Buffer
	err := planningPromptTmpl.Execute(&buf, struct {
		Topic       string
		ContentType types.ContentType
		MaxWords    int
		Guidance    string
	}{topic, ct, maxWords, Guidance(ct)})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
