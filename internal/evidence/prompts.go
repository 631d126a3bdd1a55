package evidence

import (
	"fmt"
	"strings"

	"github.com/attestd/attest/internal/methodology"
)

// ComposePrompt builds the oracle prompt for one requirement. The
// response contract mirrors the oracle.Field shape so parsing stays a
// single JSON decode.
func ComposePrompt(checklist *methodology.Checklist, req *methodology.Requirement) string {
	var sb strings.Builder

	sb.WriteString("You are reviewing project documentation against the checklist \"")
	sb.WriteString(checklist.Name)
	sb.WriteString("\" (")
	sb.WriteString(checklist.ID)
	sb.WriteString(").\n\n")

	fmt.Fprintf(&sb, "Requirement %s (%s): %s\n", req.ID, req.Category, req.Text)
	if req.PromptHint != "" {
		fmt.Fprintf(&sb, "Hint: %s\n", req.PromptHint)
	}

	sb.WriteString(`
Examine the supplied document content and extract every passage that
evidences this requirement. For each, report the named value it
establishes, the verbatim excerpt, and where it appears.

Respond with a JSON object in this exact structure:

{
  "fields": [
    {
      "name": "what the excerpt establishes",
      "value": "the extracted value",
      "excerpt": "verbatim supporting text",
      "citation": { "page": 1, "section": "heading if known" },
      "relevance": 0.0
    }
  ]
}

Use these exact names for "name" when the excerpt establishes one of
them; use a short lowercase snake_case name for anything else:

`)
	for _, f := range fieldGlossary {
		fmt.Fprintf(&sb, "- %s: %s\n", f.name, f.meaning)
	}

	sb.WriteString(`
Rules:
- relevance is your estimate in [0,1] of how directly the excerpt
  addresses the requirement
- omit page or section when unknown, never invent them
- return {"fields": []} when the content carries no relevant evidence
- respond with JSON only, no commentary
`)

	return sb.String()
}
