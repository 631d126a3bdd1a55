// Package oracle defines the extraction-oracle boundary. The engine treats
// the natural-language model as a request/response black box: given a
// prompt, chunk text, and optional page images, it returns structured
// fields with citations. The go-agents-backed client lives in agent.go;
// tests substitute fakes.
package oracle

import "context"

// Citation locates a field's supporting text within its source document.
type Citation struct {
	Page    int    `json:"page,omitempty"`
	Section string `json:"section,omitempty"`
}

// Field is one structured value extracted by the oracle.
// Relevance is the oracle's own estimate in [0,1] of how directly the
// excerpt addresses the requirement; it feeds the confidence model as the
// textual-relevance factor.
type Field struct {
	Name      string   `json:"name"`
	Value     string   `json:"value"`
	Excerpt   string   `json:"excerpt"`
	Citation  Citation `json:"citation"`
	Relevance float64  `json:"relevance"`
}

// Request carries one extraction call's inputs. Images are data URIs for
// rendered document pages; when present the oracle uses vision, otherwise
// plain chat over Text.
type Request struct {
	Prompt string
	Text   string
	Images []string
}

// Extractor is the oracle contract consumed by the evidence engine.
type Extractor interface {
	Extract(ctx context.Context, req Request) ([]Field, error)
}
