// Package documents implements the document domain: discovery over
// session sources, rule-based classification, and content-fingerprint
// deduplication. Documents are immutable after discovery except for
// manual classification corrections.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Method records how a document's classification was assigned.
type Method string

// Classification methods.
const (
	MethodRule    Method = "rule"
	MethodDefault Method = "default"
	MethodManual  Method = "manual"
)

// LabelUnknown is assigned when no classification rule matches.
const LabelUnknown = "unknown"

// Document is one discovered file with its classification and extraction
// metadata. Within a session, fingerprints are unique: later files with
// the same fingerprint become Duplicate records instead.
type Document struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	Path         string    `json:"path"`
	Filename     string    `json:"filename"`
	Fingerprint  string    `json:"fingerprint"`
	SizeBytes    int64     `json:"size_bytes"`
	Label        string    `json:"label"`
	Confidence   float64   `json:"confidence"`
	Method       Method    `json:"method"`
	TextLength   int       `json:"text_length"`
	PageCount    int       `json:"page_count"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Duplicate records a file excluded because its fingerprint was already
// seen. The source path is retained for traceability; the first-seen
// document wins.
type Duplicate struct {
	Path        string    `json:"path"`
	Fingerprint string    `json:"fingerprint"`
	OriginalID  uuid.UUID `json:"original_id"`
}

// FileError captures one per-file failure during discovery. Discovery
// returns these alongside the partial inventory rather than aborting.
type FileError struct {
	Path        string `json:"path"`
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	Remediation string `json:"remediation"`
}

// Inventory is the accumulated discovery result for a session.
type Inventory struct {
	Documents  []Document  `json:"documents"`
	Duplicates []Duplicate `json:"duplicates"`
	Errors     []FileError `json:"errors"`
}

// Find returns the inventory document with the given id.
func (inv *Inventory) Find(id uuid.UUID) (*Document, bool) {
	for i := range inv.Documents {
		if inv.Documents[i].ID == id {
			return &inv.Documents[i], true
		}
	}
	return nil, false
}
