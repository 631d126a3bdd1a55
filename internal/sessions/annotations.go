package sessions

import (
	"time"

	"github.com/google/uuid"
)

// Annotation is one reviewer note attached to a session, optionally
// scoped to a workflow stage. Annotations are append-only.
type Annotation struct {
	ID        uuid.UUID `json:"id"`
	Stage     string    `json:"stage,omitempty"`
	Author    string    `json:"author,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// AnnotationRecord is the persisted annotation list for a session.
type AnnotationRecord struct {
	Annotations []Annotation `json:"annotations"`
}
