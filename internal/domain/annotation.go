package domain

import "time"

// Annotation is a note attached to exactly one highlight.
type Annotation struct {
	ID          string    `json:"id"`
	HighlightID string    `json:"highlight_id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Replies     []Reply   `json:"replies"`
}

// Reply is an immutable follow-up on an annotation. Replies live nested in
// their annotation and disappear with it.
type Reply struct {
	ID           string    `json:"id"`
	AnnotationID string    `json:"annotation_id"`
	UserID       string    `json:"user_id"`
	UserName     string    `json:"user_name"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// Clone returns a deep copy so callers cannot alias the reply slice.
func (a Annotation) Clone() Annotation {
	a.Replies = append([]Reply{}, a.Replies...)
	return a
}

// IndexAnnotation returns the position of the annotation with id, or -1.
func IndexAnnotation(annotations []Annotation, id string) int {
	for i := range annotations {
		if annotations[i].ID == id {
			return i
		}
	}
	return -1
}

// WithoutHighlight returns the annotations not attached to highlightID,
// preserving order, and how many were dropped.
func WithoutHighlight(annotations []Annotation, highlightID string) ([]Annotation, int) {
	kept := make([]Annotation, 0, len(annotations))
	for _, a := range annotations {
		if a.HighlightID != highlightID {
			kept = append(kept, a)
		}
	}
	return kept, len(annotations) - len(kept)
}
