package store

import "strings"

// Key prefixes. Every book's collections are namespaced by book id, while
// study stats for all books share one blob.
const (
	highlightsPrefix  = "highlights:"
	annotationsPrefix = "annotations:"

	// StudyStatsKey holds the map of book id to study data.
	StudyStatsKey = "studyStats"
)

// HighlightsKey is the key of a book's ordered highlight list.
func HighlightsKey(bookID string) string {
	return highlightsPrefix + bookID
}

// AnnotationsKey is the key of a book's ordered annotation list.
func AnnotationsKey(bookID string) string {
	return annotationsPrefix + bookID
}

// BookIDFromKey extracts the book id from a highlights or annotations key.
func BookIDFromKey(key string) (string, bool) {
	for _, prefix := range []string{highlightsPrefix, annotationsPrefix} {
		if id, ok := strings.CutPrefix(key, prefix); ok && id != "" {
			return id, true
		}
	}
	return "", false
}
