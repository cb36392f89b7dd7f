package domain

// FeedKind distinguishes real annotations from the synthesized entry shown
// for a highlight that has no note yet.
type FeedKind string

// Feed entry kinds.
const (
	FeedKindAnnotation  FeedKind = "annotation"
	FeedKindPlaceholder FeedKind = "placeholder"
)

// PlaceholderPrefix starts the synthetic id of a placeholder entry.
const PlaceholderPrefix = "placeholder_"

// FeedEntry is one row of the annotation feed. Placeholders carry no
// Annotation and are never persisted; submitting a note against one creates
// a new annotation on the highlight.
type FeedEntry struct {
	Kind       FeedKind    `json:"kind"`
	Highlight  Highlight   `json:"highlight"`
	Annotation *Annotation `json:"annotation,omitempty"`
}

// IsPlaceholder reports whether the entry stands in for a missing note.
func (e FeedEntry) IsPlaceholder() bool {
	return e.Kind == FeedKindPlaceholder
}

// ID returns the annotation id, or a synthetic id derived from the highlight.
func (e FeedEntry) ID() string {
	if e.IsPlaceholder() || e.Annotation == nil {
		return PlaceholderID(e.Highlight.ID)
	}
	return e.Annotation.ID
}

// Content returns the note text; placeholders are empty.
func (e FeedEntry) Content() string {
	if e.Annotation == nil {
		return ""
	}
	return e.Annotation.Content
}

// PlaceholderID is the synthetic feed id for a highlight without notes.
func PlaceholderID(highlightID string) string {
	return PlaceholderPrefix + highlightID
}

// BuildFeed joins highlights with their annotations. Every highlight yields
// one entry per annotation in annotation order, or exactly one placeholder
// when it has none. Annotations whose highlight is missing are skipped.
func BuildFeed(highlights []Highlight, annotations []Annotation) []FeedEntry {
	byHighlight := make(map[string][]int, len(highlights))
	for i := range annotations {
		hid := annotations[i].HighlightID
		byHighlight[hid] = append(byHighlight[hid], i)
	}

	feed := make([]FeedEntry, 0, max(len(highlights), len(annotations)))
	for _, h := range highlights {
		idx := byHighlight[h.ID]
		if len(idx) == 0 {
			feed = append(feed, FeedEntry{Kind: FeedKindPlaceholder, Highlight: h})
			continue
		}
		for _, i := range idx {
			a := annotations[i].Clone()
			feed = append(feed, FeedEntry{Kind: FeedKindAnnotation, Highlight: h, Annotation: &a})
		}
	}
	return feed
}
