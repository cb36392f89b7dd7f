package domain

import "time"

// HighlightColor is the tag a reader assigns to a highlight.
type HighlightColor string

// Highlight colors.
const (
	ColorYellow HighlightColor = "yellow"
	ColorBlue   HighlightColor = "blue"
	ColorPink   HighlightColor = "pink"
	ColorOrange HighlightColor = "orange"

	DefaultColor = ColorYellow
)

var colorHex = map[HighlightColor]string{
	ColorYellow: "#FFEB3B",
	ColorBlue:   "#64B5F6",
	ColorPink:   "#F48FB1",
	ColorOrange: "#FFB74D",
}

// Colors lists every highlight color in palette order.
func Colors() []HighlightColor {
	return []HighlightColor{ColorYellow, ColorBlue, ColorPink, ColorOrange}
}

// Valid returns true if the color is part of the palette.
func (c HighlightColor) Valid() bool {
	_, ok := colorHex[c]
	return ok
}

// OrDefault returns c, or DefaultColor when c is not in the palette.
func (c HighlightColor) OrDefault() HighlightColor {
	if c.Valid() {
		return c
	}
	return DefaultColor
}

// Hex returns the palette swatch, falling back to the default color's.
func (c HighlightColor) Hex() string {
	return colorHex[c.OrDefault()]
}

// StyleTag is the decoration class handed to the reading surface.
func (c HighlightColor) StyleTag() string {
	return "highlight-" + string(c.OrDefault())
}

// Highlight is a span of book text marked by the reader. LocationRef is an
// opaque renderer position token: stored, compared, and passed back, never
// interpreted.
type Highlight struct {
	ID          string         `json:"id"`
	BookID      string         `json:"book_id"`
	LocationRef string         `json:"location_ref"`
	Text        string         `json:"text"`
	Color       HighlightColor `json:"color"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IndexHighlight returns the position of the highlight with id, or -1.
func IndexHighlight(highlights []Highlight, id string) int {
	for i := range highlights {
		if highlights[i].ID == id {
			return i
		}
	}
	return -1
}
