// Package normalize cleans text captured from the reading surface before it
// is stored on a highlight.
package normalize

import (
	"strings"
	"unicode"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/unicode/norm"
)

// Format is how the surface encoded a selection.
type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
)

// Valid reports whether f is a known format. The empty format means text.
func (f Format) Valid() bool {
	return f == "" || f == FormatText || f == FormatHTML
}

// Text returns s in NFC with control characters dropped, runs of whitespace
// collapsed to one space, and the ends trimmed. Renderers split selections
// across text nodes, so line breaks inside a selection are layout noise.
func Text(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Paragraphs applies Text to each blank-line separated paragraph of s and
// joins them with a single blank line. It is idempotent.
func Paragraphs(s string) string {
	var paragraphs []string
	for p := range strings.SplitSeq(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n") {
		if p = Text(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

// Selection normalizes selected text. Only a selection the surface marks as
// HTML is converted to Markdown, so emphasis and paragraph breaks survive;
// anything else is prose and goes through Text untouched by the converter.
func Selection(s string, format Format) string {
	if s == "" {
		return ""
	}
	if format != FormatHTML {
		return Text(s)
	}

	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return Text(s)
	}
	return Paragraphs(markdown)
}

// Content trims a note or reply body without collapsing its line breaks.
func Content(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
