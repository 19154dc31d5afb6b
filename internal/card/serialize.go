package card

import (
	"regexp"
	"strings"

	"github.com/starford/cardsync/internal/markdown"
)

var markerRe = regexp.MustCompile(`#card\s*(.*)`)

// Serialized holds the canonical text of both faces of a card.
type Serialized struct {
	Front string
	Back  string
	// Media lists image URLs referenced by either face.
	Media []string
}

// Canonical is the text the fingerprint is computed over.
func (s Serialized) Canonical() string {
	return s.Front + s.Back
}

// Title returns the heading text with the marker and anything after it on
// the same line removed.
func Title(key string) string {
	return strings.TrimSpace(markerRe.ReplaceAllString(key, ""))
}

// Serialize renders the faces of c. Parts are joined by "\n" and every
// element is followed by an empty part, giving a blank line between
// elements.
func Serialize(c *Card) Serialized {
	s := &serializer{}

	front := []string{Title(c.Key), "\n"}
	for i, b := range c.Front {
		if i == 0 {
			continue
		}
		front = append(front, s.frontParts(b)...)
		front = append(front, "\n")
	}

	var back []string
	for _, b := range c.Back {
		back = append(back, s.flatten(b)...)
		back = append(back, "\n")
	}

	return Serialized{
		Front: strings.Join(front, "\n"),
		Back:  strings.Join(back, "\n"),
		Media: s.media,
	}
}

type serializer struct {
	media []string
}

// frontParts joins each list item onto one dash-prefixed line.
func (s *serializer) frontParts(b markdown.Block) []string {
	l, ok := b.(*markdown.List)
	if !ok {
		return s.flatten(b)
	}
	parts := make([]string, 0, len(l.Items))
	for _, item := range l.Items {
		parts = append(parts, "- "+strings.Join(s.flatten(item), " "))
	}
	return parts
}

// flatten returns one part per leaf block; nested lists contribute bare
// lines.
func (s *serializer) flatten(b markdown.Block) []string {
	switch v := b.(type) {
	case *markdown.Text, *markdown.InlineCode, *markdown.Image:
		return []string{s.inline(v)}
	case *markdown.Paragraph:
		var sb strings.Builder
		for _, child := range v.Children {
			sb.WriteString(s.inline(child))
		}
		return []string{sb.String()}
	case *markdown.List:
		var parts []string
		for _, item := range v.Items {
			parts = append(parts, s.flatten(item)...)
		}
		return parts
	case *markdown.ListItem:
		var parts []string
		for _, child := range v.Children {
			parts = append(parts, s.flatten(child)...)
		}
		return parts
	case *markdown.FencedCode:
		return []string{"```" + v.Language + "\n" + v.Body + "\n```"}
	case *markdown.Heading:
		return []string{v.Text}
	case *markdown.HTMLComment:
		return nil
	}
	return nil
}

func (s *serializer) inline(b markdown.Block) string {
	switch v := b.(type) {
	case *markdown.Text:
		return v.Value
	case *markdown.InlineCode:
		return "`" + v.Value + "`"
	case *markdown.Image:
		s.media = append(s.media, v.URL)
		return "![" + v.Alt + "](" + v.URL + ")"
	}
	return ""
}
