// Package card extracts flashcards from a parsed Markdown document and
// serializes their faces to canonical text.
package card

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/cardsync/internal/markdown"
)

const (
	// Marker tags a heading as a card.
	Marker = "#card"
	// DeckNamespace prefixes every deck name.
	DeckNamespace = "all::"
	// FrontStart and FrontEnd delimit the additional-front region.
	FrontStart = "AnkiFront:start"
	FrontEnd   = "AnkiFront:end"
)

// Card is one flashcard derived from a #card heading.
type Card struct {
	// Index is the card's position among the cards of its document.
	Index int
	// Key is the full heading text, marker included.
	Key      string
	Depth    int
	Position markdown.Position
	// Setext is set for underlined headings, which have no line after them
	// to hold a state comment.
	Setext bool
	// Front starts with the heading block itself.
	Front []markdown.Block
	Back  []markdown.Block
	// NoteID is zero until the card exists remotely.
	NoteID int64
	// Hash is the fingerprint persisted next to the heading, empty if none.
	Hash string
}

// HasRemote reports whether the card is already known to the store.
func (c *Card) HasRemote() bool {
	return c.NoteID != 0
}

// HeadingLine renders the heading as it is rewritten on creation.
func (c *Card) HeadingLine() string {
	return strings.Repeat("#", c.Depth) + " " + c.Key
}

// Document is the result of walking one Markdown file.
type Document struct {
	Deck  string
	Tags  []string
	Cards []*Card
}

// Duplicates returns heading keys used by more than one card, in first-seen
// order.
func (d *Document) Duplicates() []string {
	seen := make(map[string]int, len(d.Cards))
	var out []string
	for _, c := range d.Cards {
		seen[c.Key]++
		if seen[c.Key] == 2 {
			out = append(out, c.Key)
		}
	}
	return out
}

// StateComment encodes the persisted remote state of a card.
func StateComment(noteID int64, hash string) string {
	return fmt.Sprintf("<!-- %d %s -->", noteID, hash)
}

// ParseStateComment decodes "<!-- <noteId> <hash> -->".
func ParseStateComment(value string) (int64, string, bool) {
	fields := strings.Fields(value)
	if len(fields) != 4 || fields[0] != "<!--" || fields[3] != "-->" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, fields[2], true
}
