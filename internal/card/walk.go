package card

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/cardsync/internal/apperr"
	"github.com/starford/cardsync/internal/markdown"
)

// metadataOrdinal is the top-level position of the heading that carries
// tags and deck when the file has no frontmatter deck.
const metadataOrdinal = 1

// WalkOptions configures Walk.
type WalkOptions struct {
	// DefaultDeck is used when the document declares no deck at all.
	DefaultDeck string
	Logger      *slog.Logger
}

// Walk classifies the top-level blocks of doc in a single pass and collects
// the cards in document order.
func Walk(doc *markdown.Document, opts WalkOptions) (*Document, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out := &Document{Deck: opts.DefaultDeck}
	reserved := metadataOrdinal
	if doc.Frontmatter.Deck != "" {
		out.Deck = DeckNamespace + doc.Frontmatter.Deck
		out.Tags = append([]string(nil), doc.Frontmatter.Tags...)
		reserved = -1
	}

	var current *Card
	additionalFront := false

	for i, b := range doc.Blocks {
		switch v := b.(type) {
		case *markdown.HTMLComment:
			switch {
			case strings.Contains(v.Value, FrontStart):
				additionalFront = true
			case strings.Contains(v.Value, FrontEnd):
				additionalFront = false
			case current != nil && v.Start == current.Position.Start+1:
				id, hash, ok := ParseStateComment(v.Value)
				if !ok {
					logger.Debug("walk: ignoring malformed state comment",
						slog.String("card", current.Key),
						slog.Int("line", v.Start))
					break
				}
				current.NoteID = id
				current.Hash = hash
			}
			continue

		case *markdown.Heading:
			if doc.Ordinals[i] == reserved {
				deck, tags, err := parseMetadata(v.Text)
				if err != nil {
					return nil, err
				}
				out.Deck = deck
				out.Tags = tags
				continue
			}
			if !strings.Contains(v.Text, Marker) {
				current = nil
				continue
			}
			current = &Card{
				Index:    len(out.Cards),
				Key:      v.Text,
				Depth:    v.Depth,
				Position: v.Position,
				Setext:   v.Setext,
				Front:    []markdown.Block{v},
			}
			out.Cards = append(out.Cards, current)
			continue
		}

		if current == nil {
			continue
		}
		if additionalFront {
			current.Front = append(current.Front, b)
		} else {
			current.Back = append(current.Back, b)
		}
	}

	return out, nil
}

// parseMetadata reads "<label> tag1 tag2\n... deck: name".
func parseMetadata(text string) (string, []string, error) {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return "", nil, fmt.Errorf("card: %w: %q", apperr.ErrMissingDeck, text)
	}
	_, rawDeck, ok := strings.Cut(lines[1], "deck:")
	deck := strings.TrimSpace(rawDeck)
	if !ok || deck == "" {
		return "", nil, fmt.Errorf("card: %w: %q", apperr.ErrMissingDeck, text)
	}

	var tags []string
	if fields := strings.Fields(lines[0]); len(fields) > 1 {
		tags = fields[1:]
	}
	return DeckNamespace + deck, tags, nil
}
