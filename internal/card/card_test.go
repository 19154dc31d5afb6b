package card

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/cardsync/internal/apperr"
	"github.com/starford/cardsync/internal/markdown"
)

const sampleDoc = `# Notes
tags: go lang
deck: programming
---

#### What is 2+2? #card
4

#### Capital #card
<!-- 1700000000 abc123 -->
<!-- AnkiFront:start -->
Of France?
<!-- AnkiFront:end -->
Paris

## Other
ignored
`

func walkString(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Walk(markdown.NewParser().Parse([]byte(src)), WalkOptions{DefaultDeck: "Default"})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	return doc
}

func TestWalk_SampleDocument(t *testing.T) {
	doc := walkString(t, sampleDoc)

	if doc.Deck != "all::programming" {
		t.Errorf("deck = %q, want %q", doc.Deck, "all::programming")
	}
	if strings.Join(doc.Tags, ",") != "go,lang" {
		t.Errorf("tags = %v, want [go lang]", doc.Tags)
	}
	if len(doc.Cards) != 2 {
		t.Fatalf("len(cards) = %d, want 2", len(doc.Cards))
	}

	first := doc.Cards[0]
	if first.Key != "What is 2+2? #card" || first.Depth != 4 || first.Position.Start != 6 {
		t.Errorf("first card = %+v", first)
	}
	if first.HasRemote() {
		t.Errorf("first card should not have a note id, got %d", first.NoteID)
	}
	if len(first.Front) != 1 || len(first.Back) != 1 {
		t.Errorf("first card front/back = %d/%d, want 1/1", len(first.Front), len(first.Back))
	}

	second := doc.Cards[1]
	if second.NoteID != 1700000000 || second.Hash != "abc123" {
		t.Errorf("second card state = %d %q", second.NoteID, second.Hash)
	}
	if second.Index != 1 {
		t.Errorf("second card index = %d, want 1", second.Index)
	}
	if len(second.Front) != 2 || len(second.Back) != 1 {
		t.Errorf("second card front/back = %d/%d, want 2/1", len(second.Front), len(second.Back))
	}
}

func TestSerialize_SampleDocument(t *testing.T) {
	doc := walkString(t, sampleDoc)

	s := Serialize(doc.Cards[0])
	if s.Front != "What is 2+2?\n\n" {
		t.Errorf("front = %q", s.Front)
	}
	if s.Back != "4\n\n" {
		t.Errorf("back = %q", s.Back)
	}
	if s.Canonical() != "What is 2+2?\n\n4\n\n" {
		t.Errorf("canonical = %q", s.Canonical())
	}

	s = Serialize(doc.Cards[1])
	if s.Front != "Capital\n\n\nOf France?\n\n" {
		t.Errorf("front = %q", s.Front)
	}
	if s.Back != "Paris\n\n" {
		t.Errorf("back = %q", s.Back)
	}
	if strings.Contains(s.Canonical(), "AnkiFront") {
		t.Errorf("region markers leaked into canonical text: %q", s.Canonical())
	}
}

func TestWalk_DuplicateHeadingsKeepBothCards(t *testing.T) {
	doc := walkString(t, "# T\n\ntext\n\n## Q #card\nA\n\n## Q #card\nB\n")
	if len(doc.Cards) != 2 {
		t.Fatalf("len(cards) = %d, want 2", len(doc.Cards))
	}
	if got := Serialize(doc.Cards[1]).Back; got != "B\n\n" {
		t.Errorf("second back = %q, want %q", got, "B\n\n")
	}
	dups := doc.Duplicates()
	if len(dups) != 1 || dups[0] != "Q #card" {
		t.Errorf("duplicates = %v", dups)
	}
}

func TestWalk_MissingDeck(t *testing.T) {
	_, err := Walk(markdown.NewParser().Parse([]byte("# T\n## only tags\n")), WalkOptions{})
	if !errors.Is(err, apperr.ErrMissingDeck) {
		t.Errorf("err = %v, want ErrMissingDeck", err)
	}
}

func TestWalk_DefaultDeckWithoutMetadataHeading(t *testing.T) {
	doc := walkString(t, "# T\n\nparagraph\n\n## Q #card\nA\n")
	if doc.Deck != "Default" {
		t.Errorf("deck = %q, want %q", doc.Deck, "Default")
	}
	if len(doc.Tags) != 0 {
		t.Errorf("tags = %v, want none", doc.Tags)
	}
	if len(doc.Cards) != 1 {
		t.Errorf("len(cards) = %d, want 1", len(doc.Cards))
	}
}

func TestWalk_FrontmatterDeck(t *testing.T) {
	doc := walkString(t, "---\ndeck: fm\ntags: [x]\n---\n# Title\n## Q #card\nA\n")
	if doc.Deck != "all::fm" {
		t.Errorf("deck = %q, want %q", doc.Deck, "all::fm")
	}
	if strings.Join(doc.Tags, ",") != "x" {
		t.Errorf("tags = %v, want [x]", doc.Tags)
	}
	if len(doc.Cards) != 1 || doc.Cards[0].Position.Start != 6 {
		t.Fatalf("cards = %+v", doc.Cards)
	}
}

func TestWalk_StateCommentMustBeAdjacent(t *testing.T) {
	doc := walkString(t, "# T\n\ntext\n\n## Q #card\n\n<!-- 5 h -->\nA\n")
	if doc.Cards[0].HasRemote() {
		t.Errorf("non-adjacent comment should be ignored, got id %d", doc.Cards[0].NoteID)
	}
}

func TestWalk_NonCardHeadingStopsCollection(t *testing.T) {
	doc := walkString(t, "# T\n\ntext\n\n## Q #card\nA\n## Plain\nB\n")
	if len(doc.Cards[0].Back) != 1 {
		t.Errorf("len(back) = %d, want 1", len(doc.Cards[0].Back))
	}
}

func TestSerialize_Lists(t *testing.T) {
	list := &markdown.List{Items: []*markdown.ListItem{
		{Children: []markdown.Block{
			&markdown.Paragraph{Children: []markdown.Block{&markdown.Text{Value: "a"}, &markdown.InlineCode{Value: "b"}}},
		}},
		{Children: []markdown.Block{
			&markdown.Paragraph{Children: []markdown.Block{&markdown.Text{Value: "c"}}},
			&markdown.List{Items: []*markdown.ListItem{
				{Children: []markdown.Block{&markdown.Paragraph{Children: []markdown.Block{&markdown.Text{Value: "d"}}}}},
			}},
		}},
	}}
	c := &Card{
		Key:   "L #card",
		Front: []markdown.Block{&markdown.Heading{Depth: 2, Text: "L #card"}, list},
		Back:  []markdown.Block{list},
	}

	s := Serialize(c)
	if s.Front != "L\n\n\n- a`b`\n- c d\n\n" {
		t.Errorf("front = %q", s.Front)
	}
	if s.Back != "a`b`\nc\nd\n\n" {
		t.Errorf("back = %q", s.Back)
	}
}

func TestSerialize_CodeAndImage(t *testing.T) {
	c := &Card{
		Key:   "C #card",
		Front: []markdown.Block{&markdown.Heading{Depth: 2, Text: "C #card"}},
		Back: []markdown.Block{
			&markdown.FencedCode{Language: "go", Body: "x := 1"},
			&markdown.Paragraph{Children: []markdown.Block{
				&markdown.Text{Value: "see "},
				&markdown.Image{Alt: "alt", URL: "u.png"},
			}},
		},
	}

	s := Serialize(c)
	if s.Back != "```go\nx := 1\n```\n\n\nsee ![alt](u.png)\n\n" {
		t.Errorf("back = %q", s.Back)
	}
	if len(s.Media) != 1 || s.Media[0] != "u.png" {
		t.Errorf("media = %v, want [u.png]", s.Media)
	}
}

func TestTitle(t *testing.T) {
	cases := map[string]string{
		"My Card #card":       "My Card",
		"My Card #card extra": "My Card",
		"#card Leading":       "",
		"  Spaced  #card":     "Spaced",
	}
	for in, want := range cases {
		if got := Title(in); got != want {
			t.Errorf("Title(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStateComment_RoundTrip(t *testing.T) {
	line := StateComment(123, "d41d8cd98f00b204e9800998ecf8427e")
	if line != "<!-- 123 d41d8cd98f00b204e9800998ecf8427e -->" {
		t.Errorf("line = %q", line)
	}
	id, hash, ok := ParseStateComment(line)
	if !ok || id != 123 || hash != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("parse = %d %q %v", id, hash, ok)
	}
	for _, bad := range []string{"<!-- note -->", "<!-- x y -->", "<!-- 1 2 3 -->"} {
		if _, _, ok := ParseStateComment(bad); ok {
			t.Errorf("ParseStateComment(%q) should fail", bad)
		}
	}
}

func TestHeadingLine(t *testing.T) {
	c := &Card{Key: "My Card #card", Depth: 4}
	if got := c.HeadingLine(); got != "#### My Card #card" {
		t.Errorf("heading line = %q", got)
	}
}
