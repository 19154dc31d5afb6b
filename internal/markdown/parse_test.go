package markdown

import (
	"strings"
	"testing"
)

func TestParse_HeadingCommentParagraph(t *testing.T) {
	doc := NewParser().Parse([]byte("#### My Card #card\n<!-- 123 abc -->\nWhat?\n"))
	if len(doc.Blocks) != 3 {
		t.Fatalf("len(blocks) = %d, want 3", len(doc.Blocks))
	}

	h, ok := doc.Blocks[0].(*Heading)
	if !ok {
		t.Fatalf("block 0 = %T, want *Heading", doc.Blocks[0])
	}
	if h.Depth != 4 || h.Text != "My Card #card" || h.Start != 1 {
		t.Errorf("heading = %+v", h)
	}

	c, ok := doc.Blocks[1].(*HTMLComment)
	if !ok {
		t.Fatalf("block 1 = %T, want *HTMLComment", doc.Blocks[1])
	}
	if c.Value != "<!-- 123 abc -->" || c.Start != 2 {
		t.Errorf("comment = %+v", c)
	}

	p, ok := doc.Blocks[2].(*Paragraph)
	if !ok {
		t.Fatalf("block 2 = %T, want *Paragraph", doc.Blocks[2])
	}
	if p.Start != 3 || len(p.Children) != 1 {
		t.Fatalf("paragraph = %+v", p)
	}
	if txt := p.Children[0].(*Text).Value; txt != "What?" {
		t.Errorf("text = %q, want %q", txt, "What?")
	}
}

func TestParse_SetextMetadataHeading(t *testing.T) {
	doc := NewParser().Parse([]byte("# Title\ntags: go lang\ndeck: programming\n---\n"))
	if len(doc.Blocks) != 2 {
		t.Fatalf("len(blocks) = %d, want 2", len(doc.Blocks))
	}
	h, ok := doc.Blocks[1].(*Heading)
	if !ok {
		t.Fatalf("block 1 = %T, want *Heading", doc.Blocks[1])
	}
	if h.Text != "tags: go lang\ndeck: programming" {
		t.Errorf("text = %q", h.Text)
	}
	if h.Depth != 2 {
		t.Errorf("depth = %d, want 2", h.Depth)
	}
}

func TestParse_Frontmatter(t *testing.T) {
	src := "---\ndeck: go\ntags: [a, b]\n---\n# Q #card\nA\n"
	doc := NewParser().Parse([]byte(src))
	if doc.Frontmatter.Deck != "go" {
		t.Errorf("deck = %q, want %q", doc.Frontmatter.Deck, "go")
	}
	if strings.Join(doc.Frontmatter.Tags, ",") != "a,b" {
		t.Errorf("tags = %v, want [a b]", doc.Frontmatter.Tags)
	}
	if doc.BodyLine != 5 {
		t.Errorf("body line = %d, want 5", doc.BodyLine)
	}
	h := doc.Blocks[0].(*Heading)
	if h.Start != 5 {
		t.Errorf("heading line = %d, want 5", h.Start)
	}
}

func TestParse_FrontmatterStringTags(t *testing.T) {
	doc := NewParser().Parse([]byte("---\ntags: x y\n---\nbody\n"))
	if strings.Join(doc.Frontmatter.Tags, ",") != "x,y" {
		t.Errorf("tags = %v, want [x y]", doc.Frontmatter.Tags)
	}
	if doc.Frontmatter.Deck != "" {
		t.Errorf("deck = %q, want empty", doc.Frontmatter.Deck)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	doc := NewParser().Parse([]byte("plain\n"))
	if doc.BodyLine != 1 {
		t.Errorf("body line = %d, want 1", doc.BodyLine)
	}
}

func TestParse_FencedCode(t *testing.T) {
	doc := NewParser().Parse([]byte("```go\nfmt.Println()\n```\n"))
	code, ok := doc.Blocks[0].(*FencedCode)
	if !ok {
		t.Fatalf("block 0 = %T, want *FencedCode", doc.Blocks[0])
	}
	if code.Language != "go" || code.Body != "fmt.Println()" {
		t.Errorf("code = %+v", code)
	}
}

func TestParse_ListInlines(t *testing.T) {
	doc := NewParser().Parse([]byte("- a `b`\n- c\n"))
	l, ok := doc.Blocks[0].(*List)
	if !ok {
		t.Fatalf("block 0 = %T, want *List", doc.Blocks[0])
	}
	if len(l.Items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(l.Items))
	}
	p := l.Items[0].Children[0].(*Paragraph)
	if len(p.Children) != 2 {
		t.Fatalf("len(children) = %d, want 2", len(p.Children))
	}
	if code, ok := p.Children[1].(*InlineCode); !ok || code.Value != "b" {
		t.Errorf("child 1 = %#v, want inline code b", p.Children[1])
	}
}

func TestParse_EmphasisKeepsMarkers(t *testing.T) {
	doc := NewParser().Parse([]byte("Hello *world* and **bold**\n"))
	p := doc.Blocks[0].(*Paragraph)
	if len(p.Children) != 1 {
		t.Fatalf("len(children) = %d, want 1", len(p.Children))
	}
	if got := p.Children[0].(*Text).Value; got != "Hello *world* and **bold**" {
		t.Errorf("text = %q", got)
	}
}

func TestParse_Image(t *testing.T) {
	doc := NewParser().Parse([]byte("![diagram](img/a.png)\n"))
	p := doc.Blocks[0].(*Paragraph)
	img, ok := p.Children[0].(*Image)
	if !ok {
		t.Fatalf("child 0 = %T, want *Image", p.Children[0])
	}
	if img.Alt != "diagram" || img.URL != "img/a.png" {
		t.Errorf("image = %+v", img)
	}
}

func TestParse_NonCommentHTMLDropped(t *testing.T) {
	doc := NewParser().Parse([]byte("<div>\nx\n</div>\n\ntext\n"))
	if len(doc.Blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(doc.Blocks))
	}
	if doc.Blocks[0].Kind() != KindParagraph {
		t.Errorf("kind = %v, want paragraph", doc.Blocks[0].Kind())
	}
	if doc.Ordinals[0] != 1 {
		t.Errorf("ordinal = %d, want 1", doc.Ordinals[0])
	}
}

func TestIsComment(t *testing.T) {
	cases := map[string]bool{
		"<!-- AnkiFront:start -->": true,
		"<!-- 1 2 -->":             true,
		"<div>":                    false,
		"<!-- open":                false,
	}
	for in, want := range cases {
		if got := IsComment(in); got != want {
			t.Errorf("IsComment(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRender(t *testing.T) {
	html, err := NewRenderer().Render("**hi**")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if html != "<p><strong>hi</strong></p>\n" {
		t.Errorf("html = %q", html)
	}
}

func TestParse_SetextHeadingSpansUnderline(t *testing.T) {
	doc := NewParser().Parse([]byte("# T\n\nQ #card\n=======\nback\n\n## ATX #card\n"))
	h, ok := doc.Blocks[1].(*Heading)
	if !ok {
		t.Fatalf("block 1 = %T, want *Heading", doc.Blocks[1])
	}
	if !h.Setext || h.Text != "Q #card" || h.Start != 3 || h.End != 4 {
		t.Errorf("setext heading = %+v", h)
	}
	for _, i := range []int{0, 3} {
		atx, ok := doc.Blocks[i].(*Heading)
		if !ok {
			t.Fatalf("block %d = %T, want *Heading", i, doc.Blocks[i])
		}
		if atx.Setext || atx.End != atx.Start {
			t.Errorf("atx heading = %+v", atx)
		}
	}
}

func TestParse_LinkTitleKept(t *testing.T) {
	doc := NewParser().Parse([]byte("see [t](http://x.test \"docs\") now\n"))
	p := doc.Blocks[0].(*Paragraph)
	txt, ok := p.Children[0].(*Text)
	if !ok {
		t.Fatalf("child = %T, want *Text", p.Children[0])
	}
	if want := `see [t](http://x.test "docs") now`; txt.Value != want {
		t.Errorf("text = %q, want %q", txt.Value, want)
	}
}
