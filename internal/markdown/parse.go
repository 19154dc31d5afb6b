package markdown

import (
	"bytes"
	"regexp"
	"sort"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// Parser converts Markdown source into a Document.
type Parser struct {
	md goldmark.Markdown
}

// NewParser creates a parser with GFM extensions enabled.
func NewParser() *Parser {
	return &Parser{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
	}
}

// Parse splits off YAML frontmatter and converts the top-level blocks of the
// body. Positions refer to lines of the full source.
func (p *Parser) Parse(source []byte) *Document {
	fm, body, bodyLine := splitFrontmatter(source)

	root := p.md.Parser().Parse(text.NewReader(body))
	c := newConverter(body, bodyLine)

	doc := &Document{Frontmatter: fm, BodyLine: bodyLine}
	ordinal := 0
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if b := c.block(n); b != nil {
			doc.Blocks = append(doc.Blocks, b)
			doc.Ordinals = append(doc.Ordinals, ordinal)
		}
		ordinal++
	}
	return doc
}

// IsComment reports whether an HTML block is wrapped in comment delimiters.
func IsComment(value string) bool {
	return strings.HasPrefix(value, "<!--") && strings.HasSuffix(value, "-->")
}

var yamlFormat = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

// splitFrontmatter returns the frontmatter keys, the body, and the 1-based
// line where the body starts. Invalid frontmatter leaves the whole source as
// body.
func splitFrontmatter(source []byte) (Frontmatter, []byte, int) {
	var raw struct {
		Deck string `yaml:"deck"`
		Tags any    `yaml:"tags"`
	}
	body, err := frontmatter.Parse(bytes.NewReader(source), &raw, yamlFormat)
	if err != nil || len(body) == len(source) || !bytes.HasSuffix(source, body) {
		return Frontmatter{}, source, 1
	}
	consumed := source[:len(source)-len(body)]
	fm := Frontmatter{
		Deck: strings.TrimSpace(raw.Deck),
		Tags: tagList(raw.Tags),
	}
	return fm, body, bytes.Count(consumed, []byte("\n")) + 1
}

// tagList accepts both `tags: a b` and `tags: [a, b]`.
func tagList(v any) []string {
	var out []string
	switch t := v.(type) {
	case string:
		out = strings.Fields(t)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, strings.Fields(s)...)
			}
		}
	}
	return out
}

type converter struct {
	src        []byte
	base       int
	lineStarts []int
}

func newConverter(src []byte, base int) *converter {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &converter{src: src, base: base, lineStarts: starts}
}

// line maps a byte offset to a 1-based line of the full source.
func (c *converter) line(offset int) int {
	idx := sort.SearchInts(c.lineStarts, offset+1) - 1
	return idx + c.base
}

func (c *converter) block(n ast.Node) Block {
	switch v := n.(type) {
	case *ast.Heading:
		h := &Heading{Position: c.span(v), Depth: v.Level, Text: c.rawLines(v)}
		if c.isSetext(v) {
			h.Setext = true
			h.End++
		}
		return h
	case *ast.Paragraph, *ast.TextBlock:
		return &Paragraph{Position: c.span(n), Children: c.inlines(n, nil)}
	case *ast.List:
		l := &List{Position: c.span(v), Ordered: v.IsOrdered()}
		for item := v.FirstChild(); item != nil; item = item.NextSibling() {
			li := &ListItem{Position: c.span(item)}
			for child := item.FirstChild(); child != nil; child = child.NextSibling() {
				if b := c.block(child); b != nil {
					li.Children = append(li.Children, b)
				}
			}
			l.Items = append(l.Items, li)
		}
		return l
	case *ast.FencedCodeBlock:
		return &FencedCode{Position: c.span(v), Language: string(v.Language(c.src)), Body: c.body(v)}
	case *ast.CodeBlock:
		return &FencedCode{Position: c.span(v), Body: c.body(v)}
	case *ast.HTMLBlock:
		value := c.htmlValue(v)
		if !IsComment(value) {
			return nil
		}
		return &HTMLComment{Position: c.span(v), Value: value}
	case *ast.ThematicBreak:
		return nil
	default:
		// Blockquotes, tables and other containers keep their inline text.
		children := c.flatten(n, nil)
		if len(children) == 0 {
			return nil
		}
		return &Paragraph{Position: c.span(n), Children: children}
	}
}

var atxOpen = regexp.MustCompile(`^ {0,3}#{1,6}(?:[ \t]|$)`)

// isSetext reports whether the heading is underlined rather than opened
// with '#'. goldmark keeps only the text lines, so the first source line
// decides.
func (c *converter) isSetext(h *ast.Heading) bool {
	lines := h.Lines()
	if lines.Len() == 0 {
		return false
	}
	start := c.lineStarts[c.line(lines.At(0).Start)-c.base]
	end := bytes.IndexByte(c.src[start:], '\n')
	if end < 0 {
		end = len(c.src) - start
	}
	return !atxOpen.Match(c.src[start : start+end])
}

func (c *converter) flatten(n ast.Node, out []Block) []Block {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if child.Type() == ast.TypeInline {
			out = c.inline(child, out)
			continue
		}
		if len(out) > 0 {
			out = appendText(out, "\n")
		}
		if child.FirstChild() == nil && child.Lines().Len() > 0 {
			out = appendText(out, c.rawLines(child))
			continue
		}
		out = c.flatten(child, out)
	}
	return out
}

func (c *converter) inlines(n ast.Node, out []Block) []Block {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		out = c.inline(child, out)
	}
	return out
}

func (c *converter) inline(n ast.Node, out []Block) []Block {
	switch v := n.(type) {
	case *ast.Text:
		s := string(v.Segment.Value(c.src))
		if v.SoftLineBreak() || v.HardLineBreak() {
			s += "\n"
		}
		return appendText(out, s)
	case *ast.String:
		return appendText(out, string(v.Value))
	case *ast.CodeSpan:
		return append(out, &InlineCode{Value: c.plain(v)})
	case *ast.Image:
		return append(out, &Image{Alt: c.plain(v), URL: string(v.Destination)})
	case *ast.AutoLink:
		return appendText(out, string(v.Label(c.src)))
	case *ast.RawHTML:
		for i := 0; i < v.Segments.Len(); i++ {
			seg := v.Segments.At(i)
			out = appendText(out, string(seg.Value(c.src)))
		}
		return out
	case *ast.Emphasis:
		marker := strings.Repeat("*", v.Level)
		out = appendText(out, marker)
		out = c.inlines(v, out)
		return appendText(out, marker)
	case *extast.Strikethrough:
		out = appendText(out, "~~")
		out = c.inlines(v, out)
		return appendText(out, "~~")
	case *ast.Link:
		out = appendText(out, "[")
		out = c.inlines(v, out)
		dest := string(v.Destination)
		if len(v.Title) > 0 {
			dest += ` "` + string(v.Title) + `"`
		}
		return appendText(out, "]("+dest+")")
	case *extast.TaskCheckBox:
		if v.IsChecked {
			return appendText(out, "[x] ")
		}
		return appendText(out, "[ ] ")
	default:
		return c.inlines(n, out)
	}
}

// plain returns the concatenated text of an inline subtree.
func (c *converter) plain(n ast.Node) string {
	var sb strings.Builder
	for _, b := range c.inlines(n, nil) {
		switch v := b.(type) {
		case *Text:
			sb.WriteString(v.Value)
		case *InlineCode:
			sb.WriteString(v.Value)
		case *Image:
			sb.WriteString(v.Alt)
		}
	}
	return sb.String()
}

func appendText(out []Block, s string) []Block {
	if s == "" {
		return out
	}
	if n := len(out); n > 0 {
		if t, ok := out[n-1].(*Text); ok {
			t.Value += s
			return out
		}
	}
	return append(out, &Text{Value: s})
}

func (c *converter) rawLines(n ast.Node) string {
	lines := n.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimSpace(string(seg.Value(c.src))))
	}
	return strings.Join(parts, "\n")
}

func (c *converter) body(n ast.Node) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(c.src))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func (c *converter) htmlValue(n *ast.HTMLBlock) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(c.src))
	}
	if n.HasClosure() {
		sb.Write(n.ClosureLine.Value(c.src))
	}
	return strings.TrimSpace(sb.String())
}

// span finds the first and last source lines covered by n or its
// descendants.
func (c *converter) span(n ast.Node) Position {
	first, last := -1, -1
	mark := func(seg text.Segment) {
		if seg.Len() == 0 && seg.Start == 0 {
			return
		}
		if first < 0 || seg.Start < first {
			first = seg.Start
		}
		stop := seg.Stop - 1
		if stop < seg.Start {
			stop = seg.Start
		}
		if stop > last {
			last = stop
		}
	}
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			mark(v.Segment)
			return ast.WalkContinue, nil
		case *ast.HTMLBlock:
			if v.HasClosure() {
				mark(v.ClosureLine)
			}
		}
		if node.Type() == ast.TypeBlock {
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				mark(lines.At(i))
			}
		}
		return ast.WalkContinue, nil
	})
	if first < 0 {
		return Position{}
	}
	return Position{Start: c.line(first), End: c.line(last)}
}
