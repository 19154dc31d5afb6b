// Package markdown turns Markdown source into the closed block model consumed
// by the card walker, and renders Markdown to HTML.
package markdown

// Kind identifies a block variant.
type Kind int

const (
	KindText Kind = iota
	KindInlineCode
	KindParagraph
	KindList
	KindListItem
	KindFencedCode
	KindImage
	KindHeading
	KindHTMLComment
)

var kindNames = [...]string{
	KindText:        "text",
	KindInlineCode:  "inline-code",
	KindParagraph:   "paragraph",
	KindList:        "list",
	KindListItem:    "list-item",
	KindFencedCode:  "fenced-code",
	KindImage:       "image",
	KindHeading:     "heading",
	KindHTMLComment: "html-comment",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Position is a 1-based source line span. Zero means unknown (inline nodes,
// empty headings).
type Position struct {
	Start int
	End   int
}

// Pos returns the position itself so that embedding types satisfy Block.
func (p Position) Pos() Position { return p }

// Block is a node of a parsed document. The set of implementations is
// closed: only the types in this file satisfy it.
type Block interface {
	Kind() Kind
	Pos() Position
	block()
}

// Text is literal inline text. Line breaks are kept as "\n".
type Text struct {
	Value string
}

// InlineCode is a code span without its backticks.
type InlineCode struct {
	Value string
}

// Image is an inline image reference.
type Image struct {
	Alt string
	URL string
}

// Paragraph holds inline children (Text, InlineCode, Image).
type Paragraph struct {
	Position
	Children []Block
}

// List is a bullet or ordered list.
type List struct {
	Position
	Ordered bool
	Items   []*ListItem
}

// ListItem holds block children: paragraphs, nested lists, code.
type ListItem struct {
	Position
	Children []Block
}

// FencedCode is a fenced or indented code block. Body has no trailing newline.
type FencedCode struct {
	Position
	Language string
	Body     string
}

// Heading is an ATX or setext heading. Text is the raw heading source with
// inline markup preserved and setext lines joined by "\n". For a setext
// heading Position.End is the underline line.
type Heading struct {
	Position
	Depth  int
	Text   string
	Setext bool
}

// HTMLComment is an HTML block wrapped in "<!--" and "-->". Value is the
// trimmed raw text including the delimiters.
type HTMLComment struct {
	Position
	Value string
}

func (*Text) Kind() Kind        { return KindText }
func (*InlineCode) Kind() Kind  { return KindInlineCode }
func (*Image) Kind() Kind       { return KindImage }
func (*Paragraph) Kind() Kind   { return KindParagraph }
func (*List) Kind() Kind        { return KindList }
func (*ListItem) Kind() Kind    { return KindListItem }
func (*FencedCode) Kind() Kind  { return KindFencedCode }
func (*Heading) Kind() Kind     { return KindHeading }
func (*HTMLComment) Kind() Kind { return KindHTMLComment }

func (*Text) Pos() Position       { return Position{} }
func (*InlineCode) Pos() Position { return Position{} }
func (*Image) Pos() Position      { return Position{} }

func (*Text) block()        {}
func (*InlineCode) block()  {}
func (*Image) block()       {}
func (*Paragraph) block()   {}
func (*List) block()        {}
func (*ListItem) block()    {}
func (*FencedCode) block()  {}
func (*Heading) block()     {}
func (*HTMLComment) block() {}

// Frontmatter holds the card-relevant keys of a document's YAML frontmatter.
type Frontmatter struct {
	Deck string
	Tags []string
}

// Document is a parsed Markdown file.
type Document struct {
	Frontmatter Frontmatter
	Blocks      []Block
	// Ordinals holds, for each entry of Blocks, its index among all
	// top-level nodes of the body (dropped nodes such as thematic breaks
	// still count).
	Ordinals []int
	// BodyLine is the 1-based line where the Markdown body starts (1 when
	// the file has no frontmatter).
	BodyLine int
}
