package storage

import (
	"fmt"
	"strings"
)

// Document is an editable line buffer over a file's content.
type Document struct {
	lines []string
	dirty bool
}

// NewDocument splits content into lines. Bytes returns content unchanged
// until a line is set.
func NewDocument(content []byte) *Document {
	return &Document{lines: strings.Split(string(content), "\n")}
}

// LineCount returns the number of lines in the buffer.
func (d *Document) LineCount() int {
	return len(d.lines)
}

// Line returns the 0-based line n.
func (d *Document) Line(n int) (string, error) {
	if n < 0 || n >= len(d.lines) {
		return "", fmt.Errorf("storage: line %d out of range [0,%d)", n, len(d.lines))
	}
	return strings.TrimSuffix(d.lines[n], "\r"), nil
}

// SetLine replaces the 0-based line n with text. Text containing "\n"
// becomes several lines, shifting every later line down. A CRLF line ending
// on the replaced line is kept on every inserted line.
func (d *Document) SetLine(n int, text string) error {
	if n < 0 || n >= len(d.lines) {
		return fmt.Errorf("storage: line %d out of range [0,%d)", n, len(d.lines))
	}
	replacement := strings.Split(text, "\n")
	if strings.HasSuffix(d.lines[n], "\r") {
		for i := range replacement {
			replacement[i] += "\r"
		}
	}

	lines := make([]string, 0, len(d.lines)+len(replacement)-1)
	lines = append(lines, d.lines[:n]...)
	lines = append(lines, replacement...)
	lines = append(lines, d.lines[n+1:]...)
	d.lines = lines
	d.dirty = true
	return nil
}

// Dirty reports whether any line was set.
func (d *Document) Dirty() bool {
	return d.dirty
}

// Bytes returns the current content.
func (d *Document) Bytes() []byte {
	return []byte(strings.Join(d.lines, "\n"))
}
