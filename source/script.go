// Package source resolves token positions against script text and answers
// "which instructions sit at line L, column C" for a compiled flow graph.
package source

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/chazu/bcgen/ir"
)

// Position is a resolved source location. Line and Column are 1-based;
// columns count runes.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Script is a source unit that token positions are offsets into.
type Script struct {
	Name string

	text       string
	lineStarts []int // byte offset of the first character of each line
}

// NewScript indexes the line starts of text.
func NewScript(name, text string) *Script {
	s := &Script{Name: name, text: text, lineStarts: []int{0}}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			s.lineStarts = append(s.lineStarts, i+1)
		}
	}
	return s
}

// Text returns the script source.
func (s *Script) Text() string { return s.text }

// LineCount is the number of lines, counting a trailing partial line.
func (s *Script) LineCount() int {
	n := len(s.lineStarts)
	if n > 1 && s.lineStarts[n-1] == len(s.text) {
		n--
	}
	return n
}

// Line returns the text of line (1-based) without its newline.
func (s *Script) Line(line int) string {
	if line < 1 || line > len(s.lineStarts) {
		return ""
	}
	start := s.lineStarts[line-1]
	end := len(s.text)
	if line < len(s.lineStarts) {
		end = s.lineStarts[line] - 1
	}
	return s.text[start:end]
}

// Resolve maps a token position to its line and column. Classifying and
// out-of-range positions do not resolve.
func (s *Script) Resolve(pos ir.TokenPosition) (Position, bool) {
	if !pos.IsReal() || int(pos) >= len(s.text) {
		return Position{}, false
	}
	offset := int(pos)
	line := sort.Search(len(s.lineStarts), func(i int) bool {
		return s.lineStarts[i] > offset
	})
	start := s.lineStarts[line-1]
	col := utf8.RuneCountInString(s.text[start:offset]) + 1
	return Position{Offset: offset, Line: line, Column: col}, true
}

// TokenPos is the inverse of Resolve. The column just past the last rune
// of a line names its line break.
func (s *Script) TokenPos(line, col int) (ir.TokenPosition, error) {
	if line < 1 || line > s.LineCount() {
		return ir.NoSourcePos, fmt.Errorf("%s: line %d out of range", s.Name, line)
	}
	outOfRange := fmt.Errorf("%s:%d: column %d out of range", s.Name, line, col)
	if col < 1 {
		return ir.NoSourcePos, outOfRange
	}
	text := s.Line(line)
	offset := s.lineStarts[line-1]
	for c := 1; c < col; c++ {
		if text == "" {
			return ir.NoSourcePos, outOfRange
		}
		_, size := utf8.DecodeRuneInString(text)
		text = text[size:]
		offset += size
	}
	if offset >= len(s.text) {
		return ir.NoSourcePos, outOfRange
	}
	return ir.TokenPosition(offset), nil
}

// Find returns the position of the nth (0-based) occurrence of needle.
func (s *Script) Find(needle string, nth int) (ir.TokenPosition, bool) {
	from := 0
	for {
		i := strings.Index(s.text[from:], needle)
		if i < 0 {
			return ir.NoSourcePos, false
		}
		if nth == 0 {
			return ir.TokenPosition(from + i), true
		}
		nth--
		from += i + len(needle)
	}
}
