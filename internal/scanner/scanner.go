// Package scanner turns circuit definition source text into a stream of
// token.Symbol values, tracking line/column for error reporting.
package scanner

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/pdxjjb/circuitsim/internal/names"
	"github.com/pdxjjb/circuitsim/internal/token"
)

// FatalError is returned by NextToken when the source contains a character
// the grammar can never accept; the whole parse session must abort.
type FatalError struct {
	Line, Column int
	Message      string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

var punctuation = map[rune]token.Kind{
	',': token.COMMA,
	';': token.SEMICOLON,
	'>': token.GREATER,
	'(': token.BRACK_OPEN,
	')': token.BRACK_CLOSE,
	'.': token.DOT,
	':': token.COLON,
}

// Scanner reads one source file and emits Symbols. It owns the underlying
// file handle (if opened via Open) and buffers the current and previous
// source lines for RenderErrorAt, so error display never needs to re-open
// or rewind the file (spec.md §5 permits, but does not require, lazy
// re-read; we choose eager single-line buffering).
type Scanner struct {
	names *names.Table

	r    *bufio.Reader
	file io.Closer // non-nil only if we opened the file ourselves

	line, column int

	lineBuf     strings.Builder
	currentLine string
	prevLine    string
}

// Open opens path and returns a Scanner over its contents.
func Open(path string, tab *names.Table) (*Scanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s := New(f, tab)
	s.file = f
	return s, nil
}

// New returns a Scanner reading from r. The caller retains ownership of r.
func New(r io.Reader, tab *names.Table) *Scanner {
	return &Scanner{
		names:  tab,
		r:      bufio.NewReader(r),
		line:   1,
		column: 0,
	}
}

// Close releases the underlying file, if the Scanner opened it itself.
func (s *Scanner) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *Scanner) peek() rune {
	r, _, err := s.r.ReadRune()
	if err != nil {
		return 0
	}
	s.r.UnreadRune()
	return r
}

func (s *Scanner) peekAt(n int) rune {
	buf, err := s.r.Peek(n + 4) // runes can be up to 4 bytes; this is best-effort ASCII lookahead
	if err != nil || len(buf) == 0 {
		return 0
	}
	// Our grammar is ASCII-only punctuation/digits/letters, so byte indexing
	// is safe for the lookahead uses in this scanner (block-comment marker
	// detection).
	if n >= len(buf) {
		return 0
	}
	return rune(buf[n])
}

func (s *Scanner) advance() rune {
	r, _, err := s.r.ReadRune()
	if err != nil {
		return 0
	}
	if r == '\n' {
		s.prevLine = s.currentLine
		s.currentLine = s.lineBuf.String()
		s.lineBuf.Reset()
		s.line++
		s.column = 0
	} else {
		s.lineBuf.WriteRune(r)
		s.column++
	}
	return r
}

// skipWhitespaceAndComments consumes spaces, tabs, newlines, and comments.
// A single '#' starts a line comment ended by the next newline. A run of
// three or more consecutive '#' characters starts a block comment, which is
// terminated by the next run of three or more '#' characters (spec.md §9's
// documented resolution of the closing-delimiter ambiguity).
func (s *Scanner) skipWhitespaceAndComments() {
	for {
		c := s.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			s.advance()
		case c == '#':
			if s.countHashes() >= 3 {
				s.skipBlockComment()
			} else {
				s.skipLineComment()
			}
		default:
			return
		}
	}
}

// countHashes consumes nothing; it reports how many consecutive '#'
// characters start at the current position.
func (s *Scanner) countHashes() int {
	n := 0
	for s.peekAt(n) == '#' {
		n++
	}
	return n
}

func (s *Scanner) skipLineComment() {
	for {
		c := s.peek()
		if c == 0 || c == '\n' {
			return
		}
		s.advance()
	}
}

func (s *Scanner) skipBlockComment() {
	// consume the opening run of '#'
	for s.peek() == '#' {
		s.advance()
	}
	for {
		c := s.peek()
		if c == 0 {
			return // unterminated block comment: treated as EOF by caller
		}
		if c == '#' && s.countHashes() >= 3 {
			for s.peek() == '#' {
				s.advance()
			}
			return
		}
		s.advance()
	}
}

// NextToken returns the next Symbol in the stream, or a FatalError if the
// source contains a character the grammar can never accept.
func (s *Scanner) NextToken() (token.Symbol, error) {
	s.skipWhitespaceAndComments()

	startLine, startCol := s.line, s.column+1
	c := s.peek()

	switch {
	case c == 0:
		return token.Symbol{Kind: token.EOF, Line: startLine, Column: startCol}, nil

	case unicode.IsDigit(c):
		return s.scanNumber(startLine, startCol), nil

	case unicode.IsLetter(c):
		return s.scanNameOrKeyword(startLine, startCol), nil

	default:
		if kind, ok := punctuation[c]; ok {
			s.advance()
			return token.Symbol{Kind: kind, Line: startLine, Column: startCol}, nil
		}
		s.advance()
		return token.Symbol{}, &FatalError{
			Line: startLine, Column: startCol,
			Message: fmt.Sprintf("unexpected character %q", c),
		}
	}
}

func (s *Scanner) scanNumber(line, col int) token.Symbol {
	var sb strings.Builder
	for unicode.IsDigit(s.peek()) {
		sb.WriteRune(s.advance())
	}
	n := 0
	for _, r := range sb.String() {
		n = n*10 + int(r-'0')
	}
	return token.Symbol{Kind: token.NUMBER, Number: n, Line: line, Column: col}
}

func (s *Scanner) scanNameOrKeyword(line, col int) token.Symbol {
	var sb strings.Builder
	for {
		c := s.peek()
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			sb.WriteRune(s.advance())
			continue
		}
		break
	}
	word := sb.String()
	id := s.names.MustLookup(word)
	kind := token.NAME
	for _, kw := range token.Keywords {
		if kw == word {
			kind = token.KEYWORD
			break
		}
	}
	return token.Symbol{Kind: kind, ID: id, Line: line, Column: col}
}

// RenderErrorAt writes the source line containing sym, a caret under its
// column, and message, to w.
func (s *Scanner) RenderErrorAt(w io.Writer, sym token.Symbol, message string) {
	line := s.lineForDisplay(sym.Line)
	fmt.Fprintf(w, "%d:%d: %s\n", sym.Line, sym.Column, message)
	fmt.Fprintf(w, "%s\n", line)
	if sym.Column >= 1 {
		fmt.Fprintf(w, "%s^\n", strings.Repeat(" ", sym.Column-1))
	}
}

// lineForDisplay returns the text of the given 1-based line number,
// best-effort: only the current line (extended with its unread remainder)
// and the immediately preceding line are retained.
func (s *Scanner) lineForDisplay(lineNum int) string {
	switch lineNum {
	case s.line:
		return s.lineBuf.String() + s.restOfCurrentLine()
	case s.line - 1:
		return s.currentLine
	default:
		return ""
	}
}

// restOfCurrentLine peeks (without consuming) the remaining unread bytes of
// the line the reader is positioned in, up to the next newline.
func (s *Scanner) restOfCurrentLine() string {
	const chunk = 256
	for n := chunk; n < 1<<16; n *= 2 {
		buf, _ := s.r.Peek(n)
		if i := strings.IndexByte(string(buf), '\n'); i >= 0 {
			return string(buf[:i])
		}
		if len(buf) < n {
			return string(buf)
		}
	}
	return ""
}
