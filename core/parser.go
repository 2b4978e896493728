package forsp

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// Reader reads forsp objects one at a time from a rune source. A program
// and the data it consumes through the read primitive may share a Reader.
type Reader struct {
	r   *bufio.Reader
	pos int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Parse reads exactly one object from src.
func Parse(src string) (Value, error) {
	rd := NewReader(strings.NewReader(src))
	v, err := rd.Read()
	if errors.Is(err, io.EOF) {
		return Value{}, &SyntaxError{Pos: rd.pos, Msg: "empty input"}
	}
	if err != nil {
		return Value{}, err
	}
	if _, err := rd.Read(); !errors.Is(err, io.EOF) {
		if err != nil {
			return Value{}, err
		}
		return Value{}, &SyntaxError{Pos: rd.pos, Msg: "unexpected input after expression"}
	}
	return v, nil
}

// ParseProgram reads every top-level object in src and returns them as a
// single program list.
func ParseProgram(src string) (Value, error) {
	rd := NewReader(strings.NewReader(src))
	var terms []Value
	for {
		v, err := rd.Read()
		if errors.Is(err, io.EOF) {
			return List(terms...), nil
		}
		if err != nil {
			return Value{}, err
		}
		terms = append(terms, v)
	}
}

// Read returns the next object, or io.EOF when only whitespace and
// comments remain.
func (rd *Reader) Read() (Value, error) {
	if err := rd.skipWhitespace(); err != nil {
		return Value{}, err
	}
	ch, err := rd.peek()
	if err != nil {
		return Value{}, err
	}
	switch {
	case ch == '(':
		rd.advance()
		return rd.readList()
	case ch == ')':
		return Value{}, &SyntaxError{Pos: rd.pos, Msg: "unexpected ')'"}
	case isDirective(ch):
		rd.advance()
		return Intern(string(ch)), nil
	default:
		return rd.readScalar()
	}
}

func (rd *Reader) readList() (Value, error) {
	start := rd.pos
	var elems []Value
	for {
		if err := rd.skipWhitespace(); err != nil {
			return Value{}, err
		}
		ch, err := rd.peek()
		if errors.Is(err, io.EOF) {
			return Value{}, &SyntaxError{Pos: start, Msg: "unclosed list"}
		}
		if err != nil {
			return Value{}, err
		}
		if ch == ')' {
			rd.advance()
			return List(elems...), nil
		}
		elem, err := rd.Read()
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, elem)
	}
}

func (rd *Reader) readScalar() (Value, error) {
	var sb strings.Builder
	for {
		ch, err := rd.peek()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Value{}, err
		}
		if isDelimiter(ch) {
			break
		}
		sb.WriteRune(ch)
		rd.advance()
	}
	token := sb.String()
	if n, err := strconv.ParseInt(token, 10, 64); err == nil {
		return NumVal(n), nil
	}
	return Intern(token), nil
}

func (rd *Reader) skipWhitespace() error {
	for {
		ch, err := rd.peek()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if ch == ';' {
			for {
				ch, err := rd.peek()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				rd.advance()
				if ch == '\n' {
					break
				}
			}
			continue
		}
		if !unicode.IsSpace(ch) {
			return nil
		}
		rd.advance()
	}
}

func (rd *Reader) peek() (rune, error) {
	ch, _, err := rd.r.ReadRune()
	if err != nil {
		return 0, err
	}
	if err := rd.r.UnreadRune(); err != nil {
		return 0, err
	}
	return ch, nil
}

func (rd *Reader) advance() {
	if _, _, err := rd.r.ReadRune(); err == nil {
		rd.pos++
	}
}

func isDirective(ch rune) bool {
	return ch == '\'' || ch == '^' || ch == '$'
}

func isDelimiter(ch rune) bool {
	return unicode.IsSpace(ch) || ch == '(' || ch == ')' || ch == ';' || isDirective(ch)
}
