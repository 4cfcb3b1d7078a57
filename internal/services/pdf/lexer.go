package pdf

import (
	"fmt"
	"strconv"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokHexString
	tokName
	tokKeyword
	tokArrayOpen
	tokArrayClose
	tokDictOpen
	tokDictClose
)

// token is one lexical element of a content stream or CMap.
// start and end are byte offsets into the source buffer.
type token struct {
	kind  tokenKind
	start int
	end   int
	text  string // keyword or name
	data  []byte // decoded string bytes
	num   float64
}

type lexer struct {
	buf []byte
	pos int
}

func newLexer(buf []byte) *lexer {
	return &lexer{buf: buf}
}

func isWhite(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		if isWhite(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.buf) && l.buf[l.pos] != '\n' && l.buf[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.buf) {
		return token{kind: tokEOF, start: start, end: start}, nil
	}

	c := l.buf[l.pos]
	switch c {
	case '(':
		data, err := l.readLiteral()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, start: start, end: l.pos, data: data}, nil
	case '<':
		if l.pos+1 < len(l.buf) && l.buf[l.pos+1] == '<' {
			l.pos += 2
			return token{kind: tokDictOpen, start: start, end: l.pos}, nil
		}
		data, err := l.readHex()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokHexString, start: start, end: l.pos, data: data}, nil
	case '>':
		if l.pos+1 < len(l.buf) && l.buf[l.pos+1] == '>' {
			l.pos += 2
			return token{kind: tokDictClose, start: start, end: l.pos}, nil
		}
		return token{}, fmt.Errorf("unexpected '>' at offset %d", start)
	case '[':
		l.pos++
		return token{kind: tokArrayOpen, start: start, end: l.pos}, nil
	case ']':
		l.pos++
		return token{kind: tokArrayClose, start: start, end: l.pos}, nil
	case '{', '}':
		l.pos++
		return token{kind: tokKeyword, start: start, end: l.pos, text: string(c)}, nil
	case ')':
		return token{}, fmt.Errorf("unbalanced ')' at offset %d", start)
	case '/':
		l.pos++
		return token{kind: tokName, start: start, end: l.pos, text: l.readName()}, nil
	}

	for l.pos < len(l.buf) && !isWhite(l.buf[l.pos]) && !isDelim(l.buf[l.pos]) {
		l.pos++
	}
	word := string(l.buf[start:l.pos])
	if looksNumeric(word) {
		if f, err := strconv.ParseFloat(word, 64); err == nil {
			return token{kind: tokNumber, start: start, end: l.pos, num: f, text: word}, nil
		}
	}
	return token{kind: tokKeyword, start: start, end: l.pos, text: word}, nil
}

func looksNumeric(word string) bool {
	if word == "" {
		return false
	}
	switch word[0] {
	case '+', '-', '.', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	return false
}

// readLiteral reads a balanced (...) string, resolving escapes and normalizing end-of-line markers
func (l *lexer) readLiteral() ([]byte, error) {
	start := l.pos
	l.pos++ // (
	depth := 1
	var out []byte

	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		switch c {
		case '(':
			depth++
			out = append(out, c)
			l.pos++
		case ')':
			depth--
			l.pos++
			if depth == 0 {
				return out, nil
			}
			out = append(out, c)
		case '\r':
			out = append(out, '\n')
			l.pos++
			if l.pos < len(l.buf) && l.buf[l.pos] == '\n' {
				l.pos++
			}
		case '\\':
			l.pos++
			if l.pos >= len(l.buf) {
				return nil, fmt.Errorf("unterminated string at offset %d", start)
			}
			e := l.buf[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.pos < len(l.buf) && l.buf[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			case '0', '1', '2', '3', '4', '5', '6', '7':
				v := int(e - '0')
				for i := 0; i < 2 && l.pos < len(l.buf) && l.buf[l.pos] >= '0' && l.buf[l.pos] <= '7'; i++ {
					v = v*8 + int(l.buf[l.pos]-'0')
					l.pos++
				}
				out = append(out, byte(v))
			default:
				out = append(out, e)
			}
		default:
			out = append(out, c)
			l.pos++
		}
	}
	return nil, fmt.Errorf("unterminated string at offset %d", start)
}

func (l *lexer) readHex() ([]byte, error) {
	start := l.pos
	l.pos++ // <
	var out []byte
	var hi byte
	odd := false

	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		l.pos++
		if c == '>' {
			if odd {
				out = append(out, hi<<4)
			}
			return out, nil
		}
		if isWhite(c) {
			continue
		}
		v, ok := hexValue(c)
		if !ok {
			return nil, fmt.Errorf("invalid hex digit %q at offset %d", c, l.pos-1)
		}
		if odd {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		odd = !odd
	}
	return nil, fmt.Errorf("unterminated hex string at offset %d", start)
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func (l *lexer) readName() string {
	var out []byte
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		if isWhite(c) || isDelim(c) {
			break
		}
		if c == '#' && l.pos+2 < len(l.buf) {
			h, ok1 := hexValue(l.buf[l.pos+1])
			lo, ok2 := hexValue(l.buf[l.pos+2])
			if ok1 && ok2 {
				out = append(out, h<<4|lo)
				l.pos += 3
				continue
			}
		}
		out = append(out, c)
		l.pos++
	}
	return string(out)
}

// skipInlineImage advances past the binary payload of an inline image.
// It must be called with the lexer positioned just after the ID keyword.
func (l *lexer) skipInlineImage() error {
	start := l.pos
	if l.pos < len(l.buf) && isWhite(l.buf[l.pos]) {
		l.pos++
	}
	for i := l.pos; i+1 < len(l.buf); i++ {
		if l.buf[i] != 'E' || l.buf[i+1] != 'I' {
			continue
		}
		if i > 0 && !isWhite(l.buf[i-1]) {
			continue
		}
		if i+2 < len(l.buf) && !isWhite(l.buf[i+2]) && !isDelim(l.buf[i+2]) {
			continue
		}
		l.pos = i + 2
		return nil
	}
	return fmt.Errorf("inline image starting at offset %d has no EI", start)
}
