package pdf

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// toUnicodeMap is a parsed ToUnicode CMap: character codes to Unicode text
type toUnicodeMap struct {
	codeLen int
	single  map[int]string
	ranges  []cmapRange
}

type cmapRange struct {
	lo, hi int
	dst    []byte   // UTF-16BE of the first code, incremented across the range
	list   []string // explicit per-code targets when given as an array
}

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

func decodeUTF16(b []byte) string {
	if len(b)%2 == 1 {
		b = append([]byte{0}, b...)
	}
	out, err := utf16be.NewDecoder().Bytes(b)
	if err != nil {
		return string(replacementChar)
	}
	return string(out)
}

func codeOf(b []byte) int {
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v
}

// parseToUnicode reads the codespace, bfchar and bfrange sections of a CMap
func parseToUnicode(data []byte) (*toUnicodeMap, error) {
	m := &toUnicodeMap{single: make(map[int]string)}
	l := newLexer(data)

	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokEOF {
			break
		}
		if tok.kind != tokKeyword {
			continue
		}

		switch tok.text {
		case "begincodespacerange":
			operands, err := readUntil(l, "endcodespacerange")
			if err != nil {
				return nil, err
			}
			for _, o := range operands {
				if o.kind == tokHexString && len(o.data) > m.codeLen {
					m.codeLen = len(o.data)
				}
			}
		case "beginbfchar":
			operands, err := readUntil(l, "endbfchar")
			if err != nil {
				return nil, err
			}
			for i := 0; i+1 < len(operands); i += 2 {
				src, dst := operands[i], operands[i+1]
				if src.kind != tokHexString {
					continue
				}
				if m.codeLen == 0 {
					m.codeLen = len(src.data)
				}
				switch dst.kind {
				case tokHexString:
					m.single[codeOf(src.data)] = decodeUTF16(dst.data)
				case tokName:
					if r, ok := glyphRune(dst.name); ok {
						m.single[codeOf(src.data)] = string(r)
					}
				}
			}
		case "beginbfrange":
			operands, err := readUntil(l, "endbfrange")
			if err != nil {
				return nil, err
			}
			for i := 0; i+2 < len(operands); i += 3 {
				lo, hi, dst := operands[i], operands[i+1], operands[i+2]
				if lo.kind != tokHexString || hi.kind != tokHexString {
					continue
				}
				if m.codeLen == 0 {
					m.codeLen = len(lo.data)
				}
				r := cmapRange{lo: codeOf(lo.data), hi: codeOf(hi.data)}
				switch dst.kind {
				case tokHexString:
					r.dst = dst.data
				case tokArrayOpen:
					for _, item := range dst.items {
						r.list = append(r.list, decodeUTF16(item.data))
					}
				default:
					continue
				}
				m.ranges = append(m.ranges, r)
			}
		}
	}

	if len(m.single) == 0 && len(m.ranges) == 0 {
		return nil, fmt.Errorf("cmap has no mappings")
	}
	return m, nil
}

func readUntil(l *lexer, end string) ([]operand, error) {
	var out []operand
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.kind == tokEOF:
			return nil, fmt.Errorf("missing %s", end)
		case tok.kind == tokKeyword && tok.text == end:
			return out, nil
		}
		v, err := parseOperand(l, tok)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

func (m *toUnicodeMap) lookup(code int) (string, bool) {
	if s, ok := m.single[code]; ok {
		return s, true
	}
	for _, r := range m.ranges {
		if code < r.lo || code > r.hi {
			continue
		}
		offset := code - r.lo
		if r.list != nil {
			if offset < len(r.list) {
				return r.list[offset], true
			}
			return "", false
		}
		if len(r.dst) == 0 {
			return "", false
		}
		dst := append([]byte(nil), r.dst...)
		if len(dst) == 1 {
			dst[0] += byte(offset)
		} else {
			n := len(dst)
			v := int(dst[n-2])<<8 | int(dst[n-1]) + offset
			dst[n-2], dst[n-1] = byte(v>>8), byte(v)
		}
		return decodeUTF16(dst), true
	}
	return "", false
}
