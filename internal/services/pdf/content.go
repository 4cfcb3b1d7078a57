package pdf

import (
	"fmt"
	"strconv"
	"strings"
)

// operand is a parsed operand of a content stream operator
type operand struct {
	kind  tokenKind // tokArrayOpen for arrays, tokDictOpen for dictionaries
	num   float64
	data  []byte
	name  string
	items []operand
}

// operation is one operator with its operands and the byte span it occupies
type operation struct {
	name  string
	args  []operand
	start int
	end   int
}

func (op operation) number(i int) (float64, bool) {
	if i >= len(op.args) || op.args[i].kind != tokNumber {
		return 0, false
	}
	return op.args[i].num, true
}

func (op operation) numbers(n int) ([]float64, bool) {
	if len(op.args) < n {
		return nil, false
	}
	out := make([]float64, n)
	base := len(op.args) - n
	for i := 0; i < n; i++ {
		a := op.args[base+i]
		if a.kind != tokNumber {
			return nil, false
		}
		out[i] = a.num
	}
	return out, true
}

// parseContent splits a content stream into operations. Inline images are
// consumed whole and surface as a single BI operation.
func parseContent(buf []byte) ([]operation, error) {
	l := newLexer(buf)
	var ops []operation
	var args []operand
	argStart := -1

	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokEOF {
			return ops, nil
		}
		if argStart < 0 {
			argStart = tok.start
		}

		switch tok.kind {
		case tokKeyword:
			switch tok.text {
			case "true", "false", "null":
				args = append(args, operand{kind: tokKeyword, name: tok.text})
				continue
			case "BI":
				if err := skipInlineDict(l); err != nil {
					return nil, err
				}
				if err := l.skipInlineImage(); err != nil {
					return nil, err
				}
			}
			ops = append(ops, operation{name: tok.text, args: args, start: argStart, end: l.pos})
			args = nil
			argStart = -1
		case tokArrayClose, tokDictClose:
			return nil, fmt.Errorf("unexpected delimiter at offset %d", tok.start)
		default:
			v, err := parseOperand(l, tok)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
	}
}

func skipInlineDict(l *lexer) error {
	for {
		tok, err := l.next()
		if err != nil {
			return err
		}
		switch {
		case tok.kind == tokEOF:
			return fmt.Errorf("inline image without ID")
		case tok.kind == tokKeyword && tok.text == "ID":
			return nil
		case tok.kind == tokArrayOpen || tok.kind == tokDictOpen:
			if _, err := parseOperand(l, tok); err != nil {
				return err
			}
		}
	}
}

func parseOperand(l *lexer, tok token) (operand, error) {
	switch tok.kind {
	case tokNumber:
		return operand{kind: tokNumber, num: tok.num}, nil
	case tokString, tokHexString:
		return operand{kind: tok.kind, data: tok.data}, nil
	case tokName:
		return operand{kind: tokName, name: tok.text}, nil
	case tokKeyword:
		return operand{kind: tokKeyword, name: tok.text}, nil
	case tokArrayOpen:
		return parseContainer(l, tokArrayOpen, tokArrayClose)
	case tokDictOpen:
		return parseContainer(l, tokDictOpen, tokDictClose)
	}
	return operand{}, fmt.Errorf("unexpected token at offset %d", tok.start)
}

func parseContainer(l *lexer, open, closing tokenKind) (operand, error) {
	v := operand{kind: open}
	for {
		tok, err := l.next()
		if err != nil {
			return operand{}, err
		}
		switch tok.kind {
		case closing:
			return v, nil
		case tokEOF:
			return operand{}, fmt.Errorf("unterminated array or dictionary")
		case tokArrayClose, tokDictClose:
			return operand{}, fmt.Errorf("mismatched delimiter at offset %d", tok.start)
		}
		item, err := parseOperand(l, tok)
		if err != nil {
			return operand{}, err
		}
		v.items = append(v.items, item)
	}
}

// formatNumber renders a number the way content streams expect: no exponent, trimmed zeros
func formatNumber(f float64) string {
	s := strconv.FormatFloat(f, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}
