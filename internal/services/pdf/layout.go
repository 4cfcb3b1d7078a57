package pdf

import (
	"fmt"
	"math"
	"strings"
)

const (
	glyphAscent  = 0.8
	glyphDescent = -0.2

	// Gaps are measured in multiples of the font size in user space
	spaceGapRatio   = 0.2
	lineShiftRatio  = 0.5
	backtrackRatio  = 1.0
	tjElementSingle = -1

	maxFormDepth = 8
)

type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m × n
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return x*m[0] + y*m[2] + m[4], x*m[1] + y*m[3] + m[5]
}

func translate(tx, ty float64) matrix {
	return matrix{1, 0, 0, 1, tx, ty}
}

type rect struct {
	llx, lly, urx, ury float64
}

func (r rect) union(o rect) rect {
	return rect{
		llx: math.Min(r.llx, o.llx),
		lly: math.Min(r.lly, o.lly),
		urx: math.Max(r.urx, o.urx),
		ury: math.Max(r.ury, o.ury),
	}
}

type textState struct {
	font      *pdfFont
	size      float64
	charSpace float64
	wordSpace float64
	scale     float64
	leading   float64
	rise      float64
}

type graphicsState struct {
	ctm  matrix
	text textState
}

// glyph is one shown character code with its position in the content stream and on the page
type glyph struct {
	stream  int // index into pageLayout.streams
	run     int // invocation of that stream; a form painted twice has two runs
	op      int // index into the stream's ops
	elem    int // index of the string within a TJ array, tjElementSingle otherwise
	off     int // code byte offset within that string
	n       int // code byte length
	text    string
	advance float64 // displacement in thousandths of text space units, as a TJ adjustment would express it
	box     rect
	line    int

	x, y       float64 // origin in user space
	endX, endY float64 // origin of the next glyph
	dirX, dirY float64 // unit baseline direction
	height     float64 // font size in user space
}

// glyphKey identifies where a glyph's code bytes sit in its content stream
type glyphKey struct {
	op, elem, off int
}

func (g glyph) key() glyphKey {
	return glyphKey{op: g.op, elem: g.elem, off: g.off}
}

// contentStream is one interpreted stream: the page content at index 0, or a
// form XObject it paints. A form is keyed by the stream that invokes it and the
// resource name it is invoked under, so repeated invocations share one entry.
type contentStream struct {
	ops      []operation
	source   []byte
	parent   int // -1 for the page content
	name     string
	form     *formXObject
	firstRun int
}

type formKey struct {
	parent int
	name   string
}

// pageLayout is the interpreted text of a page. Text is the page's plain
// text; owner maps every byte of text to the glyph it came from, or -1 for
// separators synthesized from glyph geometry.
type pageLayout struct {
	streams []*contentStream
	glyphs  []glyph
	text    string
	owner   []int

	forms   map[formKey]int
	runs    int
	builder strings.Builder
	line    int
}

// layoutPage interprets a page content stream, and every form XObject it
// paints when fonts also resolves forms, recording each glyph shown
func layoutPage(content []byte, fonts fontSource) (*pageLayout, error) {
	ops, err := parseContent(content)
	if err != nil {
		return nil, err
	}

	l := &pageLayout{
		streams: []*contentStream{{ops: ops, source: content, parent: -1}},
		forms:   make(map[formKey]int),
	}
	gs := graphicsState{ctm: identity, text: textState{scale: 1, font: defaultFont()}}
	if err := l.run(0, gs, fonts, 0); err != nil {
		return nil, err
	}

	l.text = l.builder.String()
	return l, nil
}

// run interprets stream s once, starting from the given graphics state
func (l *pageLayout) run(s int, gs graphicsState, fonts fontSource, depth int) error {
	pos := glyph{stream: s, run: l.runs}
	l.runs++

	var stack []graphicsState
	tm, tlm := identity, identity

	nextLine := func(tx, ty float64) {
		tlm = translate(tx, ty).mul(tlm)
		tm = tlm
	}

	for i, op := range l.streams[s].ops {
		pos.op, pos.elem = i, tjElementSingle
		switch op.name {
		case "q":
			stack = append(stack, gs)
		case "Q":
			if n := len(stack); n > 0 {
				gs = stack[n-1]
				stack = stack[:n-1]
			}
		case "cm":
			if v, ok := op.numbers(6); ok {
				gs.ctm = matrix{v[0], v[1], v[2], v[3], v[4], v[5]}.mul(gs.ctm)
			}
		case "Do":
			if len(op.args) >= 1 && op.args[0].kind == tokName {
				if err := l.paintForm(s, op.args[0].name, gs, fonts, depth); err != nil {
					return err
				}
			}
		case "BT":
			tm, tlm = identity, identity
		case "Tf":
			if len(op.args) >= 2 && op.args[0].kind == tokName && op.args[1].kind == tokNumber {
				gs.text.font = fonts.lookup(op.args[0].name)
				gs.text.size = op.args[1].num
			}
		case "Tc":
			if v, ok := op.numbers(1); ok {
				gs.text.charSpace = v[0]
			}
		case "Tw":
			if v, ok := op.numbers(1); ok {
				gs.text.wordSpace = v[0]
			}
		case "Tz":
			if v, ok := op.numbers(1); ok {
				gs.text.scale = v[0] / 100
			}
		case "TL":
			if v, ok := op.numbers(1); ok {
				gs.text.leading = v[0]
			}
		case "Ts":
			if v, ok := op.numbers(1); ok {
				gs.text.rise = v[0]
			}
		case "Td":
			if v, ok := op.numbers(2); ok {
				nextLine(v[0], v[1])
			}
		case "TD":
			if v, ok := op.numbers(2); ok {
				gs.text.leading = -v[1]
				nextLine(v[0], v[1])
			}
		case "Tm":
			if v, ok := op.numbers(6); ok {
				tlm = matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
				tm = tlm
			}
		case "T*":
			nextLine(0, -gs.text.leading)
		case "Tj":
			if len(op.args) >= 1 && isString(op.args[0]) {
				tm = l.show(pos, op.args[0].data, &gs, tm)
			}
		case "'":
			if len(op.args) >= 1 && isString(op.args[0]) {
				nextLine(0, -gs.text.leading)
				tm = l.show(pos, op.args[0].data, &gs, tm)
			}
		case "\"":
			if len(op.args) >= 3 && op.args[0].kind == tokNumber && op.args[1].kind == tokNumber && isString(op.args[2]) {
				gs.text.wordSpace = op.args[0].num
				gs.text.charSpace = op.args[1].num
				nextLine(0, -gs.text.leading)
				tm = l.show(pos, op.args[2].data, &gs, tm)
			}
		case "TJ":
			if len(op.args) >= 1 && op.args[0].kind == tokArrayOpen {
				for j, item := range op.args[0].items {
					switch {
					case isString(item):
						pos.elem = j
						tm = l.show(pos, item.data, &gs, tm)
					case item.kind == tokNumber:
						tx := -item.num / 1000 * gs.text.size * gs.text.scale
						tm = translate(tx, 0).mul(tm)
					}
				}
			}
		}
	}
	return nil
}

// paintForm interprets the form XObject named in stream parent's resources.
// Names that are not forms, such as images, are ignored. A form that cannot
// be read fails the whole layout: its text could not be located.
func (l *pageLayout) paintForm(parent int, name string, gs graphicsState, fonts fontSource, depth int) error {
	forms, ok := fonts.(formSource)
	if !ok {
		return nil
	}
	form, err := forms.form(name)
	if err != nil {
		return fmt.Errorf("form XObject %s: %w", name, err)
	}
	if form == nil {
		return nil
	}
	if depth >= maxFormDepth {
		return fmt.Errorf("form XObject %s: nested deeper than %d levels", name, maxFormDepth)
	}

	key := formKey{parent: parent, name: name}
	s, ok := l.forms[key]
	if !ok {
		ops, err := parseContent(form.content)
		if err != nil {
			return fmt.Errorf("form XObject %s: %w", name, err)
		}
		s = len(l.streams)
		l.streams = append(l.streams, &contentStream{
			ops:      ops,
			source:   form.content,
			parent:   parent,
			name:     name,
			form:     form,
			firstRun: l.runs,
		})
		l.forms[key] = s
	}

	gs.ctm = form.matrix.mul(gs.ctm)
	return l.run(s, gs, form.scope, depth+1)
}

func isString(o operand) bool {
	return o.kind == tokString || o.kind == tokHexString
}

// show lays out one string operand and returns the advanced text matrix.
// pos carries the stream, run, operator and TJ element the string belongs to.
func (l *pageLayout) show(pos glyph, data []byte, gs *graphicsState, tm matrix) matrix {
	ts := gs.text
	f := ts.font
	if f == nil {
		f = defaultFont()
	}

	for _, c := range f.codes(data) {
		w0 := f.width(c.code) / 1000
		tw := 0.0
		if c.n == 1 && c.code == ' ' {
			tw = ts.wordSpace
		}
		tx := (w0*ts.size + ts.charSpace + tw) * ts.scale

		trm := matrix{ts.size * ts.scale, 0, 0, ts.size, 0, ts.rise}.mul(tm).mul(gs.ctm)
		next := translate(tx, 0).mul(tm)
		nextTrm := matrix{ts.size * ts.scale, 0, 0, ts.size, 0, ts.rise}.mul(next).mul(gs.ctm)

		g := pos
		g.off = c.off
		g.n = c.n
		g.text = f.decode(c.code)
		g.box = glyphBox(trm, w0)
		if ts.size != 0 {
			g.advance = (w0*ts.size + ts.charSpace + tw) / ts.size * 1000
		}
		g.x, g.y = trm.apply(0, 0)
		g.endX, g.endY = nextTrm.apply(0, 0)
		bx, by := trm[0], trm[1]
		if n := math.Hypot(bx, by); n > 0 {
			g.dirX, g.dirY = bx/n, by/n
		} else {
			g.dirX = 1
		}
		g.height = math.Hypot(trm[2], trm[3])

		l.append(g)
		tm = next
	}
	return tm
}

func glyphBox(trm matrix, w0 float64) rect {
	x0, y0 := trm.apply(0, glyphDescent)
	r := rect{llx: x0, lly: y0, urx: x0, ury: y0}
	for _, p := range [][2]float64{{w0, glyphDescent}, {0, glyphAscent}, {w0, glyphAscent}} {
		x, y := trm.apply(p[0], p[1])
		r = r.union(rect{llx: x, lly: y, urx: x, ury: y})
	}
	return r
}

// append adds a glyph to the page text, inserting a separator when the
// geometry shows a line break or a word gap that has no space glyph
func (l *pageLayout) append(g glyph) {
	if n := len(l.glyphs); n > 0 {
		prev := l.glyphs[n-1]
		h := math.Max(prev.height, g.height)
		if h <= 0 {
			h = 1
		}
		ex, ey := g.x-prev.endX, g.y-prev.endY
		along := ex*prev.dirX + ey*prev.dirY
		across := -ex*prev.dirY + ey*prev.dirX

		switch {
		case math.Abs(across) > lineShiftRatio*h || along < -backtrackRatio*h:
			l.separator("\n")
			l.line++
		case along > spaceGapRatio*h && !isBlank(prev.text) && !isBlank(g.text):
			l.separator(" ")
		}
	}

	g.line = l.line
	idx := len(l.glyphs)
	l.glyphs = append(l.glyphs, g)
	l.builder.WriteString(g.text)
	for i := 0; i < len(g.text); i++ {
		l.owner = append(l.owner, idx)
	}
}

func (l *pageLayout) separator(s string) {
	l.builder.WriteString(s)
	for i := 0; i < len(s); i++ {
		l.owner = append(l.owner, -1)
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// find returns the glyph indexes of every non-overlapping, case-sensitive
// occurrence of term, stopping after limit occurrences when limit > 0
func (l *pageLayout) find(term string, limit int) (hits [][]int, truncated bool) {
	if strings.TrimSpace(term) == "" {
		return nil, false
	}
	from := 0
	for from < len(l.text) {
		i := strings.Index(l.text[from:], term)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(term)
		if limit > 0 && len(hits) == limit {
			return hits, true
		}

		var idx []int
		last := -1
		for b := start; b < end; b++ {
			if g := l.owner[b]; g >= 0 && g != last {
				idx = append(idx, g)
				last = g
			}
		}
		if len(idx) > 0 {
			hits = append(hits, idx)
		}
		from = end
	}
	return hits, false
}

// markRects merges the boxes of an occurrence's glyphs, one rectangle per text line
func (l *pageLayout) markRects(idx []int) []rect {
	var out []rect
	line := -1
	for _, gi := range idx {
		g := l.glyphs[gi]
		if len(out) > 0 && g.line == line {
			out[len(out)-1] = out[len(out)-1].union(g.box)
			continue
		}
		out = append(out, g.box)
		line = g.line
	}
	return out
}
