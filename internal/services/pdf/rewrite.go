package pdf

import (
	"bytes"
	"encoding/hex"
	"sort"
)

// removal resolves removed glyph indexes to the code positions to drop, per
// stream. A form painted more than once is rewritten once, so a position
// removed in any run is dropped from all of them. If a run decoded an operator
// differently from the stream's first run, that whole operator is dropped.
func (l *pageLayout) removal(removed map[int]bool) map[int]map[glyphKey]bool {
	out := make(map[int]map[glyphKey]bool)
	for gi := range removed {
		if gi < 0 || gi >= len(l.glyphs) {
			continue
		}
		g := l.glyphs[gi]
		if out[g.stream] == nil {
			out[g.stream] = make(map[glyphKey]bool)
		}
		out[g.stream][g.key()] = true
	}

	for s, keys := range out {
		first := l.firstRun(s)
		shown := make(map[glyphKey]bool, len(first))
		for _, gi := range first {
			shown[l.glyphs[gi].key()] = true
		}
		for k := range keys {
			if shown[k] {
				continue
			}
			for _, gi := range first {
				if l.glyphs[gi].op == k.op {
					keys[l.glyphs[gi].key()] = true
				}
			}
		}
	}
	return out
}

// firstRun returns the glyphs shown by the first run of stream s
func (l *pageLayout) firstRun(s int) []int {
	run := l.streams[s].firstRun
	var out []int
	for gi, g := range l.glyphs {
		if g.stream == s && g.run == run {
			out = append(out, gi)
		}
	}
	return out
}

// alsoRemoved returns, grouped by run, the glyphs that are not in removed but
// disappear with it because they share a code position in a form painted twice
func (l *pageLayout) alsoRemoved(removed map[int]bool, positions map[int]map[glyphKey]bool) [][]int {
	byRun := make(map[int][]int)
	var runs []int
	for gi, g := range l.glyphs {
		if removed[gi] || !positions[g.stream][g.key()] {
			continue
		}
		if _, ok := byRun[g.run]; !ok {
			runs = append(runs, g.run)
		}
		byRun[g.run] = append(byRun[g.run], gi)
	}
	out := make([][]int, 0, len(runs))
	for _, run := range runs {
		out = append(out, byRun[run])
	}
	return out
}

// stripGlyphs returns the rewritten source of every stream that loses glyphs
func (l *pageLayout) stripGlyphs(removed map[int]bool) map[int][]byte {
	out := make(map[int][]byte)
	for s, keys := range l.removal(removed) {
		out[s] = l.strip(s, keys)
	}
	return out
}

// strip rewrites every text-showing operator of stream s that draws a removed
// code. Removed codes become TJ position adjustments of the same width, so the
// remaining text keeps its place. All other bytes are copied unchanged.
func (l *pageLayout) strip(s int, removed map[glyphKey]bool) []byte {
	cs := l.streams[s]
	byOp := make(map[int][]int)
	for _, gi := range l.firstRun(s) {
		g := l.glyphs[gi]
		byOp[g.op] = append(byOp[g.op], gi)
	}

	affected := make([]int, 0, len(removed))
	for k := range removed {
		affected = append(affected, k.op)
	}
	sort.Ints(affected)

	var out bytes.Buffer
	prevEnd := 0
	lastOp := -1
	for _, opIndex := range affected {
		if opIndex == lastOp {
			continue
		}
		lastOp = opIndex
		op := cs.ops[opIndex]
		out.Write(cs.source[prevEnd:op.start])
		out.Write(l.rewriteOp(op, byOp[opIndex], removed))
		prevEnd = op.end
	}
	out.Write(cs.source[prevEnd:])
	return out.Bytes()
}

func (l *pageLayout) rewriteOp(op operation, glyphIdx []int, removed map[glyphKey]bool) []byte {
	var elems []operand
	var prefix string

	switch op.name {
	case "Tj":
		elems = []operand{op.args[0]}
	case "'":
		elems = []operand{op.args[0]}
		prefix = "T* "
	case "\"":
		elems = []operand{op.args[2]}
		prefix = formatNumber(op.args[0].num) + " Tw " + formatNumber(op.args[1].num) + " Tc T* "
	case "TJ":
		elems = op.args[0].items
	}

	byElem := make(map[int][]int)
	for _, gi := range glyphIdx {
		g := l.glyphs[gi]
		elem := g.elem
		if elem == tjElementSingle {
			elem = 0
		}
		byElem[elem] = append(byElem[elem], gi)
	}

	var arr bytes.Buffer
	var kept []byte
	pending := 0.0
	havePending := false

	flushNumber := func() {
		if havePending {
			if arr.Len() > 0 {
				arr.WriteByte(' ')
			}
			arr.WriteString(formatNumber(pending))
			pending, havePending = 0, false
		}
	}
	flushString := func() {
		if len(kept) == 0 {
			return
		}
		flushNumber()
		if arr.Len() > 0 {
			arr.WriteByte(' ')
		}
		arr.WriteByte('<')
		arr.WriteString(hex.EncodeToString(kept))
		arr.WriteByte('>')
		kept = kept[:0]
	}

	for i, e := range elems {
		switch {
		case e.kind == tokNumber:
			flushString()
			pending += e.num
			havePending = true
		case isString(e):
			for _, gi := range byElem[i] {
				g := l.glyphs[gi]
				if removed[g.key()] {
					flushString()
					pending -= g.advance
					havePending = true
					continue
				}
				kept = append(kept, e.data[g.off:g.off+g.n]...)
			}
		}
	}
	flushString()
	flushNumber()

	return []byte(prefix + "[" + arr.String() + "] TJ")
}
