package pdf

import (
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"
)

const fallbackGlyphWidth = 500

// pdfFont holds what the layout interpreter needs from a font resource:
// how to split strings into codes, what text a code stands for, and how wide it is.
type pdfFont struct {
	base         string
	twoByte      bool
	firstChar    int
	widths       []float64
	cidWidths    map[int]float64
	defaultWidth float64
	coreName     string
	differences  map[int]rune
	decoder      *charmap.Charmap
	toUnicode    *toUnicodeMap
}

type glyphCode struct {
	code int
	off  int
	n    int
}

func defaultFont() *pdfFont {
	return &pdfFont{defaultWidth: fallbackGlyphWidth, decoder: charmap.Windows1252}
}

func (f *pdfFont) codes(s []byte) []glyphCode {
	size := 1
	if f.twoByte {
		size = 2
	}
	out := make([]glyphCode, 0, len(s)/size+1)
	for i := 0; i < len(s); i += size {
		n := size
		if i+n > len(s) {
			n = len(s) - i
		}
		out = append(out, glyphCode{code: codeOf(s[i : i+n]), off: i, n: n})
	}
	return out
}

func (f *pdfFont) decode(code int) string {
	if f.toUnicode != nil {
		if s, ok := f.toUnicode.lookup(code); ok && s != "" {
			return s
		}
	}
	if f.twoByte {
		return string(replacementChar)
	}
	if r, ok := f.differences[code]; ok {
		return string(r)
	}
	if f.decoder != nil && code >= 0 && code < 256 {
		if r := f.decoder.DecodeByte(byte(code)); r != replacementChar {
			return string(r)
		}
	}
	return string(replacementChar)
}

// width returns the glyph width in thousandths of a text space unit
func (f *pdfFont) width(code int) float64 {
	if f.twoByte {
		if w, ok := f.cidWidths[code]; ok {
			return w
		}
		return f.defaultWidth
	}
	if i := code - f.firstChar; i >= 0 && i < len(f.widths) {
		return f.widths[i]
	}
	if f.coreName != "" && code >= 0 && code < 256 {
		if w := font.TextWidth(string([]byte{byte(code)}), f.coreName, 1000); w > 0 {
			return w
		}
	}
	return f.defaultWidth
}

var coreAliases = map[string]string{
	"Arial":                  "Helvetica",
	"Arial,Bold":             "Helvetica-Bold",
	"Arial,Italic":           "Helvetica-Oblique",
	"Arial,BoldItalic":       "Helvetica-BoldOblique",
	"ArialMT":                "Helvetica",
	"Arial-BoldMT":           "Helvetica-Bold",
	"Arial-ItalicMT":         "Helvetica-Oblique",
	"Arial-BoldItalicMT":     "Helvetica-BoldOblique",
	"TimesNewRoman":          "Times-Roman",
	"TimesNewRomanPSMT":      "Times-Roman",
	"TimesNewRoman,Bold":     "Times-Bold",
	"TimesNewRomanPS-BoldMT": "Times-Bold",
	"CourierNew":             "Courier",
	"CourierNewPSMT":         "Courier",
}

func coreFontName(base string) string {
	if i := strings.IndexByte(base, '+'); i == 6 {
		base = base[i+1:]
	}
	if alias, ok := coreAliases[base]; ok {
		base = alias
	}
	if font.IsCoreFont(base) {
		return base
	}
	return ""
}

// fontSource resolves font resource names used by Tf
type fontSource interface {
	lookup(name string) *pdfFont
}

type staticFonts map[string]*pdfFont

func (s staticFonts) lookup(name string) *pdfFont {
	if f, ok := s[name]; ok {
		return f
	}
	return defaultFont()
}

// resourceFonts loads fonts lazily from a page's /Font resource dictionary
type resourceFonts struct {
	xref  *model.XRefTable
	dict  types.Dict
	cache map[string]*pdfFont
}

func newResourceFonts(xref *model.XRefTable, resources types.Dict) *resourceFonts {
	rf := &resourceFonts{xref: xref, cache: make(map[string]*pdfFont)}
	if resources != nil {
		if o, ok := resources["Font"]; ok {
			if d, err := xref.DereferenceDict(o); err == nil {
				rf.dict = d
			}
		}
	}
	return rf
}

func (rf *resourceFonts) lookup(name string) *pdfFont {
	if f, ok := rf.cache[name]; ok {
		return f
	}
	f := defaultFont()
	if rf.dict != nil {
		if o, ok := rf.dict[name]; ok {
			if fd, err := rf.xref.DereferenceDict(o); err == nil && fd != nil {
				f = loadFont(rf.xref, fd)
			}
		}
	}
	rf.cache[name] = f
	return f
}

func loadFont(xref *model.XRefTable, fd types.Dict) *pdfFont {
	f := defaultFont()
	f.base = nameValue(xref, fd["BaseFont"])

	if nameValue(xref, fd["Subtype"]) == "Type0" {
		f.twoByte = true
		f.decoder = nil
		f.defaultWidth = 1000
		if arr, err := xref.DereferenceArray(fd["DescendantFonts"]); err == nil && len(arr) > 0 {
			if dd, err := xref.DereferenceDict(arr[0]); err == nil && dd != nil {
				if dw, ok := numberValue(xref, dd["DW"]); ok {
					f.defaultWidth = dw
				}
				f.cidWidths = parseCIDWidths(xref, dd["W"])
			}
		}
	} else {
		f.coreName = coreFontName(f.base)
		if fc, ok := numberValue(xref, fd["FirstChar"]); ok {
			f.firstChar = int(fc)
		}
		if arr, err := xref.DereferenceArray(fd["Widths"]); err == nil {
			for _, o := range arr {
				w, _ := numberValue(xref, o)
				f.widths = append(f.widths, w)
			}
		}
		if desc, err := xref.DereferenceDict(fd["FontDescriptor"]); err == nil && desc != nil {
			if mw, ok := numberValue(xref, desc["MissingWidth"]); ok && mw > 0 {
				f.defaultWidth = mw
			}
		}
		applyEncoding(xref, f, fd["Encoding"])
	}

	if o, ok := fd["ToUnicode"]; ok {
		if sd, _, err := xref.DereferenceStreamDict(o); err == nil && sd != nil {
			if err := sd.Decode(); err == nil {
				if m, err := parseToUnicode(sd.Content); err == nil {
					f.toUnicode = m
					if f.twoByte && m.codeLen == 1 {
						f.twoByte = false
					}
				}
			}
		}
	}
	return f
}

func applyEncoding(xref *model.XRefTable, f *pdfFont, o types.Object) {
	if o == nil {
		return
	}
	obj, err := xref.Dereference(o)
	if err != nil || obj == nil {
		return
	}
	switch v := obj.(type) {
	case types.Name:
		f.decoder = baseEncoding(string(v))
	case types.Dict:
		if base := nameValue(xref, v["BaseEncoding"]); base != "" {
			f.decoder = baseEncoding(base)
		}
		diffs, err := xref.DereferenceArray(v["Differences"])
		if err != nil {
			return
		}
		f.differences = make(map[int]rune)
		code := 0
		for _, item := range diffs {
			switch d := item.(type) {
			case types.Integer:
				code = int(d)
			case types.Float:
				code = int(d)
			case types.Name:
				if r, ok := glyphRune(string(d)); ok {
					f.differences[code] = r
				}
				code++
			}
		}
	}
}

func baseEncoding(name string) *charmap.Charmap {
	if name == "MacRomanEncoding" {
		return charmap.Macintosh
	}
	return charmap.Windows1252
}

// parseCIDWidths reads a CIDFont /W array: "c [w1 w2 ...]" and "cFirst cLast w" forms
func parseCIDWidths(xref *model.XRefTable, o types.Object) map[int]float64 {
	out := make(map[int]float64)
	arr, err := xref.DereferenceArray(o)
	if err != nil {
		return out
	}
	for i := 0; i < len(arr); {
		first, ok := numberValue(xref, arr[i])
		if !ok || i+1 >= len(arr) {
			break
		}
		next, err := xref.Dereference(arr[i+1])
		if err != nil {
			break
		}
		if list, ok := next.(types.Array); ok {
			for j, w := range list {
				if v, ok := numberValue(xref, w); ok {
					out[int(first)+j] = v
				}
			}
			i += 2
			continue
		}
		last, ok1 := numberValue(xref, arr[i+1])
		if i+2 >= len(arr) {
			break
		}
		w, ok2 := numberValue(xref, arr[i+2])
		if ok1 && ok2 {
			for c := int(first); c <= int(last) && c-int(first) < 65536; c++ {
				out[c] = w
			}
		}
		i += 3
	}
	return out
}

func nameValue(xref *model.XRefTable, o types.Object) string {
	if o == nil {
		return ""
	}
	obj, err := xref.Dereference(o)
	if err != nil {
		return ""
	}
	if n, ok := obj.(types.Name); ok {
		return string(n)
	}
	return ""
}

func numberValue(xref *model.XRefTable, o types.Object) (float64, bool) {
	if o == nil {
		return 0, false
	}
	obj, err := xref.Dereference(o)
	if err != nil {
		return 0, false
	}
	switch v := obj.(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	}
	return 0, false
}
