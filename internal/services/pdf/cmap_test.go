package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCMap = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
1 begincodespacerange <0000> <FFFF> endcodespacerange
2 beginbfchar <0003> <0020> <0010> /A endbfchar
2 beginbfrange <0024> <0026> <0041> <0030> <0031> [<0078> <0079>] endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end`

func TestParseToUnicode(t *testing.T) {
	m, err := parseToUnicode([]byte(testCMap))
	require.NoError(t, err)
	assert.Equal(t, 2, m.codeLen)

	tests := []struct {
		code int
		want string
		ok   bool
	}{
		{code: 0x03, want: " ", ok: true},
		{code: 0x10, want: "A", ok: true},
		{code: 0x24, want: "A", ok: true},
		{code: 0x26, want: "C", ok: true},
		{code: 0x30, want: "x", ok: true},
		{code: 0x31, want: "y", ok: true},
		{code: 0x99, ok: false},
	}
	for _, tt := range tests {
		got, ok := m.lookup(tt.code)
		assert.Equal(t, tt.ok, ok, "code %#x", tt.code)
		assert.Equal(t, tt.want, got, "code %#x", tt.code)
	}
}

func TestParseToUnicodeEmpty(t *testing.T) {
	_, err := parseToUnicode([]byte("begincmap endcmap"))
	assert.Error(t, err)

	_, err = parseToUnicode([]byte("1 beginbfchar <01> <0041>"))
	assert.Error(t, err, "unterminated section")
}

func TestDecodeUTF16(t *testing.T) {
	assert.Equal(t, "A", decodeUTF16([]byte{0x41}))
	assert.Equal(t, "é", decodeUTF16([]byte{0x00, 0xE9}))
	assert.Equal(t, "😀", decodeUTF16([]byte{0xD8, 0x3D, 0xDE, 0x00}))
}

func TestGlyphRune(t *testing.T) {
	tests := []struct {
		name string
		want rune
		ok   bool
	}{
		{name: "hyphen", want: '-', ok: true},
		{name: "a", want: 'a', ok: true},
		{name: "at.sc", want: '@', ok: true},
		{name: "uni0041", want: 'A', ok: true},
		{name: "u1F600", want: '😀', ok: true},
		{name: "notaglyph", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := glyphRune(tt.name)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestLayoutCompositeFont(t *testing.T) {
	m, err := parseToUnicode([]byte(testCMap))
	require.NoError(t, err)

	fonts := staticFonts{
		"F2": &pdfFont{
			twoByte:      true,
			defaultWidth: 1000,
			cidWidths:    map[int]float64{0x24: 600},
			toUnicode:    m,
		},
	}
	content := []byte("BT /F2 10 Tf 0 0 Td <00240025> Tj ET")

	layout, err := layoutPage(content, fonts)
	require.NoError(t, err)
	assert.Equal(t, "AB", layout.text)
	require.Len(t, layout.glyphs, 2)
	assert.InDelta(t, 6, layout.glyphs[1].x, 1e-9)

	stripped := layout.stripGlyphs(map[int]bool{0: true})[0]
	assert.Equal(t, "BT /F2 10 Tf 0 0 Td [-600 <0025>] TJ ET", string(stripped))
}
