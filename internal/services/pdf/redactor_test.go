package pdf

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/redactiq/internal/models"
)

// buildPDF renders each inner slice as one page of left-aligned lines
func buildPDF(t *testing.T, pages ...[]string) []byte {
	t.Helper()

	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetTitle("Fixture", false)
	for _, lines := range pages {
		doc.AddPage()
		doc.SetFont("Helvetica", "", 12)
		for i, line := range lines {
			doc.Text(72, 72+float64(i)*18, line)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func fixture(t *testing.T) []byte {
	return buildPDF(t,
		[]string{"Patient: John Smith", "Email: john.smith@example.com", "Phone: 555-123-4567"},
		[]string{"SSN: 123-45-6789", "Phone: 555-123-4567"},
	)
}

func extractText(t *testing.T, data []byte) []models.PageText {
	t.Helper()
	pages, err := NewExtractor(arbor.NewLogger()).ExtractPages(context.Background(), data)
	require.NoError(t, err)
	return pages
}

// assertStreamsFree decodes every stream object of data and fails if term is
// still present in any of them, either literally or hex encoded
func assertStreamsFree(t *testing.T, data []byte, term string) {
	t.Helper()
	disableConfigDir.Do(api.DisableConfigDir)

	ctx, err := api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	require.NoError(t, err)

	literal := []byte(term)
	encoded := []byte(hex.EncodeToString(literal))
	for nr, entry := range ctx.Table {
		if entry == nil || entry.Free {
			continue
		}
		if _, ok := entry.Object.(types.StreamDict); !ok {
			continue
		}
		sd, _, err := ctx.DereferenceStreamDict(*types.NewIndirectRef(nr, 0))
		require.NoError(t, err)
		require.NoError(t, sd.Decode(), "object %d", nr)

		assert.False(t, bytes.Contains(sd.Content, literal), "object %d contains %q", nr, term)
		assert.False(t, bytes.Contains(bytes.ToLower(sd.Content), encoded), "object %d contains %q hex encoded", nr, term)
	}
}

func TestExtractPages(t *testing.T) {
	pages := extractText(t, fixture(t))
	require.Len(t, pages, 2)

	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, 2, pages[1].Number)
	assert.Contains(t, pages[0].Text, "john.smith@example.com")
	assert.Contains(t, pages[0].Text, "Patient: John Smith\nEmail:")
	assert.Contains(t, pages[1].Text, "123-45-6789")
}

func TestExtractPagesInvalidDocument(t *testing.T) {
	extractor := NewExtractor(arbor.NewLogger())

	for _, data := range [][]byte{nil, []byte("not a pdf at all")} {
		_, err := extractor.ExtractPages(context.Background(), data)
		require.Error(t, err)

		var openErr *DocumentOpenError
		assert.True(t, errors.As(err, &openErr))
	}
}

func TestGetMetadata(t *testing.T) {
	data := fixture(t)
	meta, err := NewExtractor(arbor.NewLogger()).GetMetadata(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.PageCount)
	assert.Equal(t, int64(len(data)), meta.FileSize)
	assert.False(t, meta.Encrypted)
}

func TestRedactorApply(t *testing.T) {
	data := fixture(t)
	original := append([]byte(nil), data...)
	redactor := NewRedactor(arbor.NewLogger(), 0)

	out, report, err := redactor.Apply(context.Background(), data, []models.ConfirmedSelection{
		{Text: "555-123-4567", Page: models.NewPageRef(1), Reason: "Phone"},
		{Text: "john.smith@example.com", Page: models.NewPageRef(1), Reason: "Email"},
	})
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, original, data, "input must not be modified")
	assert.Equal(t, 1, report.PagesRedacted)
	assert.Equal(t, 2, report.Marks)
	assert.Equal(t, 1, report.TermHits["555-123-4567"])
	assert.Empty(t, report.Skipped)

	pages := extractText(t, out)
	require.Len(t, pages, 2)
	assert.NotContains(t, pages[0].Text, "555-123-4567")
	assert.NotContains(t, pages[0].Text, "john.smith@example.com")
	assert.Contains(t, pages[0].Text, "Patient: John Smith")
	assert.Contains(t, pages[0].Text, "Phone:")

	// page scoping: the same number on page 2 was not selected
	assert.Contains(t, pages[1].Text, "555-123-4567")

	assertStreamsFree(t, out, "john.smith@example.com")
}

func TestRedactorApplyIsIdempotent(t *testing.T) {
	redactor := NewRedactor(arbor.NewLogger(), 0)
	selections := []models.ConfirmedSelection{{Text: "123-45-6789", Page: models.NewPageRef(2)}}

	once, report, err := redactor.Apply(context.Background(), fixture(t), selections)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Marks)

	twice, report, err := redactor.Apply(context.Background(), once, selections)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Marks)
	assert.Equal(t, 0, report.PagesRedacted)

	assert.Equal(t, extractText(t, once), extractText(t, twice))
	assertStreamsFree(t, once, "123-45-6789")
	assertStreamsFree(t, twice, "123-45-6789")
}

func TestRedactorFormXObjectText(t *testing.T) {
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	doc.Text(72, 72, "Body SSN 123-45-6789")
	header := doc.CreateTemplate(func(tpl *fpdf.Tpl) {
		tpl.SetFont("Helvetica", "", 12)
		tpl.Text(72, 36, "Header SSN 987-65-4321")
	})
	doc.UseTemplate(header)

	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	data := buf.Bytes()

	pages := extractText(t, data)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "123-45-6789")
	assert.Contains(t, pages[0].Text, "987-65-4321")

	out, report, err := NewRedactor(arbor.NewLogger(), 0).Apply(context.Background(), data, []models.ConfirmedSelection{
		{Text: "987-65-4321", Page: models.NewPageRef(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Marks)
	assert.Equal(t, 1, report.PagesRedacted)
	assert.Empty(t, report.Skipped)

	pages = extractText(t, out)
	assert.NotContains(t, pages[0].Text, "987-65-4321")
	assert.Contains(t, pages[0].Text, "Header SSN")
	assert.Contains(t, pages[0].Text, "123-45-6789")
	assertStreamsFree(t, out, "987-65-4321")
}

func TestRedactorSharedContentStream(t *testing.T) {
	data := buildPDF(t, []string{"SSN: 123-45-6789"}, []string{"SSN: 123-45-6789"})

	// point page 2 at the content stream of page 1
	disableConfigDir.Do(api.DisableConfigDir)
	ctx, err := api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	require.NoError(t, err)
	require.NoError(t, ctx.EnsurePageCount())
	first, _, _, err := ctx.PageDict(1, false)
	require.NoError(t, err)
	second, _, _, err := ctx.PageDict(2, false)
	require.NoError(t, err)
	second["Contents"] = first["Contents"]

	var buf bytes.Buffer
	require.NoError(t, api.WriteContext(ctx, &buf))

	out, report, err := NewRedactor(arbor.NewLogger(), 0).Apply(context.Background(), buf.Bytes(), []models.ConfirmedSelection{
		{Text: "123-45-6789", Page: models.NewPageRef(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Marks)

	pages := extractText(t, out)
	require.Len(t, pages, 2)
	assert.NotContains(t, pages[0].Text, "123-45-6789")
	assert.Contains(t, pages[1].Text, "123-45-6789")
}

func TestRedactorSkipsUnusablePages(t *testing.T) {
	redactor := NewRedactor(arbor.NewLogger(), 0)

	out, report, err := redactor.Apply(context.Background(), fixture(t), []models.ConfirmedSelection{
		{Text: "John Smith", Page: models.PageRefFromString("first")},
		{Text: "John Smith", Page: models.NewPageRef(9)},
		{Text: "   ", Page: models.NewPageRef(1)},
	})
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, 0, report.Marks)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, "first", report.Skipped[0].Page)
	assert.Equal(t, "9", report.Skipped[1].Page)

	pages := extractText(t, out)
	assert.Contains(t, pages[0].Text, "John Smith")
}

func TestRedactorOccurrenceCap(t *testing.T) {
	data := buildPDF(t, []string{"id 42 id 42 id 42"})
	redactor := NewRedactor(arbor.NewLogger(), 2)

	out, report, err := redactor.Apply(context.Background(), data, []models.ConfirmedSelection{
		{Text: "42", Page: models.NewPageRef(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Marks)
	assert.Equal(t, []string{"42"}, report.Truncated)

	pages := extractText(t, out)
	assert.Contains(t, pages[0].Text, "42")
}

func TestRedactorInvalidDocument(t *testing.T) {
	_, _, err := NewRedactor(arbor.NewLogger(), 0).Apply(context.Background(), []byte("%PDF-garbage"), nil)
	require.Error(t, err)

	var openErr *DocumentOpenError
	assert.True(t, errors.As(err, &openErr))
}
