// -----------------------------------------------------------------------
// PDF Extractor Service - Extract per-page text from PDF documents
// Uses pdfcpu for document structure and a content stream interpreter for text
// -----------------------------------------------------------------------

package pdf

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/redactiq/internal/interfaces"
	"github.com/ternarybob/redactiq/internal/models"
)

// Extractor implements the PageExtractor interface using pdfcpu
type Extractor struct {
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.PageExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF extractor service
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{
		logger: logger,
	}
}

// ExtractPages extracts text content by page from a PDF.
// A page whose content cannot be interpreted yields empty text and a warning;
// only an unreadable document fails the call.
func (e *Extractor) ExtractPages(ctx context.Context, data []byte) ([]models.PageText, error) {
	doc, err := openDocument(data)
	if err != nil {
		e.logger.Error().Err(err).Int("size", len(data)).Msg("Failed to open PDF for extraction")
		return nil, err
	}
	defer doc.close()

	pageCount := doc.pageCount()
	pages := make([]models.PageText, 0, pageCount)

	for n := 1; n <= pageCount; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := pageText(doc, n)
		if err != nil {
			e.logger.Warn().Err(err).Int("page", n).Msg("Failed to extract page text, continuing with empty text")
		}
		pages = append(pages, models.PageText{Number: n, Text: text})
	}

	e.logger.Debug().
		Int("pages", pageCount).
		Msg("PDF text extraction complete")

	return pages, nil
}

// GetMetadata retrieves PDF metadata without extracting text content
func (e *Extractor) GetMetadata(ctx context.Context, data []byte) (*models.PDFMetadata, error) {
	doc, err := openDocument(data)
	if err != nil {
		return nil, err
	}
	defer doc.close()

	title, author, creator, producer, encrypted := doc.metadata()
	return &models.PDFMetadata{
		Title:     strings.TrimSpace(title),
		Author:    strings.TrimSpace(author),
		Creator:   strings.TrimSpace(creator),
		Producer:  strings.TrimSpace(producer),
		PageCount: doc.pageCount(),
		FileSize:  int64(len(data)),
		Encrypted: encrypted,
	}, nil
}

func pageText(doc *document, n int) (string, error) {
	p, err := doc.page(n)
	if err != nil {
		return "", err
	}
	layout, err := layoutPage(p.content, p.scope)
	if err != nil {
		return "", err
	}
	return layout.text, nil
}
