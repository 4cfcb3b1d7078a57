// -----------------------------------------------------------------------
// PDF Interfaces - Page text extraction and redaction application
// -----------------------------------------------------------------------

package interfaces

import (
	"context"

	"github.com/ternarybob/redactiq/internal/models"
)

// PageExtractor yields the plain text of every page of a PDF.
// Implementations open and release the document within each call.
type PageExtractor interface {
	// ExtractPages returns one entry per page, numbered from 1 in physical page order.
	// Returns a *pdf.DocumentOpenError when the bytes are not a readable PDF.
	ExtractPages(ctx context.Context, data []byte) ([]models.PageText, error)

	// GetMetadata reads document properties without extracting text.
	GetMetadata(ctx context.Context, data []byte) (*models.PDFMetadata, error)
}

// RedactionEngine applies confirmed selections to a PDF.
type RedactionEngine interface {
	// Apply blacks out and strips every occurrence of each confirmed term on its page
	// and returns a complete new document. The input bytes are never modified.
	// Pages whose selections cannot be applied are skipped and listed in the report.
	Apply(ctx context.Context, data []byte, selections []models.ConfirmedSelection) ([]byte, *models.RedactionReport, error)
}
