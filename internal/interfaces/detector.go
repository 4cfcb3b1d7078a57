package interfaces

import (
	"context"

	"github.com/ternarybob/redactiq/internal/models"
)

// PatternDetector finds structurally recognizable identifiers in page text.
// It is deterministic and performs no I/O.
type PatternDetector interface {
	Detect(text string, page int) []models.Candidate
}

// AIDetector asks a language model for sensitive terms on one page.
// Calls may be slow and may fail; a failure affects only that page.
type AIDetector interface {
	Detect(ctx context.Context, text string, page int) ([]models.Candidate, error)
}
