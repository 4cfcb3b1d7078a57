package detection

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/redactiq/internal/interfaces"
	"github.com/ternarybob/redactiq/internal/models"
	"github.com/ternarybob/redactiq/internal/services/llm"
)

// FallbackReason labels AI output lines that carry no reason of their own
const FallbackReason = "Sensitive"

const aiMaxTokens = 1024

const aiSystemPrompt = `You are a document redaction assistant.

Your job is to analyze the text you are given and extract all sensitive information that may need to be redacted for compliance, privacy, or confidentiality. Focus on PII, PHI, and financial or identifying data.

For each item, return it in this exact format (one per line):
Sensitive Term | Reason

Example:
john.doe@example.com | Email address
555-123-4567 | Phone number
123-45-6789 | SSN

Copy each term exactly as it appears in the text. Do not include any explanations or extra text. Just the matches.`

// Generator produces model output for a request; llm.ProviderFactory implements it
type Generator interface {
	GenerateContent(ctx context.Context, request *llm.ContentRequest) (*llm.ContentResponse, error)
}

// LLMDetector implements AIDetector by prompting a language model per page
type LLMDetector struct {
	generator Generator
	model     string
	logger    arbor.ILogger
}

var _ interfaces.AIDetector = (*LLMDetector)(nil)

// NewLLMDetector creates an AI detector. An empty model selects the default provider's model.
func NewLLMDetector(logger arbor.ILogger, generator Generator, model string) *LLMDetector {
	return &LLMDetector{
		generator: generator,
		model:     model,
		logger:    logger,
	}
}

// Detect asks the model for sensitive terms on one page. Blank pages are not sent.
func (d *LLMDetector) Detect(ctx context.Context, text string, page int) ([]models.Candidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	resp, err := d.generator.GenerateContent(ctx, &llm.ContentRequest{
		Model:             d.model,
		MaxTokens:         aiMaxTokens,
		SystemInstruction: aiSystemPrompt,
		Messages: []interfaces.Message{
			{Role: "user", Content: "TEXT:\n" + text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate terms for page %d: %w", page, err)
	}

	candidates := ParseResponse(resp.Text, page)
	d.logger.Debug().
		Int("page", page).
		Str("provider", string(resp.Provider)).
		Int("candidates", len(candidates)).
		Msg("AI detection complete")

	return candidates, nil
}

// ParseResponse reads "term | reason" lines. The line is split at the first
// separator; a line without one is kept as a term with FallbackReason.
// Lines with an empty term, and an echoed format header, are dropped.
func ParseResponse(output string, page int) []models.Candidate {
	var candidates []models.Candidate
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		term, reason := line, FallbackReason
		if before, after, found := strings.Cut(line, "|"); found {
			term = strings.TrimSpace(before)
			if r := strings.TrimSpace(after); r != "" {
				reason = r
			}
		}
		if term == "" || strings.EqualFold(term, "Sensitive Term") {
			continue
		}

		candidates = append(candidates, models.Candidate{
			Text:   term,
			Reason: reason,
			Page:   page,
			Source: models.SourceAI,
		})
	}
	return candidates
}
