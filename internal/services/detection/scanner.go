// -----------------------------------------------------------------------
// Scanner - extract, detect and aggregate candidates for one document
// -----------------------------------------------------------------------

package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/redactiq/internal/interfaces"
	"github.com/ternarybob/redactiq/internal/models"
	"golang.org/x/sync/errgroup"
)

// Detector labels used in page errors
const (
	DetectorPattern = "pattern"
	DetectorAI      = "ai"
)

// ScannerOptions tunes per-page detection
type ScannerOptions struct {
	PageConcurrency int           // Pages detected in parallel (default 1)
	AITimeout       time.Duration // Bound on one page's AI call, 0 for none
}

// Scanner runs the detection pipeline: pages are extracted, every page goes
// through the pattern detector and, when configured, the AI detector, and
// the combined candidates are aggregated into the review table.
type Scanner struct {
	extractor interfaces.PageExtractor
	patterns  interfaces.PatternDetector
	ai        interfaces.AIDetector
	options   ScannerOptions
	logger    arbor.ILogger
}

// NewScanner creates a scanner. A nil ai detector runs pattern detection only.
func NewScanner(
	logger arbor.ILogger,
	extractor interfaces.PageExtractor,
	patterns interfaces.PatternDetector,
	ai interfaces.AIDetector,
	options ScannerOptions,
) *Scanner {
	if options.PageConcurrency <= 0 {
		options.PageConcurrency = 1
	}
	return &Scanner{
		extractor: extractor,
		patterns:  patterns,
		ai:        ai,
		options:   options,
		logger:    logger,
	}
}

// AIDetector returns the configured AI detector, nil in pattern-only mode
func (s *Scanner) AIDetector() interfaces.AIDetector {
	return s.ai
}

// WithAIDetector returns a copy of the scanner using ai, which may be nil
func (s *Scanner) WithAIDetector(ai interfaces.AIDetector) *Scanner {
	clone := *s
	clone.ai = ai
	return &clone
}

// Scan extracts the document's pages and detects candidates on each.
// Only an unreadable document or a cancelled context fails the scan;
// detector failures are reported per page in the result.
func (s *Scanner) Scan(ctx context.Context, data []byte) (*models.ScanResult, error) {
	start := time.Now()

	pages, err := s.extractor.ExtractPages(ctx, data)
	if err != nil {
		return nil, err
	}

	result, err := s.ScanPages(ctx, pages)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start).Round(time.Millisecond).String()
	return result, nil
}

type pageDetection struct {
	candidates []models.Candidate
	err        *DetectorError
}

// ScanPages detects and aggregates candidates for already extracted pages.
// Pages may be processed concurrently; the table order does not depend on
// completion order.
func (s *Scanner) ScanPages(ctx context.Context, pages []models.PageText) (*models.ScanResult, error) {
	results := make([]pageDetection, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.options.PageConcurrency)
	for i, page := range pages {
		g.Go(func() error {
			results[i] = s.detectPage(gctx, page)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var candidates []models.Candidate
	var pageErrors []models.PageError
	for _, r := range results {
		candidates = append(candidates, r.candidates...)
		if r.err != nil {
			pageErrors = append(pageErrors, models.PageError{
				Page:     r.err.Page,
				Detector: r.err.Detector,
				Error:    r.err.Err.Error(),
			})
		}
	}

	items := Aggregate(candidates, len(pages))
	result := &models.ScanResult{
		PageCount:  len(pages),
		Items:      items,
		Summary:    Summarize(items),
		PageErrors: pageErrors,
		AIEnabled:  s.ai != nil,
	}
	if result.Summary.Total == 0 {
		result.Message = models.NoCandidatesMessage
	}

	s.logger.Info().
		Int("pages", result.PageCount).
		Int("candidates", result.Summary.Total).
		Int("high", result.Summary.High).
		Int("page_errors", len(pageErrors)).
		Bool("ai_enabled", result.AIEnabled).
		Msg("Detection complete")

	return result, nil
}

// detectPage runs both detectors on one page. Pattern candidates are kept
// even when the AI detector fails.
func (s *Scanner) detectPage(ctx context.Context, page models.PageText) pageDetection {
	out := pageDetection{candidates: s.patterns.Detect(page.Text, page.Number)}
	if s.ai == nil {
		return out
	}

	aiCtx := ctx
	if s.options.AITimeout > 0 {
		var cancel context.CancelFunc
		aiCtx, cancel = context.WithTimeout(ctx, s.options.AITimeout)
		defer cancel()
	}

	aiCandidates, err := s.detectAI(aiCtx, page)
	if err != nil {
		out.err = &DetectorError{Page: page.Number, Detector: DetectorAI, Err: err}
		s.logger.Warn().Err(out.err).Int("page", page.Number).Msg("AI detection failed, keeping pattern results for page")
		return out
	}

	// Candidates are attributed to the page that was scanned, whatever the model says
	for _, c := range aiCandidates {
		c.Page = page.Number
		out.candidates = append(out.candidates, c)
	}
	return out
}

func (s *Scanner) detectAI(ctx context.Context, page models.PageText) (candidates []models.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()

	candidates, err = s.ai.Detect(ctx, page.Text, page.Number)
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", s.options.AITimeout, err)
	}
	return candidates, err
}
