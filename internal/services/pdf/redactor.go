package pdf

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/redactiq/internal/interfaces"
	"github.com/ternarybob/redactiq/internal/models"
)

// DefaultMaxHitsPerTerm bounds the occurrences searched per term on one page
const DefaultMaxHitsPerTerm = 256

// Redactor implements the RedactionEngine interface
type Redactor struct {
	logger  arbor.ILogger
	maxHits int
}

var _ interfaces.RedactionEngine = (*Redactor)(nil)

// NewRedactor creates a redaction engine. maxHitsPerTerm <= 0 selects the default cap.
func NewRedactor(logger arbor.ILogger, maxHitsPerTerm int) *Redactor {
	if maxHitsPerTerm <= 0 {
		maxHitsPerTerm = DefaultMaxHitsPerTerm
	}
	return &Redactor{
		logger:  logger,
		maxHits: maxHitsPerTerm,
	}
}

// Apply redacts the confirmed selections and returns the new document.
// Selections whose page is not a number, or is outside the document, are
// skipped and reported; so are pages whose content cannot be rewritten.
func (r *Redactor) Apply(ctx context.Context, data []byte, selections []models.ConfirmedSelection) ([]byte, *models.RedactionReport, error) {
	report := &models.RedactionReport{TermHits: make(map[string]int)}

	doc, err := openDocument(data)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to open PDF for redaction")
		return nil, nil, err
	}
	defer doc.close()

	terms := r.termsByPage(selections, doc.pageCount(), report)

	for n := 1; n <= doc.pageCount(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		pageTerms := terms[n]
		if len(pageTerms) == 0 {
			continue
		}

		marks, err := r.redactPage(doc, n, pageTerms, report)
		if err != nil {
			pageErr := &RedactionPageError{Page: strconv.Itoa(n), Err: err}
			r.logger.Warn().Err(pageErr).Int("page", n).Msg("Skipping page redaction")
			report.Skipped = append(report.Skipped, models.SkippedPage{Page: pageErr.Page, Error: pageErr.Error()})
			continue
		}
		if marks > 0 {
			report.PagesRedacted++
			report.Marks += marks
		}
	}

	var buf bytes.Buffer
	if err := doc.write(&buf); err != nil {
		return nil, nil, fmt.Errorf("failed to write redacted document: %w", err)
	}

	r.logger.Info().
		Int("pages_redacted", report.PagesRedacted).
		Int("marks", report.Marks).
		Int("skipped", len(report.Skipped)).
		Msg("Redaction applied")

	return buf.Bytes(), report, nil
}

// termsByPage groups distinct, non-blank terms per page in first-seen order
func (r *Redactor) termsByPage(selections []models.ConfirmedSelection, pageCount int, report *models.RedactionReport) map[int][]string {
	terms := make(map[int][]string)
	seen := make(map[int]map[string]bool)

	for _, sel := range selections {
		if strings.TrimSpace(sel.Text) == "" {
			continue
		}
		n, err := sel.Page.Int()
		if err == nil && (n < 1 || n > pageCount) {
			err = fmt.Errorf("page %d is outside the document (1-%d)", n, pageCount)
		}
		if err != nil {
			pageErr := &RedactionPageError{Page: sel.Page.Raw(), Err: err}
			r.logger.Warn().Err(pageErr).Msg("Skipping selection with unusable page")
			report.Skipped = append(report.Skipped, models.SkippedPage{Page: pageErr.Page, Term: sel.Text, Error: pageErr.Error()})
			continue
		}

		if seen[n] == nil {
			seen[n] = make(map[string]bool)
		}
		if seen[n][sel.Text] {
			continue
		}
		seen[n][sel.Text] = true
		terms[n] = append(terms[n], sel.Text)
	}
	return terms
}

// redactPage finds every term on the page and commits all marks in one content rewrite.
// A page with no occurrences is left untouched.
func (r *Redactor) redactPage(doc *document, n int, terms []string, report *models.RedactionReport) (int, error) {
	p, err := doc.page(n)
	if err != nil {
		return 0, err
	}
	layout, err := layoutPage(p.content, p.scope)
	if err != nil {
		return 0, fmt.Errorf("failed to interpret page content: %w", err)
	}

	removed := make(map[int]bool)
	var rects []rect
	marks := 0

	for _, term := range terms {
		hits, truncated := layout.find(term, r.maxHits)
		if truncated {
			report.Truncated = append(report.Truncated, term)
			r.logger.Warn().Int("term_len", len(term)).Int("page", n).Int("cap", r.maxHits).Msg("Occurrence cap reached for term")
		}
		for _, idx := range hits {
			for _, gi := range idx {
				removed[gi] = true
			}
			rects = append(rects, layout.markRects(idx)...)
		}
		report.TermHits[term] += len(hits)
		marks += len(hits)
	}

	if marks == 0 {
		return 0, nil
	}

	// a form painted more than once loses the same codes in every painting
	for _, group := range layout.alsoRemoved(removed, layout.removal(removed)) {
		rects = append(rects, layout.markRects(group)...)
	}

	streams := layout.stripGlyphs(removed)
	content := p.content
	if stripped, ok := streams[0]; ok {
		content = stripped
		delete(streams, 0)
	}
	if err := doc.commit(p, layout, overlay(content, rects), streams); err != nil {
		return 0, err
	}

	r.logger.Debug().
		Int("page", n).
		Int("marks", marks).
		Int("glyphs_removed", len(removed)).
		Msg("Page redacted")

	return marks, nil
}

// overlay isolates the original content in its own graphics state and paints
// opaque black rectangles over the redacted regions in default user space
func overlay(content []byte, rects []rect) []byte {
	sort.SliceStable(rects, func(i, j int) bool {
		if rects[i].lly != rects[j].lly {
			return rects[i].lly > rects[j].lly
		}
		return rects[i].llx < rects[j].llx
	})

	var out bytes.Buffer
	out.WriteString("q\n")
	out.Write(content)
	out.WriteString("\nQ\n")
	for _, rc := range rects {
		fmt.Fprintf(&out, "q 0 0 0 rg %s %s %s %s re f Q\n",
			formatNumber(rc.llx), formatNumber(rc.lly),
			formatNumber(rc.urx-rc.llx), formatNumber(rc.ury-rc.lly))
	}
	return out.Bytes()
}
