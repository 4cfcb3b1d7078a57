package detection

import (
	"math"
	"sort"

	"github.com/ternarybob/redactiq/internal/models"
)

type candidateKey struct {
	text   string
	reason string
	page   int
}

// Aggregate turns the candidates of all pages into the reviewable table.
// Pages outside 1..pageCount normalize to models.InvalidPage; such rows are
// listed but are neither eligible nor selected. Exact (text, reason, page)
// duplicates collapse to the first occurrence. Rows are ordered by page with
// invalid pages last, and by first appearance within a page.
func Aggregate(candidates []models.Candidate, pageCount int) []models.ReviewItem {
	seen := make(map[candidateKey]bool, len(candidates))
	items := make([]models.ReviewItem, 0, len(candidates))

	for _, c := range candidates {
		page := normalizePage(c.Page, pageCount)
		key := candidateKey{text: c.Text, reason: c.Reason, page: page}
		if seen[key] {
			continue
		}
		seen[key] = true

		eligible := page != models.InvalidPage
		items = append(items, models.ReviewItem{
			Text:     c.Text,
			Reason:   c.Reason,
			Page:     page,
			Risk:     ClassifyRisk(c.Reason),
			Selected: eligible,
			Eligible: eligible,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return pageOrder(items[i].Page) < pageOrder(items[j].Page)
	})
	return items
}

func normalizePage(page, pageCount int) int {
	if page < 1 || (pageCount > 0 && page > pageCount) {
		return models.InvalidPage
	}
	return page
}

func pageOrder(page int) int {
	if page == models.InvalidPage {
		return math.MaxInt
	}
	return page
}

// Summarize counts review items per risk tier
func Summarize(items []models.ReviewItem) models.RiskSummary {
	var summary models.RiskSummary
	for _, item := range items {
		switch item.Risk {
		case models.RiskHigh:
			summary.High++
		case models.RiskMedium:
			summary.Medium++
		default:
			summary.Low++
		}
	}
	summary.Total = len(items)
	return summary
}
