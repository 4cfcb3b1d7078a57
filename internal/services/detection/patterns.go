package detection

import (
	"regexp"

	"github.com/ternarybob/redactiq/internal/interfaces"
	"github.com/ternarybob/redactiq/internal/models"
)

// namedPattern is one identifier shape the pattern detector looks for
type namedPattern struct {
	reason string
	re     *regexp.Regexp
}

// Patterns are intentionally permissive: every hit goes to human review.
// RE2 guarantees matching in time linear in the text length.
var defaultPatterns = []namedPattern{
	{reason: "Email address", re: regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9.-]+`)},
	{reason: "Phone number", re: regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)},
	{reason: "SSN", re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{reason: "Credit card", re: regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)},
}

// RegexDetector implements PatternDetector with a fixed, ordered set of patterns
type RegexDetector struct {
	patterns []namedPattern
}

var _ interfaces.PatternDetector = (*RegexDetector)(nil)

// NewRegexDetector creates the pattern detector
func NewRegexDetector() *RegexDetector {
	return &RegexDetector{patterns: defaultPatterns}
}

// Reasons lists the reason label of every pattern in evaluation order
func (d *RegexDetector) Reasons() []string {
	reasons := make([]string, len(d.patterns))
	for i, p := range d.patterns {
		reasons[i] = p.reason
	}
	return reasons
}

// Detect applies every pattern independently. A string matching several
// patterns yields one candidate per pattern; nothing is deduplicated here.
func (d *RegexDetector) Detect(text string, page int) []models.Candidate {
	var candidates []models.Candidate
	for _, p := range d.patterns {
		for _, match := range p.re.FindAllString(text, -1) {
			candidates = append(candidates, models.Candidate{
				Text:   match,
				Reason: p.reason,
				Page:   page,
				Source: models.SourcePattern,
			})
		}
	}
	return candidates
}
