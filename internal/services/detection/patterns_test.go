package detection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/redactiq/internal/models"
)

func reasonsOf(candidates []models.Candidate) map[string][]string {
	out := make(map[string][]string)
	for _, c := range candidates {
		out[c.Reason] = append(out[c.Reason], c.Text)
	}
	return out
}

func TestRegexDetectorScenario(t *testing.T) {
	d := NewRegexDetector()
	candidates := d.Detect("Contact john@x.com or call 555-123-4567, SSN 123-45-6789", 1)

	require.Len(t, candidates, 3)
	byReason := reasonsOf(candidates)
	assert.Equal(t, []string{"john@x.com"}, byReason["Email address"])
	assert.Equal(t, []string{"555-123-4567"}, byReason["Phone number"])
	assert.Equal(t, []string{"123-45-6789"}, byReason["SSN"])

	for _, c := range candidates {
		assert.Equal(t, 1, c.Page)
		assert.Equal(t, models.SourcePattern, c.Source)
	}
}

func TestRegexDetectorPatterns(t *testing.T) {
	d := NewRegexDetector()

	tests := []struct {
		name   string
		text   string
		reason string
		want   []string
	}{
		{name: "email with plus", text: "mail a.b+tag@mail.example.org now", reason: "Email address", want: []string{"a.b+tag@mail.example.org"}},
		{name: "phone with parens", text: "Tel (555) 123-4567", reason: "Phone number", want: []string{"(555) 123-4567"}},
		{name: "phone with dots", text: "555.123.4567", reason: "Phone number", want: []string{"555.123.4567"}},
		{name: "ssn requires hyphens", text: "123456789 and 123-45-6789", reason: "SSN", want: []string{"123-45-6789"}},
		{name: "credit card with spaces", text: "Card 4111 1111 1111 1111 end", reason: "Credit card", want: []string{"4111 1111 1111 1111"}},
		{name: "credit card with hyphens", text: "5500-0000-0000-0004", reason: "Credit card", want: []string{"5500-0000-0000-0004"}},
		{name: "too few digits for a card", text: "12345 678", reason: "Credit card", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reasonsOf(d.Detect(tt.text, 2))[tt.reason]
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegexDetectorIsDeterministic(t *testing.T) {
	d := NewRegexDetector()
	text := "a@b.co 555-123-4567 123-45-6789 4111111111111111 " + strings.Repeat("x ", 100)

	first := d.Detect(text, 4)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, d.Detect(text, 4))
	}
}

func TestRegexDetectorNoMatches(t *testing.T) {
	assert.Empty(t, NewRegexDetector().Detect("nothing to see here", 1))
	assert.Equal(t, []string{"Email address", "Phone number", "SSN", "Credit card"}, NewRegexDetector().Reasons())
}

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		reason string
		want   models.RiskTier
	}{
		{reason: "SSN", want: models.RiskHigh},
		{reason: "ssn detected", want: models.RiskHigh},
		{reason: "Credit card", want: models.RiskHigh},
		{reason: "Bank Account number", want: models.RiskHigh},
		{reason: "Email address", want: models.RiskMedium},
		{reason: "PHONE", want: models.RiskMedium},
		{reason: "Unknown pattern", want: models.RiskLow},
		{reason: "", want: models.RiskLow},
		{reason: "email of account holder", want: models.RiskHigh},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRisk(tt.reason))
		})
	}
}
