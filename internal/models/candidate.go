package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RiskTier is the High/Medium/Low classification derived from a detection reason
type RiskTier string

const (
	RiskHigh   RiskTier = "High"
	RiskMedium RiskTier = "Medium"
	RiskLow    RiskTier = "Low"
)

// InvalidPage is the sentinel page number for candidates whose page could not be normalized
const InvalidPage = -1

// Detector source labels
const (
	SourcePattern = "pattern"
	SourceAI      = "ai"
)

// Candidate is a detected, potentially sensitive span of text on one page.
// Candidates are immutable values once produced by a detector.
type Candidate struct {
	Text   string `json:"text"`   // Literal matched string
	Reason string `json:"reason"` // Classification label, e.g. "Email address" or an AI-supplied label
	Page   int    `json:"page"`   // 1-based page number
	Source string `json:"source"` // Detector that produced the candidate ("pattern" or "ai")
}

// ReviewItem is one row of the reviewable candidate table
type ReviewItem struct {
	Text     string   `json:"text"`
	Reason   string   `json:"reason"`
	Page     int      `json:"page"`     // Normalized page, InvalidPage when it could not be normalized
	Risk     RiskTier `json:"risk"`     // Derived from Reason
	Selected bool     `json:"selected"` // Opt-out: eligible rows start selected
	Eligible bool     `json:"eligible"` // False when Page is InvalidPage
}

// PageRef is a loosely typed page reference as supplied by the review boundary.
// It accepts JSON numbers and strings and coerces them on demand.
type PageRef struct {
	raw string
}

// NewPageRef wraps an integer page number
func NewPageRef(page int) PageRef {
	return PageRef{raw: strconv.Itoa(page)}
}

// PageRefFromString wraps a raw page value as received from a form or CSV cell
func PageRefFromString(raw string) PageRef {
	return PageRef{raw: raw}
}

// Raw returns the page value as it was supplied
func (p PageRef) Raw() string {
	return p.raw
}

// Int coerces the reference to a page number. Integral floats ("3.0") are
// accepted; anything else, including blanks, NaN and fractions, is an error.
func (p PageRef) Int() (int, error) {
	s := strings.TrimSpace(p.raw)
	if s == "" {
		return InvalidPage, fmt.Errorf("empty page value")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return InvalidPage, fmt.Errorf("page value %q is not numeric", p.raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return InvalidPage, fmt.Errorf("page value %q is not a whole number", p.raw)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return InvalidPage, fmt.Errorf("page value %q is out of range", p.raw)
	}
	return int(f), nil
}

// MarshalJSON writes numeric references as numbers and everything else as strings
func (p PageRef) MarshalJSON() ([]byte, error) {
	if n, err := p.Int(); err == nil {
		return []byte(strconv.Itoa(n)), nil
	}
	return json.Marshal(p.raw)
}

// UnmarshalJSON accepts a number, a string or null
func (p *PageRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		p.raw = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		p.raw = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("page must be a number or string: %w", err)
	}
	p.raw = n.String()
	return nil
}

// ConfirmedSelection is a human-approved entry slated for redaction.
// Reason and Risk are informational only. A blank Text is skipped when
// redacting rather than rejected.
type ConfirmedSelection struct {
	Text   string   `json:"text"`
	Page   PageRef  `json:"page"`
	Reason string   `json:"reason,omitempty"`
	Risk   RiskTier `json:"risk,omitempty"`
}

// SelectionsFromItems converts the selected, eligible rows of a review table
// into confirmed selections
func SelectionsFromItems(items []ReviewItem) []ConfirmedSelection {
	selections := make([]ConfirmedSelection, 0, len(items))
	for _, item := range items {
		if !item.Selected || !item.Eligible {
			continue
		}
		selections = append(selections, ConfirmedSelection{
			Text:   item.Text,
			Page:   NewPageRef(item.Page),
			Reason: item.Reason,
			Risk:   item.Risk,
		})
	}
	return selections
}
