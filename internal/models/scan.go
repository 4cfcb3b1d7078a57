package models

import "time"

// NoCandidatesMessage is the informational message for a scan that found nothing
const NoCandidatesMessage = "No sensitive terms were detected."

// PageText is the extracted plain text of one page
type PageText struct {
	Number int    `json:"number"` // 1-based, contiguous, physical page order
	Text   string `json:"text"`
}

// PageError records a non-fatal failure that affected a single page
type PageError struct {
	Page     int    `json:"page"`
	Detector string `json:"detector,omitempty"`
	Error    string `json:"error"`
}

// RiskSummary counts review items per risk tier
type RiskSummary struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	Total  int `json:"total"`
}

// ScanResult is the output of detection and aggregation over a document
type ScanResult struct {
	PageCount  int          `json:"page_count"`
	Items      []ReviewItem `json:"items"`
	Summary    RiskSummary  `json:"summary"`
	PageErrors []PageError  `json:"page_errors,omitempty"`
	AIEnabled  bool         `json:"ai_enabled"`
	Message    string       `json:"message,omitempty"` // Informational, e.g. NoCandidatesMessage
	Duration   string       `json:"duration"`
}

// SkippedPage records a page (or raw selection) the redaction engine did not apply
type SkippedPage struct {
	Page  string `json:"page"` // Raw page value, kept as supplied
	Term  string `json:"term,omitempty"`
	Error string `json:"error"`
}

// RedactionReport summarizes one application of the redaction engine
type RedactionReport struct {
	PagesRedacted int            `json:"pages_redacted"`
	Marks         int            `json:"marks"`     // Occurrences blacked out
	TermHits      map[string]int `json:"term_hits"` // Occurrences per term across pages
	Skipped       []SkippedPage  `json:"skipped,omitempty"`
	Truncated     []string       `json:"truncated,omitempty"` // Terms that reached the per-page occurrence cap
}

// PDFMetadata contains document properties read without extracting text
type PDFMetadata struct {
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Creator   string `json:"creator,omitempty"`
	Producer  string `json:"producer,omitempty"`
	PageCount int    `json:"page_count"`
	FileSize  int64  `json:"file_size"`
	Encrypted bool   `json:"encrypted"`
}

// Session is the stored state of one processing session.
// The uploaded document lives only as long as the session.
type Session struct {
	ID        string      `json:"id" badgerhold:"key"`
	FileName  string      `json:"file_name"`
	Document  []byte      `json:"-"`
	Metadata  PDFMetadata `json:"metadata"`
	Scan      *ScanResult `json:"scan,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
