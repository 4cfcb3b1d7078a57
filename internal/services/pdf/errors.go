package pdf

import "fmt"

// DocumentOpenError reports a byte stream that could not be opened as a PDF.
// It is fatal for the request that produced it.
type DocumentOpenError struct {
	Err error
}

func (e *DocumentOpenError) Error() string {
	return fmt.Sprintf("failed to open document: %v", e.Err)
}

func (e *DocumentOpenError) Unwrap() error {
	return e.Err
}

// RedactionPageError reports a page (or selection) whose redactions were skipped.
// Page holds the raw page value because it may not be a number at all.
type RedactionPageError struct {
	Page string
	Err  error
}

func (e *RedactionPageError) Error() string {
	return fmt.Sprintf("redaction skipped for page %q: %v", e.Page, e.Err)
}

func (e *RedactionPageError) Unwrap() error {
	return e.Err
}
