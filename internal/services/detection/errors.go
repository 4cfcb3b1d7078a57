package detection

import "fmt"

// DetectorError reports a detector that failed on one page. Detection of the
// other pages continues and the page keeps its pattern candidates.
type DetectorError struct {
	Page     int
	Detector string
	Err      error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("%s detector failed on page %d: %v", e.Detector, e.Page, e.Err)
}

func (e *DetectorError) Unwrap() error {
	return e.Err
}
