// Package main provides the RedactIQ command line: an HTTP server for
// interactive review and one-shot scan and redact commands.
//
// Usage:
//
//	redactiq serve
//	redactiq scan intake.pdf
//	redactiq redact intake.pdf -o intake-redacted.pdf
package main

func main() {
	Execute()
}
