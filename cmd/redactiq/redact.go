package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/ternarybob/redactiq/internal/models"
	"github.com/ternarybob/redactiq/internal/services/sessions"
)

type redactOptions struct {
	output     string
	selections string
	noAI       bool
}

// NewRedactCmd creates the redact command
func NewRedactCmd(rt *rootOptions) *cobra.Command {
	opts := &redactOptions{}

	cmd := &cobra.Command{
		Use:   "redact <file.pdf>",
		Short: "Redact confirmed terms and write a new PDF",
		Long: `Redacts the selections in --selections (a JSON file holding either a list of
{"text", "page"} objects or a redaction request). Without --selections every
eligible detected candidate is redacted. The input file is never modified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRedact(cmd, rt, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Path of the redacted PDF")
	cmd.Flags().StringVar(&opts.selections, "selections", "", "JSON file with confirmed selections")
	cmd.Flags().BoolVar(&opts.noAI, "no-ai", false, "Use pattern detection only when detecting candidates")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runRedact(cmd *cobra.Command, rt *rootOptions, opts *redactOptions, path string) error {
	if sameFile(path, opts.output) {
		return fmt.Errorf("output must differ from the input file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	request := &models.RedactRequest{UseDetected: true}
	if opts.selections != "" {
		if request, err = loadSelections(opts.selections); err != nil {
			return err
		}
	}

	application, cleanup, err := rt.oneShotApp()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return sessions.Process(ctx, application.SessionService, filepath.Base(path), data, func(session *models.Session) error {
		selections := request.Selections
		if request.UseDetected {
			result, err := application.SessionService.Scan(ctx, session.ID, !opts.noAI)
			if err != nil {
				return err
			}
			selections = append(selections, models.SelectionsFromItems(result.Items)...)
			if result.Message != "" {
				fmt.Fprintf(out, "%s\n", result.Message)
			}
		}

		redacted, report, err := application.SessionService.Redact(ctx, session.ID, selections)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.output, redacted, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.output, err)
		}

		printReport(out, opts.output, len(selections), report)
		return nil
	})
}

// loadSelections reads either a bare list of selections or a redaction request
func loadSelections(path string) (*models.RedactRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selections: %w", err)
	}

	request := &models.RedactRequest{}
	if err := json.Unmarshal(data, &request.Selections); err != nil {
		if err := json.Unmarshal(data, request); err != nil {
			return nil, fmt.Errorf("failed to parse selections %s: %w", path, err)
		}
	}
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("invalid selections %s: %w", path, err)
	}
	return request, nil
}

func printReport(w io.Writer, output string, selections int, report *models.RedactionReport) {
	fmt.Fprintf(w, "Wrote %s: %d selection(s), %d occurrence(s) removed on %d page(s)\n",
		output, selections, report.Marks, report.PagesRedacted)
	for _, skipped := range report.Skipped {
		fmt.Fprintf(w, "  skipped page %s: %s\n", skipped.Page, skipped.Error)
	}
	for _, term := range report.Truncated {
		fmt.Fprintf(w, "  occurrence limit reached for %q\n", term)
	}
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
