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

type scanOptions struct {
	noAI       bool
	jsonOutput bool
	summaryPDF string
}

// NewScanCmd creates the scan command
func NewScanCmd(rt *rootOptions) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan <file.pdf>",
		Short: "Detect sensitive terms in a PDF",
		Long: `Extracts the text of every page, runs pattern and AI detection and prints
the review table with a per-risk summary. The document is not modified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, rt, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.noAI, "no-ai", false, "Use pattern detection only")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the scan result as JSON")
	cmd.Flags().StringVar(&opts.summaryPDF, "summary-pdf", "", "Also write a PDF summary report to this path")

	return cmd
}

func runScan(cmd *cobra.Command, rt *rootOptions, opts *scanOptions, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	application, cleanup, err := rt.oneShotApp()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	fileName := filepath.Base(path)

	return sessions.Process(ctx, application.SessionService, fileName, data, func(session *models.Session) error {
		result, err := application.SessionService.Scan(ctx, session.ID, !opts.noAI)
		if err != nil {
			return err
		}

		if opts.summaryPDF != "" {
			report, err := application.Reports.RenderSummary(fileName, result)
			if err != nil {
				return err
			}
			if err := os.WriteFile(opts.summaryPDF, report, 0o600); err != nil {
				return fmt.Errorf("failed to write summary: %w", err)
			}
		}

		if opts.jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		printScanResult(out, fileName, result)
		return nil
	})
}

func printScanResult(w io.Writer, fileName string, result *models.ScanResult) {
	fmt.Fprintf(w, "\n%s: %d page(s), AI detection %s\n\n", fileName, result.PageCount, onOff(result.AIEnabled))

	if len(result.Items) > 0 {
		fmt.Fprintf(w, "  %-3s  %-6s  %-6s  %-24s  %s\n", "Sel", "Page", "Risk", "Reason", "Text")
		for _, item := range result.Items {
			page := fmt.Sprintf("%d", item.Page)
			if !item.Eligible {
				page = "?"
			}
			fmt.Fprintf(w, "  %-3s  %-6s  %-6s  %-24s  %s\n",
				checkbox(item.Selected), page, item.Risk, clip(item.Reason, 24), item.Text)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "  High: %d  Medium: %d  Low: %d  Total: %d\n",
		result.Summary.High, result.Summary.Medium, result.Summary.Low, result.Summary.Total)

	if result.Message != "" {
		fmt.Fprintf(w, "  %s\n", result.Message)
	}
	for _, pe := range result.PageErrors {
		fmt.Fprintf(w, "  Page %d: %s detection failed: %s\n", pe.Page, pe.Detector, pe.Error)
	}
	fmt.Fprintln(w)
}

func checkbox(selected bool) string {
	if selected {
		return "[x]"
	}
	return "[ ]"
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func clip(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
