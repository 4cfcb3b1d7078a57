package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ternarybob/redactiq/internal/common"
)

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "RedactIQ version %s\n", common.GetFullVersion())
		},
	}
}
