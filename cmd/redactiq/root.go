package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/redactiq/internal/app"
	"github.com/ternarybob/redactiq/internal/common"
)

// defaultConfigFile is picked up from the working directory when no --config is given
const defaultConfigFile = "redactiq.toml"

// rootOptions carries the global flags and what they resolve to for subcommands
type rootOptions struct {
	configFiles []string
	port        int
	host        string
	verbose     bool

	config *common.Config
	logger arbor.ILogger
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rt := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "redactiq",
		Short: "Find and redact personal and health information in PDF documents",
		Long: `RedactIQ scans PDF documents for sensitive terms with pattern and AI
detection, lets a reviewer confirm them, and removes the confirmed terms from
the document: the text is blacked out and its glyphs are stripped.`,
		Version:       common.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringArrayVarP(&rt.configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	flags.IntVarP(&rt.port, "port", "p", 0, "Server port (overrides config)")
	flags.StringVar(&rt.host, "host", "", "Server host (overrides config)")
	flags.BoolVar(&rt.verbose, "verbose", false, "Log to the console for scan and redact")

	cmd.AddCommand(NewServeCmd(rt))
	cmd.AddCommand(NewScanCmd(rt))
	cmd.AddCommand(NewRedactCmd(rt))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// load runs the startup sequence: config files and env, then flags, then logger
func (rt *rootOptions) load(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}

	files := rt.configFiles
	if len(files) == 0 {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			files = []string{defaultConfigFile}
		}
	}

	config, err := common.LoadFromFiles(files...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	common.ApplyFlagOverrides(config, rt.port, rt.host)

	// One-shot commands print their results on stdout
	if cmd.Name() != "serve" && !rt.verbose {
		config.Logging.Output = withoutConsole(config.Logging.Output)
	}

	rt.config = config
	rt.logger = common.InitLogger(config)

	rt.logger.Debug().
		Strs("config_files", files).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Bool("ai_enabled", config.Detection.AIEnabled).
		Msg("Resolved configuration")

	return nil
}

func withoutConsole(outputs []string) []string {
	kept := make([]string, 0, len(outputs))
	for _, output := range outputs {
		if output != "stdout" && output != "console" {
			kept = append(kept, output)
		}
	}
	return kept
}

// oneShotApp builds the application over a private, temporary session store.
// The returned cleanup closes the app and removes the store.
func (rt *rootOptions) oneShotApp() (*app.App, func(), error) {
	dir, err := os.MkdirTemp("", "redactiq-*")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	config := *rt.config
	config.Storage.Badger.Path = filepath.Join(dir, "sessions")
	config.Storage.Badger.ResetOnStartup = true

	application, err := app.New(&config, rt.logger)
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, err
	}

	cleanup := func() {
		if err := application.Close(); err != nil {
			rt.logger.Warn().Err(err).Msg("Failed to close application")
		}
		os.RemoveAll(dir)
	}
	return application, cleanup, nil
}
