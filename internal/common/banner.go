package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("RedactIQ", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("address", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)).
		Bool("ai_enabled", config.Detection.AIEnabled).
		Str("llm_provider", string(config.LLM.DefaultProvider)).
		Str("storage", config.Storage.Badger.Path).
		Msg("RedactIQ starting")
}
