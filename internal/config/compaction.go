package config

import (
	agentctx "github.com/ainoobmenpg/cc-gateway/internal/agent/context"
)

// EffectiveSummarizationConfig converts a session's compaction config into
// the runtime SummarizationConfig, filling in defaults for zero fields.
func EffectiveSummarizationConfig(cfg CompactionConfig) agentctx.SummarizationConfig {
	defaults := agentctx.DefaultSummarizationConfig()

	settings := defaults
	if cfg.MaxMsgsBeforeSummary > 0 {
		settings.MaxMsgsBeforeSummary = cfg.MaxMsgsBeforeSummary
	}
	if cfg.KeepRecentMessages > 0 {
		settings.KeepRecentMessages = cfg.KeepRecentMessages
	}
	if cfg.MaxSummaryLength > 0 {
		settings.MaxSummaryLength = cfg.MaxSummaryLength
	}

	return settings
}
