package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ainoobmenpg/cc-gateway/internal/audit"
)

// Config is the root configuration structure for the gateway.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	Channels    ChannelsConfig    `yaml:"channels"`
	LLM         LLMConfig         `yaml:"llm"`
	Tools       ToolsConfig       `yaml:"tools"`
	Logging     LoggingConfig     `yaml:"logging"`
	Session     SessionConfig     `yaml:"session"`
	Plugins     PluginsConfig     `yaml:"plugins"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Audit       audit.Config      `yaml:"audit"`
	Edge        EdgeConfig        `yaml:"edge"`
}

var validChannelScopes = map[string]bool{
	"":        true,
	"thread":  true,
	"channel": true,
}

var validDMScopes = map[string]bool{
	"":                 true,
	"main":             true,
	"per-peer":         true,
	"per-channel-peer": true,
}

// Load reads a configuration file (YAML or JSON5, with $include support),
// applies defaults, and validates it.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 50051
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 25
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Auth.TokenExpiry == 0 {
		cfg.Auth.TokenExpiry = 24 * time.Hour
	}
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	// Audit logging is part of the core's required behavior (spec §4.6),
	// not an opt-in observability extra, so it defaults on unless the
	// config file carries an explicit "audit:" section.
	auditSectionPresent := cfg.Audit.Output != "" || cfg.Audit.Level != "" || cfg.Audit.Format != "" || cfg.Audit.Enabled
	if !auditSectionPresent {
		cfg.Audit.Enabled = true
	}
	if cfg.Audit.Output == "" {
		cfg.Audit.Output = "file:audit.log"
	}
	if cfg.Audit.Format == "" {
		cfg.Audit.Format = audit.FormatJSON
	}
	if cfg.Audit.Level == "" {
		cfg.Audit.Level = audit.LevelInfo
	}
	if cfg.Audit.SampleRate == 0 {
		cfg.Audit.SampleRate = 1.0
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = 1000
	}
	if cfg.Audit.FlushInterval == 0 {
		cfg.Audit.FlushInterval = 5 * time.Second
	}
	if cfg.Audit.MaxFieldSize == 0 {
		cfg.Audit.MaxFieldSize = 1024
	}
}

func validate(cfg *Config) error {
	var issues []string

	if !validChannelScopes[strings.ToLower(cfg.Session.SlackScope)] {
		issues = append(issues, fmt.Sprintf("session.slack_scope: invalid value %q", cfg.Session.SlackScope))
	}
	if !validChannelScopes[strings.ToLower(cfg.Session.DiscordScope)] {
		issues = append(issues, fmt.Sprintf("session.discord_scope: invalid value %q", cfg.Session.DiscordScope))
	}
	if !validDMScopes[strings.ToLower(cfg.Session.Scoping.DMScope)] {
		issues = append(issues, fmt.Sprintf("session.scoping.dm_scope: invalid value %q", cfg.Session.Scoping.DMScope))
	}

	if cfg.LLM.DefaultProvider != "" {
		if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
			issues = append(issues, fmt.Sprintf("llm.default_provider: %q has no matching entry under llm.providers", cfg.LLM.DefaultProvider))
		}
	}

	issues = append(issues, pluginValidationIssues(cfg)...)

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

// ConfigValidationError reports one or more configuration problems found
// during validation.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config invalid: %s", strings.Join(e.Issues, "; "))
}
