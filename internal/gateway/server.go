package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/ainoobmenpg/cc-gateway/internal/agent"
	agentctx "github.com/ainoobmenpg/cc-gateway/internal/agent/context"
	"github.com/ainoobmenpg/cc-gateway/internal/agent/providers"
	"github.com/ainoobmenpg/cc-gateway/internal/audit"
	"github.com/ainoobmenpg/cc-gateway/internal/config"
	"github.com/ainoobmenpg/cc-gateway/internal/sessions"
	"github.com/ainoobmenpg/cc-gateway/internal/tools"
	"github.com/ainoobmenpg/cc-gateway/internal/tools/websearch"
	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// consoleChannel is the dev-loop channel kind used by the built-in console
// adapter. ChannelKind is opaque (pkg/models.ChannelKind), so introducing
// this value doesn't encroach on any named channel adapter's scope.
const consoleChannel models.ChannelKind = "console"

// ManagedServerConfig is the dependency bundle handed to NewManagedServer,
// mirroring the teacher's gateway.ManagedServerConfig shape.
type ManagedServerConfig struct {
	Config     *config.Config
	Logger     *slog.Logger
	ConfigPath string
}

// Server owns the wired Agent Driver and the built-in console channel loop.
// External channel adapters (out of scope) would run their own inbound
// loop and call RunTurn the same way the console loop does; Server just
// gives ccgatewayd something to Start and Stop.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	store    sessions.Store
	registry *agent.ToolRegistry
	audit    *audit.Logger
	driver   *agent.Driver
	reply    ReplySink

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewManagedServer constructs every piece of the agent loop from cfg:
// LLM provider, sqlite session store, audit logger, builtin tool registry,
// the sensitivity gate, context packer/compactor, and finally the Driver.
func NewManagedServer(mc ManagedServerConfig) (*Server, error) {
	cfg := mc.Config
	if cfg == nil {
		return nil, fmt.Errorf("gateway: config is required")
	}
	logger := mc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("gateway: build provider: %w", err)
	}

	dbPath := cfg.Database.URL
	if dbPath == "" {
		dbPath = "gateway.db"
	}
	store, err := sessions.NewSQLiteStore(context.Background(), sessions.SQLiteConfig{Path: dbPath})
	if err != nil {
		return nil, fmt.Errorf("gateway: open session store: %w", err)
	}

	auditLogger, err := audit.NewLogger(cfg.Audit)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("gateway: build audit logger: %w", err)
	}

	registry := agent.NewToolRegistry()
	toolsCfg := tools.Config{
		Workspace:       cfg.Tools.Sandbox.WorkspaceRoot,
		MaxReadBytes:    256 * 1024,
		EnableExec:      cfg.Tools.Sandbox.Enabled,
		EnableWebSearch: cfg.Tools.WebSearch.Enabled,
		EnableMemory:    true,
	}
	if toolsCfg.Workspace == "" {
		toolsCfg.Workspace = "."
	}
	if toolsCfg.EnableWebSearch {
		wsc := websearchConfigFrom(cfg)
		toolsCfg.WebSearch = &wsc
		toolsCfg.WebFetch = &websearch.FetchConfig{MaxChars: cfg.Tools.WebFetch.MaxChars}
	}
	if err := tools.RegisterBuiltinTools(registry, toolsCfg, store); err != nil {
		store.Close()
		return nil, fmt.Errorf("gateway: register builtin tools: %w", err)
	}

	notifier := &ConsoleApprovalNotifier{Logger: logger}
	approvalChecker := agent.NewApprovalChecker(store, notifier)

	summarizer := agentctx.NewSummarizer(&agent.ProviderSummarizer{Provider: provider}, config.EffectiveSummarizationConfig(cfg.Session.Compaction))
	compactor := agent.NewCompactor(summarizer, store)
	packer := agentctx.NewPacker(agentctx.DefaultPackOptions())

	opts := agent.DefaultRuntimeOptions()
	opts.ApprovalChecker = approvalChecker
	opts.Logger = logger

	driver := agent.NewDriver(provider, registry, store, compactor, packer, auditLogger, opts)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: registry,
		audit:    auditLogger,
		driver:   driver,
		reply:    &ConsoleReplySink{Out: os.Stdout},
	}, nil
}

// Start runs the built-in console channel loop until ctx is cancelled. A
// real deployment replaces this with one or more channel adapters driving
// RunTurn the same way; there's no networked API surface here to keep
// running independently of the console loop.
func (s *Server) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.stopped = make(chan struct{})
	s.mu.Unlock()
	defer close(s.stopped)

	session, err := s.store.GetOrCreate(runCtx, consoleChannel, "local")
	if err != nil {
		return fmt.Errorf("gateway: create console session: %w", err)
	}

	s.logger.Info("console channel ready", "session_id", session.ID)
	err = readLines(runCtx, os.Stdin, func(ctx context.Context, line string) error {
		userMsg := &models.Message{Content: []models.ContentBlock{models.Text(line)}}
		outcome, runErr := s.driver.RunTurn(ctx, session, userMsg)
		if runErr != nil {
			s.logger.Error("turn failed", "error", runErr)
			return nil
		}
		if outcome.Err != nil {
			s.logger.Warn("turn ended with error", "error", outcome.Err)
			return nil
		}
		if outcome.AssistantMessage != nil {
			if replyErr := s.reply.Reply(ctx, session, outcome.AssistantMessage.Text()); replyErr != nil {
				s.logger.Error("reply delivery failed", "error", replyErr)
			}
		}
		return nil
	})
	if err != nil && runCtx.Err() == nil {
		return err
	}
	return nil
}

// Stop cancels the console loop and closes the session store, waiting up
// to ctx's deadline for the loop to unwind.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	stopped := s.stopped
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if stopped != nil {
		select {
		case <-stopped:
		case <-ctx.Done():
		}
	}
	if s.audit != nil {
		s.audit.Close()
	}
	return s.store.Close()
}

func buildProvider(cfg *config.Config) (agent.Provider, error) {
	name := cfg.LLM.DefaultProvider
	provCfg, ok := cfg.LLM.Providers[name]
	if !ok {
		return nil, fmt.Errorf("no provider configured for %q", name)
	}
	switch name {
	case "openai":
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       provCfg.APIKey,
			BaseURL:      provCfg.BaseURL,
			DefaultModel: provCfg.DefaultModel,
		}), nil
	default:
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       provCfg.APIKey,
			BaseURL:      provCfg.BaseURL,
			DefaultModel: provCfg.DefaultModel,
		})
	}
}

func websearchConfigFrom(cfg *config.Config) websearch.Config {
	backend := websearch.BackendDuckDuckGo
	switch cfg.Tools.WebSearch.Provider {
	case "searxng":
		backend = websearch.BackendSearXNG
	case "brave":
		backend = websearch.BackendBraveSearch
	}
	return websearch.Config{
		SearXNGURL:         cfg.Tools.WebSearch.URL,
		BraveAPIKey:        cfg.Tools.WebSearch.BraveAPIKey,
		DefaultBackend:     backend,
		DefaultResultCount: 5,
	}
}
