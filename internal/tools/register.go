// Package tools wires the built-in tool implementations into a registry,
// matching the canonical names referenced by the policy groups.
package tools

import (
	"github.com/ainoobmenpg/cc-gateway/internal/agent"
	"github.com/ainoobmenpg/cc-gateway/internal/sessions"
	"github.com/ainoobmenpg/cc-gateway/internal/tools/exec"
	"github.com/ainoobmenpg/cc-gateway/internal/tools/files"
	"github.com/ainoobmenpg/cc-gateway/internal/tools/memory"
	"github.com/ainoobmenpg/cc-gateway/internal/tools/websearch"
)

// Config controls which builtin tools RegisterBuiltinTools wires up and how
// they're scoped.
type Config struct {
	Workspace    string
	MaxReadBytes int

	// EnableExec registers the bash/exec/process tools.
	EnableExec bool

	// EnableWebSearch registers the web_search/web_fetch tools.
	EnableWebSearch bool
	WebSearch       *websearch.Config
	WebFetch        *websearch.FetchConfig

	// EnableMemory registers memory_put/memory_get against store.
	EnableMemory bool
}

// RegisterBuiltinTools registers every builtin tool enabled by cfg against
// registry, matching the tool names used in the policy groups (fs, runtime,
// memory, web).
func RegisterBuiltinTools(registry *agent.ToolRegistry, cfg Config, store sessions.Store) error {
	if registry == nil {
		return nil
	}

	fileCfg := files.Config{Workspace: cfg.Workspace, MaxReadBytes: cfg.MaxReadBytes}
	for _, tool := range []agent.Tool{
		files.NewReadTool(fileCfg),
		files.NewWriteTool(fileCfg),
		files.NewEditTool(fileCfg),
		files.NewApplyPatchTool(fileCfg),
		files.NewGlobTool(fileCfg),
		files.NewGrepTool(fileCfg),
		files.NewLsTool(fileCfg),
	} {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	if cfg.EnableExec {
		execManager := exec.NewManager(cfg.Workspace)
		for _, tool := range []agent.Tool{
			exec.NewExecTool("bash", execManager),
			exec.NewProcessTool(execManager),
		} {
			if err := registry.Register(tool); err != nil {
				return err
			}
		}
	}

	if cfg.EnableWebSearch {
		searchCfg := cfg.WebSearch
		if searchCfg == nil {
			searchCfg = &websearch.Config{}
		}
		if err := registry.Register(websearch.NewWebSearchTool(searchCfg)); err != nil {
			return err
		}
		if err := registry.Register(websearch.NewWebFetchTool(cfg.WebFetch)); err != nil {
			return err
		}
	}

	if cfg.EnableMemory && store != nil {
		for _, tool := range []agent.Tool{
			memory.NewPutTool(store),
			memory.NewGetTool(store),
		} {
			if err := registry.Register(tool); err != nil {
				return err
			}
		}
	}

	return nil
}
