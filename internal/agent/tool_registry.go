package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ainoobmenpg/cc-gateway/internal/tools/policy"
	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// Tool is the interface every built-in and MCP-adapted tool implements.
// Sensitivity is fixed per tool (spec §4.4's level 1-9 table); tools that
// expose a dynamic sensitivity (e.g. bash's safe-subset-vs-arbitrary split)
// compute it per call inside Execute and report it via ToolOutput metadata
// rather than changing Sensitivity().
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Sensitivity() int
	Execute(ctx context.Context, params json.RawMessage) (*models.ToolOutput, error)
}

// ErrDuplicateTool is returned by Register when a tool with the same name
// is already registered. Registration conflicts are a configuration error,
// never a silent overwrite.
type ErrDuplicateTool struct {
	Name string
}

func (e *ErrDuplicateTool) Error() string {
	return fmt.Sprintf("tool already registered: %s", e.Name)
}

// ToolRegistry manages the set of tools available for dispatch. It is a
// pure dispatcher: it validates input against a tool's JSON Schema and runs
// it, but never consults policy itself (that's ToolPolicy's job, applied by
// the caller before Execute is reached).
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates a new empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry by its name. A second registration
// of the same name is an error, not a silent overwrite.
func (r *ToolRegistry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("cannot register nil tool")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return &ErrDuplicateTool{Name: name}
	}
	r.tools[name] = tool
	return nil
}

// Unregister removes a tool from the registry by name.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name and a boolean indicating if it was found.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Tool parameter limits to prevent resource exhaustion.
const (
	// MaxToolNameLength is the maximum length of a tool name.
	MaxToolNameLength = 256

	// MaxToolParamsSize is the maximum size of tool parameters JSON (10MB).
	MaxToolParamsSize = 10 << 20
)

// Execute validates params against the named tool's schema and runs it.
// Validation and not-found failures are returned as an error ToolOutput,
// not a Go error, since the model needs to see them as a tool result.
func (r *ToolRegistry) Execute(ctx context.Context, name string, params json.RawMessage) (*models.ToolOutput, error) {
	if len(name) > MaxToolNameLength {
		return &models.ToolOutput{
			Text:    fmt.Sprintf("tool name exceeds maximum length of %d characters", MaxToolNameLength),
			IsError: true,
		}, nil
	}
	if len(params) > MaxToolParamsSize {
		return &models.ToolOutput{
			Text:    fmt.Sprintf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize),
			IsError: true,
		}, nil
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return &models.ToolOutput{
			Text:    "tool not found: " + name,
			IsError: true,
		}, nil
	}

	if err := validateToolInput(tool, params); err != nil {
		return &models.ToolOutput{
			Text:    "invalid tool input: " + err.Error(),
			IsError: true,
		}, nil
	}

	return tool.Execute(ctx, params)
}

// Manifest returns the tool descriptors for every registered tool, for
// inclusion in a ProviderRequest.
func (r *ToolRegistry) Manifest() []models.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, models.ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Schema(),
			Sensitivity: t.Sensitivity(),
		})
	}
	return out
}

func filterToolsByPolicy(resolver *policy.Resolver, toolPolicy *policy.Policy, tools []models.ToolDescriptor) []models.ToolDescriptor {
	if resolver == nil || toolPolicy == nil {
		return tools
	}
	filtered := make([]models.ToolDescriptor, 0, len(tools))
	for _, tool := range tools {
		if resolver.IsAllowed(toolPolicy, tool.Name) {
			filtered = append(filtered, tool)
		}
	}
	return filtered
}

func normalizeToolName(name string, resolver *policy.Resolver) string {
	return policy.NormalizeTool(name)
}

func matchesToolPatterns(patterns []string, toolName string, resolver *policy.Resolver) bool {
	if len(patterns) == 0 {
		return false
	}
	name := normalizeToolName(toolName, resolver)
	for _, pattern := range patterns {
		if matchToolPattern(normalizeToolName(pattern, resolver), name) {
			return true
		}
	}
	return false
}

func matchToolPattern(pattern, toolName string) bool {
	if pattern == "" || toolName == "" {
		return false
	}
	if pattern == "mcp:*" {
		return strings.HasPrefix(toolName, "mcp:")
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(toolName, prefix)
	}
	return pattern == toolName
}

func guardToolResult(guard ToolResultGuard, toolName string, output models.ToolOutput, resolver *policy.Resolver) models.ToolOutput {
	return guard.Apply(toolName, output, resolver)
}

func guardToolResults(guard ToolResultGuard, toolCalls []models.ToolCall, outputs []models.ToolOutput, resolver *policy.Resolver) []models.ToolOutput {
	if !guard.active() || len(outputs) == 0 {
		return outputs
	}

	guarded := make([]models.ToolOutput, len(outputs))
	for i, out := range outputs {
		toolName := ""
		if i < len(toolCalls) {
			toolName = toolCalls[i].ToolName
		}
		guarded[i] = guardToolResult(guard, toolName, out, resolver)
	}
	return guarded
}
