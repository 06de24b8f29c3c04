package policy

// ToolGroups defines named groups of tools for easier policy configuration.
// Group names use the "group:" prefix to distinguish them from tool names.
var ToolGroups = map[string][]string{
	// Filesystem tools - read/write/modify files
	"group:fs": {"read", "write", "edit", "apply_patch", "glob", "grep", "ls"},

	// Shell execution
	"group:runtime": {"bash"},

	// Memory tools - the keyed memory store
	"group:memory": {"memory_put", "memory_get"},

	// Web tools - search and fetch from the web
	"group:web": {"web_search", "web_fetch"},

	// All built-in tools
	"group:builtin": {
		"bash",
		"read", "write", "edit", "glob", "grep", "ls", "apply_patch",
		"web_search", "web_fetch",
		"memory_put", "memory_get",
	},

	// Read-only tools - safe tools that don't modify state
	"group:readonly": {
		"read", "glob", "grep", "ls",
		"web_search", "web_fetch",
		"memory_get",
	},
}

// ToolProfiles defines pre-configured tool sets for common use cases.
var ToolProfiles = map[string]*Policy{
	// Coding profile - full development capabilities
	"coding": {
		Profile: ProfileCoding,
		Allow: []string{
			"group:fs",
			"group:runtime",
			"group:web",
			"group:memory",
		},
	},

	// Readonly profile - observation only, no modifications
	"readonly": {
		Allow: []string{
			"group:readonly",
		},
	},

	// Full profile - everything allowed (except explicit denies)
	"full": {
		Profile: ProfileFull,
	},

	// Minimal profile - no tools
	"minimal": {
		Profile: ProfileMinimal,
	},
}

// ExpandGroups expands group references in a tool list to their constituent
// tools. Group references (e.g. "group:fs") expand to their member tools;
// plain tool names pass through unchanged. Results are deduplicated.
func ExpandGroups(items []string) []string {
	var result []string
	seen := make(map[string]bool)

	for _, item := range items {
		if tools, ok := ToolGroups[item]; ok {
			for _, tool := range tools {
				if !seen[tool] {
					seen[tool] = true
					result = append(result, tool)
				}
			}
			continue
		}

		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}

	return result
}

// GetProfilePolicy returns the policy for a named profile.
// Returns nil if the profile doesn't exist.
func GetProfilePolicy(name string) *Policy {
	return ToolProfiles[name]
}

// ListGroups returns all available group names.
func ListGroups() []string {
	groups := make([]string, 0, len(ToolGroups))
	for name := range ToolGroups {
		groups = append(groups, name)
	}
	return groups
}

// ListProfiles returns all available profile names.
func ListProfiles() []string {
	profiles := make([]string, 0, len(ToolProfiles))
	for name := range ToolProfiles {
		profiles = append(profiles, name)
	}
	return profiles
}

// IsGroup returns true if the name is a valid group reference.
func IsGroup(name string) bool {
	_, ok := ToolGroups[name]
	return ok
}

// GetGroupTools returns the tools in a group, or nil if the group doesn't exist.
func GetGroupTools(name string) []string {
	tools, ok := ToolGroups[name]
	if !ok {
		return nil
	}
	result := make([]string, len(tools))
	copy(result, tools)
	return result
}

// init ensures ToolGroups is synchronized with DefaultGroups.
func init() {
	for name, tools := range ToolGroups {
		DefaultGroups[name] = tools
	}
}
