package agent

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var toolSchemaCache sync.Map

// validateToolInput validates a tool call's raw JSON input against the
// tool's declared JSON Schema before Execute is invoked (spec §4.3).
func validateToolInput(tool Tool, params json.RawMessage) error {
	raw := tool.Schema()
	if len(raw) == 0 {
		return nil
	}

	schema, err := compileToolSchema(tool.Name(), raw)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	var decoded any
	if err := json.Unmarshal(params, &decoded); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}

	return schema.Validate(decoded)
}

func compileToolSchema(toolName string, raw json.RawMessage) (*jsonschema.Schema, error) {
	key := toolName + ":" + string(raw)
	if cached, ok := toolSchemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString(toolName+".schema.json", string(raw))
	if err != nil {
		return nil, err
	}
	toolSchemaCache.Store(key, compiled)
	return compiled, nil
}
