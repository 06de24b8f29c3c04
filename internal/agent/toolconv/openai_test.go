package toolconv

import (
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

func TestToOpenAITools(t *testing.T) {
	tools := []models.ToolDescriptor{
		{
			Name:        "get_weather",
			Description: "Get the current weather for a city",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`),
		},
	}

	result := ToOpenAITools(tools)
	if len(result) != 1 {
		t.Fatalf("got %d tools, want 1", len(result))
	}
	if result[0].Type != openai.ToolTypeFunction {
		t.Errorf("Type = %q", result[0].Type)
	}
	if result[0].Function.Name != "get_weather" {
		t.Errorf("Name = %q", result[0].Function.Name)
	}
	params, ok := result[0].Function.Parameters.(map[string]any)
	if !ok {
		t.Fatalf("Parameters is %T, want map[string]any", result[0].Function.Parameters)
	}
	if params["type"] != "object" {
		t.Errorf("Parameters[\"type\"] = %v, want object", params["type"])
	}
}

func TestToOpenAIToolsInvalidSchemaFallsBackToEmptyObject(t *testing.T) {
	tools := []models.ToolDescriptor{
		{Name: "broken", InputSchema: json.RawMessage(`not json`)},
	}

	result := ToOpenAITools(tools)
	if len(result) != 1 {
		t.Fatalf("got %d tools, want 1", len(result))
	}
	params, ok := result[0].Function.Parameters.(map[string]any)
	if !ok {
		t.Fatalf("Parameters is %T, want map[string]any", result[0].Function.Parameters)
	}
	if params["type"] != "object" {
		t.Errorf("fallback schema type = %v, want object", params["type"])
	}
}

func TestToOpenAIToolsEmpty(t *testing.T) {
	result := ToOpenAITools(nil)
	if len(result) != 0 {
		t.Errorf("got %d tools, want 0", len(result))
	}
}
