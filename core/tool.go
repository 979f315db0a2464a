package core

import (
	"context"
	"encoding/json"
)

// ToolDefinition describes a tool an agent can call.
type ToolDefinition struct {
	ToolName        string                 `json:"name"`
	ToolDescription string                 `json:"description"`
	InputSchema     map[string]interface{} `json:"input_schema"`

	// WritesMemory marks tools that change stored memory.
	WritesMemory bool `json:"writes_memory,omitempty"`
}

// ToolResult is the outcome of one tool call.
type ToolResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ToolExecutor runs tool calls.
type ToolExecutor interface {
	Execute(ctx context.Context, toolName string, input json.RawMessage) (*ToolResult, error)
}
