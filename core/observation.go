package core

import (
	"encoding/json"
	"fmt"
)

// FormatObservation renders a tool call outcome as the Observation of a
// trace.
func FormatObservation(result *ToolResult, err error) string {
	if err != nil {
		return fmt.Sprintf("Error: %s", err.Error())
	}
	if result == nil {
		return "No result returned"
	}
	if !result.Success {
		return fmt.Sprintf("Failed: %s", result.Error)
	}

	switch v := result.Data.(type) {
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
		if status, ok := v["status"].(string); ok {
			return fmt.Sprintf("Success: %s", status)
		}
		bytes, _ := json.Marshal(v)
		return string(bytes)
	case string:
		return v
	case nil:
		return "Success"
	default:
		return fmt.Sprintf("Success: %v", v)
	}
}

// TraceOf builds the trace of one tool call.
func TraceOf(sessionID, toolName, thought string, result *ToolResult, err error) *Trace {
	return &Trace{
		SessionID:   sessionID,
		Thought:     thought,
		Action:      toolName,
		Observation: FormatObservation(result, err),
		Success:     err == nil && result != nil && result.Success,
	}
}
