package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatObservation(t *testing.T) {
	tests := []struct {
		name   string
		result *ToolResult
		err    error
		want   string
	}{
		{"error", nil, errors.New("boom"), "Error: boom"},
		{"nil result", nil, nil, "No result returned"},
		{"failure", &ToolResult{Error: "insufficient funds"}, nil, "Failed: insufficient funds"},
		{"message", &ToolResult{Success: true, Data: map[string]interface{}{"message": "done"}}, nil, "done"},
		{"status", &ToolResult{Success: true, Data: map[string]interface{}{"status": "queued"}}, nil, "Success: queued"},
		{"map", &ToolResult{Success: true, Data: map[string]interface{}{"n": 1}}, nil, `{"n":1}`},
		{"string", &ToolResult{Success: true, Data: "plain"}, nil, "plain"},
		{"no data", &ToolResult{Success: true}, nil, "Success"},
		{"other", &ToolResult{Success: true, Data: 42}, nil, "Success: 42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatObservation(tt.result, tt.err))
		})
	}
}

func TestTraceOf(t *testing.T) {
	ok := TraceOf("s1", "recall", "looking", &ToolResult{Success: true, Data: "x"}, nil)
	assert.True(t, ok.Success)
	assert.Equal(t, "recall", ok.Action)
	assert.Equal(t, "s1", ok.SessionID)

	failed := TraceOf("s1", "recall", "", &ToolResult{Error: "bad"}, nil)
	assert.False(t, failed.Success)
	assert.Equal(t, "Failed: bad", failed.Observation)

	assert.Equal(t, "session=s1 action=recall status=failed", failed.String())
}
