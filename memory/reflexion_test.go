package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gloom-ai/gloom-go/core"
)

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		observation string
		want        string
	}{
		{"", FailureUnknown},
		{"Error: Insufficient funds", FailureInsufficientFunds},
		{"recipient not found", FailureNotFound},
		{"malformed amount", FailureInvalidInput},
		{"403 Forbidden", FailurePermissionDenied},
		{"context deadline exceeded", FailureTimeout},
		{"too many requests", FailureRateLimit},
		{"connection reset by peer", FailureNetwork},
		{"something odd", FailureUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.observation, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFailure(tt.observation))
		})
	}
}

func TestFailedTraceGetsPrevention(t *testing.T) {
	e := NewTraceEntry("u", "s", &core.Trace{
		Action:      "send_money",
		Observation: "insufficient funds",
		Success:     false,
	})
	assert.Equal(t, FailureInsufficientFunds, e.Metadata[MetaFailure])
	assert.Equal(t, Prevention("send_money", FailureInsufficientFunds), e.Metadata[MetaPrevention])
	assert.Contains(t, FormatEntry(e, FormatContext{}), "Prevention: Check the available balance")

	custom := NewTraceEntry("u", "s", &core.Trace{
		Action:      "send_money",
		Observation: "insufficient funds",
		Metadata:    map[string]string{MetaPrevention: "ask for a smaller amount"},
	})
	assert.Equal(t, "ask for a smaller amount", custom.Metadata[MetaPrevention])
}
