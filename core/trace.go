package core

import (
	"fmt"
	"time"
)

// Trace is one Thought-Action-Observation cycle of an agent.
type Trace struct {
	SessionID   string            `json:"session_id"`
	Thought     string            `json:"thought"`
	Action      string            `json:"action"`
	Observation string            `json:"observation"`
	Success     bool              `json:"success"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// String renders the trace on one line for logs.
func (t *Trace) String() string {
	status := "ok"
	if !t.Success {
		status = "failed"
	}
	return fmt.Sprintf("session=%s action=%s status=%s", t.SessionID, t.Action, status)
}
