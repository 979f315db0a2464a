package memory

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gloom-ai/gloom-go/core"
)

// Tags and metadata keys written by the Manager.
const (
	TagTrace        = "trace"
	TagConversation = "conversation"
	TagFailed       = "failed"

	MetaOwner   = "owner"
	MetaSession = "session"
	MetaAction  = "action"
	MetaSuccess = "success"
)

// OwnerTag is the tag marking an entry as belonging to ownerID.
func OwnerTag(ownerID string) string {
	return "owner:" + ownerID
}

// NewEntry creates an entry with a fresh id.
func NewEntry(content string, importance float64, tags ...string) Entry {
	return Entry{
		ID:         uuid.New().String(),
		Content:    content,
		Tags:       tags,
		Importance: importance,
	}
}

// NewTraceEntry converts an agent trace into an entry. Importance is assessed
// from the trace outcome.
func NewTraceEntry(ownerID, sessionID string, trace *core.Trace) Entry {
	metadata := map[string]string{
		MetaOwner:   ownerID,
		MetaSession: sessionID,
		MetaAction:  trace.Action,
		MetaSuccess: fmt.Sprintf("%t", trace.Success),
	}
	for k, v := range trace.Metadata {
		if _, reserved := metadata[k]; !reserved {
			metadata[k] = v
		}
	}

	tags := []string{TagTrace, OwnerTag(ownerID), "action:" + trace.Action}
	if !trace.Success {
		tags = append(tags, TagFailed)

		failure := ClassifyFailure(trace.Observation)
		metadata[MetaFailure] = failure
		if metadata[MetaPrevention] == "" {
			metadata[MetaPrevention] = Prevention(trace.Action, failure)
		}
	}

	e := NewEntry(traceContent(trace), assessTraceImportance(trace), tags...)
	e.Metadata = metadata
	return e
}

// NewConversationEntry stores an exchange that involved no tool call.
func NewConversationEntry(ownerID, sessionID, userMessage, response string) Entry {
	e := NewEntry(
		fmt.Sprintf("User: %s\nAssistant: %s", userMessage, response),
		0.4,
		TagConversation, OwnerTag(ownerID),
	)
	e.Metadata = map[string]string{
		MetaOwner:   ownerID,
		MetaSession: sessionID,
	}
	return e
}

// traceContent is the text that gets embedded and substring-searched.
func traceContent(t *core.Trace) string {
	return fmt.Sprintf("Thought: %s\nAction: %s\nObservation: %s",
		t.Thought, t.Action, t.Observation)
}

// assessTraceImportance scores a trace in [0.0-1.0].
func assessTraceImportance(trace *core.Trace) float64 {
	importance := 0.5

	// Failures are worth learning from
	if !trace.Success {
		importance += 0.3
	}

	if trace.Metadata["confirmed"] == "true" {
		importance += 0.2
	}

	// Long thoughts indicate real reasoning
	if len(trace.Thought) > 50 {
		importance += 0.1
	}

	return clamp01(importance)
}

// FormatEntry renders an entry for prompt injection within ctx.MaxLength.
func FormatEntry(e Entry, ctx FormatContext) string {
	maxLen := ctx.MaxLength
	if maxLen <= 0 {
		maxLen = 500
	}

	if !e.HasTag(TagTrace) {
		return truncate(strings.ReplaceAll(e.Content, "\n", " | "), maxLen)
	}

	status := "Success"
	if e.Metadata[MetaSuccess] == "false" {
		status = "Failed"
	}
	parts := []string{fmt.Sprintf("[%s] %s", status, e.Metadata[MetaAction])}

	for _, line := range strings.Split(e.Content, "\n") {
		switch {
		case strings.HasPrefix(line, "Thought: ") && len(line) > len("Thought: "):
			parts = append(parts, fmt.Sprintf("  Thought: %q", truncate(strings.TrimPrefix(line, "Thought: "), maxLen/4)))
		case strings.HasPrefix(line, "Observation: ") && len(line) > len("Observation: "):
			parts = append(parts, fmt.Sprintf("  Observation: %q", truncate(strings.TrimPrefix(line, "Observation: "), maxLen/2)))
		}
	}

	if status == "Failed" {
		if prevention, ok := e.Metadata[MetaPrevention]; ok {
			parts = append(parts, "  Prevention: "+prevention)
		}
	}
	return strings.Join(parts, "\n")
}

// truncate shortens s to maxLen, ending in "..." when cut.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
