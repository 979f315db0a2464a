package tools

import "github.com/gloom-ai/gloom-go/core"

// Typed inputs for callers that build memory tool calls in Go. Each
// marshals to the JSON its tool's schema describes.

type RememberInput struct {
	core.BaseInput
	Content    string   `json:"content"`
	Importance float64  `json:"importance,omitempty"` // 0 means 0.5
	Tags       []string `json:"tags,omitempty"`
}

type RecallInput struct {
	core.BaseInput
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type RecallSessionInput struct {
	core.BaseInput
	SessionID string `json:"session_id"`
}

type RelateConceptsInput struct {
	core.BaseInput
	From     string  `json:"from"`
	To       string  `json:"to"`
	Kind     string  `json:"kind,omitempty"`
	Strength float64 `json:"strength"`
}

type RelatedConceptsInput struct {
	core.BaseInput
	Name        string  `json:"name"`
	Kind        string  `json:"kind,omitempty"`
	MinStrength float64 `json:"min_strength,omitempty"`
	Limit       int     `json:"limit,omitempty"`
}
