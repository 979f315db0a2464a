package core

// BaseInput provides common fields for all tool inputs.
// Memory tools embed it so an agent can explain why it stores or recalls.
type BaseInput struct {
	// Thought is the agent's reasoning for the call. Required for tools that
	// write memory, optional for tools that only read it.
	Thought string `json:"thought,omitempty"`
}
