package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/gloom-ai/gloom-go/core"
	"github.com/gloom-ai/gloom-go/memory"
)

// Memory tool names.
const (
	ToolRemember        = "remember"
	ToolRecall          = "recall"
	ToolRecallSession   = "recall_session"
	ToolRelateConcepts  = "relate_concepts"
	ToolRelatedConcepts = "related_concepts"
)

const (
	defaultConceptKind   = "topic"
	defaultRecallResults = 5
)

var (
	// ErrUnknownTool is returned by Execute for names it does not serve.
	ErrUnknownTool = errors.New("tools: unknown tool")

	// ErrInvalidInput marks tool input that failed validation. It is
	// reported in ToolResult.Error rather than returned.
	ErrInvalidInput = errors.New("invalid input")
)

// MemoryToolDefinitions returns the definitions for the memory tools.
func MemoryToolDefinitions() []core.ToolDefinition {
	return []core.ToolDefinition{
		// Read operations (thought optional)
		{
			ToolName:        ToolRecall,
			ToolDescription: "Recall stored memories relevant to a query, most relevant first.",
			InputSchema: BuildSchemaWithThought(map[string]Schema{
				"query": StringProperty("What to look for"),
				"limit": IntegerProperty("Maximum memories to return (default: 5)"),
			}, false, "query"),
		},
		{
			ToolName:        ToolRecallSession,
			ToolDescription: "Recall everything remembered during one conversation session, oldest first.",
			InputSchema: BuildSchemaWithThought(map[string]Schema{
				"session_id": StringProperty("The session to recall"),
			}, false, "session_id"),
		},
		{
			ToolName:        ToolRelatedConcepts,
			ToolDescription: "List the concepts linked from a concept, strongest link first.",
			InputSchema: BuildSchemaWithThought(map[string]Schema{
				"name":         StringProperty("Concept to start from"),
				"kind":         StringProperty("Kind of concept (default: topic). Use 'action' for recorded tool calls."),
				"min_strength": NumberProperty("Ignore links weaker than this", 0, 1),
				"limit":        IntegerProperty("Maximum concepts to return (default: 5)"),
			}, false, "name"),
		},

		// Write operations (thought required)
		{
			ToolName:        ToolRemember,
			ToolDescription: "Store a fact worth keeping across conversations.",
			WritesMemory:    true,
			InputSchema: BuildSchemaWithThought(map[string]Schema{
				"content":    StringProperty("The fact to remember"),
				"importance": NumberProperty("How important the fact is (default: 0.5)", 0, 1),
				"tags":       ArrayProperty("Optional labels", StringProperty("A label")),
			}, true, "content"),
		},
		{
			ToolName:        ToolRelateConcepts,
			ToolDescription: "Link one concept to another with a strength between 0 and 1. Linking again replaces the strength.",
			WritesMemory:    true,
			InputSchema: BuildSchemaWithThought(map[string]Schema{
				"from":     StringProperty("Source concept"),
				"to":       StringProperty("Target concept"),
				"kind":     StringProperty("Kind of both concepts (default: topic)"),
				"strength": NumberProperty("Link strength", 0, 1),
			}, true, "from", "to", "strength"),
		},
	}
}

// MemoryExecutor serves the memory tools for one owner.
type MemoryExecutor struct {
	manager *memory.TieredManager
	ownerID string
	logger  *zap.Logger
}

var _ core.ToolExecutor = (*MemoryExecutor)(nil)

// NewMemoryExecutor creates an executor reading and writing ownerID's memory.
func NewMemoryExecutor(manager *memory.TieredManager, ownerID string, logger *zap.Logger) *MemoryExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryExecutor{manager: manager, ownerID: ownerID, logger: logger}
}

// Execute runs one memory tool call.
func (x *MemoryExecutor) Execute(ctx context.Context, toolName string, input json.RawMessage) (*core.ToolResult, error) {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	if !gjson.ValidBytes(input) {
		return failure(fmt.Errorf("%w: malformed json", ErrInvalidInput)), nil
	}
	args := gjson.ParseBytes(input)

	x.logger.Debug("memory tool call",
		zap.String("tool", toolName),
		zap.String("owner", x.ownerID),
		zap.String("thought", args.Get("thought").String()))

	var (
		data interface{}
		err  error
	)
	switch toolName {
	case ToolRemember:
		data, err = x.remember(ctx, args)
	case ToolRecall:
		data, err = x.recall(ctx, args)
	case ToolRecallSession:
		data, err = x.recallSession(args)
	case ToolRelateConcepts:
		data, err = x.relate(args)
	case ToolRelatedConcepts:
		data, err = x.related(args)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, toolName)
	}
	if err != nil {
		x.logger.Warn("memory tool failed", zap.String("tool", toolName), zap.Error(err))
		return failure(err), nil
	}
	return &core.ToolResult{Success: true, Data: data}, nil
}

func (x *MemoryExecutor) remember(ctx context.Context, args gjson.Result) (interface{}, error) {
	if err := requireThought(args); err != nil {
		return nil, err
	}
	content, err := requiredString(args, "content")
	if err != nil {
		return nil, err
	}
	importance := 0.5
	if v := args.Get("importance"); v.Exists() {
		importance = v.Float()
	}
	var tags []string
	for _, t := range args.Get("tags").Array() {
		tags = append(tags, t.String())
	}

	e, err := x.manager.Remember(ctx, x.ownerID, content, importance, tags...)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": e.ID, "importance": e.Importance}, nil
}

func (x *MemoryExecutor) recall(ctx context.Context, args gjson.Result) (interface{}, error) {
	query, err := requiredString(args, "query")
	if err != nil {
		return nil, err
	}
	limit := intOr(args, "limit", defaultRecallResults)

	entries, err := x.manager.Recall(ctx, x.ownerID, query, limit)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"memories": summarize(entries)}, nil
}

func (x *MemoryExecutor) recallSession(args gjson.Result) (interface{}, error) {
	sessionID, err := requiredString(args, "session_id")
	if err != nil {
		return nil, err
	}
	entries, ok := x.manager.SessionEntries(x.ownerID, sessionID)
	if !ok {
		return nil, fmt.Errorf("no memories for session %s", sessionID)
	}
	return map[string]interface{}{"session_id": sessionID, "memories": summarize(entries)}, nil
}

func (x *MemoryExecutor) relate(args gjson.Result) (interface{}, error) {
	if err := requireThought(args); err != nil {
		return nil, err
	}
	from, err := requiredString(args, "from")
	if err != nil {
		return nil, err
	}
	to, err := requiredString(args, "to")
	if err != nil {
		return nil, err
	}
	strength := args.Get("strength")
	if !strength.Exists() {
		return nil, fmt.Errorf("%w: strength is required", ErrInvalidInput)
	}
	kind := stringOr(args, "kind", defaultConceptKind)

	if !x.manager.Relate(kind, from, to, strength.Float()) {
		return nil, fmt.Errorf("could not link %s to %s", from, to)
	}
	return map[string]interface{}{"from": from, "to": to, "kind": kind}, nil
}

func (x *MemoryExecutor) related(args gjson.Result) (interface{}, error) {
	name, err := requiredString(args, "name")
	if err != nil {
		return nil, err
	}
	kind := stringOr(args, "kind", defaultConceptKind)
	limit := intOr(args, "limit", defaultRecallResults)

	names := x.manager.Related(kind, name, args.Get("min_strength").Float(), limit)
	if names == nil {
		names = []string{}
	}
	return map[string]interface{}{"name": name, "related": names}, nil
}

// summarize keeps the fields an agent needs from an entry.
func summarize(entries []memory.Entry) []map[string]interface{} {
	out := make([]map[string]interface{}, len(entries))
	for i, e := range entries {
		out[i] = map[string]interface{}{
			"id":         e.ID,
			"content":    e.Content,
			"importance": e.Importance,
			"timestamp":  e.Timestamp,
		}
	}
	return out
}

func failure(err error) *core.ToolResult {
	return &core.ToolResult{Success: false, Error: err.Error()}
}

func requireThought(args gjson.Result) error {
	if args.Get("thought").String() == "" {
		return fmt.Errorf("%w: thought is required for tools that change memory", ErrInvalidInput)
	}
	return nil
}

func requiredString(args gjson.Result, field string) (string, error) {
	v := args.Get(field)
	if v.Type != gjson.String || v.String() == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidInput, field)
	}
	return v.String(), nil
}

func stringOr(args gjson.Result, field, fallback string) string {
	if v := args.Get(field); v.Type == gjson.String && v.String() != "" {
		return v.String()
	}
	return fallback
}

func intOr(args gjson.Result, field string, fallback int) int {
	if v := args.Get(field); v.Exists() && v.Int() > 0 {
		return int(v.Int())
	}
	return fallback
}
