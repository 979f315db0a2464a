package tools

// Schema is a JSON Schema fragment. It is assignable to
// core.ToolDefinition.InputSchema.
type Schema = map[string]interface{}

// ObjectSchema creates an object schema with the given properties.
func ObjectSchema(properties map[string]Schema, required ...string) Schema {
	props := make(map[string]interface{}, len(properties))
	for name, p := range properties {
		props[name] = p
	}
	schema := Schema{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty creates a string property.
func StringProperty(description string) Schema {
	return Schema{
		"type":        "string",
		"description": description,
	}
}

// NumberProperty creates a number property bounded to [lo, hi].
func NumberProperty(description string, lo, hi float64) Schema {
	return Schema{
		"type":        "number",
		"description": description,
		"minimum":     lo,
		"maximum":     hi,
	}
}

// IntegerProperty creates an integer property.
func IntegerProperty(description string) Schema {
	return Schema{
		"type":        "integer",
		"description": description,
	}
}

// ArrayProperty creates an array property with the given item type.
func ArrayProperty(description string, items Schema) Schema {
	return Schema{
		"type":        "array",
		"description": description,
		"items":       items,
	}
}

// WithThought adds a thought parameter to an existing schema.
// If requireThought is true, "thought" is added to the required array.
func WithThought(schema Schema, requireThought bool) Schema {
	result := make(Schema, len(schema))
	for k, v := range schema {
		result[k] = v
	}

	props := make(map[string]interface{})
	if existing, ok := result["properties"].(map[string]interface{}); ok {
		for k, v := range existing {
			props[k] = v
		}
	}
	props["thought"] = StringProperty(
		"Why you are using this tool. For tools that change memory, explain what " +
			"is worth keeping and why.",
	)
	result["properties"] = props

	if requireThought {
		required, _ := result["required"].([]string)
		result["required"] = append(append([]string(nil), required...), "thought")
	}
	return result
}

// BuildSchemaWithThought creates an ObjectSchema and adds thought support in one call.
func BuildSchemaWithThought(properties map[string]Schema, requireThought bool, required ...string) Schema {
	return WithThought(ObjectSchema(properties, required...), requireThought)
}
