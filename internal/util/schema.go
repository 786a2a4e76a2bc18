package util

import "fmt"

// ValidationError represents argument validation errors with detailed
// information about the offending field.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CheckSchema verifies that a parameter schema is structurally usable:
// object type, properties as a map of maps, required listing only declared
// properties. Called once at tool registration.
func CheckSchema(schema map[string]any) error {
	if schema == nil {
		return &ValidationError{Field: "schema", Message: "schema must not be nil"}
	}
	if t, _ := schema["type"].(string); t != "" && t != "object" {
		return &ValidationError{Field: "type", Value: t, Message: "top-level schema type must be object"}
	}
	props, err := schemaProperties(schema)
	if err != nil {
		return err
	}
	for _, name := range requiredFields(schema) {
		if _, ok := props[name]; !ok {
			return &ValidationError{Field: name, Message: "required field is not declared in properties"}
		}
	}
	return nil
}

// ValidateArguments validates args against a declared parameter schema.
// Missing required fields, unknown fields and type mismatches all fail
// with a *ValidationError; arguments are never silently dropped.
func ValidateArguments(args map[string]any, schema map[string]any) error {
	props, err := schemaProperties(schema)
	if err != nil {
		return err
	}

	for _, name := range requiredFields(schema) {
		if _, ok := args[name]; !ok {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	for name, value := range args {
		propSchema, ok := props[name]
		if !ok {
			return &ValidationError{Field: name, Value: value, Message: "unknown field"}
		}
		propMap, _ := propSchema.(map[string]any)
		expected, _ := propMap["type"].(string)
		if !typeMatches(value, expected) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expected, value),
			}
		}
	}
	return nil
}

func schemaProperties(schema map[string]any) (map[string]any, error) {
	raw, ok := schema["properties"]
	if !ok {
		return map[string]any{}, nil
	}
	props, ok := raw.(map[string]any)
	if !ok {
		return nil, &ValidationError{Field: "properties", Message: "properties must be an object"}
	}
	return props, nil
}

// requiredFields accepts both []string (hand-written schemas) and []any
// (schemas decoded from JSON).
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func typeMatches(value any, expected string) bool {
	if value == nil {
		return true
	}
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON numbers decode as float64
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
