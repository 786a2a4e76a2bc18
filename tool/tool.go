// Package tool implements the per-agent tool registry: named, schema
// described operations an agent can invoke autonomously. Descriptors carry
// an explicit parameter schema validated at registration time; at execution
// time unknown or missing required arguments fail with a typed validation
// error instead of being silently dropped.
package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/opscrew/opscrew/internal/util"
	"github.com/opscrew/opscrew/logging"
)

// ErrToolNotFound is returned by Execute when the tool name is not
// registered.
var ErrToolNotFound = errors.New("tool not found")

// ValidationError is the typed argument validation failure.
type ValidationError = util.ValidationError

// ToolError wraps failures that occur while executing a tool, with a code
// for categorization.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Error codes used by Registry.Execute.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// Handler is the implementation behind a tool. It receives already
// validated arguments and may return any JSON-serializable value; non-map
// results are wrapped by Execute.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Descriptor declares one tool: unique name, a description shown to the
// planner, a minimal JSON-schema parameter map (type/properties/required),
// the handler, and whether the tool needs a caller identity to act.
type Descriptor struct {
	Name             string
	Description      string
	Parameters       map[string]any
	Handler          Handler
	RequiresIdentity bool
}

// Registry maps tool names to descriptors for one agent. Registration
// order is preserved for Describe and Names; re-registering a name
// overwrites the prior descriptor (last write wins).
type Registry struct {
	order  []string
	tools  map[string]Descriptor
	logger logging.Logger
}

// NewRegistry creates an empty registry. A nil logger defaults to
// slog.Default().
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Registry{tools: map[string]Descriptor{}, logger: logger}
}

// Register adds or overwrites a descriptor. The parameter schema is
// checked here so a malformed tool fails at construction, not mid-plan.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return &ValidationError{Field: "name", Message: "tool name must not be empty"}
	}
	if d.Handler == nil {
		return &ValidationError{Field: "handler", Message: "tool handler must not be nil"}
	}
	if d.Parameters == nil {
		d.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	if err := util.CheckSchema(d.Parameters); err != nil {
		return fmt.Errorf("tool %s: %w", d.Name, err)
	}
	if _, exists := r.tools[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	}
	r.tools[d.Name] = d
	return nil
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns the descriptor for name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.tools[name]
	return d, ok
}

// Describe renders all descriptors as a single text block for the planning
// prompt. This is the only channel through which the planner discovers
// what the agent can do.
func (r *Registry) Describe() string {
	var b strings.Builder
	for i, name := range r.order {
		if i > 0 {
			b.WriteString("\n")
		}
		d := r.tools[name]
		b.WriteString(fmt.Sprintf("- %s(%s)\n  Description: %s", d.Name, describeParams(d.Parameters), d.Description))
	}
	return b.String()
}

func describeParams(schema map[string]any) string {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return ""
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		prop, _ := props[name].(map[string]any)
		typ, _ := prop["type"].(string)
		if desc, _ := prop["description"].(string); desc != "" {
			parts = append(parts, fmt.Sprintf("%s: %s — %s", name, typ, desc))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", name, typ))
		}
	}
	return strings.Join(parts, ", ")
}

// Execute looks up and runs a tool. Arguments are validated against the
// declared schema first. Non-map handler results are wrapped as
// {"status": "success", "result": v}. Handler errors are returned to the
// caller; the control loop decides how to record them.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	d, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := util.ValidateArguments(args, d.Parameters); err != nil {
		r.logger.Warn("tool argument validation failed", "tool", name, "error", err)
		return nil, err
	}

	result, err := d.Handler(ctx, args)
	if err != nil {
		r.logger.Error("tool execution failed", "tool", name, "error", err)
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}
		return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeExecution}
	}

	if m, ok := result.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{"status": "success", "result": result}, nil
}
