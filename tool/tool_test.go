package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opscrew/opscrew/logging"
)

func stringParam(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(logging.NoOpLogger{})
}

func TestRegister_RejectsInvalidDescriptors(t *testing.T) {
	r := newTestRegistry(t)

	err := r.Register(Descriptor{Name: "", Handler: func(context.Context, map[string]any) (any, error) { return nil, nil }})
	assert.Error(t, err)

	err = r.Register(Descriptor{Name: "x"})
	assert.Error(t, err)

	// required field not declared in properties
	err = r.Register(Descriptor{
		Name:    "x",
		Handler: func(context.Context, map[string]any) (any, error) { return nil, nil },
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{"missing"},
		},
	})
	assert.Error(t, err)
}

func TestRegister_LastWriteWins(t *testing.T) {
	r := newTestRegistry(t)
	h := func(context.Context, map[string]any) (any, error) { return "ok", nil }

	require.NoError(t, r.Register(Descriptor{Name: "greet", Description: "old", Handler: h}))
	require.NoError(t, r.Register(Descriptor{Name: "greet", Description: "new", Handler: h}))

	assert.Equal(t, []string{"greet"}, r.Names())
	assert.Contains(t, r.Describe(), "new")
	assert.NotContains(t, r.Describe(), "old")
}

func TestDescribe_RendersSchema(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(Descriptor{
		Name:        "create_ticket",
		Description: "Create an IT support ticket",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"employee_id": stringParam("Employee identifier"),
				"category":    stringParam("Ticket category"),
			},
			"required": []string{"employee_id", "category"},
		},
		Handler: func(context.Context, map[string]any) (any, error) { return nil, nil },
	}))

	desc := r.Describe()
	assert.Contains(t, desc, "create_ticket(")
	assert.Contains(t, desc, "employee_id: string — Employee identifier")
	assert.Contains(t, desc, "Description: Create an IT support ticket")
}

func TestExecute_NotFound(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Execute(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestExecute_ValidatesArguments(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(Descriptor{
		Name: "t",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"a": map[string]any{"type": "string"}},
			"required":   []string{"a"},
		},
		Handler: func(context.Context, map[string]any) (any, error) { return "done", nil },
	}))

	// missing required
	_, err := r.Execute(context.Background(), "t", map[string]any{})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "a", vErr.Field)

	// unknown argument is rejected, not dropped
	_, err = r.Execute(context.Background(), "t", map[string]any{"a": "x", "bogus": 1})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "bogus", vErr.Field)

	// wrong type
	_, err = r.Execute(context.Background(), "t", map[string]any{"a": 42})
	assert.ErrorAs(t, err, &vErr)
}

func TestExecute_WrapsPlainResults(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(Descriptor{
		Name:    "sum",
		Handler: func(context.Context, map[string]any) (any, error) { return 5.0, nil },
	}))

	result, err := r.Execute(context.Background(), "sum", nil)
	require.NoError(t, err)
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, 5.0, result["result"])
}

func TestExecute_PassesThroughStructuredResults(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(Descriptor{
		Name: "structured",
		Handler: func(context.Context, map[string]any) (any, error) {
			return map[string]any{"status": "success", "ticket_id": "TKT1"}, nil
		},
	}))

	result, err := r.Execute(context.Background(), "structured", nil)
	require.NoError(t, err)
	assert.Equal(t, "TKT1", result["ticket_id"])
}

func TestExecute_WrapsHandlerErrors(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(Descriptor{
		Name:    "boom",
		Handler: func(context.Context, map[string]any) (any, error) { return nil, errors.New("db offline") },
	}))

	_, err := r.Execute(context.Background(), "boom", nil)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "db offline", toolErr.Message)
}
