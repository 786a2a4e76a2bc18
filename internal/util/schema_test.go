package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaveSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"employee_id": map[string]any{"type": "string"},
			"days":        map[string]any{"type": "integer"},
			"amount":      map[string]any{"type": "number"},
			"urgent":      map[string]any{"type": "boolean"},
		},
		"required": []string{"employee_id", "days"},
	}
}

func TestCheckSchema(t *testing.T) {
	assert.NoError(t, CheckSchema(leaveSchema()))

	err := CheckSchema(nil)
	require.Error(t, err)

	err = CheckSchema(map[string]any{"type": "array"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "type", ve.Field)

	err = CheckSchema(map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "string"}},
		"required":   []string{"a", "b"},
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "b", ve.Field)
}

func TestValidateArguments(t *testing.T) {
	schema := leaveSchema()

	assert.NoError(t, ValidateArguments(map[string]any{
		"employee_id": "EMP001",
		"days":        float64(3), // JSON numbers decode as float64
		"amount":      12.5,
		"urgent":      true,
	}, schema))

	var ve *ValidationError

	err := ValidateArguments(map[string]any{"employee_id": "EMP001"}, schema)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "days", ve.Field)
	assert.Contains(t, ve.Error(), "missing")

	err = ValidateArguments(map[string]any{
		"employee_id": "EMP001",
		"days":        2,
		"reason":      "vacation",
	}, schema)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "reason", ve.Field)
	assert.Contains(t, ve.Error(), "unknown field")

	err = ValidateArguments(map[string]any{
		"employee_id": "EMP001",
		"days":        2.5,
	}, schema)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "days", ve.Field)

	err = ValidateArguments(map[string]any{
		"employee_id": 42,
		"days":        2,
	}, schema)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "employee_id", ve.Field)
}

func TestValidateArguments_RequiredFromDecodedJSON(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
		"required": []any{"name"},
	}
	assert.NoError(t, ValidateArguments(map[string]any{"name": "x"}, schema))
	assert.Error(t, ValidateArguments(map[string]any{}, schema))
}
