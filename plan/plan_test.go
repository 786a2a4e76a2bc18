package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_WellFormed(t *testing.T) {
	raw := `Here is my plan:
{
  "reasoning": "user wants a ticket",
  "confidence": 0.85,
  "steps": [{"tool": "create_ticket", "parameters": {"employee_id": "E1", "category": "Hardware"}}]
}`
	p, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "user wants a ticket", p.Reasoning)
	assert.Equal(t, 0.85, p.Confidence)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "create_ticket", p.Steps[0].Tool)
	assert.Equal(t, "E1", p.Steps[0].Parameters["employee_id"])
}

func TestDecode_DefaultsMissingFields(t *testing.T) {
	p, err := Decode(`{"direct_response": "Hello!"}`)
	require.NoError(t, err)
	assert.Equal(t, DefaultReasoning, p.Reasoning)
	assert.Equal(t, DefaultConfidence, p.Confidence)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, NoToolNeeded, p.Steps[0].Tool)
	assert.Equal(t, "Hello!", p.DirectResponse)
}

func TestDecode_ZeroConfidenceIsNotDefaulted(t *testing.T) {
	p, err := Decode(`{"reasoning": "unclear", "confidence": 0.0}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Confidence)
}

func TestDecode_RepairsMalformedJSON(t *testing.T) {
	// Trailing comma plus single quotes: invalid JSON that jsonrepair fixes.
	raw := `{'reasoning': 'fix it', 'confidence': 0.9, 'steps': [],}`
	p, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "fix it", p.Reasoning)
	assert.Equal(t, 0.9, p.Confidence)
}

func TestDecode_NoObject(t *testing.T) {
	_, err := Decode("I cannot help with that.")
	require.Error(t, err)
	var de *DecodeError
	assert.ErrorAs(t, err, &de)
}

func TestDecode_EmptyInput(t *testing.T) {
	_, err := Decode("")
	assert.Error(t, err)
}
