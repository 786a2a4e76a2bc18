package goal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opscrew/opscrew/core"
)

func TestIsGoalMet_NilBeforeMeasurement(t *testing.T) {
	tr := NewTracker()
	tr.SetGoal("IT Agent", "Open tickets", 5, "count", core.DirectionLower)

	assert.Nil(t, tr.IsGoalMet("IT Agent", "Open tickets"))
	assert.Nil(t, tr.IsGoalMet("IT Agent", "no such goal"))
}

func TestIsGoalMet_DirectionSemantics(t *testing.T) {
	tr := NewTracker()
	tr.SetGoal("IT Agent", "Open tickets", 5, "count", core.DirectionLower)
	tr.SetGoal("IT Agent", "Provisioning SLA", 100, "%", core.DirectionHigher)

	tr.RecordMetric("IT Agent", "Open tickets", 3)
	met := tr.IsGoalMet("IT Agent", "Open tickets")
	require.NotNil(t, met)
	assert.True(t, *met)

	tr.RecordMetric("IT Agent", "Open tickets", 7)
	met = tr.IsGoalMet("IT Agent", "Open tickets")
	require.NotNil(t, met)
	assert.False(t, *met)

	tr.RecordMetric("IT Agent", "Provisioning SLA", 100)
	met = tr.IsGoalMet("IT Agent", "Provisioning SLA")
	require.NotNil(t, met)
	assert.True(t, *met)
}

func TestSetGoal_UpsertKeepsActual(t *testing.T) {
	tr := NewTracker()
	tr.SetGoal("Finance Agent", "Budget variance", 5, "%", core.DirectionLower)
	tr.RecordMetric("Finance Agent", "Budget variance", 4)

	tr.SetGoal("Finance Agent", "Budget variance", 3, "%", core.DirectionLower)
	goals := tr.AgentPerformance("Finance Agent")
	require.Len(t, goals, 1)
	assert.Equal(t, 3.0, goals[0].Target)
	require.NotNil(t, goals[0].Actual)
	assert.Equal(t, 4.0, *goals[0].Actual)
}

func TestRecordMetric_UnknownGoalNoOp(t *testing.T) {
	tr := NewTracker()
	tr.SetGoal("HR Agent", "Time-to-hire", 7, "days", core.DirectionLower)
	tr.RecordMetric("HR Agent", "not a goal", 1)

	goals := tr.AgentPerformance("HR Agent")
	require.Len(t, goals, 1)
	assert.Nil(t, goals[0].Actual)
}

func TestAll_ReturnsCopies(t *testing.T) {
	tr := NewTracker()
	tr.SetGoal("HR Agent", "Time-to-hire", 7, "days", core.DirectionLower)

	all := tr.All()
	all["HR Agent"][0].Target = 99
	assert.Equal(t, 7.0, tr.AgentPerformance("HR Agent")[0].Target)
}
