package opscrew_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opscrew/opscrew"
	"github.com/opscrew/opscrew/agents"
	"github.com/opscrew/opscrew/config"
	"github.com/opscrew/opscrew/logging"
	"github.com/opscrew/opscrew/model"
	"github.com/opscrew/opscrew/store"
)

func newSystem(t *testing.T) (*opscrew.System, *model.Mock) {
	t.Helper()
	cfg := &config.Config{
		Provider:            "mock",
		EscalationThreshold: 0.6,
		LearningDir:         t.TempDir(),
		DataDir:             t.TempDir(),
		EventLogCap:         50,
		CompletedWorkflows:  5,
	}
	mock := model.NewMock()
	sys, err := opscrew.New(cfg, func(o *opscrew.Options) {
		o.Model = mock
		o.Store = store.NewMemoryStore()
		o.Logger = logging.NoOpLogger{}
	})
	require.NoError(t, err)
	t.Cleanup(func() { sys.Close() })
	return sys, mock
}

func TestSystem_OnboardThenLeaveRequest(t *testing.T) {
	sys, mock := newSystem(t)
	ctx := context.Background()

	result, err := sys.Orchestrator.ExecuteWorkflow(ctx, agents.WorkflowNewHire, map[string]any{
		"name":       "Ada Lovelace",
		"department": "Engineering",
		"position":   "Engineer",
	})
	require.NoError(t, err)
	empID := result["employee_id"].(string)
	require.Equal(t, "EMP001", empID)

	// onboarding fan-out ran over the bus
	assert.NotEmpty(t, sys.Bus.Recent(0))
	trainings, err := sys.Catalog.ListTrainings()
	require.NoError(t, err)
	assert.NotEmpty(t, trainings)

	mock.AddResponse("AVAILABLE TOOLS",
		`{"reasoning": "employee wants 3 casual leave days and has balance", "confidence": 0.9,
		  "steps": [{"tool": "process_leave_request", "parameters": {"employee_id": "EMP001", "leave_type": "casual", "days": 3}}]}`)
	mock.AddResponse("ACTIONS TAKEN", "Your 3 days of casual leave are approved.")

	resp := sys.Team.HR.ProcessRequest(ctx, "I need 3 days of casual leave", map[string]any{"employee_id": empID})
	assert.False(t, resp.Escalated)
	require.Len(t, resp.ActionsTaken, 1)
	assert.True(t, resp.ActionsTaken[0].Success)
	assert.Equal(t, 9, resp.ActionsTaken[0].Result["remaining_balance"])
	assert.Equal(t, "Your 3 days of casual leave are approved.", resp.Response)

	// every autonomous action left an audit entry
	trail, err := sys.Catalog.AuditTrail()
	require.NoError(t, err)
	assert.NotEmpty(t, trail)
}
