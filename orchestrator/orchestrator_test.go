package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opscrew/opscrew/agent"
	"github.com/opscrew/opscrew/bus"
	"github.com/opscrew/opscrew/core"
	"github.com/opscrew/opscrew/logging"
	"github.com/opscrew/opscrew/model"
	"github.com/opscrew/opscrew/tool"
)

type stubCapability struct {
	name string
	caps []string
}

func (s *stubCapability) Name() string { return s.name }

func (s *stubCapability) Capabilities() []string { return s.caps }

func (s *stubCapability) HandleEvent(string, map[string]any) {}

func stubRuntime(name string, caps []string, svc model.Service) *agent.Runtime {
	registry := tool.NewRegistry(logging.NoOpLogger{})
	return agent.New(&stubCapability{name: name, caps: caps}, registry, svc, agent.WithLogger(logging.NoOpLogger{}))
}

func newOrchestrator(svc model.Service) *Orchestrator {
	o := New(svc, bus.New(bus.WithLogger(logging.NoOpLogger{})), WithLogger(logging.NoOpLogger{}))
	o.RegisterAgent("hr", stubRuntime("HR Agent", []string{"leave", "onboarding"}, svc))
	o.RegisterAgent("support", stubRuntime("IT Agent", []string{"tickets", "access"}, svc))
	return o
}

func TestRouteTask_MatchesKeyInReply(t *testing.T) {
	mock := model.NewMock()
	mock.AddResponse("Route the following task", "support, since this is about a broken laptop")
	o := newOrchestrator(mock)

	route := o.RouteTask(context.Background(), "my laptop will not boot")
	assert.Equal(t, "support", route.AgentKey)
	assert.Contains(t, route.Reasoning, "broken laptop")
}

func TestRouteTask_UnrecognizedReplyUsesFallback(t *testing.T) {
	mock := model.NewMock()
	mock.AddResponse("Route the following task", "none of these seem to fit")
	o := newOrchestrator(mock)

	route := o.RouteTask(context.Background(), "do something")
	assert.Equal(t, "hr", route.AgentKey) // first registered agent
}

func TestRouteTask_ModelFailureUsesFallback(t *testing.T) {
	mock := model.NewMock()
	mock.Fail(errors.New("provider down"))
	o := newOrchestrator(mock)

	route := o.RouteTask(context.Background(), "anything")
	assert.Equal(t, "hr", route.AgentKey)
}

func TestDispatch_QueuesEscalations(t *testing.T) {
	mock := model.NewMock()
	mock.Fail(errors.New("provider down"))
	o := newOrchestrator(mock)

	resp, route := o.Dispatch(context.Background(), "please do a thing", nil)
	require.True(t, resp.Escalated)
	assert.Equal(t, "hr", route.AgentKey)

	escalations := o.Escalations()
	require.Len(t, escalations, 1)
	assert.Equal(t, "HR Agent", escalations[0].Agent)
	assert.Equal(t, "please do a thing", escalations[0].Request)
}

func TestExecuteWorkflow_UnknownNameLeavesNoRun(t *testing.T) {
	o := newOrchestrator(model.NewMock())

	_, err := o.ExecuteWorkflow(context.Background(), "nope", nil)
	require.ErrorIs(t, err, ErrUnknownWorkflow)
	assert.Empty(t, o.Active())
	assert.Empty(t, o.Completed())
}

func TestExecuteWorkflow_CompletedRunRetainsSteps(t *testing.T) {
	o := newOrchestrator(model.NewMock())
	o.RegisterWorkflow("two_step", func(_ context.Context, run *core.WorkflowRun, _ map[string]any) (map[string]any, error) {
		run.LogStep("first", "HR Agent", "completed")
		run.LogStep("second", "IT Agent", "completed")
		return map[string]any{"done": true}, nil
	})

	result, err := o.ExecuteWorkflow(context.Background(), "two_step", map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, true, result["done"])
	assert.NotEmpty(t, result["workflow_id"])

	assert.Empty(t, o.Active())
	completed := o.Completed()
	require.Len(t, completed, 1)
	run := completed[0]
	assert.Equal(t, core.WorkflowCompleted, run.Status)
	assert.Equal(t, result["workflow_id"], run.ID)
	require.Len(t, run.Steps, 2)
	assert.Equal(t, "first", run.Steps[0].Name)
	assert.NotNil(t, run.CompletedAt)
}

func TestExecuteWorkflow_HandlerErrorMarksRunFailed(t *testing.T) {
	o := newOrchestrator(model.NewMock())
	o.RegisterWorkflow("doomed", func(_ context.Context, run *core.WorkflowRun, _ map[string]any) (map[string]any, error) {
		run.LogStep("first", "HR Agent", "failed")
		return nil, errors.New("missing employee_id")
	})

	_, err := o.ExecuteWorkflow(context.Background(), "doomed", nil)
	require.Error(t, err)

	assert.Empty(t, o.Active())
	completed := o.Completed()
	require.Len(t, completed, 1)
	assert.Equal(t, core.WorkflowFailed, completed[0].Status)
	assert.Equal(t, "missing employee_id", completed[0].Error)
}

func TestExecuteWorkflow_CompletedHistoryIsBounded(t *testing.T) {
	o := New(model.NewMock(), bus.New(bus.WithLogger(logging.NoOpLogger{})),
		WithLogger(logging.NoOpLogger{}), WithCompletedCap(2))
	o.RegisterWorkflow("noop", func(_ context.Context, _ *core.WorkflowRun, params map[string]any) (map[string]any, error) {
		return map[string]any{"n": params["n"]}, nil
	})

	for i := 0; i < 5; i++ {
		_, err := o.ExecuteWorkflow(context.Background(), "noop", map[string]any{"n": i})
		require.NoError(t, err)
	}

	completed := o.Completed()
	require.Len(t, completed, 2)
	assert.Equal(t, 3, completed[0].Params["n"])
	assert.Equal(t, 4, completed[1].Params["n"])
}

func TestAgentStatuses_RegistrationOrder(t *testing.T) {
	o := newOrchestrator(model.NewMock())

	statuses := o.AgentStatuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "hr", statuses[0].Key)
	assert.Equal(t, "HR Agent", statuses[0].Name)
	assert.Equal(t, "support", statuses[1].Key)
}

func TestWorkflowNames_Sorted(t *testing.T) {
	o := newOrchestrator(model.NewMock())
	for _, name := range []string{"zeta", "alpha", "mid"} {
		o.RegisterWorkflow(name, func(_ context.Context, _ *core.WorkflowRun, _ map[string]any) (map[string]any, error) {
			return nil, nil
		})
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, o.WorkflowNames())
}
