package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opscrew/opscrew/bus"
	"github.com/opscrew/opscrew/core"
	"github.com/opscrew/opscrew/goal"
	"github.com/opscrew/opscrew/logging"
	"github.com/opscrew/opscrew/model"
	"github.com/opscrew/opscrew/orchestrator"
	"github.com/opscrew/opscrew/store"
)

func newDeps(t *testing.T) Deps {
	t.Helper()
	return Deps{
		Model:       model.NewMock(),
		Catalog:     store.NewCatalog(store.NewMemoryStore(), logging.NoOpLogger{}),
		Bus:         bus.New(bus.WithLogger(logging.NoOpLogger{})),
		Goals:       goal.NewTracker(),
		LearningDir: t.TempDir(),
		Logger:      logging.NoOpLogger{},
	}
}

func eventTypes(b *bus.Bus) []string {
	events := b.Recent(0)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

func TestOnboarding_EventChainProvisionsEverything(t *testing.T) {
	deps := newDeps(t)
	team := NewTeam(deps)

	result := team.hr.Onboard("Ada Lovelace", "", "Engineering", "Engineer")
	require.Equal(t, "success", result["status"])
	assert.Equal(t, "EMP001", result["employee_id"])
	assert.Equal(t, "ada.lovelace@opscrew.io", result["email"])

	// one HR action fans out to IT, Finance and Compliance over the bus
	types := eventTypes(deps.Bus)
	assert.Contains(t, types, EventEmployeeOnboarded)
	assert.Contains(t, types, EventAccessProvisioned)
	assert.Contains(t, types, EventPayrollSetupComplete)
	assert.Contains(t, types, EventComplianceVerified)

	trainings, err := deps.Catalog.ListTrainings()
	require.NoError(t, err)
	assert.Len(t, trainings, len(mandatoryTrainings))

	met := deps.Goals.IsGoalMet(ITAgentName, "Provisioning SLA")
	require.NotNil(t, met)
	assert.True(t, *met)
}

func TestHR_ProcessLeave(t *testing.T) {
	deps := newDeps(t)
	hr, _ := NewHR(deps)
	require.Equal(t, "success", hr.Onboard("Ada", "", "Eng", "Engineer")["status"])

	res := hr.ProcessLeave("EMP001", "casual", 3, "2026-09-01")
	assert.Equal(t, "success", res["status"])
	assert.Equal(t, 9, res["remaining_balance"])

	res = hr.ProcessLeave("EMP001", "earned", 12, "")
	assert.Equal(t, "pending_approval", res["status"])

	res = hr.ProcessLeave("EMP001", "sick", 99, "")
	assert.Equal(t, "error", res["status"])
	assert.Contains(t, res["message"], "insufficient")

	res = hr.ProcessLeave("EMP999", "casual", 1, "")
	assert.Equal(t, "error", res["status"])

	res = hr.ProcessLeave("EMP001", "sabbatical", 1, "")
	assert.Equal(t, "error", res["status"])
	assert.Contains(t, res["message"], "unknown leave type")
}

func TestIT_TicketLifecycle(t *testing.T) {
	deps := newDeps(t)
	it, _ := NewIT(deps)

	created := it.CreateTicket("EMP001", "Hardware", "laptop dead", "")
	require.Equal(t, "success", created["status"])
	ticketID := created["ticket_id"].(string)
	assert.Equal(t, "Medium", created["priority"])

	status := it.TicketStatus(ticketID)
	assert.Equal(t, "Open", status["ticket_status"])

	resolved := it.ResolveTicket(ticketID, "replaced battery")
	assert.Equal(t, "success", resolved["status"])
	assert.Equal(t, "error", it.ResolveTicket(ticketID, "again")["status"])

	status = it.TicketStatus(ticketID)
	assert.Equal(t, "Resolved", status["ticket_status"])
	assert.Equal(t, "replaced battery", status["resolution"])

	assert.Equal(t, "error", it.TicketStatus("TKT-MISSING")["status"])
}

func TestIT_UpdateGoalsRecomputesOpenTickets(t *testing.T) {
	deps := newDeps(t)
	it, _ := NewIT(deps)
	it.CreateTicket("EMP001", "Hardware", "x", "")
	it.CreateTicket("EMP001", "Software", "y", "")

	it.UpdateGoals([]core.ActionResult{{Tool: "create_ticket", Success: true}})

	goals := deps.Goals.AgentPerformance(ITAgentName)
	for _, g := range goals {
		if g.Name == "Open tickets" {
			require.NotNil(t, g.Actual)
			assert.Equal(t, 2.0, *g.Actual)
			return
		}
	}
	t.Fatal("Open tickets goal not found")
}

func TestFinance_ExpenseApprovalLimit(t *testing.T) {
	deps := newDeps(t)
	hr, _ := NewHR(deps)
	fin, _ := NewFinance(deps)
	require.Equal(t, "success", hr.Onboard("Ada", "", "Eng", "Engineer")["status"])

	small := fin.SubmitExpense("EMP001", "Meals", 120.50, "team lunch")
	require.Equal(t, "success", small["status"])
	assert.Equal(t, "Approved", small["expense_status"])

	large := fin.SubmitExpense("EMP001", "Travel", 8000, "conference")
	require.Equal(t, "success", large["status"])
	assert.Equal(t, "Pending", large["expense_status"])

	approved := fin.ApproveExpense(large["expense_id"].(string), "CFO")
	assert.Equal(t, "success", approved["status"])
	assert.Equal(t, "error", fin.ApproveExpense(large["expense_id"].(string), "")["status"])

	status := fin.ExpenseStatus(large["expense_id"].(string))
	assert.Equal(t, "Approved", status["expense_status"])
	assert.Equal(t, "CFO", status["approved_by"])

	assert.Equal(t, "error", fin.SubmitExpense("EMP001", "Other", -5, "")["status"])
	assert.Equal(t, "error", fin.SubmitExpense("EMP999", "Other", 10, "")["status"])
}

func TestCompliance_ViolationsAndAudit(t *testing.T) {
	deps := newDeps(t)
	comp, _ := NewCompliance(deps)

	reported := comp.ReportViolation("EMP001", "Data", "unencrypted export", "")
	require.Equal(t, "success", reported["status"])
	assert.Equal(t, "Medium", reported["severity"])

	// the violation_detected event refreshes the KPI
	goals := deps.Goals.AgentPerformance(ComplianceAgentName)
	var open *float64
	for _, g := range goals {
		if g.Name == "Policy violations" {
			open = g.Actual
		}
	}
	require.NotNil(t, open)
	assert.Equal(t, 1.0, *open)

	audit := comp.RunAudit()
	assert.Equal(t, 1, audit["open_violations"])

	resolved := comp.ResolveViolation(reported["violation_id"].(string), "export encrypted")
	assert.Equal(t, "success", resolved["status"])
	assert.Equal(t, 0, comp.RunAudit()["open_violations"])
}

func TestWorkflow_NewHire(t *testing.T) {
	deps := newDeps(t)
	team := NewTeam(deps)
	orch := orchestrator.New(deps.Model, deps.Bus, orchestrator.WithLogger(logging.NoOpLogger{}))
	team.RegisterWith(orch)

	result, err := orch.ExecuteWorkflow(context.Background(), WorkflowNewHire, map[string]any{
		"name":       "Grace Hopper",
		"department": "Engineering",
		"position":   "Rear Admiral",
	})
	require.NoError(t, err)
	assert.Equal(t, "EMP001", result["employee_id"])
	assert.NotEmpty(t, result["workflow_id"])

	completed := orch.Completed()
	require.Len(t, completed, 1)
	assert.Equal(t, core.WorkflowCompleted, completed[0].Status)
	require.Len(t, completed[0].Steps, 1)
	assert.Equal(t, HRAgentName, completed[0].Steps[0].Agent)
	assert.Empty(t, orch.Active())

	// downstream provisioning rode the event
	assert.Contains(t, eventTypes(deps.Bus), EventAccessProvisioned)
}

func TestWorkflow_NewHireMissingParamsFails(t *testing.T) {
	deps := newDeps(t)
	team := NewTeam(deps)
	orch := orchestrator.New(deps.Model, deps.Bus, orchestrator.WithLogger(logging.NoOpLogger{}))
	team.RegisterWith(orch)

	_, err := orch.ExecuteWorkflow(context.Background(), WorkflowNewHire, map[string]any{"name": "X"})
	require.Error(t, err)

	completed := orch.Completed()
	require.Len(t, completed, 1)
	assert.Equal(t, core.WorkflowFailed, completed[0].Status)
	assert.Empty(t, orch.Active())
}

func TestWorkflow_EmployeeExit(t *testing.T) {
	deps := newDeps(t)
	team := NewTeam(deps)
	orch := orchestrator.New(deps.Model, deps.Bus, orchestrator.WithLogger(logging.NoOpLogger{}))
	team.RegisterWith(orch)

	require.Equal(t, "success", team.hr.Onboard("Ada", "", "Eng", "Engineer")["status"])

	result, err := orch.ExecuteWorkflow(context.Background(), WorkflowEmployeeExit, map[string]any{
		"employee_id": "EMP001",
	})
	require.NoError(t, err)
	assert.Equal(t, "EMP001", result["employee_id"])

	completed := orch.Completed()
	require.Len(t, completed, 1)
	assert.Len(t, completed[0].Steps, 4)

	emp, err := deps.Catalog.GetEmployee("EMP001")
	require.NoError(t, err)
	assert.False(t, emp.Active)
	assert.Contains(t, eventTypes(deps.Bus), EventAccessRevoked)
}

func TestWorkflow_ExpenseClaim(t *testing.T) {
	deps := newDeps(t)
	team := NewTeam(deps)
	orch := orchestrator.New(deps.Model, deps.Bus, orchestrator.WithLogger(logging.NoOpLogger{}))
	team.RegisterWith(orch)

	require.Equal(t, "success", team.hr.Onboard("Ada", "", "Eng", "Engineer")["status"])

	result, err := orch.ExecuteWorkflow(context.Background(), WorkflowExpenseClaim, map[string]any{
		"employee_id": "EMP001",
		"amount":      250.0,
		"description": "conference travel",
	})
	require.NoError(t, err)
	assert.Equal(t, "Approved", result["expense_status"])
	assert.Contains(t, eventTypes(deps.Bus), EventExpenseApproved)

	_, err = orch.ExecuteWorkflow(context.Background(), WorkflowExpenseClaim, map[string]any{
		"employee_id": "EMP001",
	})
	require.Error(t, err) // amount missing
}

func TestWorkflow_SecurityIncidentCreatesOneTicket(t *testing.T) {
	deps := newDeps(t)
	team := NewTeam(deps)
	orch := orchestrator.New(deps.Model, deps.Bus, orchestrator.WithLogger(logging.NoOpLogger{}))
	team.RegisterWith(orch)

	result, err := orch.ExecuteWorkflow(context.Background(), WorkflowSecurityIncident, map[string]any{
		"description": "phishing email reported",
		"reported_by": "EMP001",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result["ticket_id"])
	assert.NotEmpty(t, result["violation_id"])

	// the published event must not re-open a second ticket
	assert.Equal(t, 1, deps.Catalog.CountOpenTickets())
	assert.Equal(t, 1, deps.Catalog.CountOpenViolations())
}

func TestTeam_RoutingMatchesAgentKey(t *testing.T) {
	deps := newDeps(t)
	mock := deps.Model.(*model.Mock)
	mock.AddResponse("Route the following task", "finance, because expense reimbursements belong to the finance agent")

	team := NewTeam(deps)
	orch := orchestrator.New(deps.Model, deps.Bus, orchestrator.WithLogger(logging.NoOpLogger{}))
	team.RegisterWith(orch)

	route := orch.RouteTask(context.Background(), "I need to claim back my travel costs")
	assert.Equal(t, KeyFinance, route.AgentKey)
}
