package agents

import (
	"context"
	"fmt"

	"github.com/opscrew/opscrew/agent"
	"github.com/opscrew/opscrew/core"
	"github.com/opscrew/opscrew/orchestrator"
)

// Routing keys the team registers its agents under.
const (
	KeyHR         = "hr"
	KeyIT         = "it"
	KeyFinance    = "finance"
	KeyCompliance = "compliance"
)

// Workflow names registered by RegisterWith.
const (
	WorkflowNewHire          = "new_hire"
	WorkflowEmployeeExit     = "employee_exit"
	WorkflowExpenseClaim     = "expense_claim"
	WorkflowSecurityIncident = "security_incident"
)

// Team is the full four-agent deployment: concrete capabilities for
// deterministic workflow steps plus their runtimes for LLM-driven requests.
type Team struct {
	HR         *agent.Runtime
	IT         *agent.Runtime
	Finance    *agent.Runtime
	Compliance *agent.Runtime

	hr   *HR
	it   *IT
	fin  *Finance
	comp *Compliance
	deps Deps
}

// NewTeam constructs all four agents over the shared collaborators.
func NewTeam(deps Deps) *Team {
	t := &Team{deps: deps}
	t.hr, t.HR = NewHR(deps)
	t.it, t.IT = NewIT(deps)
	t.fin, t.Finance = NewFinance(deps)
	t.comp, t.Compliance = NewCompliance(deps)
	return t
}

// RegisterWith registers the agents (HR first, making it the routing
// fallback) and the multi-agent workflows on the orchestrator.
func (t *Team) RegisterWith(o *orchestrator.Orchestrator) {
	o.RegisterAgent(KeyHR, t.HR)
	o.RegisterAgent(KeyIT, t.IT)
	o.RegisterAgent(KeyFinance, t.Finance)
	o.RegisterAgent(KeyCompliance, t.Compliance)

	o.RegisterWorkflow(WorkflowNewHire, t.newHire)
	o.RegisterWorkflow(WorkflowEmployeeExit, t.employeeExit)
	o.RegisterWorkflow(WorkflowExpenseClaim, t.expenseClaim)
	o.RegisterWorkflow(WorkflowSecurityIncident, t.securityIncident)
}

// newHire onboards the employee through HR. IT provisioning, payroll setup
// and compliance training ride the employee_onboarded event, so only the
// HR step is an explicit workflow call.
func (t *Team) newHire(_ context.Context, run *core.WorkflowRun, params map[string]any) (map[string]any, error) {
	name := stringArg(params, "name")
	department := stringArg(params, "department")
	position := stringArg(params, "position")
	if name == "" || department == "" || position == "" {
		return nil, fmt.Errorf("new_hire requires name, department and position")
	}

	result := t.hr.Onboard(name, stringArg(params, "email"), department, position)
	if result["status"] != "success" {
		run.LogStep("HR onboarding", HRAgentName, "failed")
		return nil, fmt.Errorf("onboarding failed: %v", result["message"])
	}
	run.LogStep("HR onboarding", HRAgentName, "completed")

	return map[string]any{
		"employee_id": result["employee_id"],
		"email":       result["email"],
		"message":     result["message"],
	}, nil
}

// employeeExit runs the exit chain explicitly: deactivate, revoke access,
// settle pay, compliance check. Each agent call is one logged step.
func (t *Team) employeeExit(_ context.Context, run *core.WorkflowRun, params map[string]any) (map[string]any, error) {
	employeeID := stringArg(params, "employee_id")
	if employeeID == "" {
		return nil, fmt.Errorf("employee_exit requires employee_id")
	}

	if res := t.hr.Offboard(employeeID); res["status"] != "success" {
		run.LogStep("HR offboarding", HRAgentName, "failed")
		return nil, fmt.Errorf("offboarding failed: %v", res["message"])
	}
	run.LogStep("HR offboarding", HRAgentName, "completed")

	if res := t.it.RevokeAllAccess(employeeID); res["status"] != "success" {
		run.LogStep("Access revocation", ITAgentName, "failed")
		return nil, fmt.Errorf("access revocation failed: %v", res["message"])
	}
	run.LogStep("Access revocation", ITAgentName, "completed")

	pay := t.fin.SettleFinalPay(employeeID)
	if pay["status"] != "success" {
		run.LogStep("Final pay settlement", FinanceAgentName, "failed")
		return nil, fmt.Errorf("final pay settlement failed: %v", pay["message"])
	}
	run.LogStep("Final pay settlement", FinanceAgentName, "completed")

	check := t.comp.ExitCheck(employeeID)
	run.LogStep("Compliance exit check", ComplianceAgentName, "completed")

	return map[string]any{
		"employee_id":       employeeID,
		"final_pay":         pay["message"],
		"compliance_clear":  check["clear"],
		"pending_trainings": check["pending_trainings"],
	}, nil
}

// expenseClaim submits one claim through Finance.
func (t *Team) expenseClaim(_ context.Context, run *core.WorkflowRun, params map[string]any) (map[string]any, error) {
	employeeID := stringArg(params, "employee_id")
	amount := numberArg(params, "amount")
	if employeeID == "" || amount == 0 {
		return nil, fmt.Errorf("expense_claim requires employee_id and amount")
	}
	category := stringArg(params, "category")
	if category == "" {
		category = "Other"
	}

	result := t.fin.SubmitExpense(employeeID, category, amount, stringArg(params, "description"))
	if result["status"] != "success" {
		run.LogStep("Expense submission", FinanceAgentName, "failed")
		return nil, fmt.Errorf("expense submission failed: %v", result["message"])
	}
	run.LogStep("Expense submission", FinanceAgentName, "completed")

	return map[string]any{
		"expense_id":     result["expense_id"],
		"expense_status": result["expense_status"],
		"message":        result["message"],
	}, nil
}

// securityIncident opens an urgent IT ticket and a compliance violation for
// the same incident, then announces it on the bus.
func (t *Team) securityIncident(_ context.Context, run *core.WorkflowRun, params map[string]any) (map[string]any, error) {
	description := stringArg(params, "description")
	if description == "" {
		return nil, fmt.Errorf("security_incident requires description")
	}
	reportedBy := stringArg(params, "reported_by")
	if reportedBy == "" {
		reportedBy = "SYSTEM"
	}
	severity := stringArg(params, "severity")
	if severity == "" {
		severity = "High"
	}

	ticket := t.it.CreateTicket(reportedBy, "Security", description, "Urgent")
	if ticket["status"] != "success" {
		run.LogStep("Security ticket", ITAgentName, "failed")
		return nil, fmt.Errorf("security ticket failed: %v", ticket["message"])
	}
	run.LogStep("Security ticket", ITAgentName, "completed")

	violation := t.comp.ReportViolation(reportedBy, "Security", description, severity)
	if violation["status"] != "success" {
		run.LogStep("Violation report", ComplianceAgentName, "failed")
		return nil, fmt.Errorf("violation report failed: %v", violation["message"])
	}
	run.LogStep("Violation report", ComplianceAgentName, "completed")

	t.deps.Bus.Publish(EventSecurityIncident, map[string]any{
		"ticket_id":    ticket["ticket_id"],
		"violation_id": violation["violation_id"],
		"severity":     severity,
	}, "Orchestrator")

	return map[string]any{
		"ticket_id":    ticket["ticket_id"],
		"violation_id": violation["violation_id"],
		"severity":     severity,
	}, nil
}
