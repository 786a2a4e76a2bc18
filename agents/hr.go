package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opscrew/opscrew/agent"
	"github.com/opscrew/opscrew/bus"
	"github.com/opscrew/opscrew/core"
	"github.com/opscrew/opscrew/logging"
	"github.com/opscrew/opscrew/model"
	"github.com/opscrew/opscrew/store"
	"github.com/opscrew/opscrew/tool"
)

// HRAgentName identifies the HR agent everywhere: routing, goals, audit.
const HRAgentName = "HR Agent"

// leaveAutoApproveDays is the largest request the agent approves without a
// human; anything longer stays pending.
const leaveAutoApproveDays = 10

// defaultLeaveBalance seeds a new hire's leave account, days per type.
var defaultLeaveBalance = map[string]int{
	"casual": 12,
	"sick":   10,
	"earned": 15,
}

// HR owns employee records, leave processing and policy questions.
type HR struct {
	catalog *store.Catalog
	bus     *bus.Bus
	model   model.Service
	logger  logging.Logger
}

// NewHR builds the HR capability and its runtime: tool registry, default
// KPI goals and learning store.
func NewHR(deps Deps) (*HR, *agent.Runtime) {
	h := &HR{
		catalog: deps.Catalog,
		bus:     deps.Bus,
		model:   deps.Model,
		logger:  deps.logger(),
	}

	registry := tool.NewRegistry(deps.logger())
	mustRegister(registry, tool.Descriptor{
		Name:        "process_leave_request",
		Description: "Process an employee leave request: checks balance, auto-approves short requests, deducts balance",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"employee_id": map[string]any{"type": "string", "description": "employee identifier, e.g. EMP001"},
				"leave_type":  map[string]any{"type": "string", "description": "casual, sick or earned"},
				"days":        map[string]any{"type": "integer", "description": "number of leave days requested"},
				"start_date":  map[string]any{"type": "string", "description": "first day of leave, YYYY-MM-DD"},
			},
			"required": []string{"employee_id", "leave_type", "days"},
		},
		RequiresIdentity: true,
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return h.ProcessLeave(
				stringArg(args, "employee_id"),
				stringArg(args, "leave_type"),
				int(numberArg(args, "days")),
				stringArg(args, "start_date"),
			), nil
		},
	})
	mustRegister(registry, tool.Descriptor{
		Name:        "handle_employee_onboarding",
		Description: "Create a new employee record with default leave balances and announce the hire to other departments",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":       map[string]any{"type": "string", "description": "full name of the new hire"},
				"email":      map[string]any{"type": "string", "description": "work email, generated when omitted"},
				"department": map[string]any{"type": "string", "description": "department the hire joins"},
				"position":   map[string]any{"type": "string", "description": "job title"},
			},
			"required": []string{"name", "department", "position"},
		},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return h.Onboard(
				stringArg(args, "name"),
				stringArg(args, "email"),
				stringArg(args, "department"),
				stringArg(args, "position"),
			), nil
		},
	})
	mustRegister(registry, tool.Descriptor{
		Name:        "answer_policy_question",
		Description: "Answer a question about company HR policy",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{"type": "string", "description": "the policy question to answer"},
			},
			"required": []string{"question"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return h.AnswerPolicyQuestion(ctx, stringArg(args, "question")), nil
		},
	})

	if deps.Goals != nil {
		deps.Goals.SetGoal(HRAgentName, "Time-to-hire", 7, "days", core.DirectionLower)
		deps.Goals.SetGoal(HRAgentName, "Candidate satisfaction", 80, "%", core.DirectionHigher)
	}

	return h, agent.New(h, registry, deps.Model, deps.runtimeOptions(HRAgentName)...)
}

// Name implements agent.Capability.
func (h *HR) Name() string { return HRAgentName }

// Capabilities implements agent.Capability.
func (h *HR) Capabilities() []string {
	return []string{"leave requests", "employee onboarding", "leave balances", "HR policy questions"}
}

// HandleEvent implements agent.Capability. HR currently only observes.
func (h *HR) HandleEvent(eventType string, payload map[string]any) {
	h.logger.Debug("hr observed event", "event_type", eventType, "payload", payload)
}

// DomainContext adds the current headcount to the planning context.
func (h *HR) DomainContext(string, map[string]any) map[string]any {
	return map[string]any{"employee_count": h.catalog.CountEmployees()}
}

// ProcessLeave checks the balance, auto-approves requests up to
// leaveAutoApproveDays and deducts the balance on approval. Longer requests
// come back pending for a manager.
func (h *HR) ProcessLeave(employeeID, leaveType string, days int, startDate string) map[string]any {
	if days <= 0 {
		return errorResult("leave days must be positive")
	}
	emp, err := h.catalog.GetEmployee(employeeID)
	if err != nil {
		return errorResult(fmt.Sprintf("employee %s not found", employeeID))
	}
	balance, ok := emp.LeaveBalance[leaveType]
	if !ok {
		return errorResult(fmt.Sprintf("unknown leave type %q", leaveType))
	}
	if days > balance {
		return errorResult(fmt.Sprintf("insufficient %s leave balance: requested %d, available %d", leaveType, days, balance))
	}
	if days > leaveAutoApproveDays {
		return map[string]any{
			"status":  "pending_approval",
			"message": fmt.Sprintf("Requests over %d days need manager approval. Your request for %d days is pending.", leaveAutoApproveDays, days),
		}
	}

	emp.LeaveBalance[leaveType] = balance - days
	if err := h.catalog.UpdateEmployee(*emp); err != nil {
		return errorResult("could not update leave balance: " + err.Error())
	}
	h.bus.Publish(EventLeaveProcessed, map[string]any{
		"employee_id": employeeID,
		"leave_type":  leaveType,
		"days":        days,
		"start_date":  startDate,
	}, HRAgentName)

	return map[string]any{
		"status":            "success",
		"approved":          true,
		"leave_type":        leaveType,
		"days":              days,
		"remaining_balance": emp.LeaveBalance[leaveType],
	}
}

// Onboard creates the employee record and publishes employee_onboarded so
// IT, Finance and Compliance can run their provisioning steps.
func (h *HR) Onboard(name, email, department, position string) map[string]any {
	if name == "" || department == "" || position == "" {
		return errorResult("name, department and position are required")
	}
	if email == "" {
		email = strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@opscrew.io"
	}

	emp := store.Employee{
		ID:           h.catalog.NextEmployeeID(),
		Name:         name,
		Email:        email,
		Department:   department,
		Position:     position,
		JoinDate:     time.Now().UTC().Format("2006-01-02"),
		LeaveBalance: map[string]int{},
		Active:       true,
	}
	for k, v := range defaultLeaveBalance {
		emp.LeaveBalance[k] = v
	}
	if err := h.catalog.AddEmployee(emp); err != nil {
		return errorResult("could not create employee record: " + err.Error())
	}

	h.bus.Publish(EventEmployeeOnboarded, map[string]any{
		"employee_id": emp.ID,
		"name":        emp.Name,
		"email":       emp.Email,
		"department":  emp.Department,
		"position":    emp.Position,
	}, HRAgentName)

	return map[string]any{
		"status":      "success",
		"employee_id": emp.ID,
		"email":       emp.Email,
		"message":     fmt.Sprintf("%s onboarded as %s in %s", emp.Name, emp.Position, emp.Department),
	}
}

// Offboard deactivates the employee record. Downstream cleanup (access,
// pay, compliance) runs as explicit workflow steps, not events.
func (h *HR) Offboard(employeeID string) map[string]any {
	emp, err := h.catalog.GetEmployee(employeeID)
	if err != nil {
		return errorResult(fmt.Sprintf("employee %s not found", employeeID))
	}
	emp.Active = false
	if err := h.catalog.UpdateEmployee(*emp); err != nil {
		return errorResult("could not deactivate employee: " + err.Error())
	}
	return map[string]any{
		"status":      "success",
		"employee_id": employeeID,
		"message":     fmt.Sprintf("%s marked as exited", emp.Name),
	}
}

// AnswerPolicyQuestion asks the model with an HR policy system prompt. The
// returned map is never an error result; an unavailable model degrades to a
// referral message.
func (h *HR) AnswerPolicyQuestion(ctx context.Context, question string) map[string]any {
	const system = "You are an HR policy assistant. Answer concisely based on standard company policies (leave, benefits, conduct, remote work). If the policy is ambiguous, say so and suggest contacting HR directly."
	answer, err := h.model.Generate(ctx, question, system)
	if err != nil {
		h.logger.Warn("policy answer generation failed", "error", err)
		answer = "I couldn't retrieve the policy details right now. Please contact HR directly."
	}
	return map[string]any{"status": "success", "answer": answer}
}

// mustRegister panics on a malformed descriptor. Registration happens only
// at construction with literal schemas, so a failure is a programming
// error.
func mustRegister(r *tool.Registry, d tool.Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}
