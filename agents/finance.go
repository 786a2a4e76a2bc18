package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/opscrew/opscrew/agent"
	"github.com/opscrew/opscrew/bus"
	"github.com/opscrew/opscrew/core"
	"github.com/opscrew/opscrew/goal"
	"github.com/opscrew/opscrew/logging"
	"github.com/opscrew/opscrew/store"
	"github.com/opscrew/opscrew/tool"
)

// FinanceAgentName identifies the Finance agent everywhere: routing, goals,
// audit.
const FinanceAgentName = "Finance Agent"

// expenseAutoApproveLimit is the largest claim approved without a human.
const expenseAutoApproveLimit = 5000.0

// Finance owns expense claims and payroll events.
type Finance struct {
	catalog *store.Catalog
	bus     *bus.Bus
	goals   *goal.Tracker
	logger  logging.Logger
}

// NewFinance builds the Finance capability and its runtime, subscribed to
// onboarding for payroll setup.
func NewFinance(deps Deps) (*Finance, *agent.Runtime) {
	f := &Finance{
		catalog: deps.Catalog,
		bus:     deps.Bus,
		goals:   deps.Goals,
		logger:  deps.logger(),
	}

	registry := tool.NewRegistry(deps.logger())
	mustRegister(registry, tool.Descriptor{
		Name:        "submit_expense",
		Description: "Submit an expense claim; claims within the auto-approval limit are approved immediately",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"employee_id": map[string]any{"type": "string", "description": "employee identifier"},
				"category":    map[string]any{"type": "string", "description": "Travel, Meals, Equipment or Other"},
				"amount":      map[string]any{"type": "number", "description": "claim amount"},
				"description": map[string]any{"type": "string", "description": "what the expense was for"},
			},
			"required": []string{"employee_id", "category", "amount", "description"},
		},
		RequiresIdentity: true,
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return f.SubmitExpense(
				stringArg(args, "employee_id"),
				stringArg(args, "category"),
				numberArg(args, "amount"),
				stringArg(args, "description"),
			), nil
		},
	})
	mustRegister(registry, tool.Descriptor{
		Name:        "approve_expense",
		Description: "Approve a pending expense claim",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expense_id": map[string]any{"type": "string", "description": "expense identifier, e.g. EXP-1A2B3C4D"},
				"approver":   map[string]any{"type": "string", "description": "who approves; defaults to the finance agent"},
			},
			"required": []string{"expense_id"},
		},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return f.ApproveExpense(stringArg(args, "expense_id"), stringArg(args, "approver")), nil
		},
	})
	mustRegister(registry, tool.Descriptor{
		Name:        "get_expense_status",
		Description: "Look up the current status of an expense claim",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expense_id": map[string]any{"type": "string", "description": "expense identifier"},
			},
			"required": []string{"expense_id"},
		},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return f.ExpenseStatus(stringArg(args, "expense_id")), nil
		},
	})
	mustRegister(registry, tool.Descriptor{
		Name:        "settle_final_pay",
		Description: "Settle the final pay for an exiting employee",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"employee_id": map[string]any{"type": "string", "description": "employee identifier"},
			},
			"required": []string{"employee_id"},
		},
		RequiresIdentity: true,
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return f.SettleFinalPay(stringArg(args, "employee_id")), nil
		},
	})

	if deps.Goals != nil {
		deps.Goals.SetGoal(FinanceAgentName, "Budget variance", 5, "%", core.DirectionLower)
		deps.Goals.SetGoal(FinanceAgentName, "Avg reimbursement time", 3, "days", core.DirectionLower)
	}

	rt := agent.New(f, registry, deps.Model, deps.runtimeOptions(FinanceAgentName)...)
	rt.SubscribeEvents(EventEmployeeOnboarded)
	return f, rt
}

// Name implements agent.Capability.
func (f *Finance) Name() string { return FinanceAgentName }

// Capabilities implements agent.Capability.
func (f *Finance) Capabilities() []string {
	return []string{"expense claims", "reimbursements", "payroll setup", "final pay settlement"}
}

// HandleEvent implements agent.Capability: onboarding triggers payroll
// setup.
func (f *Finance) HandleEvent(eventType string, payload map[string]any) {
	if eventType != EventEmployeeOnboarded {
		return
	}
	id, _ := payload["employee_id"].(string)
	if id == "" {
		return
	}
	f.bus.Publish(EventPayrollSetupComplete, map[string]any{"employee_id": id}, FinanceAgentName)
	f.logger.Info("payroll setup complete", "employee_id", id)
}

// UpdateGoals records same-day reimbursement for auto-approved claims.
func (f *Finance) UpdateGoals(actions []core.ActionResult) {
	if f.goals == nil {
		return
	}
	for _, a := range actions {
		if a.Tool != "submit_expense" || !a.Success {
			continue
		}
		if status, _ := a.Result["expense_status"].(string); status == "Approved" {
			f.goals.RecordMetric(FinanceAgentName, "Avg reimbursement time", 0)
		}
	}
}

// SubmitExpense stores the claim. Claims within the limit are approved and
// announced immediately; larger ones stay pending for a human.
func (f *Finance) SubmitExpense(employeeID, category string, amount float64, description string) map[string]any {
	if amount <= 0 {
		return errorResult("expense amount must be positive")
	}
	if _, err := f.catalog.GetEmployee(employeeID); err != nil {
		return errorResult(fmt.Sprintf("employee %s not found", employeeID))
	}

	e := store.Expense{
		ID:          newRecordID("EXP"),
		EmployeeID:  employeeID,
		Category:    category,
		Amount:      amount,
		Description: description,
		Status:      "Pending",
		SubmittedAt: time.Now().UTC(),
	}
	if amount <= expenseAutoApproveLimit {
		e.Status = "Approved"
		e.ApprovedBy = FinanceAgentName
	}
	if err := f.catalog.AddExpense(e); err != nil {
		return errorResult("could not store expense: " + err.Error())
	}

	f.bus.Publish(EventExpenseSubmitted, map[string]any{
		"expense_id":  e.ID,
		"employee_id": employeeID,
		"amount":      amount,
		"auto":        e.Status == "Approved",
	}, FinanceAgentName)
	if e.Status == "Approved" {
		f.bus.Publish(EventExpenseApproved, map[string]any{
			"expense_id":  e.ID,
			"employee_id": employeeID,
			"amount":      amount,
		}, FinanceAgentName)
	}

	message := fmt.Sprintf("Expense %s for %.2f approved automatically", e.ID, amount)
	if e.Status == "Pending" {
		message = fmt.Sprintf("Expense %s for %.2f exceeds the %.0f auto-approval limit and is pending review", e.ID, amount, expenseAutoApproveLimit)
	}
	return map[string]any{
		"status":         "success",
		"expense_id":     e.ID,
		"expense_status": e.Status,
		"message":        message,
	}
}

// ApproveExpense approves a pending claim and announces it.
func (f *Finance) ApproveExpense(expenseID, approver string) map[string]any {
	e, err := f.catalog.GetExpense(expenseID)
	if err != nil {
		return errorResult(fmt.Sprintf("expense %s not found", expenseID))
	}
	if e.Status == "Approved" {
		return errorResult(fmt.Sprintf("expense %s is already approved", expenseID))
	}
	if approver == "" {
		approver = FinanceAgentName
	}
	e.Status = "Approved"
	e.ApprovedBy = approver
	if err := f.catalog.UpdateExpense(*e); err != nil {
		return errorResult("could not update expense: " + err.Error())
	}
	f.bus.Publish(EventExpenseApproved, map[string]any{
		"expense_id":  expenseID,
		"employee_id": e.EmployeeID,
		"amount":      e.Amount,
	}, FinanceAgentName)
	return map[string]any{
		"status":     "success",
		"expense_id": expenseID,
		"message":    fmt.Sprintf("Expense %s approved by %s", expenseID, approver),
	}
}

// ExpenseStatus returns the stored claim fields.
func (f *Finance) ExpenseStatus(expenseID string) map[string]any {
	e, err := f.catalog.GetExpense(expenseID)
	if err != nil {
		return errorResult(fmt.Sprintf("expense %s not found", expenseID))
	}
	out := map[string]any{
		"status":         "success",
		"expense_id":     e.ID,
		"expense_status": e.Status,
		"amount":         e.Amount,
		"category":       e.Category,
		"submitted_at":   e.SubmittedAt.Format(time.RFC3339),
	}
	if e.ApprovedBy != "" {
		out["approved_by"] = e.ApprovedBy
	}
	return out
}

// SettleFinalPay settles salary and unused leave for an exiting employee.
func (f *Finance) SettleFinalPay(employeeID string) map[string]any {
	emp, err := f.catalog.GetEmployee(employeeID)
	if err != nil {
		return errorResult(fmt.Sprintf("employee %s not found", employeeID))
	}
	unusedLeave := 0
	for _, days := range emp.LeaveBalance {
		unusedLeave += days
	}
	return map[string]any{
		"status":            "success",
		"employee_id":       employeeID,
		"unused_leave_days": unusedLeave,
		"message":           fmt.Sprintf("Final pay settled for %s including %d unused leave days", emp.Name, unusedLeave),
	}
}
