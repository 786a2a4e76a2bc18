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

// ComplianceAgentName identifies the Compliance agent everywhere: routing,
// goals, audit.
const ComplianceAgentName = "Compliance Agent"

// mandatoryTrainings are scheduled for every new hire.
var mandatoryTrainings = []string{"Security Awareness", "Code of Conduct"}

// trainingDueDays is how long a new hire has to complete mandatory
// trainings.
const trainingDueDays = 30

// Compliance owns policy violations, trainings and audits.
type Compliance struct {
	catalog *store.Catalog
	bus     *bus.Bus
	goals   *goal.Tracker
	logger  logging.Logger
}

// NewCompliance builds the Compliance capability and its runtime,
// subscribed to onboarding and violation events.
func NewCompliance(deps Deps) (*Compliance, *agent.Runtime) {
	c := &Compliance{
		catalog: deps.Catalog,
		bus:     deps.Bus,
		goals:   deps.Goals,
		logger:  deps.logger(),
	}

	registry := tool.NewRegistry(deps.logger())
	mustRegister(registry, tool.Descriptor{
		Name:        "report_violation",
		Description: "Report a policy violation for investigation",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reported_by": map[string]any{"type": "string", "description": "employee reporting the violation"},
				"category":    map[string]any{"type": "string", "description": "Data, Conduct, Security or Financial"},
				"details":     map[string]any{"type": "string", "description": "what happened"},
				"severity":    map[string]any{"type": "string", "description": "Low, Medium, High or Critical; defaults to Medium"},
			},
			"required": []string{"reported_by", "category", "details"},
		},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return c.ReportViolation(
				stringArg(args, "reported_by"),
				stringArg(args, "category"),
				stringArg(args, "details"),
				stringArg(args, "severity"),
			), nil
		},
	})
	mustRegister(registry, tool.Descriptor{
		Name:        "resolve_violation",
		Description: "Close a policy violation with a resolution note",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"violation_id": map[string]any{"type": "string", "description": "violation identifier, e.g. VIO-1A2B3C4D"},
				"resolution":   map[string]any{"type": "string", "description": "how the violation was addressed"},
			},
			"required": []string{"violation_id", "resolution"},
		},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return c.ResolveViolation(stringArg(args, "violation_id"), stringArg(args, "resolution")), nil
		},
	})
	mustRegister(registry, tool.Descriptor{
		Name:        "schedule_training",
		Description: "Schedule a compliance training for an employee",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"employee_id":   map[string]any{"type": "string", "description": "employee identifier"},
				"training_name": map[string]any{"type": "string", "description": "training to schedule"},
				"due_date":      map[string]any{"type": "string", "description": "completion deadline, YYYY-MM-DD"},
			},
			"required": []string{"employee_id", "training_name"},
		},
		RequiresIdentity: true,
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return c.ScheduleTraining(
				stringArg(args, "employee_id"),
				stringArg(args, "training_name"),
				stringArg(args, "due_date"),
			), nil
		},
	})
	mustRegister(registry, tool.Descriptor{
		Name:        "run_compliance_audit",
		Description: "Summarize open violations and training completion across the company",
		Handler: func(context.Context, map[string]any) (any, error) {
			return c.RunAudit(), nil
		},
	})

	if deps.Goals != nil {
		deps.Goals.SetGoal(ComplianceAgentName, "Policy violations", 0, "count", core.DirectionLower)
		deps.Goals.SetGoal(ComplianceAgentName, "Training completion", 100, "%", core.DirectionHigher)
	}

	rt := agent.New(c, registry, deps.Model, deps.runtimeOptions(ComplianceAgentName)...)
	rt.SubscribeEvents(EventEmployeeOnboarded, EventViolationDetected)
	return c, rt
}

// Name implements agent.Capability.
func (c *Compliance) Name() string { return ComplianceAgentName }

// Capabilities implements agent.Capability.
func (c *Compliance) Capabilities() []string {
	return []string{"policy violations", "compliance trainings", "audits", "regulatory checks"}
}

// HandleEvent implements agent.Capability: new hires get mandatory
// trainings, detected violations update the KPI.
func (c *Compliance) HandleEvent(eventType string, payload map[string]any) {
	switch eventType {
	case EventEmployeeOnboarded:
		id, _ := payload["employee_id"].(string)
		if id == "" {
			return
		}
		due := time.Now().UTC().AddDate(0, 0, trainingDueDays).Format("2006-01-02")
		for _, name := range mandatoryTrainings {
			c.ScheduleTraining(id, name, due)
		}
		c.bus.Publish(EventComplianceVerified, map[string]any{
			"employee_id": id,
			"trainings":   mandatoryTrainings,
		}, ComplianceAgentName)
	case EventViolationDetected:
		c.recordViolationMetric()
	}
}

// UpdateGoals refreshes the violation KPI after report/resolve actions.
func (c *Compliance) UpdateGoals(actions []core.ActionResult) {
	for _, a := range actions {
		if a.Tool == "report_violation" || a.Tool == "resolve_violation" {
			c.recordViolationMetric()
			return
		}
	}
}

func (c *Compliance) recordViolationMetric() {
	if c.goals == nil {
		return
	}
	c.goals.RecordMetric(ComplianceAgentName, "Policy violations", float64(c.catalog.CountOpenViolations()))
}

// ReportViolation files a violation and announces it on the bus.
func (c *Compliance) ReportViolation(reportedBy, category, details, severity string) map[string]any {
	if reportedBy == "" || category == "" || details == "" {
		return errorResult("reported_by, category and details are required")
	}
	if severity == "" {
		severity = "Medium"
	}
	v := store.Violation{
		ID:         newRecordID("VIO"),
		ReportedBy: reportedBy,
		Category:   category,
		Details:    details,
		Severity:   severity,
		Status:     "Open",
		ReportedAt: time.Now().UTC(),
	}
	if err := c.catalog.AddViolation(v); err != nil {
		return errorResult("could not store violation: " + err.Error())
	}
	c.bus.Publish(EventViolationDetected, map[string]any{
		"violation_id": v.ID,
		"category":     category,
		"severity":     severity,
	}, ComplianceAgentName)
	return map[string]any{
		"status":       "success",
		"violation_id": v.ID,
		"severity":     severity,
		"message":      fmt.Sprintf("Violation %s filed with %s severity", v.ID, severity),
	}
}

// ResolveViolation closes an open violation.
func (c *Compliance) ResolveViolation(violationID, resolution string) map[string]any {
	v, err := c.catalog.GetViolation(violationID)
	if err != nil {
		return errorResult(fmt.Sprintf("violation %s not found", violationID))
	}
	if v.Status == "Resolved" {
		return errorResult(fmt.Sprintf("violation %s is already resolved", violationID))
	}
	v.Status = "Resolved"
	v.Resolution = resolution
	if err := c.catalog.UpdateViolation(*v); err != nil {
		return errorResult("could not update violation: " + err.Error())
	}
	return map[string]any{
		"status":       "success",
		"violation_id": violationID,
		"message":      fmt.Sprintf("Violation %s resolved: %s", violationID, resolution),
	}
}

// ScheduleTraining creates a scheduled training record.
func (c *Compliance) ScheduleTraining(employeeID, trainingName, dueDate string) map[string]any {
	if employeeID == "" || trainingName == "" {
		return errorResult("employee_id and training_name are required")
	}
	if dueDate == "" {
		dueDate = time.Now().UTC().AddDate(0, 0, trainingDueDays).Format("2006-01-02")
	}
	tr := store.Training{
		ID:         newRecordID("TRN"),
		EmployeeID: employeeID,
		Name:       trainingName,
		DueDate:    dueDate,
		Status:     "Scheduled",
		CreatedAt:  time.Now().UTC(),
	}
	if err := c.catalog.AddTraining(tr); err != nil {
		return errorResult("could not schedule training: " + err.Error())
	}
	return map[string]any{
		"status":      "success",
		"training_id": tr.ID,
		"due_date":    dueDate,
		"message":     fmt.Sprintf("%s scheduled for %s, due %s", trainingName, employeeID, dueDate),
	}
}

// RunAudit summarizes the current compliance posture from stored records.
func (c *Compliance) RunAudit() map[string]any {
	trainings, err := c.catalog.ListTrainings()
	if err != nil {
		return errorResult("could not list trainings: " + err.Error())
	}
	completed := 0
	for _, t := range trainings {
		if t.Status == "Completed" {
			completed++
		}
	}
	completion := 100.0
	if len(trainings) > 0 {
		completion = float64(completed) / float64(len(trainings)) * 100
	}
	if c.goals != nil {
		c.goals.RecordMetric(ComplianceAgentName, "Training completion", completion)
	}
	return map[string]any{
		"status":              "success",
		"open_violations":     c.catalog.CountOpenViolations(),
		"trainings_total":     len(trainings),
		"trainings_completed": completed,
		"training_completion": completion,
	}
}

// ExitCheck verifies an exiting employee has no open obligations.
func (c *Compliance) ExitCheck(employeeID string) map[string]any {
	trainings, err := c.catalog.ListTrainings()
	if err != nil {
		return errorResult("could not list trainings: " + err.Error())
	}
	pending := []string{}
	for _, t := range trainings {
		if t.EmployeeID == employeeID && t.Status != "Completed" {
			pending = append(pending, t.Name)
		}
	}
	return map[string]any{
		"status":            "success",
		"employee_id":       employeeID,
		"pending_trainings": pending,
		"clear":             len(pending) == 0,
	}
}
