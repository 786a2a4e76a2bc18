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

// ITAgentName identifies the IT agent everywhere: routing, goals, audit.
const ITAgentName = "IT Agent"

// standardSystems is the access set every new hire gets provisioned.
var standardSystems = []string{"email", "slack", "vpn", "github"}

// IT owns support tickets and system access.
type IT struct {
	catalog *store.Catalog
	bus     *bus.Bus
	goals   *goal.Tracker
	logger  logging.Logger
}

// NewIT builds the IT capability and its runtime, and subscribes it to
// onboarding and security events.
func NewIT(deps Deps) (*IT, *agent.Runtime) {
	it := &IT{
		catalog: deps.Catalog,
		bus:     deps.Bus,
		goals:   deps.Goals,
		logger:  deps.logger(),
	}

	registry := tool.NewRegistry(deps.logger())
	mustRegister(registry, tool.Descriptor{
		Name:        "create_ticket",
		Description: "Open an IT support ticket for an employee",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"employee_id": map[string]any{"type": "string", "description": "employee identifier"},
				"category":    map[string]any{"type": "string", "description": "Hardware, Software, Network or Access"},
				"description": map[string]any{"type": "string", "description": "what is broken or needed"},
				"priority":    map[string]any{"type": "string", "description": "Low, Medium, High or Urgent; defaults to Medium"},
			},
			"required": []string{"employee_id", "category", "description"},
		},
		RequiresIdentity: true,
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return it.CreateTicket(
				stringArg(args, "employee_id"),
				stringArg(args, "category"),
				stringArg(args, "description"),
				stringArg(args, "priority"),
			), nil
		},
	})
	mustRegister(registry, tool.Descriptor{
		Name:        "resolve_ticket",
		Description: "Mark an IT ticket as resolved with a resolution note",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"ticket_id":  map[string]any{"type": "string", "description": "ticket identifier, e.g. TKT-1A2B3C4D"},
				"resolution": map[string]any{"type": "string", "description": "how the issue was fixed"},
			},
			"required": []string{"ticket_id", "resolution"},
		},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return it.ResolveTicket(stringArg(args, "ticket_id"), stringArg(args, "resolution")), nil
		},
	})
	mustRegister(registry, tool.Descriptor{
		Name:        "get_ticket_status",
		Description: "Look up the current status of an IT ticket",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"ticket_id": map[string]any{"type": "string", "description": "ticket identifier"},
			},
			"required": []string{"ticket_id"},
		},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return it.TicketStatus(stringArg(args, "ticket_id")), nil
		},
	})
	mustRegister(registry, tool.Descriptor{
		Name:        "grant_access",
		Description: "Grant an employee access to a system",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"employee_id": map[string]any{"type": "string", "description": "employee identifier"},
				"system":      map[string]any{"type": "string", "description": "system to grant, e.g. vpn, github"},
			},
			"required": []string{"employee_id", "system"},
		},
		RequiresIdentity: true,
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return it.GrantAccess(stringArg(args, "employee_id"), stringArg(args, "system")), nil
		},
	})
	mustRegister(registry, tool.Descriptor{
		Name:        "revoke_access",
		Description: "Revoke all of an employee's system access",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"employee_id": map[string]any{"type": "string", "description": "employee identifier"},
			},
			"required": []string{"employee_id"},
		},
		RequiresIdentity: true,
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return it.RevokeAllAccess(stringArg(args, "employee_id")), nil
		},
	})

	if deps.Goals != nil {
		deps.Goals.SetGoal(ITAgentName, "Provisioning SLA", 100, "%", core.DirectionHigher)
		deps.Goals.SetGoal(ITAgentName, "Open tickets", 5, "count", core.DirectionLower)
	}

	rt := agent.New(it, registry, deps.Model, deps.runtimeOptions(ITAgentName)...)
	rt.SubscribeEvents(EventEmployeeOnboarded, EventSecurityIncident)
	return it, rt
}

// Name implements agent.Capability.
func (it *IT) Name() string { return ITAgentName }

// Capabilities implements agent.Capability.
func (it *IT) Capabilities() []string {
	return []string{"support tickets", "laptop and hardware issues", "system access", "account provisioning"}
}

// HandleEvent implements agent.Capability: new hires get the standard
// access set, security incidents open an urgent ticket.
func (it *IT) HandleEvent(eventType string, payload map[string]any) {
	switch eventType {
	case EventEmployeeOnboarded:
		id, _ := payload["employee_id"].(string)
		if id == "" {
			return
		}
		it.ProvisionNewHire(id)
	case EventSecurityIncident:
		if _, ticketed := payload["ticket_id"]; ticketed {
			return
		}
		desc, _ := payload["description"].(string)
		if desc == "" {
			desc = "Security incident reported"
		}
		reporter, _ := payload["reported_by"].(string)
		if reporter == "" {
			reporter = "SYSTEM"
		}
		it.CreateTicket(reporter, "Security", desc, "Urgent")
	}
}

// DomainContext adds the open ticket count to the planning context.
func (it *IT) DomainContext(string, map[string]any) map[string]any {
	return map[string]any{"open_tickets": it.catalog.CountOpenTickets()}
}

// UpdateGoals recomputes the ticket KPI after any ticket action and marks
// provisioning SLA on successful access grants.
func (it *IT) UpdateGoals(actions []core.ActionResult) {
	if it.goals == nil {
		return
	}
	for _, a := range actions {
		switch a.Tool {
		case "create_ticket", "resolve_ticket":
			it.goals.RecordMetric(ITAgentName, "Open tickets", float64(it.catalog.CountOpenTickets()))
		case "grant_access":
			if a.Success {
				it.goals.RecordMetric(ITAgentName, "Provisioning SLA", 100)
			}
		}
	}
}

// CreateTicket opens a ticket and announces it on the bus.
func (it *IT) CreateTicket(employeeID, category, description, priority string) map[string]any {
	if employeeID == "" || category == "" || description == "" {
		return errorResult("employee_id, category and description are required")
	}
	if priority == "" {
		priority = "Medium"
	}
	t := store.Ticket{
		ID:          newRecordID("TKT"),
		EmployeeID:  employeeID,
		Category:    category,
		Description: description,
		Priority:    priority,
		Status:      "Open",
		CreatedAt:   time.Now().UTC(),
	}
	if err := it.catalog.AddTicket(t); err != nil {
		return errorResult("could not create ticket: " + err.Error())
	}
	it.bus.Publish(EventTicketCreated, map[string]any{
		"ticket_id":   t.ID,
		"employee_id": employeeID,
		"category":    category,
		"priority":    priority,
	}, ITAgentName)
	return map[string]any{
		"status":    "success",
		"ticket_id": t.ID,
		"priority":  priority,
		"message":   fmt.Sprintf("Ticket %s created with %s priority", t.ID, priority),
	}
}

// ResolveTicket closes an open ticket.
func (it *IT) ResolveTicket(ticketID, resolution string) map[string]any {
	t, err := it.catalog.GetTicket(ticketID)
	if err != nil {
		return errorResult(fmt.Sprintf("ticket %s not found", ticketID))
	}
	if t.Status == "Resolved" {
		return errorResult(fmt.Sprintf("ticket %s is already resolved", ticketID))
	}
	now := time.Now().UTC()
	t.Status = "Resolved"
	t.Resolution = resolution
	t.ResolvedAt = &now
	if err := it.catalog.UpdateTicket(*t); err != nil {
		return errorResult("could not update ticket: " + err.Error())
	}
	it.bus.Publish(EventTicketResolved, map[string]any{
		"ticket_id":   ticketID,
		"employee_id": t.EmployeeID,
	}, ITAgentName)
	return map[string]any{
		"status":    "success",
		"ticket_id": ticketID,
		"message":   fmt.Sprintf("Ticket %s resolved: %s", ticketID, resolution),
	}
}

// TicketStatus returns the stored ticket fields.
func (it *IT) TicketStatus(ticketID string) map[string]any {
	t, err := it.catalog.GetTicket(ticketID)
	if err != nil {
		return errorResult(fmt.Sprintf("ticket %s not found", ticketID))
	}
	out := map[string]any{
		"status":        "success",
		"ticket_id":     t.ID,
		"ticket_status": t.Status,
		"category":      t.Category,
		"priority":      t.Priority,
		"created_at":    t.CreatedAt.Format(time.RFC3339),
	}
	if t.Resolution != "" {
		out["resolution"] = t.Resolution
	}
	return out
}

// GrantAccess grants one system and publishes access_provisioned.
func (it *IT) GrantAccess(employeeID, system string) map[string]any {
	if _, err := it.catalog.GetEmployee(employeeID); err != nil {
		return errorResult(fmt.Sprintf("employee %s not found", employeeID))
	}
	it.bus.Publish(EventAccessProvisioned, map[string]any{
		"employee_id": employeeID,
		"systems":     []string{system},
	}, ITAgentName)
	return map[string]any{
		"status":      "success",
		"employee_id": employeeID,
		"system":      system,
		"message":     fmt.Sprintf("Access to %s granted for %s", system, employeeID),
	}
}

// ProvisionNewHire grants the standard access set to a new employee.
func (it *IT) ProvisionNewHire(employeeID string) map[string]any {
	it.bus.Publish(EventAccessProvisioned, map[string]any{
		"employee_id": employeeID,
		"systems":     standardSystems,
	}, ITAgentName)
	if it.goals != nil {
		it.goals.RecordMetric(ITAgentName, "Provisioning SLA", 100)
	}
	it.logger.Info("provisioned standard access for new hire", "employee_id", employeeID)
	return map[string]any{
		"status":      "success",
		"employee_id": employeeID,
		"systems":     standardSystems,
	}
}

// RevokeAllAccess removes every system grant for an exiting employee and
// publishes access_revoked.
func (it *IT) RevokeAllAccess(employeeID string) map[string]any {
	if _, err := it.catalog.GetEmployee(employeeID); err != nil {
		return errorResult(fmt.Sprintf("employee %s not found", employeeID))
	}
	it.bus.Publish(EventAccessRevoked, map[string]any{
		"employee_id": employeeID,
		"systems":     standardSystems,
	}, ITAgentName)
	return map[string]any{
		"status":      "success",
		"employee_id": employeeID,
		"message":     fmt.Sprintf("All system access revoked for %s", employeeID),
	}
}
