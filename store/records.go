package store

import (
	"fmt"
	"time"

	"github.com/opscrew/opscrew/core"
	"github.com/opscrew/opscrew/logging"
)

// Employee is one person record. LeaveBalance maps leave type to remaining
// days.
type Employee struct {
	ID           string         `json:"employee_id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Department   string         `json:"department"`
	Position     string         `json:"position"`
	JoinDate     string         `json:"join_date"`
	LeaveBalance map[string]int `json:"leave_balance"`
	Active       bool           `json:"active"`
}

// Ticket is one IT support ticket.
type Ticket struct {
	ID          string     `json:"ticket_id"`
	EmployeeID  string     `json:"employee_id"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"` // Open / Resolved
	Resolution  string     `json:"resolution,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Expense is one reimbursement claim.
type Expense struct {
	ID          string    `json:"expense_id"`
	EmployeeID  string    `json:"employee_id"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Status      string    `json:"status"` // Approved / Pending / Rejected
	ApprovedBy  string    `json:"approved_by,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Violation is one reported policy violation.
type Violation struct {
	ID         string    `json:"violation_id"`
	ReportedBy string    `json:"reported_by"`
	Category   string    `json:"category"`
	Details    string    `json:"details"`
	Severity   string    `json:"severity"`
	Status     string    `json:"status"` // Open / Resolved
	Resolution string    `json:"resolution,omitempty"`
	ReportedAt time.Time `json:"reported_at"`
}

// Training is one scheduled compliance training.
type Training struct {
	ID         string    `json:"training_id"`
	EmployeeID string    `json:"employee_id"`
	Name       string    `json:"name"`
	DueDate    string    `json:"due_date"`
	Status     string    `json:"status"` // Scheduled / Completed
	CreatedAt  time.Time `json:"created_at"`
}

// AuditEntry is one audit-trail record of an autonomous action or
// escalation.
type AuditEntry struct {
	ID        string         `json:"log_id"`
	Timestamp time.Time      `json:"timestamp"`
	Agent     string         `json:"agent"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	User      string         `json:"user"`
}

// Catalog layers typed accessors over a generic Store and implements
// core.AuditSink. One Catalog is shared by all agents.
type Catalog struct {
	store  Store
	logger logging.Logger
}

var _ core.AuditSink = (*Catalog)(nil)

// NewCatalog wraps a Store. A nil logger defaults to slog.Default().
func NewCatalog(s Store, logger logging.Logger) *Catalog {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Catalog{store: s, logger: logger}
}

// AddEmployee stores a new employee record.
func (c *Catalog) AddEmployee(e Employee) error {
	return c.store.Create(Key(KindEmployee, e.ID), e)
}

// GetEmployee fetches an employee by id.
func (c *Catalog) GetEmployee(id string) (*Employee, error) {
	var e Employee
	if err := c.store.Get(Key(KindEmployee, id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateEmployee replaces an existing employee record.
func (c *Catalog) UpdateEmployee(e Employee) error {
	return c.store.Update(Key(KindEmployee, e.ID), e)
}

// ListEmployees returns every employee, key-ordered.
func (c *Catalog) ListEmployees() ([]Employee, error) {
	return listAs[Employee](c.store, KindEmployee)
}

// CountEmployees returns the number of employee records.
func (c *Catalog) CountEmployees() int {
	emps, err := c.ListEmployees()
	if err != nil {
		return 0
	}
	return len(emps)
}

// NextEmployeeID allocates a sequential EMPnnn identifier.
func (c *Catalog) NextEmployeeID() string {
	return fmt.Sprintf("EMP%03d", c.CountEmployees()+1)
}

// AddTicket stores a new ticket.
func (c *Catalog) AddTicket(t Ticket) error {
	return c.store.Create(Key(KindTicket, t.ID), t)
}

// GetTicket fetches a ticket by id.
func (c *Catalog) GetTicket(id string) (*Ticket, error) {
	var t Ticket
	if err := c.store.Get(Key(KindTicket, id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTicket replaces an existing ticket.
func (c *Catalog) UpdateTicket(t Ticket) error {
	return c.store.Update(Key(KindTicket, t.ID), t)
}

// CountOpenTickets returns how many tickets are still open.
func (c *Catalog) CountOpenTickets() int {
	tickets, err := listAs[Ticket](c.store, KindTicket)
	if err != nil {
		return 0
	}
	open := 0
	for _, t := range tickets {
		if t.Status == "Open" {
			open++
		}
	}
	return open
}

// AddExpense stores a new expense claim.
func (c *Catalog) AddExpense(e Expense) error {
	return c.store.Create(Key(KindExpense, e.ID), e)
}

// GetExpense fetches an expense by id.
func (c *Catalog) GetExpense(id string) (*Expense, error) {
	var e Expense
	if err := c.store.Get(Key(KindExpense, id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateExpense replaces an existing expense.
func (c *Catalog) UpdateExpense(e Expense) error {
	return c.store.Update(Key(KindExpense, e.ID), e)
}

// AddViolation stores a new violation report.
func (c *Catalog) AddViolation(v Violation) error {
	return c.store.Create(Key(KindViolation, v.ID), v)
}

// GetViolation fetches a violation by id.
func (c *Catalog) GetViolation(id string) (*Violation, error) {
	var v Violation
	if err := c.store.Get(Key(KindViolation, id), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// UpdateViolation replaces an existing violation.
func (c *Catalog) UpdateViolation(v Violation) error {
	return c.store.Update(Key(KindViolation, v.ID), v)
}

// CountOpenViolations returns how many violations are unresolved.
func (c *Catalog) CountOpenViolations() int {
	violations, err := listAs[Violation](c.store, KindViolation)
	if err != nil {
		return 0
	}
	open := 0
	for _, v := range violations {
		if v.Status == "Open" {
			open++
		}
	}
	return open
}

// AddTraining stores a scheduled training.
func (c *Catalog) AddTraining(t Training) error {
	return c.store.Create(Key(KindTraining, t.ID), t)
}

// ListTrainings returns every training record.
func (c *Catalog) ListTrainings() ([]Training, error) {
	return listAs[Training](c.store, KindTraining)
}

// Record implements core.AuditSink. Persistence failures are logged, never
// propagated: the audit trail must not break the agent loop.
func (c *Catalog) Record(agent, action string, details map[string]any, actingUser string) {
	entry := AuditEntry{
		ID:        "LOG-" + core.NewID(),
		Timestamp: time.Now().UTC(),
		Agent:     agent,
		Action:    action,
		Details:   details,
		User:      actingUser,
	}
	if err := c.store.Create(Key(KindAudit, entry.ID), entry); err != nil {
		c.logger.Error("could not persist audit entry", "agent", agent, "action", action, "error", err)
	}
}

// AuditTrail returns every audit entry, key-ordered.
func (c *Catalog) AuditTrail() ([]AuditEntry, error) {
	return listAs[AuditEntry](c.store, KindAudit)
}

func listAs[T any](s Store, kind string) ([]T, error) {
	raw, err := s.List(Prefix(kind), func() any { return new(T) })
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		out = append(out, *(r.(*T)))
	}
	return out, nil
}
