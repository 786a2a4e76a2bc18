package core

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates a unique identifier for decisions, workflow runs and
// audit entries.
func NewID() string { return uuid.NewString() }

// ActionResult captures one executed plan step: the tool invoked, the
// arguments used and the structured result. Success is derived from the
// result's status field at execution time.
type ActionResult struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Result     map[string]any `json:"result"`
	Success    bool           `json:"success"`
}

// AgentResponse is the terminal outcome of Runtime.ProcessRequest. It is
// always well-formed: failure modes surface as Escalated=true with a
// natural-language Response, never as an error.
type AgentResponse struct {
	Response     string         `json:"response"`
	ActionsTaken []ActionResult `json:"actions_taken"`
	Reasoning    string         `json:"reasoning"`
	Confidence   float64        `json:"confidence"`
	Escalated    bool           `json:"escalated"`
}

// Decision outcomes recorded by the learning module.
const (
	OutcomeSuccess        = "success"
	OutcomePartialFailure = "partial_failure"
)

// DecisionRecord is one autonomous decision persisted for later
// similarity-based retrieval.
type DecisionRecord struct {
	ID         string         `json:"id"`
	Agent      string         `json:"agent"`
	Timestamp  time.Time      `json:"timestamp"`
	Task       string         `json:"task"`
	Context    map[string]any `json:"context"`
	Decision   string         `json:"decision"`
	Confidence float64        `json:"confidence"`
	Outcome    string         `json:"outcome,omitempty"`
}

// OverrideRecord captures a human correcting an agent decision. Overrides
// are a high-value training signal kept separate from ordinary decisions.
type OverrideRecord struct {
	DecisionID string    `json:"decision_id"`
	Agent      string    `json:"agent"`
	Timestamp  time.Time `json:"timestamp"`
	Original   string    `json:"original_decision"`
	Corrective string    `json:"corrective_decision"`
	Reason     string    `json:"reason"`
}

// Goal directions. Higher means actual >= target is good, lower the
// opposite.
const (
	DirectionHigher = "higher"
	DirectionLower  = "lower"
)

// Goal is a named KPI for one agent. Actual stays nil until the first
// measurement is recorded.
type Goal struct {
	Name        string     `json:"name"`
	Target      float64    `json:"target"`
	Actual      *float64   `json:"actual"`
	Unit        string     `json:"unit"`
	Direction   string     `json:"direction"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// Met reports whether the goal is satisfied. It returns nil if no
// measurement has been recorded yet.
func (g *Goal) Met() *bool {
	if g.Actual == nil {
		return nil
	}
	var met bool
	if g.Direction == DirectionLower {
		met = *g.Actual <= g.Target
	} else {
		met = *g.Actual >= g.Target
	}
	return &met
}

// Event is one published bus notification. Immutable once published.
type Event struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
}

// Workflow run statuses. A run is terminal once it reaches Completed or
// Failed.
const (
	WorkflowInProgress = "In Progress"
	WorkflowCompleted  = "Completed"
	WorkflowFailed     = "Failed"
)

// WorkflowStep is one logged agent call inside a workflow run.
type WorkflowStep struct {
	Name      string    `json:"step"`
	Agent     string    `json:"agent"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// WorkflowRun tracks a multi-agent workflow from start to terminal status.
type WorkflowRun struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Params      map[string]any `json:"params"`
	Status      string         `json:"status"`
	Steps       []WorkflowStep `json:"steps"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// LogStep appends a step entry to the run's ordered step log.
func (w *WorkflowRun) LogStep(name, agent, status string) {
	w.Steps = append(w.Steps, WorkflowStep{
		Name:      name,
		Agent:     agent,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}

// AuditSink receives a trail of every autonomous action and escalation.
// Implementations must be fire-and-forget: failures are logged by the
// implementation and never propagated to the agent loop.
type AuditSink interface {
	Record(agent, action string, details map[string]any, actingUser string)
}

// NoOpAuditSink discards audit entries.
type NoOpAuditSink struct{}

// Record implements AuditSink.
func (NoOpAuditSink) Record(string, string, map[string]any, string) {}
