// Package agent implements the autonomous agent runtime: a tool registry,
// a learning module and a language model composed behind the
// perceive → reason → plan → act → evaluate → learn control loop.
//
// Domain behavior is supplied through the Capability interface plus two
// optional hooks; the loop itself is shared by every agent. Composition is
// deliberate: there is no base type to inherit from.
package agent

import (
	"time"

	"github.com/opscrew/opscrew/core"
)

// Capability is the domain contract every agent supplies: an identity, a
// declared capability list for routing prompts, and an event handler the
// bus delivers cross-agent notifications to.
type Capability interface {
	Name() string
	Capabilities() []string
	HandleEvent(eventType string, payload map[string]any)
}

// DomainContextProvider is an optional Capability hook adding
// domain-specific perception context (e.g. open ticket counts) before
// planning.
type DomainContextProvider interface {
	DomainContext(message string, reqCtx map[string]any) map[string]any
}

// GoalUpdater is an optional Capability hook invoked after the act stage
// so domain KPIs can be recorded into the shared goal tracker.
type GoalUpdater interface {
	UpdateGoals(actions []core.ActionResult)
}

// IdentityResolver resolves a caller identity (e.g. an employee id) into a
// context block for perception. The record store behind it is an external
// collaborator; the runtime only needs this lookup shape.
type IdentityResolver interface {
	Lookup(id string) (map[string]any, bool)
}

// IdentityFunc adapts a function to IdentityResolver.
type IdentityFunc func(id string) (map[string]any, bool)

// Lookup implements IdentityResolver.
func (f IdentityFunc) Lookup(id string) (map[string]any, bool) { return f(id) }

// HistoryEntry is the lighter in-memory decision record kept per session
// for introspection, separate from the persisted learning history.
type HistoryEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Task       string    `json:"task"`
	Tools      []string  `json:"tools"`
	Reasoning  string    `json:"reasoning"`
	Confidence float64   `json:"confidence"`
	Outcome    string    `json:"outcome"`
}
