// Package goal implements the shared KPI store: named goals per agent with
// target, measured actual and direction. Goals are never deleted, only
// upserted; actuals change only through explicit metric recording.
package goal

import (
	"sync"
	"time"

	"github.com/opscrew/opscrew/core"
)

// Tracker holds goals keyed by agent name. Shared by reference across all
// agents and the orchestrator.
type Tracker struct {
	mu    sync.Mutex
	goals map[string][]*core.Goal
}

// NewTracker creates an empty tracker. Agents seed their default goals at
// construction via SetGoal.
func NewTracker() *Tracker {
	return &Tracker{goals: map[string][]*core.Goal{}}
}

// SetGoal upserts a goal by name for the agent. An existing goal keeps its
// measured actual; target, unit and direction are replaced.
func (t *Tracker) SetGoal(agent, name string, target float64, unit, direction string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, g := range t.goals[agent] {
		if g.Name == name {
			g.Target = target
			g.Unit = unit
			g.Direction = direction
			return
		}
	}
	t.goals[agent] = append(t.goals[agent], &core.Goal{
		Name:      name,
		Target:    target,
		Unit:      unit,
		Direction: direction,
	})
}

// RecordMetric updates the matching goal's actual value and timestamp.
// Unknown goal names are a no-op.
func (t *Tracker) RecordMetric(agent, name string, actual float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, g := range t.goals[agent] {
		if g.Name == name {
			v := actual
			now := time.Now().UTC()
			g.Actual = &v
			g.LastUpdated = &now
			return
		}
	}
}

// IsGoalMet returns nil if the goal is unknown or unmeasured, otherwise a
// boolean per the goal's direction semantics.
func (t *Tracker) IsGoalMet(agent, name string) *bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, g := range t.goals[agent] {
		if g.Name == name {
			return g.Met()
		}
	}
	return nil
}

// AgentPerformance returns copies of the agent's goals.
func (t *Tracker) AgentPerformance(agent string) []core.Goal {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]core.Goal, 0, len(t.goals[agent]))
	for _, g := range t.goals[agent] {
		out = append(out, *g)
	}
	return out
}

// All returns copies of every agent's goals keyed by agent name.
func (t *Tracker) All() map[string][]core.Goal {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string][]core.Goal, len(t.goals))
	for agent, goals := range t.goals {
		copied := make([]core.Goal, 0, len(goals))
		for _, g := range goals {
			copied = append(copied, *g)
		}
		out[agent] = copied
	}
	return out
}
