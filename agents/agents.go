// Package agents implements the four domain capabilities (HR, IT, Finance,
// Compliance) on top of the shared agent runtime, plus the multi-agent
// workflows they participate in. Each constructor wires a tool registry,
// default goals and event subscriptions, and returns the ready runtime.
//
// Agents never call each other: everything cross-domain travels as a bus
// event or as an explicit workflow step.
package agents

import (
	"strings"

	"github.com/opscrew/opscrew/agent"
	"github.com/opscrew/opscrew/bus"
	"github.com/opscrew/opscrew/core"
	"github.com/opscrew/opscrew/goal"
	"github.com/opscrew/opscrew/learning"
	"github.com/opscrew/opscrew/logging"
	"github.com/opscrew/opscrew/model"
	"github.com/opscrew/opscrew/store"
)

// Deps carries the shared collaborators every agent is built from.
type Deps struct {
	Model       model.Service
	Catalog     *store.Catalog
	Bus         *bus.Bus
	Goals       *goal.Tracker
	LearningDir string
	Logger      logging.Logger

	// Threshold overrides the runtime's escalation threshold when > 0.
	Threshold float64

	// MaxDecisions and MaxOverrides override the learning retention caps
	// when > 0.
	MaxDecisions int
	MaxOverrides int
}

func (d Deps) logger() logging.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logging.NewDefaultLogger()
}

// runtimeOptions assembles the standard option set shared by every agent.
func (d Deps) runtimeOptions(agentName string) []agent.Option {
	learningOpts := []learning.Option{learning.WithLogger(d.logger())}
	if d.MaxDecisions > 0 || d.MaxOverrides > 0 {
		learningOpts = append(learningOpts, learning.WithCaps(d.MaxDecisions, d.MaxOverrides))
	}
	opts := []agent.Option{
		agent.WithLearning(learning.NewModule(agentName, d.LearningDir, learningOpts...)),
		agent.WithBus(d.Bus),
		agent.WithLogger(d.logger()),
	}
	if d.Goals != nil {
		opts = append(opts, agent.WithGoalTracker(d.Goals))
	}
	if d.Catalog != nil {
		opts = append(opts,
			agent.WithIdentityResolver(identityFromCatalog(d.Catalog)),
			agent.WithAudit(d.Catalog),
		)
	}
	if d.Threshold > 0 {
		opts = append(opts, agent.WithEscalationThreshold(d.Threshold))
	}
	return opts
}

// identityFromCatalog adapts the employee record store to the runtime's
// perception lookup.
func identityFromCatalog(c *store.Catalog) agent.IdentityFunc {
	return func(id string) (map[string]any, bool) {
		emp, err := c.GetEmployee(id)
		if err != nil {
			return nil, false
		}
		return map[string]any{
			"employee_id":   emp.ID,
			"name":          emp.Name,
			"department":    emp.Department,
			"position":      emp.Position,
			"leave_balance": emp.LeaveBalance,
			"active":        emp.Active,
		}, true
	}
}

// newRecordID allocates a prefixed identifier for domain records.
func newRecordID(prefix string) string {
	return prefix + "-" + strings.ToUpper(core.NewID()[:8])
}

func errorResult(message string) map[string]any {
	return map[string]any{"status": "error", "message": message}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func numberArg(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
