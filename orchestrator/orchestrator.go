// Package orchestrator routes natural-language tasks to the right agent
// and runs registered multi-agent workflows. It is the only component with
// a view of every agent; the agents themselves stay unaware of each other.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/opscrew/opscrew/agent"
	"github.com/opscrew/opscrew/bus"
	"github.com/opscrew/opscrew/core"
	"github.com/opscrew/opscrew/learning"
	"github.com/opscrew/opscrew/logging"
	"github.com/opscrew/opscrew/model"
)

// ErrUnknownWorkflow is returned by ExecuteWorkflow for unregistered names.
// No run is created in that case.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// DefaultCompletedCap bounds the completed-run history.
const DefaultCompletedCap = 20

// Route is the outcome of task routing.
type Route struct {
	AgentKey  string `json:"agent_key"`
	Reasoning string `json:"reasoning"`
}

// WorkflowHandler implements one named workflow. It logs its agent calls on
// the run and returns the workflow result. A returned error marks the run
// Failed.
type WorkflowHandler func(ctx context.Context, run *core.WorkflowRun, params map[string]any) (map[string]any, error)

// Escalation is one request an agent refused to handle autonomously,
// queued for human review.
type Escalation struct {
	Timestamp  time.Time `json:"timestamp"`
	Agent      string    `json:"agent"`
	Request    string    `json:"request"`
	Reasoning  string    `json:"reasoning"`
	Confidence float64   `json:"confidence"`
}

// AgentStatus is one agent's routing and performance snapshot.
type AgentStatus struct {
	Key          string         `json:"key"`
	Name         string         `json:"name"`
	Capabilities []string       `json:"capabilities"`
	Stats        learning.Stats `json:"stats"`
	Goals        []core.Goal    `json:"goals"`
}

// Orchestrator coordinates the registered agents. The mutex guards the
// run/escalation state for concurrent Go callers; routing and workflow
// execution themselves are synchronous.
type Orchestrator struct {
	mu sync.Mutex

	modelSvc model.Service
	bus      *bus.Bus
	logger   logging.Logger

	keys     []string
	agents   map[string]*agent.Runtime
	fallback string

	workflows    map[string]WorkflowHandler
	active       map[string]*core.WorkflowRun
	completed    []core.WorkflowRun
	completedCap int

	escalations []Escalation
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFallbackAgent sets the key used when routing cannot decide. Defaults
// to the first registered agent.
func WithFallbackAgent(key string) Option {
	return func(o *Orchestrator) { o.fallback = key }
}

// WithCompletedCap overrides the completed-run history capacity.
func WithCompletedCap(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.completedCap = n
		}
	}
}

// New creates an orchestrator over the shared model and bus.
func New(svc model.Service, b *bus.Bus, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		modelSvc:     svc,
		bus:          b,
		logger:       logging.NewDefaultLogger(),
		agents:       map[string]*agent.Runtime{},
		workflows:    map[string]WorkflowHandler{},
		active:       map[string]*core.WorkflowRun{},
		completedCap: DefaultCompletedCap,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegisterAgent adds an agent under a routing key. The first registered
// agent becomes the routing fallback unless one was configured.
func (o *Orchestrator) RegisterAgent(key string, rt *agent.Runtime) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.agents[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.agents[key] = rt
	if o.fallback == "" {
		o.fallback = key
	}
}

// Agent returns the runtime registered under key.
func (o *Orchestrator) Agent(key string) (*agent.Runtime, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rt, ok := o.agents[key]
	return rt, ok
}

// AgentKeys returns the routing keys in registration order.
func (o *Orchestrator) AgentKeys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// RouteTask asks the model which agent should own the task. The reply is
// matched case-insensitively against the known keys in registration order;
// anything unrecognizable routes to the fallback.
func (o *Orchestrator) RouteTask(ctx context.Context, description string) Route {
	o.mu.Lock()
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	var b strings.Builder
	for _, key := range keys {
		rt := o.agents[key]
		fmt.Fprintf(&b, "- key: %s | name: %s | capabilities: %s\n",
			key, rt.Name(), strings.Join(rt.Capabilities(), ", "))
	}
	fallback := o.fallback
	o.mu.Unlock()

	prompt := fmt.Sprintf(`Route the following task to exactly one agent.

TASK: %q

AGENTS:
%s
Reply with the key of the single best agent and a one-sentence reason.`, description, b.String())

	reply, err := o.modelSvc.Generate(ctx, prompt, "You are a task router for a team of enterprise agents. Always name exactly one agent key.")
	if err != nil {
		o.logger.Warn("routing call failed, using fallback", "error", err)
		return Route{AgentKey: fallback, Reasoning: "routing unavailable, using fallback agent"}
	}

	lower := strings.ToLower(reply)
	for _, key := range keys {
		if strings.Contains(lower, strings.ToLower(key)) {
			return Route{AgentKey: key, Reasoning: strings.TrimSpace(reply)}
		}
	}
	o.logger.Warn("routing reply named no known agent", "reply", reply)
	return Route{AgentKey: fallback, Reasoning: "no agent matched, using fallback agent"}
}

// Dispatch routes the task and processes it on the chosen agent. Escalated
// responses are queued for human review.
func (o *Orchestrator) Dispatch(ctx context.Context, message string, reqCtx map[string]any) (*core.AgentResponse, Route) {
	route := o.RouteTask(ctx, message)

	o.mu.Lock()
	rt := o.agents[route.AgentKey]
	o.mu.Unlock()
	if rt == nil {
		return &core.AgentResponse{
			Response:     "No agent is available to handle this request.",
			ActionsTaken: []core.ActionResult{},
			Escalated:    true,
		}, route
	}

	resp := rt.ProcessRequest(ctx, message, reqCtx)
	if resp.Escalated {
		o.mu.Lock()
		o.escalations = append(o.escalations, Escalation{
			Timestamp:  time.Now().UTC(),
			Agent:      rt.Name(),
			Request:    message,
			Reasoning:  resp.Reasoning,
			Confidence: resp.Confidence,
		})
		o.mu.Unlock()
	}
	return resp, route
}

// RegisterWorkflow adds a named workflow. Re-registering a name overwrites
// the prior handler.
func (o *Orchestrator) RegisterWorkflow(name string, h WorkflowHandler) {
	if h == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workflows[name] = h
}

// WorkflowNames returns the registered workflow names, sorted for stable
// display.
func (o *Orchestrator) WorkflowNames() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.workflows))
	for name := range o.workflows {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ExecuteWorkflow runs a registered workflow to its terminal status. An
// unknown name is an error with no run created. Completed and Failed runs
// both leave the active set and enter the bounded history.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	o.mu.Lock()
	handler, ok := o.workflows[name]
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}
	run := &core.WorkflowRun{
		ID:        "WF-" + core.NewID(),
		Name:      name,
		Params:    params,
		Status:    core.WorkflowInProgress,
		StartedAt: time.Now().UTC(),
	}
	o.active[run.ID] = run
	o.mu.Unlock()

	o.logger.Info("workflow started", "workflow", name, "run_id", run.ID)
	result, err := handler(ctx, run, params)

	now := time.Now().UTC()
	o.mu.Lock()
	run.CompletedAt = &now
	if err != nil {
		run.Status = core.WorkflowFailed
		run.Error = err.Error()
	} else {
		run.Status = core.WorkflowCompleted
	}
	delete(o.active, run.ID)
	o.completed = append(o.completed, *run)
	if len(o.completed) > o.completedCap {
		o.completed = o.completed[len(o.completed)-o.completedCap:]
	}
	o.mu.Unlock()

	if err != nil {
		o.logger.Warn("workflow failed", "workflow", name, "run_id", run.ID, "error", err)
		return nil, err
	}
	o.logger.Info("workflow completed", "workflow", name, "run_id", run.ID, "steps", len(run.Steps))
	if result == nil {
		result = map[string]any{}
	}
	result["workflow_id"] = run.ID
	return result, nil
}

// Active returns copies of the in-flight workflow runs.
func (o *Orchestrator) Active() []core.WorkflowRun {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]core.WorkflowRun, 0, len(o.active))
	for _, run := range o.active {
		out = append(out, *run)
	}
	return out
}

// Completed returns copies of the retained terminal runs, oldest first.
func (o *Orchestrator) Completed() []core.WorkflowRun {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]core.WorkflowRun, len(o.completed))
	copy(out, o.completed)
	return out
}

// Escalations returns the queued human-review items, oldest first.
func (o *Orchestrator) Escalations() []Escalation {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Escalation, len(o.escalations))
	copy(out, o.escalations)
	return out
}

// AgentStatuses returns a snapshot per registered agent in registration
// order.
func (o *Orchestrator) AgentStatuses() []AgentStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]AgentStatus, 0, len(o.keys))
	for _, key := range o.keys {
		rt := o.agents[key]
		out = append(out, AgentStatus{
			Key:          key,
			Name:         rt.Name(),
			Capabilities: rt.Capabilities(),
			Stats:        rt.Stats(),
			Goals:        rt.Goals(),
		})
	}
	return out
}
