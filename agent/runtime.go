package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opscrew/opscrew/bus"
	"github.com/opscrew/opscrew/core"
	"github.com/opscrew/opscrew/goal"
	"github.com/opscrew/opscrew/learning"
	"github.com/opscrew/opscrew/logging"
	"github.com/opscrew/opscrew/model"
	"github.com/opscrew/opscrew/plan"
	"github.com/opscrew/opscrew/tool"
)

// DefaultEscalationThreshold is the confidence below which a request is
// escalated instead of acted on.
const DefaultEscalationThreshold = 0.6

// defaultMaxExamples bounds how many similar past decisions enter the
// planning prompt.
const defaultMaxExamples = 3

// resultSummaryLimit truncates tool results before they are summarized for
// the synthesis call.
const resultSummaryLimit = 500

// Runtime drives one agent's control loop. Confidence semantics: the
// planner's belief that the produced plan is the correct action for the
// request; missing information must lower confidence and be named in the
// reasoning. Escalation therefore always means "a human should look at
// this request", whatever the cause.
type Runtime struct {
	capability Capability
	registry   *tool.Registry
	modelSvc   model.Service
	learning   *learning.Module
	goals      *goal.Tracker
	eventBus   *bus.Bus
	identity   IdentityResolver
	audit      core.AuditSink
	logger     logging.Logger

	threshold   float64
	maxExamples int

	history []HistoryEntry
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLearning attaches the agent's learning module.
func WithLearning(m *learning.Module) Option {
	return func(r *Runtime) { r.learning = m }
}

// WithGoalTracker attaches the shared goal tracker.
func WithGoalTracker(t *goal.Tracker) Option {
	return func(r *Runtime) { r.goals = t }
}

// WithBus attaches the shared event bus.
func WithBus(b *bus.Bus) Option {
	return func(r *Runtime) { r.eventBus = b }
}

// WithIdentityResolver attaches the record-store identity lookup used
// during perception.
func WithIdentityResolver(res IdentityResolver) Option {
	return func(r *Runtime) { r.identity = res }
}

// WithAudit attaches the audit sink.
func WithAudit(sink core.AuditSink) Option {
	return func(r *Runtime) {
		if sink != nil {
			r.audit = sink
		}
	}
}

// WithLogger sets the runtime logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithEscalationThreshold overrides the confidence threshold.
func WithEscalationThreshold(v float64) Option {
	return func(r *Runtime) { r.threshold = v }
}

// New composes a runtime around a domain capability, its tool registry and
// a language model.
func New(capability Capability, registry *tool.Registry, svc model.Service, opts ...Option) *Runtime {
	r := &Runtime{
		capability:  capability,
		registry:    registry,
		modelSvc:    svc,
		audit:       core.NoOpAuditSink{},
		logger:      logging.NewDefaultLogger(),
		threshold:   DefaultEscalationThreshold,
		maxExamples: defaultMaxExamples,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the agent's name.
func (r *Runtime) Name() string { return r.capability.Name() }

// Capabilities returns the agent's declared capability list.
func (r *Runtime) Capabilities() []string { return r.capability.Capabilities() }

// Registry exposes the agent's tool registry.
func (r *Runtime) Registry() *tool.Registry { return r.registry }

// History returns the session's in-memory decision entries.
func (r *Runtime) History() []HistoryEntry {
	out := make([]HistoryEntry, len(r.history))
	copy(out, r.history)
	return out
}

// Stats returns the agent's learning performance stats.
func (r *Runtime) Stats() learning.Stats {
	if r.learning == nil {
		return learning.Stats{}
	}
	return r.learning.PerformanceStats()
}

// HandleEvent forwards a bus event to the domain capability.
func (r *Runtime) HandleEvent(eventType string, payload map[string]any) {
	r.capability.HandleEvent(eventType, payload)
}

// SubscribeEvents wires the capability's HandleEvent to the shared bus for
// the given event types.
func (r *Runtime) SubscribeEvents(eventTypes ...string) {
	if r.eventBus == nil {
		return
	}
	for _, et := range eventTypes {
		r.eventBus.Subscribe(et, func(eventType string, payload map[string]any) error {
			r.capability.HandleEvent(eventType, payload)
			return nil
		})
	}
}

// Goals returns the agent's KPI goals from the shared tracker.
func (r *Runtime) Goals() []core.Goal {
	if r.goals == nil {
		return nil
	}
	return r.goals.AgentPerformance(r.Name())
}

// ProcessRequest runs the full control loop for one natural-language
// request. It always returns a well-formed response: planning failures and
// low confidence terminate with Escalated=true, never with an error, which
// is why the method has no error return.
func (r *Runtime) ProcessRequest(ctx context.Context, message string, reqCtx map[string]any) *core.AgentResponse {
	if reqCtx == nil {
		reqCtx = map[string]any{}
	}

	// 1. Perceive
	perception := r.perceive(message, reqCtx)

	// 2. Reason & plan
	p, err := r.reasonAndPlan(ctx, message, perception)
	if err != nil {
		r.logger.Warn("planning failed", "agent", r.Name(), "error", err)
		r.audit.Record(r.Name(), "Escalated to Human", map[string]any{
			"request": message,
			"reason":  err.Error(),
		}, actingUser(reqCtx))
		return &core.AgentResponse{
			Response:     r.fallbackResponse(),
			ActionsTaken: []core.ActionResult{},
			Reasoning:    err.Error(),
			Confidence:   0,
			Escalated:    true,
		}
	}

	// 3. Escalation check
	if p.Confidence < r.threshold {
		r.audit.Record(r.Name(), "Escalated to Human", map[string]any{
			"request":    message,
			"reasoning":  p.Reasoning,
			"confidence": p.Confidence,
		}, actingUser(reqCtx))
		return &core.AgentResponse{
			Response: fmt.Sprintf(
				"I've analyzed your request but I'm not confident enough to act autonomously (confidence: %.0f%%). My reasoning: %s\n\nThis has been escalated for human review.",
				p.Confidence*100, p.Reasoning),
			ActionsTaken: []core.ActionResult{},
			Reasoning:    p.Reasoning,
			Confidence:   p.Confidence,
			Escalated:    true,
		}
	}

	// 4. Act
	actions := r.act(ctx, p, reqCtx)

	// 5. Evaluate & respond
	response := r.evaluateAndRespond(ctx, message, p.Reasoning, actions, p.DirectResponse)

	// 6. Learn
	outcome := core.OutcomeSuccess
	for _, a := range actions {
		if !a.Success {
			outcome = core.OutcomePartialFailure
			break
		}
	}
	tools := make([]string, 0, len(actions))
	for _, a := range actions {
		tools = append(tools, a.Tool)
	}
	if r.learning != nil {
		r.learning.RecordDecision(message, map[string]any{
			"perception": perception,
			"tools_used": tools,
		}, p.Reasoning, p.Confidence, outcome)
	}
	r.history = append(r.history, HistoryEntry{
		Timestamp:  time.Now().UTC(),
		Task:       message,
		Tools:      tools,
		Reasoning:  p.Reasoning,
		Confidence: p.Confidence,
		Outcome:    outcome,
	})

	// 7. Update goals
	if updater, ok := r.capability.(GoalUpdater); ok {
		updater.UpdateGoals(actions)
	}

	return &core.AgentResponse{
		Response:     response,
		ActionsTaken: actions,
		Reasoning:    p.Reasoning,
		Confidence:   p.Confidence,
		Escalated:    false,
	}
}

// perceive assembles the planning context. The record is transient: it
// exists only to build the prompt and is snapshotted into the decision
// record afterwards.
func (r *Runtime) perceive(message string, reqCtx map[string]any) map[string]any {
	perception := map[string]any{
		"user_message":    message,
		"agent":           r.Name(),
		"available_tools": r.registry.Names(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}

	if id, _ := reqCtx["employee_id"].(string); id != "" && r.identity != nil {
		if block, ok := r.identity.Lookup(id); ok {
			perception["employee"] = block
		}
	}

	if r.learning != nil {
		past := r.learning.RelevantExamples(message, r.maxExamples)
		if len(past) > 0 {
			examples := make([]map[string]any, 0, len(past))
			for _, d := range past {
				examples = append(examples, map[string]any{
					"task":       d.Task,
					"decision":   d.Decision,
					"confidence": d.Confidence,
					"outcome":    d.Outcome,
				})
			}
			perception["similar_past_decisions"] = examples
		}
	}

	if provider, ok := r.capability.(DomainContextProvider); ok {
		for k, v := range provider.DomainContext(message, reqCtx) {
			perception[k] = v
		}
	}
	return perception
}

// reasonAndPlan performs the single planning round trip and decodes the
// plan. There is no retry; any failure is terminal for this request.
func (r *Runtime) reasonAndPlan(ctx context.Context, message string, perception map[string]any) (*plan.Plan, error) {
	prompt := r.buildPlanningPrompt(message, perception)
	raw, err := r.modelSvc.GenerateStructured(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("planning call failed: %w", err)
	}
	p, err := plan.Decode(raw)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Runtime) buildPlanningPrompt(message string, perception map[string]any) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, an autonomous AI agent in an enterprise system.\n\n", r.Name())
	b.WriteString("TASK: Analyze the user's request and decide what action(s) to take.\n\n")
	fmt.Fprintf(&b, "USER REQUEST: %q\n", message)

	if emp, ok := perception["employee"]; ok {
		fmt.Fprintf(&b, "\nEmployee Context:\n  %s\n", compactJSON(emp))
	}
	if past, ok := perception["similar_past_decisions"].([]map[string]any); ok {
		b.WriteString("\nSimilar Past Decisions (learn from these):\n")
		for _, d := range past {
			fmt.Fprintf(&b, "  - Task: %v → Decision: %v (confidence: %v, outcome: %v)\n",
				d["task"], d["decision"], d["confidence"], d["outcome"])
		}
	}
	if domain := domainOnly(perception); len(domain) > 0 {
		fmt.Fprintf(&b, "\nAdditional Context:\n  %s\n", compactJSON(domain))
	}

	fmt.Fprintf(&b, "\nAVAILABLE TOOLS:\n%s\n\n", r.registry.Describe())
	b.WriteString(`INSTRUCTIONS:
1. Reason about what the user needs
2. Decide which tool(s) to call (or "no_tool_needed" for conversational responses)
3. Extract the required parameters from the user's message and context
4. Assess your confidence (0.0 to 1.0)

Return ONLY a valid JSON object in this exact format:
{
  "reasoning": "Your step-by-step reasoning about what the user needs and why you chose this action",
  "confidence": 0.85,
  "steps": [
    {"tool": "tool_name", "parameters": {"param1": "value1"}}
  ],
  "direct_response": "If no tool is needed, put your conversational response here"
}

RULES:
- Parameter values must be concrete (extracted from the message/context), never placeholders
- If information is missing and you cannot infer it, set confidence low and explain in reasoning
- For date parameters, use YYYY-MM-DD format
- If the request is purely informational/conversational, use tool "no_tool_needed" with empty parameters
- You may plan multiple steps if the request requires sequential actions
`)
	return b.String()
}

// act executes the plan's steps strictly in order. Failures are contained
// per step; execution always continues to the next step.
func (r *Runtime) act(ctx context.Context, p *plan.Plan, reqCtx map[string]any) []core.ActionResult {
	actions := []core.ActionResult{}
	for _, step := range p.Steps {
		if step.Tool == plan.NoToolNeeded {
			continue
		}

		name := step.Tool
		if name == "" {
			name = "unknown"
		}
		params := step.Parameters
		if params == nil {
			params = map[string]any{}
		}

		result, err := r.registry.Execute(ctx, step.Tool, params)
		if err != nil {
			message := err.Error()
			if errors.Is(err, tool.ErrToolNotFound) {
				message = fmt.Sprintf("Tool '%s' not found", step.Tool)
			}
			actions = append(actions, core.ActionResult{
				Tool:       name,
				Parameters: params,
				Result:     map[string]any{"status": "error", "message": message},
				Success:    false,
			})
		} else {
			actions = append(actions, core.ActionResult{
				Tool:       name,
				Parameters: params,
				Result:     result,
				Success:    result["status"] != "error",
			})
		}

		r.audit.Record(r.Name(), step.Tool, map[string]any{
			"parameters": params,
			"success":    actions[len(actions)-1].Success,
		}, actingUser(reqCtx))
	}
	return actions
}

// evaluateAndRespond turns action results into a natural-language reply.
// The synthesis call is recoverable: a templated sentence stands in when
// the model is unavailable.
func (r *Runtime) evaluateAndRespond(ctx context.Context, message, reasoning string, actions []core.ActionResult, directResponse string) string {
	if len(actions) == 0 && directResponse != "" {
		return directResponse
	}

	summary := "No actions taken."
	if len(actions) > 0 {
		lines := make([]string, 0, len(actions))
		for _, a := range actions {
			result := compactJSON(a.Result)
			if len(result) > resultSummaryLimit {
				result = result[:resultSummaryLimit] + "..."
			}
			lines = append(lines, fmt.Sprintf("Tool: %s | Success: %t | Result: %s", a.Tool, a.Success, result))
		}
		summary = strings.Join(lines, "\n")
	}

	prompt := fmt.Sprintf(`You are %s. You just processed a user's request.

ORIGINAL REQUEST: %q

YOUR REASONING: %s

ACTIONS TAKEN AND RESULTS:
%s

Generate a clear, helpful response for the user. Include:
- What you did and the outcome
- Any relevant details (IDs, dates, amounts, etc.)
- If something failed, explain what went wrong and suggest next steps
- Be professional, concise, and helpful

Do NOT mention tool names or internal system details. Speak naturally as an agent helping the user.
`, r.Name(), message, reasoning, summary)

	system := fmt.Sprintf("You are a helpful %s assistant. Respond naturally and concisely.", r.Name())
	response, err := r.modelSvc.Generate(ctx, prompt, system)
	if err != nil || strings.TrimSpace(response) == "" {
		r.logger.Warn("response synthesis failed, using template", "agent", r.Name(), "error", err)
		if len(actions) > 0 && actions[0].Success {
			return fmt.Sprintf("Done! I've processed your request. %s", reasoning)
		}
		return fmt.Sprintf("I attempted to process your request but encountered an issue. %s", reasoning)
	}
	return response
}

// fallbackResponse is the deterministic reply used when planning fails
// outright.
func (r *Runtime) fallbackResponse() string {
	return fmt.Sprintf(
		"I can help you with the following: %s. Could you please rephrase your request with more details?",
		strings.Join(r.registry.Names(), ", "))
}

func actingUser(reqCtx map[string]any) string {
	if id, _ := reqCtx["employee_id"].(string); id != "" {
		return id
	}
	return "System"
}

// domainOnly strips the runtime-assembled keys, leaving what the domain
// hook contributed.
func domainOnly(perception map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range perception {
		switch k {
		case "user_message", "agent", "available_tools", "timestamp", "employee", "similar_past_decisions":
		default:
			out[k] = v
		}
	}
	return out
}

func compactJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
