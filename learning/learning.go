// Package learning keeps each agent's append-only decision and override
// history, persists it to a single JSON document per agent, and retrieves
// past decisions similar to a new task by keyword overlap for few-shot
// prompting.
package learning

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/opscrew/opscrew/core"
	"github.com/opscrew/opscrew/logging"
)

// Retention caps. Oldest entries drop first once a cap is exceeded.
const (
	DefaultMaxDecisions = 500
	DefaultMaxOverrides = 100
)

// Stats summarizes an agent's decision history.
type Stats struct {
	TotalDecisions    int     `json:"total_decisions"`
	TotalOverrides    int     `json:"total_overrides"`
	OverrideRate      float64 `json:"override_rate"`
	AverageConfidence float64 `json:"average_confidence"`
}

// historyFile is the on-disk document: both capped lists in one file,
// rewritten in full after every append.
type historyFile struct {
	Decisions []core.DecisionRecord `json:"decisions"`
	Overrides []core.OverrideRecord `json:"overrides"`
}

// Module is one agent's learning store. Append-only in memory, bounded on
// disk.
type Module struct {
	mu           sync.Mutex
	agent        string
	dir          string
	decisions    []core.DecisionRecord
	overrides    []core.OverrideRecord
	maxDecisions int
	maxOverrides int
	logger       logging.Logger
}

// Option configures a Module.
type Option func(*Module)

// WithCaps overrides the retention caps.
func WithCaps(decisions, overrides int) Option {
	return func(m *Module) {
		if decisions > 0 {
			m.maxDecisions = decisions
		}
		if overrides > 0 {
			m.maxOverrides = overrides
		}
	}
}

// WithLogger sets the module logger.
func WithLogger(l logging.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewModule creates the learning module for agentName, loading any prior
// history from dir. A missing or corrupt history file starts empty; only
// unreadable directories are reported as errors later, at save time.
func NewModule(agentName, dir string, opts ...Option) *Module {
	m := &Module{
		agent:        agentName,
		dir:          dir,
		maxDecisions: DefaultMaxDecisions,
		maxOverrides: DefaultMaxOverrides,
		logger:       logging.NewDefaultLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.load()
	return m
}

// RecordDecision appends a decision and persists the history. The created
// record is returned so callers can reference its ID in later overrides.
func (m *Module) RecordDecision(task string, context map[string]any, decision string, confidence float64, outcome string) core.DecisionRecord {
	rec := core.DecisionRecord{
		ID:         "DEC-" + core.NewID(),
		Agent:      m.agent,
		Timestamp:  time.Now().UTC(),
		Task:       task,
		Context:    context,
		Decision:   decision,
		Confidence: confidence,
		Outcome:    outcome,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, rec)
	if len(m.decisions) > m.maxDecisions {
		m.decisions = m.decisions[len(m.decisions)-m.maxDecisions:]
	}
	m.save()
	return rec
}

// RecordOverride appends a human override of a prior decision and persists
// the history.
func (m *Module) RecordOverride(decisionID, original, corrective, reason string) {
	rec := core.OverrideRecord{
		DecisionID: decisionID,
		Agent:      m.agent,
		Timestamp:  time.Now().UTC(),
		Original:   original,
		Corrective: corrective,
		Reason:     reason,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides = append(m.overrides, rec)
	if len(m.overrides) > m.maxOverrides {
		m.overrides = m.overrides[len(m.overrides)-m.maxOverrides:]
	}
	m.save()
}

// RelevantExamples returns up to n stored decisions sharing at least one
// lower-cased whitespace token with task, ranked by shared-token count
// descending. Ties keep insertion order.
func (m *Module) RelevantExamples(task string, n int) []core.DecisionRecord {
	keywords := tokenSet(task)

	m.mu.Lock()
	defer m.mu.Unlock()

	type scored struct {
		score int
		rec   core.DecisionRecord
	}
	var matches []scored
	for _, d := range m.decisions {
		overlap := 0
		for w := range tokenSet(d.Task) {
			if _, ok := keywords[w]; ok {
				overlap++
			}
		}
		if overlap > 0 {
			matches = append(matches, scored{score: overlap, rec: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	if n > len(matches) {
		n = len(matches)
	}
	out := make([]core.DecisionRecord, 0, n)
	for _, s := range matches[:n] {
		out = append(out, s.rec)
	}
	return out
}

// PerformanceStats returns decision count, override count, override rate
// as a percentage and mean confidence.
func (m *Module) PerformanceStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		TotalDecisions: len(m.decisions),
		TotalOverrides: len(m.overrides),
	}
	if s.TotalDecisions == 0 {
		return s
	}
	var sum float64
	for _, d := range m.decisions {
		sum += d.Confidence
	}
	s.OverrideRate = float64(s.TotalOverrides) / float64(s.TotalDecisions) * 100
	s.AverageConfidence = sum / float64(s.TotalDecisions)
	return s
}

func tokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = struct{}{}
	}
	return out
}

func (m *Module) filePath() string {
	slug := strings.ReplaceAll(strings.ToLower(m.agent), " ", "_")
	return filepath.Join(m.dir, slug+"_learning.json")
}

func (m *Module) load() {
	raw, err := os.ReadFile(m.filePath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("could not read learning history", "agent", m.agent, "error", err)
		}
		return
	}
	var hf historyFile
	if err := json.Unmarshal(raw, &hf); err != nil {
		m.logger.Warn("corrupt learning history, starting empty", "agent", m.agent, "error", err)
		return
	}
	m.decisions = hf.Decisions
	m.overrides = hf.Overrides
}

// save rewrites the whole history file. Callers hold the mutex.
func (m *Module) save() {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		m.logger.Error("could not create learning dir", "agent", m.agent, "error", err)
		return
	}
	hf := historyFile{Decisions: m.decisions, Overrides: m.overrides}
	raw, err := json.MarshalIndent(hf, "", "  ")
	if err != nil {
		m.logger.Error("could not marshal learning history", "agent", m.agent, "error", err)
		return
	}
	if err := os.WriteFile(m.filePath(), raw, 0o644); err != nil {
		m.logger.Error(fmt.Sprintf("could not persist learning history for %s", m.agent), "error", err)
	}
}
