// Package model defines the language-model capability contract used by the
// agent runtime and the orchestrator, plus a deterministic mock for tests.
// Provider adapters live in the openai and anthropic subpackages.
package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Service is the minimal interface the core needs from a language model.
// Both calls block and return plain text; the caller owns all parsing and
// treats failures as recoverable.
type Service interface {
	// Generate produces a conversational completion for prompt, optionally
	// steered by a system prompt.
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)

	// GenerateStructured produces text expected to contain exactly one
	// JSON object. Used for the planning stage; typically routed to a
	// stronger model by implementations.
	GenerateStructured(ctx context.Context, prompt string) (string, error)
}

// Mock is an in-memory Service for tests and offline use. Responses are
// selected by substring match against the prompt, first registered match
// wins.
type Mock struct {
	mu        sync.Mutex
	keys      []string
	responses map[string]string
	err       error
	calls     []string
}

// NewMock constructs an empty mock model.
func NewMock() *Mock {
	return &Mock{responses: map[string]string{}}
}

// AddResponse registers a canned completion returned whenever the prompt
// contains substr.
func (m *Mock) AddResponse(substr, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.responses[substr]; !ok {
		m.keys = append(m.keys, substr)
	}
	m.responses[substr] = response
}

// Fail makes every subsequent call return err.
func (m *Mock) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the prompts received so far.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *Mock) respond(prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, prompt)
	if m.err != nil {
		return "", m.err
	}
	for _, k := range m.keys {
		if strings.Contains(prompt, k) {
			return m.responses[k], nil
		}
	}
	return fmt.Sprintf("Mock response to: %s", firstLine(prompt)), nil
}

// Generate implements Service.
func (m *Mock) Generate(_ context.Context, prompt, _ string) (string, error) {
	return m.respond(prompt)
}

// GenerateStructured implements Service.
func (m *Mock) GenerateStructured(_ context.Context, prompt string) (string, error) {
	return m.respond(prompt)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
