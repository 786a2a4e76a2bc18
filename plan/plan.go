// Package plan defines the structured output of the reasoning stage and a
// decoder that extracts it from free-form model text. The decoder has a
// narrow contract (raw text in, *Plan or *DecodeError out) so the fragile
// parsing can be tested in isolation from the control loop.
package plan

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/kaptinlin/jsonrepair"
)

// NoToolNeeded is the sentinel tool name for a purely conversational turn.
// Steps naming it are skipped silently by the runtime.
const NoToolNeeded = "no_tool_needed"

// Defaults applied when the model omits plan fields.
const (
	DefaultReasoning  = "Processing request"
	DefaultConfidence = 0.7
)

// Step is one planned tool invocation.
type Step struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

// Plan is the reasoning stage output: free-text reasoning, a confidence in
// [0,1], ordered steps and an optional direct conversational response used
// when no tool applies.
type Plan struct {
	Reasoning      string  `json:"reasoning"`
	Confidence     float64 `json:"confidence"`
	Steps          []Step  `json:"steps"`
	DirectResponse string  `json:"direct_response,omitempty"`
}

// DecodeError reports that no well-formed plan object could be extracted
// from the model output. Raw carries a truncated snippet for diagnostics.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode plan from model output: %v (raw: %s)", e.Err, e.Raw)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// objectPattern matches the first brace-delimited region of the response.
// Models frequently wrap the JSON object in prose or code fences.
var objectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// rawPlan uses pointers so omitted fields are distinguishable from zero
// values before defaulting.
type rawPlan struct {
	Reasoning      *string  `json:"reasoning"`
	Confidence     *float64 `json:"confidence"`
	Steps          []Step   `json:"steps"`
	DirectResponse string   `json:"direct_response"`
}

// Decode extracts the first JSON object found in raw and decodes it into a
// Plan. Malformed JSON gets one repair attempt via jsonrepair before the
// decode fails. Missing reasoning/confidence/steps are defaulted rather
// than treated as failures.
func Decode(raw string) (*Plan, error) {
	match := objectPattern.FindString(raw)
	if match == "" {
		return nil, &DecodeError{Raw: truncate(raw, 200), Err: fmt.Errorf("no JSON object in response")}
	}

	var rp rawPlan
	if err := json.Unmarshal([]byte(match), &rp); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(match)
		if repairErr != nil {
			return nil, &DecodeError{Raw: truncate(match, 200), Err: err}
		}
		if err := json.Unmarshal([]byte(repaired), &rp); err != nil {
			return nil, &DecodeError{Raw: truncate(match, 200), Err: err}
		}
	}

	p := &Plan{
		Reasoning:      DefaultReasoning,
		Confidence:     DefaultConfidence,
		Steps:          rp.Steps,
		DirectResponse: rp.DirectResponse,
	}
	if rp.Reasoning != nil {
		p.Reasoning = *rp.Reasoning
	}
	if rp.Confidence != nil {
		p.Confidence = *rp.Confidence
	}
	if len(p.Steps) == 0 {
		p.Steps = []Step{{Tool: NoToolNeeded, Parameters: map[string]any{}}}
	}
	return p, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
