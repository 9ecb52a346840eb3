package risk

import (
	"encoding/json"
	"fmt"
)

// Score bounds. Every signal and assessment score is clamped into this range
// at construction time.
const (
	MinScore = 0
	MaxScore = 100
)

// ClampScore forces a score into the valid range.
func ClampScore(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

// Signal is the outcome of a single analyzer channel.
type Signal struct {
	Score    int                    `json:"score"`
	Reasons  []string               `json:"reasons,omitempty"`
	Features map[string]interface{} `json:"features,omitempty"`
}

// NewSignal builds a channel signal with a clamped score and deduplicated
// reasons.
func NewSignal(score int, reasons []string, features map[string]interface{}) Signal {
	return Signal{
		Score:    ClampScore(score),
		Reasons:  dedupReasons(reasons),
		Features: features,
	}
}

// Assessment is the final screening verdict for a submission. It is built
// once by the aggregator and persisted as the booking's risk snapshot.
type Assessment struct {
	Score     int                    `json:"score"`
	Reasons   []string               `json:"reasons"`
	Features  map[string]interface{} `json:"features,omitempty"`
	Breakdown map[string]Signal      `json:"breakdown,omitempty"`
}

// Marshal serializes the assessment for storage.
func (a *Assessment) Marshal() ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal assessment: %w", err)
	}
	return data, nil
}

// ParseAssessment reconstructs a stored assessment snapshot.
func ParseAssessment(data []byte) (*Assessment, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var a Assessment
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse assessment: %w", err)
	}

	a.Score = ClampScore(a.Score)
	return &a, nil
}

// dedupReasons removes duplicates while preserving first-seen order.
func dedupReasons(reasons []string) []string {
	if len(reasons) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(reasons))
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
