package risk

import (
	"context"
	"strings"
	"unicode"
)

// NameAnalyzer scores the guest name.
type NameAnalyzer struct{}

// NewNameAnalyzer creates a name channel analyzer.
func NewNameAnalyzer() *NameAnalyzer {
	return &NameAnalyzer{}
}

func (a *NameAnalyzer) Channel() string { return ChannelName }

func (a *NameAnalyzer) Analyze(_ context.Context, sub *Submission) Signal {
	name := strings.TrimSpace(sub.GuestName)
	if name == "" {
		return NewSignal(0, nil, nil)
	}

	score := 0
	var reasons []string
	features := make(map[string]interface{})

	if containsProfanity(name) {
		score += 90
		reasons = append(reasons, "Profanity detected in guest name")
		features["profane_name"] = true
	}

	if _, ok := containsToken(name, placeholderTokens); ok {
		score += 50
		reasons = append(reasons, "Test or placeholder name")
		features["test_name"] = true
	}

	if looksGibberish(name) {
		score += 30
		reasons = append(reasons, "Gibberish guest name")
		features["gibberish_name"] = true
	}

	if hasDigits(name) {
		score += 25
		reasons = append(reasons, "Digits in guest name")
		features["numeric_name"] = true
	}

	if len([]rune(name)) < 3 {
		score += 15
		reasons = append(reasons, "Implausibly short guest name")
		features["short_name"] = true
	}

	if len(features) == 0 {
		features = nil
	}
	return NewSignal(score, reasons, features)
}

func hasDigits(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
