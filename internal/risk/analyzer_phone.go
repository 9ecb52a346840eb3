package risk

import (
	"context"
	"strings"
)

// voipPrefixes are NANP area codes commonly assigned to VoIP and
// non-geographic services.
var voipPrefixes = []string{"456", "500", "521", "522", "523", "533", "544", "566", "577", "588", "700"}

// PhoneAnalyzer scores the guest phone number. A missing phone is not
// penalized here; its absence only matters for notifications.
type PhoneAnalyzer struct{}

// NewPhoneAnalyzer creates a phone channel analyzer.
func NewPhoneAnalyzer() *PhoneAnalyzer {
	return &PhoneAnalyzer{}
}

func (a *PhoneAnalyzer) Channel() string { return ChannelPhone }

func (a *PhoneAnalyzer) Analyze(_ context.Context, sub *Submission) Signal {
	digits := digitsOnly(sub.GuestPhone)
	if digits == "" {
		return NewSignal(0, nil, nil)
	}

	score := 0
	var reasons []string
	features := make(map[string]interface{})

	national := stripCountryCode(digits)

	if strings.HasPrefix(national, "555") || strings.Contains(national, "5550") {
		score += 40
		reasons = append(reasons, "Test phone number pattern")
		features["test_phone"] = true
	}

	if repeatedDigit(national, 7) {
		score += 35
		reasons = append(reasons, "Repeating digit phone number")
		features["repeating_phone"] = true
	}

	if sequentialRun(national, 7) {
		score += 30
		reasons = append(reasons, "Sequential digit phone number")
		features["sequential_phone"] = true
	}

	if len(digits) < 7 || len(digits) > 15 {
		score += 20
		reasons = append(reasons, "Invalid phone number length")
		features["invalid_phone"] = true
	}

	for _, prefix := range voipPrefixes {
		if strings.HasPrefix(national, prefix) {
			score += 15
			reasons = append(reasons, "VoIP number range")
			features["voip_phone"] = true
			break
		}
	}

	if len(features) == 0 {
		features = nil
	}
	return NewSignal(score, reasons, features)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripCountryCode(digits string) string {
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		return digits[1:]
	}
	return digits
}

func repeatedDigit(digits string, minRun int) bool {
	run := 1
	for i := 1; i < len(digits); i++ {
		if digits[i] == digits[i-1] {
			run++
			if run >= minRun {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func sequentialRun(digits string, minRun int) bool {
	run := 1
	for i := 1; i < len(digits); i++ {
		if digits[i] == digits[i-1]+1 {
			run++
			if run >= minRun {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
