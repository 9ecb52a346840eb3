package risk

import "strings"

// fallbackRule maps a heuristic feature flag to an additive score
// contribution for the rule-table advisor.
type fallbackRule struct {
	feature string
	points  int
	reason  string
}

// fallbackRules is the deterministic stand-in for the LLM advisor. Order is
// fixed so the produced reason list is stable.
var fallbackRules = []fallbackRule{
	{"disposable_email", 25, "Disposable email provider"},
	{"test_phone", 25, "Test phone number"},
	{"velocity_burst", 20, "Submission burst detected"},
	{"tor_exit", 20, "Tor network origin"},
	{"datacenter_ip", 15, "Datacenter network origin"},
	{"gibberish_email", 15, "Unpronounceable email address"},
	{"test_name", 15, "Placeholder guest name"},
	{"venue_hopping", 15, "Multiple venues in a short window"},
	{"repeating_phone", 10, "Repeated digit phone number"},
	{"geo_mismatch", 10, "Origin country mismatch"},
	{"voip_phone", 5, "VoIP phone number"},
}

// FallbackAdvice scores a submission from the heuristic feature vector alone.
// It is used whenever the LLM advisor is unconfigured, open-circuited, timed
// out or returned malformed output.
func FallbackAdvice(sub *Submission, features map[string]interface{}) Advice {
	score := 0
	var reasons []string

	for _, rule := range fallbackRules {
		if featureSet(features, rule.feature) {
			score += rule.points
			reasons = append(reasons, rule.reason)
		}
	}

	// Raw substring checks catch placeholder identities even when the
	// channel analyzers were skipped.
	if token, ok := containsToken(sub.GuestName, placeholderTokens); ok && isCorePlaceholder(token) {
		score += 30
		reasons = append(reasons, "Suspicious guest name")
	}
	if token, ok := containsToken(sub.GuestEmail, placeholderTokens); ok && isCorePlaceholder(token) {
		score += 25
		reasons = append(reasons, "Suspicious email address")
	}

	score = ClampScore(score)

	return Advice{
		RiskScore:  score,
		Reasons:    dedupReasons(reasons),
		Confidence: fallbackConfidence(score),
		Analysis:   "Deterministic rule evaluation",
		UsedLLM:    false,
	}
}

// fallbackConfidence bands the rule-table score. Extreme scores are reliable
// in either direction; mid-range scores are where rules alone are weakest.
func fallbackConfidence(score int) string {
	switch {
	case score >= 70 || score <= 20:
		return "high"
	case score >= 40 && score <= 60:
		return "low"
	default:
		return "medium"
	}
}

func featureSet(features map[string]interface{}, key string) bool {
	if features == nil {
		return false
	}
	v, ok := features[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func isCorePlaceholder(token string) bool {
	switch strings.ToLower(token) {
	case "test", "bot", "fake", "spam":
		return true
	}
	return false
}
