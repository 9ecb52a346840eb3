package risk

import (
	"context"
	"strings"
)

// disposableDomains is a baseline set of throwaway email providers. The
// watchlist deny list extends this at runtime without a deploy.
var disposableDomains = map[string]struct{}{
	"mailinator.com":     {},
	"guerrillamail.com":  {},
	"10minutemail.com":   {},
	"tempmail.com":       {},
	"temp-mail.org":      {},
	"throwawaymail.com":  {},
	"yopmail.com":        {},
	"trashmail.com":      {},
	"sharklasers.com":    {},
	"getnada.com":        {},
	"maildrop.cc":        {},
	"dispostable.com":    {},
	"fakeinbox.com":      {},
	"mintemail.com":      {},
	"mytemp.email":       {},
	"spamgourmet.com":    {},
	"mailcatch.com":      {},
	"tempinbox.com":      {},
	"burnermail.io":      {},
	"emailondeck.com":    {},
}

var suspiciousTLDs = []string{".xyz", ".top", ".click", ".loan", ".work", ".gq", ".tk", ".ml", ".cf"}

// EmailAnalyzer scores the guest email address.
type EmailAnalyzer struct{}

// NewEmailAnalyzer creates an email channel analyzer.
func NewEmailAnalyzer() *EmailAnalyzer {
	return &EmailAnalyzer{}
}

func (a *EmailAnalyzer) Channel() string { return ChannelEmail }

func (a *EmailAnalyzer) Analyze(_ context.Context, sub *Submission) Signal {
	email := strings.ToLower(strings.TrimSpace(sub.GuestEmail))
	if email == "" {
		return NewSignal(0, nil, nil)
	}

	local, domain := splitEmail(email)

	score := 0
	var reasons []string
	features := make(map[string]interface{})

	if containsProfanity(local) {
		score += 70
		reasons = append(reasons, "Profanity detected in email address")
		features["profane_email"] = true
	}

	if _, ok := disposableDomains[domain]; ok {
		score += 45
		reasons = append(reasons, "Disposable email domain")
		features["disposable_email"] = true
	}

	if _, ok := containsToken(local, placeholderTokens); ok {
		score += 30
		reasons = append(reasons, "Placeholder keyword in email address")
		features["placeholder_email"] = true
	}

	if looksGibberish(local) {
		score += 25
		reasons = append(reasons, "Gibberish email local part")
		features["gibberish_email"] = true
	}

	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(domain, tld) {
			score += 15
			reasons = append(reasons, "High-risk email TLD")
			features["suspicious_tld"] = true
			break
		}
	}

	if len(local) >= 6 && digitRatio(local) >= 0.6 {
		score += 10
		reasons = append(reasons, "Numeric-heavy email local part")
		features["numeric_email"] = true
	}

	// Plus tags are legitimate; only a numeric tag suggests bulk trial accounts.
	if base, tag, ok := strings.Cut(local, "+"); ok && base != "" && len(tag) > 0 && digitRatio(tag) >= 0.8 {
		score += 10
		reasons = append(reasons, "Numbered plus-address tag")
		features["plus_address_tag"] = true
	}

	if len(features) == 0 {
		features = nil
	}
	return NewSignal(score, reasons, features)
}

func splitEmail(email string) (local, domain string) {
	idx := strings.LastIndex(email, "@")
	if idx < 0 {
		return email, ""
	}
	return email[:idx], email[idx+1:]
}
