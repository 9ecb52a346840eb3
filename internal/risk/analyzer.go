package risk

import (
	"context"
	"strings"
	"unicode"
)

// Analyzer channels in aggregation order.
const (
	ChannelEmail      = "email"
	ChannelPhone      = "phone"
	ChannelName       = "name"
	ChannelIP         = "ip"
	ChannelBehavioral = "behavioral"
)

var channelOrder = []string{ChannelEmail, ChannelPhone, ChannelName, ChannelIP, ChannelBehavioral}

// Analyzer scores one channel of a submission. Analyzers never fail a
// screening; lookup errors degrade to a weaker signal.
type Analyzer interface {
	Channel() string
	Analyze(ctx context.Context, sub *Submission) Signal
}

// placeholderTokens are substrings that mark throwaway identities.
var placeholderTokens = []string{"test", "bot", "fake", "spam", "asdf", "qwerty", "dummy", "sample"}

// profanityTerms flag abusive submissions. Matching is substring based on the
// lowercased value.
var profanityTerms = []string{
	"fuck", "shit", "bitch", "asshole", "bastard", "dick", "cunt", "piss",
	"wanker", "prick", "slut", "whore", "douche",
}

func containsToken(value string, tokens []string) (string, bool) {
	v := strings.ToLower(value)
	for _, t := range tokens {
		if strings.Contains(v, t) {
			return t, true
		}
	}
	return "", false
}

func containsProfanity(value string) bool {
	_, ok := containsToken(value, profanityTerms)
	return ok
}

// looksGibberish flags strings with no vowels or long consonant runs, a
// common trait of keyboard-mash identities.
func looksGibberish(value string) bool {
	letters := 0
	vowels := 0
	consonantRun := 0
	maxRun := 0

	for _, r := range strings.ToLower(value) {
		if !unicode.IsLetter(r) {
			consonantRun = 0
			continue
		}
		letters++
		if strings.ContainsRune("aeiouy", r) {
			vowels++
			consonantRun = 0
			continue
		}
		consonantRun++
		if consonantRun > maxRun {
			maxRun = consonantRun
		}
	}

	if letters < 5 {
		return false
	}
	if vowels == 0 {
		return true
	}
	return maxRun >= 5
}

func digitRatio(value string) float64 {
	if value == "" {
		return 0
	}
	digits := 0
	for _, r := range value {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return float64(digits) / float64(len(value))
}
