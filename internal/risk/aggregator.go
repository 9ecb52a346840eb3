package risk

import (
	"context"
	"math"
	"strings"
)

// channelWeights control how much each analyzer contributes to the base
// score. Weights sum to 1.0.
var channelWeights = map[string]float64{
	ChannelEmail:      0.25,
	ChannelPhone:      0.25,
	ChannelName:       0.15,
	ChannelIP:         0.20,
	ChannelBehavioral: 0.15,
}

// extremeChannels participate in the multi-channel override. Phone is
// excluded because test numbers alone are weak evidence of abuse.
var extremeChannels = []string{ChannelEmail, ChannelName, ChannelIP, ChannelBehavioral}

const (
	extremeSignalThreshold = 80
	aiWeight               = 0.3
	aiEscalationThreshold  = 70
	aiEscalationCeiling    = 30
	profanityFloorScore    = 70
)

// Aggregator combines channel signals into a final assessment, optionally
// blending in the advisor's second opinion.
type Aggregator struct {
	advisor   Advisor
	aiEnabled bool
}

// NewAggregator creates an aggregator. advisor may be nil when AI screening
// is disabled.
func NewAggregator(advisor Advisor, aiEnabled bool) *Aggregator {
	return &Aggregator{advisor: advisor, aiEnabled: aiEnabled && advisor != nil}
}

// Aggregate produces the final assessment for a submission from its
// per-channel signals.
func (a *Aggregator) Aggregate(ctx context.Context, sub *Submission, signals map[string]Signal) *Assessment {
	weighted := 0.0
	for channel, weight := range channelWeights {
		weighted += float64(signals[channel].Score) * weight
	}
	score := int(math.Round(weighted))

	// Two or more near-certain channels override the weighted average so a
	// strong multi-channel signal cannot be diluted by clean channels.
	extremeMax := 0
	extremeCount := 0
	for _, channel := range extremeChannels {
		if s := signals[channel].Score; s >= extremeSignalThreshold {
			extremeCount++
			if s > extremeMax {
				extremeMax = s
			}
		}
	}
	if extremeCount >= 2 {
		score = extremeMax
		if score < extremeSignalThreshold {
			score = extremeSignalThreshold
		}
	}

	var reasons []string
	features := make(map[string]interface{})
	breakdown := make(map[string]Signal, len(signals))
	for _, channel := range channelOrder {
		signal, ok := signals[channel]
		if !ok {
			continue
		}
		breakdown[channel] = signal
		reasons = append(reasons, signal.Reasons...)
		for k, v := range signal.Features {
			features[k] = v
		}
	}

	if a.aiEnabled {
		score, reasons = a.blendAdvice(ctx, sub, score, reasons, features)
	}

	score = ClampScore(score)

	// Applied last so no later arithmetic can dip an abusive submission
	// under the review threshold.
	if (signals[ChannelEmail].Score >= MaxScore || signals[ChannelName].Score >= 90) &&
		score < profanityFloorScore {
		score = profanityFloorScore
		reasons = append(reasons, "Minimum score applied due to extreme profanity")
	}

	if len(features) == 0 {
		features = nil
	}

	return &Assessment{
		Score:     score,
		Reasons:   dedupReasons(reasons),
		Features:  features,
		Breakdown: breakdown,
	}
}

// blendAdvice folds the advisor's opinion into the heuristic score. Fallback
// advice never moves the score; only genuine model output blends, so a model
// outage leaves screening fully deterministic.
func (a *Aggregator) blendAdvice(ctx context.Context, sub *Submission, score int, reasons []string, features map[string]interface{}) (int, []string) {
	advice := a.advisor.Advise(ctx, sub, features)

	features["ai_used"] = advice.UsedLLM
	features["ai_confidence"] = advice.Confidence

	if !advice.UsedLLM {
		return score, reasons
	}

	blended := int(math.Round(float64(score)*(1-aiWeight) + float64(advice.RiskScore)*aiWeight))

	// A confident model on an otherwise clean submission escalates rather
	// than being averaged away.
	if advice.RiskScore >= aiEscalationThreshold && score < aiEscalationCeiling {
		if advice.RiskScore > blended {
			blended = advice.RiskScore
		}
		reasons = append(reasons, "AI detected high-risk patterns")
	}

	if summary := adviceSummary(advice); summary != "" {
		reasons = append(reasons, "AI analysis: "+summary)
	}

	return blended, reasons
}

func adviceSummary(advice Advice) string {
	if len(advice.Reasons) > 0 {
		return strings.Join(advice.Reasons, "; ")
	}
	return advice.Analysis
}
