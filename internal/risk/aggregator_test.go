package risk

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdvisor struct {
	advice Advice
	called bool
}

func (s *stubAdvisor) Advise(_ context.Context, _ *Submission, _ map[string]interface{}) Advice {
	s.called = true
	return s.advice
}

func testSubmission() *Submission {
	return &Submission{
		BookingID:  uuid.New(),
		VenueID:    uuid.New(),
		GuestName:  "Jordan Avery",
		GuestEmail: "jordan@example.com",
		PartySize:  4,
		EventDate:  time.Now().Add(72 * time.Hour),
	}
}

func signalsWith(scores map[string]int) map[string]Signal {
	signals := make(map[string]Signal, len(channelOrder))
	for _, channel := range channelOrder {
		signals[channel] = NewSignal(scores[channel], nil, nil)
	}
	return signals
}

func TestAggregateWeightedAverage(t *testing.T) {
	agg := NewAggregator(nil, false)

	// 40*.25 + 20*.25 + 0*.15 + 30*.20 + 10*.15 = 22.5 -> 23
	a := agg.Aggregate(context.Background(), testSubmission(), signalsWith(map[string]int{
		ChannelEmail:      40,
		ChannelPhone:      20,
		ChannelName:       0,
		ChannelIP:         30,
		ChannelBehavioral: 10,
	}))

	assert.Equal(t, 23, a.Score)
}

func TestAggregateExtremeOverride(t *testing.T) {
	agg := NewAggregator(nil, false)

	a := agg.Aggregate(context.Background(), testSubmission(), signalsWith(map[string]int{
		ChannelEmail:      90,
		ChannelPhone:      10,
		ChannelName:       85,
		ChannelIP:         95,
		ChannelBehavioral: 0,
	}))

	assert.Equal(t, 95, a.Score, "two or more extreme channels must override the weighted average")
}

func TestAggregateSingleExtremeDoesNotOverride(t *testing.T) {
	agg := NewAggregator(nil, false)

	a := agg.Aggregate(context.Background(), testSubmission(), signalsWith(map[string]int{
		ChannelEmail: 90,
	}))

	// 90*.25 = 22.5 -> 23, no override with only one extreme channel.
	assert.Equal(t, 23, a.Score)
}

func TestAggregatePhoneExcludedFromOverride(t *testing.T) {
	agg := NewAggregator(nil, false)

	a := agg.Aggregate(context.Background(), testSubmission(), signalsWith(map[string]int{
		ChannelEmail: 90,
		ChannelPhone: 95,
	}))

	// Phone does not count toward the extreme set, so this stays weighted:
	// 90*.25 + 95*.25 = 46.25 -> 46.
	assert.Equal(t, 46, a.Score)
}

func TestAggregateProfanityFloorFromEmail(t *testing.T) {
	agg := NewAggregator(nil, false)

	a := agg.Aggregate(context.Background(), testSubmission(), signalsWith(map[string]int{
		ChannelEmail: 100,
	}))

	assert.Equal(t, 70, a.Score)
	assert.Contains(t, a.Reasons, "Minimum score applied due to extreme profanity")
}

func TestAggregateProfanityFloorFromName(t *testing.T) {
	agg := NewAggregator(nil, false)

	a := agg.Aggregate(context.Background(), testSubmission(), signalsWith(map[string]int{
		ChannelName: 92,
	}))

	assert.Equal(t, 70, a.Score)
	assert.Contains(t, a.Reasons, "Minimum score applied due to extreme profanity")
}

func TestAggregateProfanityFloorNotAppliedAboveThreshold(t *testing.T) {
	agg := NewAggregator(nil, false)

	a := agg.Aggregate(context.Background(), testSubmission(), signalsWith(map[string]int{
		ChannelEmail: 100,
		ChannelName:  95,
		ChannelIP:    90,
	}))

	assert.Equal(t, 100, a.Score)
	assert.NotContains(t, a.Reasons, "Minimum score applied due to extreme profanity")
}

func TestAggregateBlendsLLMAdvice(t *testing.T) {
	advisor := &stubAdvisor{advice: Advice{RiskScore: 80, Confidence: "high", UsedLLM: true,
		Reasons: []string{"coordinated pattern"}}}
	agg := NewAggregator(advisor, true)

	a := agg.Aggregate(context.Background(), testSubmission(), signalsWith(map[string]int{
		ChannelEmail: 60,
		ChannelPhone: 60,
	}))

	// Base 60*.25 + 60*.25 = 30, blended 30*.7 + 80*.3 = 45.
	require.True(t, advisor.called)
	assert.Equal(t, 45, a.Score)
	assert.Contains(t, a.Reasons, "AI analysis: coordinated pattern")
	assert.Equal(t, true, a.Features["ai_used"])
}

func TestAggregateAIEscalation(t *testing.T) {
	advisor := &stubAdvisor{advice: Advice{RiskScore: 85, Confidence: "high", UsedLLM: true}}
	agg := NewAggregator(advisor, true)

	a := agg.Aggregate(context.Background(), testSubmission(), signalsWith(map[string]int{
		ChannelEmail: 20,
	}))

	// Base 5, blended 5*.7+85*.3 = 29 -> escalated to the model's score.
	assert.Equal(t, 85, a.Score)
	assert.Contains(t, a.Reasons, "AI detected high-risk patterns")
}

func TestAggregateFallbackAdviceDoesNotBlend(t *testing.T) {
	advisor := &stubAdvisor{advice: Advice{RiskScore: 90, Confidence: "high", UsedLLM: false}}
	agg := NewAggregator(advisor, true)

	a := agg.Aggregate(context.Background(), testSubmission(), signalsWith(map[string]int{
		ChannelEmail: 40,
	}))

	require.True(t, advisor.called)
	assert.Equal(t, 10, a.Score, "fallback advice must not move the heuristic score")
	assert.Equal(t, false, a.Features["ai_used"])
}

func TestAggregateAIDisabled(t *testing.T) {
	advisor := &stubAdvisor{advice: Advice{RiskScore: 90, UsedLLM: true}}
	agg := NewAggregator(advisor, false)

	a := agg.Aggregate(context.Background(), testSubmission(), signalsWith(map[string]int{
		ChannelEmail: 40,
	}))

	assert.False(t, advisor.called)
	assert.Equal(t, 10, a.Score)
}

func TestAggregateBreakdownSnapshot(t *testing.T) {
	agg := NewAggregator(nil, false)

	signals := map[string]Signal{
		ChannelEmail: NewSignal(45, []string{"Disposable email domain"},
			map[string]interface{}{"disposable_email": true}),
		ChannelIP: NewSignal(60, []string{"Tor exit node"},
			map[string]interface{}{"tor_exit": true}),
	}

	a := agg.Aggregate(context.Background(), testSubmission(), signals)

	assert.Equal(t, 45, a.Breakdown[ChannelEmail].Score)
	assert.Equal(t, 60, a.Breakdown[ChannelIP].Score)
	assert.Equal(t, []string{"Disposable email domain", "Tor exit node"}, a.Reasons)
	assert.Equal(t, true, a.Features["disposable_email"])
	assert.Equal(t, true, a.Features["tor_exit"])
}
