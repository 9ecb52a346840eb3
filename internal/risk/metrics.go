package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	screeningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_screenings_total",
			Help: "Total booking screenings by decision",
		},
		[]string{"decision"},
	)

	screeningScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booking_screening_score",
			Help:    "Distribution of final screening scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screening_llm_requests_total",
			Help: "LLM advisor requests by outcome",
		},
		[]string{"outcome"},
	)

	watchlistMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screening_watchlist_matches_total",
			Help: "Watchlist gate matches by list",
		},
		[]string{"list"},
	)

	reviewDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_review_decisions_total",
			Help: "Manual review decisions by outcome",
		},
		[]string{"decision"},
	)
)

func recordScreening(decision string, score int) {
	screeningsTotal.WithLabelValues(decision).Inc()
	screeningScore.Observe(float64(score))
}

func recordLLMRequest(outcome string) {
	llmRequestsTotal.WithLabelValues(outcome).Inc()
}

func recordWatchlistMatch(list string) {
	watchlistMatchesTotal.WithLabelValues(list).Inc()
}

func recordReviewDecision(decision string) {
	reviewDecisionsTotal.WithLabelValues(decision).Inc()
}
