package risk

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/calebdris/venue-booking/pkg/logger"
)

// HistoryStore exposes the booking history queries used for behavioral
// scoring.
type HistoryStore interface {
	CountRecentByEmail(ctx context.Context, email string, since time.Time) (int, error)
	CountRecentByPhone(ctx context.Context, phone string, since time.Time) (int, error)
	CountDistinctVenuesByEmail(ctx context.Context, email string, since time.Time) (int, error)
	CountCancelledByEmail(ctx context.Context, email string, since time.Time) (int, error)
}

// VelocityCounter tracks short-window submission counts. Backed by Redis so
// bursts are visible across instances before rows land in Postgres.
type VelocityCounter interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// BehavioralAnalyzer scores submission patterns over time. Store failures
// degrade the signal instead of failing the screening.
type BehavioralAnalyzer struct {
	history  HistoryStore
	velocity VelocityCounter
}

// NewBehavioralAnalyzer creates a behavioral channel analyzer. velocity may
// be nil when Redis is unavailable.
func NewBehavioralAnalyzer(history HistoryStore, velocity VelocityCounter) *BehavioralAnalyzer {
	return &BehavioralAnalyzer{history: history, velocity: velocity}
}

func (a *BehavioralAnalyzer) Channel() string { return ChannelBehavioral }

func (a *BehavioralAnalyzer) Analyze(ctx context.Context, sub *Submission) Signal {
	if sub.GuestEmail == "" {
		return NewSignal(0, nil, nil)
	}

	score := 0
	var reasons []string
	features := make(map[string]interface{})
	now := time.Now().UTC()

	if a.velocity != nil {
		key := fmt.Sprintf("screen:velocity:email:%s", sub.GuestEmail)
		if count, err := a.velocity.IncrementWindow(ctx, key, 10*time.Minute); err != nil {
			logger.Warn("velocity counter unavailable", zap.Error(err))
		} else if count >= 3 {
			score += 40
			reasons = append(reasons, "Rapid submission burst")
			features["velocity_burst"] = true
		}

		if sub.IP != "" {
			ipKey := fmt.Sprintf("screen:velocity:ip:%s", sub.IP)
			if count, err := a.velocity.IncrementWindow(ctx, ipKey, time.Hour); err != nil {
				logger.Warn("velocity counter unavailable", zap.Error(err))
			} else if count >= 6 {
				score += 25
				reasons = append(reasons, "High submission rate from source IP")
				features["ip_velocity"] = true
			}
		}
	}

	if a.history != nil {
		if count, err := a.history.CountRecentByEmail(ctx, sub.GuestEmail, now.Add(-24*time.Hour)); err != nil {
			logger.Warn("booking history unavailable", zap.Error(err))
		} else if count >= 3 {
			score += 30
			reasons = append(reasons, "High booking velocity")
			features["velocity"] = true
		}

		if sub.GuestPhone != "" {
			// Same phone under different emails is a common evasion pattern.
			if count, err := a.history.CountRecentByPhone(ctx, sub.GuestPhone, now.Add(-24*time.Hour)); err != nil {
				logger.Warn("booking history unavailable", zap.Error(err))
			} else if count >= 3 {
				score += 20
				reasons = append(reasons, "Repeated submissions from phone number")
				features["phone_reuse"] = true
			}
		}

		if venues, err := a.history.CountDistinctVenuesByEmail(ctx, sub.GuestEmail, now.Add(-24*time.Hour)); err != nil {
			logger.Warn("booking history unavailable", zap.Error(err))
		} else if venues >= 3 {
			score += 30
			reasons = append(reasons, "Venue hopping pattern")
			features["venue_hopping"] = true
		}

		if cancelled, err := a.history.CountCancelledByEmail(ctx, sub.GuestEmail, now.Add(-7*24*time.Hour)); err != nil {
			logger.Warn("booking history unavailable", zap.Error(err))
		} else if cancelled >= 2 {
			score += 20
			reasons = append(reasons, "Repeated recent cancellations")
			features["repeat_cancellations"] = true
		}
	}

	if len(features) == 0 {
		features = nil
	}
	return NewSignal(score, reasons, features)
}
