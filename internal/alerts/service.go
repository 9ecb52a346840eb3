package alerts

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/calebdris/venue-booking/pkg/logger"
)

// SlackNotifier is the subset of the Slack client used by the dispatcher.
type SlackNotifier interface {
	SendHoldAlert(ctx context.Context, alert RiskAlert) error
	SendScreeningNotice(ctx context.Context, alert RiskAlert) error
	SendConfirmationNotice(ctx context.Context, alert RiskAlert) error
	SendRejectionNotice(ctx context.Context, alert RiskAlert, reason string) error
}

// Service dispatches notifications on a best-effort basis. A delivery
// failure is logged and swallowed; it never affects the booking decision
// that triggered it.
type Service struct {
	slack       SlackNotifier
	sms         SMSSender
	sendLowRisk bool
}

// NewService creates an alert dispatcher. Either dependency may be nil when
// the channel is not configured. sendLowRisk controls whether bookings that
// clear screening are announced as well as held ones.
func NewService(slack SlackNotifier, sms SMSSender, sendLowRisk bool) *Service {
	return &Service{slack: slack, sms: sms, sendLowRisk: sendLowRisk}
}

// BookingHeld announces a held booking to the review channel.
func (s *Service) BookingHeld(ctx context.Context, alert RiskAlert) {
	if s.slack == nil {
		return
	}

	ctx, cancel := detach(ctx)
	defer cancel()

	if err := s.slack.SendHoldAlert(ctx, alert); err != nil {
		logger.WithContext(ctx).Warn("failed to send hold alert",
			zap.String("booking_id", alert.BookingID.String()), zap.Error(err))
	}
}

// BookingScreened announces a booking that cleared screening. Skipped unless
// low-risk notifications are turned on.
func (s *Service) BookingScreened(ctx context.Context, alert RiskAlert) {
	if s.slack == nil || !s.sendLowRisk {
		return
	}

	ctx, cancel := detach(ctx)
	defer cancel()

	if err := s.slack.SendScreeningNotice(ctx, alert); err != nil {
		logger.WithContext(ctx).Warn("failed to send screening notice",
			zap.String("booking_id", alert.BookingID.String()), zap.Error(err))
	}
}

// BookingConfirmed tells venue operators that a held booking cleared review
// and is going ahead.
func (s *Service) BookingConfirmed(ctx context.Context, alert RiskAlert) {
	if s.slack == nil {
		return
	}

	ctx, cancel := detach(ctx)
	defer cancel()

	if err := s.slack.SendConfirmationNotice(ctx, alert); err != nil {
		logger.WithContext(ctx).Warn("failed to send confirmation notice",
			zap.String("booking_id", alert.BookingID.String()), zap.Error(err))
	}
}

// BookingRejected announces a reviewer rejection to the review channel.
func (s *Service) BookingRejected(ctx context.Context, alert RiskAlert, reason string) {
	if s.slack == nil {
		return
	}

	ctx, cancel := detach(ctx)
	defer cancel()

	if err := s.slack.SendRejectionNotice(ctx, alert, reason); err != nil {
		logger.WithContext(ctx).Warn("failed to send rejection notice",
			zap.String("booking_id", alert.BookingID.String()), zap.Error(err))
	}
}

// GuestSMS texts the guest a booking status update.
func (s *Service) GuestSMS(ctx context.Context, phone, message string) {
	if s.sms == nil || phone == "" {
		return
	}

	if err := s.sms.Send(phone, message); err != nil {
		logger.WithContext(ctx).Warn("failed to send confirmation sms", zap.Error(err))
	}
}

// detach rebinds the alert to a fresh deadline so a nearly-expired request
// context does not cancel an in-flight notification.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
}
