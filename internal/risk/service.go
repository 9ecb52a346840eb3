package risk

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/calebdris/venue-booking/internal/alerts"
	"github.com/calebdris/venue-booking/internal/audit"
	"github.com/calebdris/venue-booking/internal/booking"
	"github.com/calebdris/venue-booking/internal/watchlist"
	"github.com/calebdris/venue-booking/pkg/common"
	"github.com/calebdris/venue-booking/pkg/config"
	"github.com/calebdris/venue-booking/pkg/logger"
)

const smsScoreCeiling = 80

var tracer = otel.Tracer("screening")

// WatchlistMatcher resolves a submission against the allow and deny lists.
type WatchlistMatcher interface {
	Match(ctx context.Context, input watchlist.MatchInput) (*watchlist.Match, error)
}

// RepositoryInterface defines the persistence operations used by the service.
type RepositoryInterface interface {
	SaveScreening(ctx context.Context, bookingID uuid.UUID, a *Assessment, state booking.RiskState, entries []*audit.Entry) error
	ApproveBooking(ctx context.Context, bookingID, reviewerID uuid.UUID, entry *audit.Entry) (*booking.Booking, error)
	RejectBooking(ctx context.Context, bookingID, reviewerID uuid.UUID, refundReason string, entry *audit.Entry) (*booking.Booking, error)
}

// BookingStore provides read access to bookings.
type BookingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	ListHeld(ctx context.Context, limit, offset int) ([]*booking.Booking, int64, error)
}

// AuditLog provides read access to the audit trail.
type AuditLog interface {
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*audit.Entry, error)
	ListByEvent(ctx context.Context, event audit.Event, limit, offset int) ([]*audit.Entry, int64, error)
}

// Dispatcher sends best-effort notifications.
type Dispatcher interface {
	BookingHeld(ctx context.Context, alert alerts.RiskAlert)
	BookingScreened(ctx context.Context, alert alerts.RiskAlert)
	BookingConfirmed(ctx context.Context, alert alerts.RiskAlert)
	BookingRejected(ctx context.Context, alert alerts.RiskAlert, reason string)
	GuestSMS(ctx context.Context, phone, message string)
}

// Service screens booking submissions and runs the manual review workflow.
type Service struct {
	cfg        *config.RiskConfig
	analyzers  []Analyzer
	aggregator *Aggregator
	watchlists WatchlistMatcher
	repo       RepositoryInterface
	bookings   BookingStore
	auditLog   AuditLog
	dispatcher Dispatcher
}

// NewService creates the screening service.
func NewService(
	cfg *config.RiskConfig,
	analyzers []Analyzer,
	aggregator *Aggregator,
	watchlists WatchlistMatcher,
	repo RepositoryInterface,
	bookings BookingStore,
	auditLog AuditLog,
	dispatcher Dispatcher,
) *Service {
	return &Service{
		cfg:        cfg,
		analyzers:  analyzers,
		aggregator: aggregator,
		watchlists: watchlists,
		repo:       repo,
		bookings:   bookings,
		auditLog:   auditLog,
		dispatcher: dispatcher,
	}
}

// ScreenBookingByID loads a booking and screens it with the given request
// context attributes.
func (s *Service) ScreenBookingByID(ctx context.Context, bookingID uuid.UUID, req *ScreenRequest) (*Assessment, booking.RiskState, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return nil, booking.RiskStateNone, common.NewNotFoundError("booking not found", err)
		}
		return nil, booking.RiskStateNone, common.NewInternalError("failed to load booking", err)
	}

	sub := &Submission{
		BookingID:   b.ID,
		VenueID:     b.VenueID,
		GuestName:   b.GuestName,
		GuestEmail:  b.GuestEmail,
		GuestPhone:  b.GuestPhone,
		PartySize:   b.PartySize,
		EventDate:   b.EventDate,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		CountryHint: req.CountryHint,
	}

	return s.ScreenBooking(ctx, sub)
}

// ScreenBooking scores a submission and routes the booking through the
// decision gate. The assessment, status transition and audit entries commit
// atomically; notifications are dispatched after the commit.
func (s *Service) ScreenBooking(ctx context.Context, sub *Submission) (*Assessment, booking.RiskState, error) {
	ctx, span := tracer.Start(ctx, "risk.screen_booking")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", sub.BookingID.String()))

	// Disabled screening is a pure no-op. Nothing is persisted or audited,
	// and previously stored risk fields stay untouched.
	if !s.cfg.ScreeningEnabled {
		return &Assessment{Score: 0, Reasons: []string{"Screening disabled"}}, booking.RiskStateNone, nil
	}

	if assessment, state, handled, err := s.applyWatchlists(ctx, sub); err != nil {
		return nil, booking.RiskStateNone, err
	} else if handled {
		return assessment, state, nil
	}

	signals := make(map[string]Signal, len(s.analyzers))
	for _, analyzer := range s.analyzers {
		signals[analyzer.Channel()] = analyzer.Analyze(ctx, sub)
	}

	assessment := s.aggregator.Aggregate(ctx, sub, signals)
	state := s.decide(assessment.Score)
	span.SetAttributes(
		attribute.Int("risk.score", assessment.Score),
		attribute.String("risk.state", string(state)),
	)

	if err := s.persist(ctx, sub, assessment, state, nil); err != nil {
		return nil, booking.RiskStateNone, err
	}

	logger.WithContext(ctx).Info("booking screened",
		zap.String("booking_id", sub.BookingID.String()),
		zap.Int("score", assessment.Score),
		zap.String("state", string(state)))

	if state.Held() {
		s.dispatcher.BookingHeld(ctx, s.alertFor(sub, assessment, state))
	} else {
		s.dispatcher.BookingScreened(ctx, s.alertFor(sub, assessment, state))
	}

	return assessment, state, nil
}

// applyWatchlists short-circuits screening on a list match. The allow list
// wins over the deny list.
func (s *Service) applyWatchlists(ctx context.Context, sub *Submission) (*Assessment, booking.RiskState, bool, error) {
	match, err := s.watchlists.Match(ctx, watchlist.MatchInput{
		Email: sub.GuestEmail,
		Phone: sub.GuestPhone,
		IP:    sub.IP,
		Name:  sub.GuestName,
	})
	if err != nil {
		return nil, booking.RiskStateNone, false, common.NewInternalError("watchlist lookup failed", err)
	}
	if match == nil {
		return nil, booking.RiskStateNone, false, nil
	}

	recordWatchlistMatch(string(match.List))

	if match.List == watchlist.ListAllow {
		assessment := &Assessment{Score: MinScore, Reasons: []string{"Whitelisted entity"}}
		extra := audit.NewEntry(sub.BookingID, audit.EventWhitelisted, map[string]interface{}{
			"match_type":  string(match.Type),
			"match_value": match.Value,
		}).WithIP(sub.IP)

		if err := s.persist(ctx, sub, assessment, booking.RiskStateNone, []*audit.Entry{extra}); err != nil {
			return nil, booking.RiskStateNone, false, err
		}
		return assessment, booking.RiskStateNone, true, nil
	}

	assessment := &Assessment{
		Score:    MaxScore,
		Reasons:  []string{"Blacklisted entity"},
		Features: map[string]interface{}{"blacklist_match": string(match.Type)},
	}
	extra := audit.NewEntry(sub.BookingID, audit.EventBlacklisted, map[string]interface{}{
		"match_type":  string(match.Type),
		"match_value": match.Value,
	}).WithIP(sub.IP)

	if err := s.persist(ctx, sub, assessment, booking.RiskStateHard, []*audit.Entry{extra}); err != nil {
		return nil, booking.RiskStateNone, false, err
	}

	s.dispatcher.BookingHeld(ctx, s.alertFor(sub, assessment, booking.RiskStateHard))

	return assessment, booking.RiskStateHard, true, nil
}

// decide maps a final score to a routing state.
func (s *Service) decide(score int) booking.RiskState {
	switch {
	case score >= s.cfg.ThresholdHard:
		return booking.RiskStateHard
	case score >= s.cfg.ThresholdSoft:
		return booking.RiskStateSoft
	default:
		return booking.RiskStateNone
	}
}

// persist writes the screening outcome with its full audit trail. The
// SCORED entry is always recorded, followed by the routing entry.
func (s *Service) persist(ctx context.Context, sub *Submission, a *Assessment, state booking.RiskState, extra []*audit.Entry) error {
	entries := append([]*audit.Entry{}, extra...)

	// The SCORED payload carries the full snapshot so the assessment can be
	// reconstructed from the audit trail alone. Raw contact fields stay out;
	// features and per-channel scores carry no direct PII.
	scored := map[string]interface{}{
		"score":   a.Score,
		"state":   string(state),
		"reasons": a.Reasons,
	}
	if len(a.Features) > 0 {
		scored["features"] = a.Features
	}
	if len(a.Breakdown) > 0 {
		channels := make(map[string]int, len(a.Breakdown))
		for channel, signal := range a.Breakdown {
			channels[channel] = signal.Score
		}
		scored["breakdown"] = channels
	}
	entries = append(entries, audit.NewEntry(sub.BookingID, audit.EventScored, scored).WithIP(sub.IP))

	routing := audit.EventAutoApproved
	payload := map[string]interface{}{"score": a.Score}
	if state.Held() {
		routing = audit.EventAutoHeld
		payload["state"] = string(state)
	}
	entries = append(entries, audit.NewEntry(sub.BookingID, routing, payload).WithIP(sub.IP))

	if err := s.repo.SaveScreening(ctx, sub.BookingID, a, state, entries); err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return common.NewNotFoundError("booking not found", err)
		}
		return common.NewInternalError("failed to persist screening", err)
	}

	decision := "auto_approved"
	if state.Held() {
		decision = "auto_held"
	}
	recordScreening(decision, a.Score)

	return nil
}

// Approve confirms a held booking after manual review.
func (s *Service) Approve(ctx context.Context, bookingID, reviewerID uuid.UUID, clientIP string) (*booking.Booking, error) {
	entry := audit.NewEntry(bookingID, audit.EventApproved, map[string]interface{}{
		"reviewer": reviewerID.String(),
	}).WithActor(reviewerID).WithIP(clientIP)

	b, err := s.repo.ApproveBooking(ctx, bookingID, reviewerID, entry)
	if err != nil {
		return nil, reviewError(err, "failed to approve booking")
	}

	recordReviewDecision("approved")
	logger.WithContext(ctx).Info("booking approved after review",
		zap.String("booking_id", bookingID.String()),
		zap.String("reviewer_id", reviewerID.String()))

	// Release the notifications withheld while the booking was on hold. The
	// guest text goes out regardless of the prior score; a reviewer approval
	// overrides what screening thought.
	if b.GuestPhone != "" {
		s.dispatcher.GuestSMS(ctx, b.GuestPhone,
			fmt.Sprintf("Your booking for %s has been confirmed.", b.EventDate.Format("Jan 2, 2006")))
	}
	s.dispatcher.BookingConfirmed(ctx, alertFromBooking(b))

	return b, nil
}

// Reject cancels a held booking after manual review.
func (s *Service) Reject(ctx context.Context, bookingID, reviewerID uuid.UUID, reason, clientIP string) (*booking.Booking, error) {
	entry := audit.NewEntry(bookingID, audit.EventRejected, map[string]interface{}{
		"reviewer": reviewerID.String(),
		"reason":   reason,
	}).WithActor(reviewerID).WithIP(clientIP)

	refundReason := "Risk review rejection: " + reason

	b, err := s.repo.RejectBooking(ctx, bookingID, reviewerID, refundReason, entry)
	if err != nil {
		return nil, reviewError(err, "failed to reject booking")
	}

	recordReviewDecision("rejected")
	logger.WithContext(ctx).Info("booking rejected after review",
		zap.String("booking_id", bookingID.String()),
		zap.String("reviewer_id", reviewerID.String()))

	s.dispatcher.BookingRejected(ctx, alertFromBooking(b), reason)

	// Guests are told only when the score stayed below the ceiling. Texting
	// a likely-fraudulent contact would tip them off to the screening.
	if b.GuestPhone != "" && (b.RiskScore == nil || *b.RiskScore < smsScoreCeiling) {
		s.dispatcher.GuestSMS(ctx, b.GuestPhone,
			fmt.Sprintf("Your booking request for %s could not be confirmed. Any payment will be refunded.",
				b.EventDate.Format("Jan 2, 2006")))
	}

	return b, nil
}

// GetHeldBookings returns the review queue.
func (s *Service) GetHeldBookings(ctx context.Context, limit, offset int) ([]*ReviewItem, int64, error) {
	bookings, total, err := s.bookings.ListHeld(ctx, limit, offset)
	if err != nil {
		return nil, 0, common.NewInternalError("failed to list held bookings", err)
	}

	items := make([]*ReviewItem, 0, len(bookings))
	for _, b := range bookings {
		item := &ReviewItem{
			ID:         b.ID,
			VenueID:    b.VenueID,
			GuestName:  b.GuestName,
			GuestEmail: b.GuestEmail,
			PartySize:  b.PartySize,
			EventDate:  b.EventDate,
			RiskState:  string(b.RiskState),
			Reasons:    b.RiskReasons,
			HeldAt:     b.UpdatedAt,
		}
		if b.RiskScore != nil {
			item.RiskScore = *b.RiskScore
		}
		items = append(items, item)
	}

	return items, total, nil
}

// GetBookingRisk returns a booking with its stored assessment and full audit
// trail.
func (s *Service) GetBookingRisk(ctx context.Context, bookingID uuid.UUID) (*booking.Booking, *Assessment, []*audit.Entry, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return nil, nil, nil, common.NewNotFoundError("booking not found", err)
		}
		return nil, nil, nil, common.NewInternalError("failed to load booking", err)
	}

	assessment, err := ParseAssessment(b.RiskMetadata)
	if err != nil {
		logger.WithContext(ctx).Warn("stored assessment is unreadable",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
	}

	trail, err := s.auditLog.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, nil, common.NewInternalError("failed to load audit trail", err)
	}

	return b, assessment, trail, nil
}

// ListAuditByEvent returns recent audit entries of one event type, newest
// first. Used by reviewers to sample decisions across bookings.
func (s *Service) ListAuditByEvent(ctx context.Context, event audit.Event, limit, offset int) ([]*audit.Entry, int64, error) {
	entries, total, err := s.auditLog.ListByEvent(ctx, event, limit, offset)
	if err != nil {
		return nil, 0, common.NewInternalError("failed to list audit entries", err)
	}
	return entries, total, nil
}

// alertFromBooking builds a notification payload from a booking's stored
// risk fields.
func alertFromBooking(b *booking.Booking) alerts.RiskAlert {
	alert := alerts.RiskAlert{
		BookingID:  b.ID,
		VenueID:    b.VenueID,
		GuestName:  b.GuestName,
		GuestEmail: b.GuestEmail,
		PartySize:  b.PartySize,
		EventDate:  b.EventDate,
		State:      string(b.RiskState),
	}
	if b.RiskScore != nil {
		alert.Score = *b.RiskScore
	}
	if assessment, _ := ParseAssessment(b.RiskMetadata); assessment != nil {
		alert.Reasons = assessment.Reasons
	}
	return alert
}

func (s *Service) alertFor(sub *Submission, a *Assessment, state booking.RiskState) alerts.RiskAlert {
	return alerts.RiskAlert{
		BookingID:  sub.BookingID,
		VenueID:    sub.VenueID,
		GuestName:  sub.GuestName,
		GuestEmail: sub.GuestEmail,
		PartySize:  sub.PartySize,
		EventDate:  sub.EventDate,
		Score:      a.Score,
		State:      string(state),
		Reasons:    a.Reasons,
	}
}

func reviewError(err error, msg string) error {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		return common.NewNotFoundError("booking not found", err)
	case errors.Is(err, ErrAlreadyReviewed):
		return common.NewConflictError("booking was already reviewed", err)
	default:
		return common.NewInternalError(msg, err)
	}
}
