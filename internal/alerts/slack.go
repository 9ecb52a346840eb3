package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/calebdris/venue-booking/pkg/resilience"
)

// SlackClient posts risk alerts to an incoming webhook. Sends are guarded by
// a circuit breaker so a Slack outage cannot back up screening.
type SlackClient struct {
	webhookURL string
	channel    string
	client     *http.Client
	breaker    *resilience.CircuitBreaker
	retry      resilience.RetryConfig
}

// NewSlackClient creates a Slack webhook client. Returns nil when no webhook
// is configured so callers can treat Slack as absent.
func NewSlackClient(webhookURL, channel string) *SlackClient {
	if webhookURL == "" {
		return nil
	}

	return &SlackClient{
		webhookURL: webhookURL,
		channel:    channel,
		client:     &http.Client{Timeout: 5 * time.Second},
		breaker: resilience.NewCircuitBreaker(resilience.Settings{
			Name:             "slack-webhook",
			Timeout:          time.Minute,
			FailureThreshold: 3,
		}, nil),
		retry: resilience.ConservativeRetryConfig(),
	}
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color,omitempty"`
	Title  string       `json:"title,omitempty"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	Ts     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// SendHoldAlert notifies the review channel that a booking was held.
func (s *SlackClient) SendHoldAlert(ctx context.Context, alert RiskAlert) error {
	color := "warning"
	if alert.State == "hard" {
		color = "danger"
	}

	msg := slackMessage{
		Channel: s.channel,
		Text:    fmt.Sprintf("Booking held for review (score %d)", alert.Score),
		Attachments: []slackAttachment{{
			Color: color,
			Title: fmt.Sprintf("Booking %s", alert.BookingID),
			Text:  strings.Join(alert.Reasons, "\n"),
			Fields: []slackField{
				{Title: "Guest", Value: alert.GuestName, Short: true},
				{Title: "Email", Value: alert.GuestEmail, Short: true},
				{Title: "Party size", Value: fmt.Sprintf("%d", alert.PartySize), Short: true},
				{Title: "Event date", Value: alert.EventDate.Format("2006-01-02"), Short: true},
				{Title: "Risk state", Value: alert.State, Short: true},
				{Title: "Score", Value: fmt.Sprintf("%d/100", alert.Score), Short: true},
			},
			Footer: "venue-booking screening",
			Ts:     time.Now().Unix(),
		}},
	}

	return s.post(ctx, msg)
}

// SendScreeningNotice posts an informational note for a booking that cleared
// screening. Only sent when low-risk notifications are enabled.
func (s *SlackClient) SendScreeningNotice(ctx context.Context, alert RiskAlert) error {
	msg := slackMessage{
		Channel: s.channel,
		Text:    fmt.Sprintf("Booking %s cleared screening (score %d)", alert.BookingID, alert.Score),
		Attachments: []slackAttachment{{
			Color: "good",
			Fields: []slackField{
				{Title: "Guest", Value: alert.GuestName, Short: true},
				{Title: "Score", Value: fmt.Sprintf("%d/100", alert.Score), Short: true},
			},
			Footer: "venue-booking screening",
			Ts:     time.Now().Unix(),
		}},
	}

	return s.post(ctx, msg)
}

// SendConfirmationNotice tells the venue channel that a held booking was
// approved and is going ahead.
func (s *SlackClient) SendConfirmationNotice(ctx context.Context, alert RiskAlert) error {
	msg := slackMessage{
		Channel: s.channel,
		Text:    fmt.Sprintf("Booking %s confirmed after review", alert.BookingID),
		Attachments: []slackAttachment{{
			Color: "good",
			Fields: []slackField{
				{Title: "Guest", Value: alert.GuestName, Short: true},
				{Title: "Party size", Value: fmt.Sprintf("%d", alert.PartySize), Short: true},
				{Title: "Event date", Value: alert.EventDate.Format("2006-01-02"), Short: true},
				{Title: "Score", Value: fmt.Sprintf("%d/100", alert.Score), Short: true},
			},
			Footer: "venue-booking screening",
			Ts:     time.Now().Unix(),
		}},
	}

	return s.post(ctx, msg)
}

// SendRejectionNotice notifies the review channel that a reviewer rejected a
// booking.
func (s *SlackClient) SendRejectionNotice(ctx context.Context, alert RiskAlert, reason string) error {
	msg := slackMessage{
		Channel: s.channel,
		Text:    fmt.Sprintf("Booking %s rejected after review", alert.BookingID),
		Attachments: []slackAttachment{{
			Color: "danger",
			Text:  reason,
			Fields: []slackField{
				{Title: "Guest", Value: alert.GuestName, Short: true},
				{Title: "Score", Value: fmt.Sprintf("%d/100", alert.Score), Short: true},
			},
			Footer: "venue-booking screening",
			Ts:     time.Now().Unix(),
		}},
	}

	return s.post(ctx, msg)
}

func (s *SlackClient) post(ctx context.Context, msg slackMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	// Transient webhook failures are retried through the breaker; an open
	// breaker short-circuits the remaining attempts.
	_, err = resilience.RetryWithBreaker(ctx, s.retry, s.breaker, func(ctx context.Context) (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to build slack request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("slack request failed: %w", err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("slack returned status %d", resp.StatusCode)
		}
		return nil, nil
	})

	return err
}
