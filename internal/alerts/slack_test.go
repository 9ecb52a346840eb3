package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebdris/venue-booking/pkg/resilience"
)

func testAlert() RiskAlert {
	return RiskAlert{
		BookingID:  uuid.New(),
		VenueID:    uuid.New(),
		GuestName:  "Jordan Avery",
		GuestEmail: "jordan@example.com",
		PartySize:  4,
		EventDate:  time.Now().Add(72 * time.Hour),
		Score:      85,
		State:      "hard",
		Reasons:    []string{"Tor exit node", "Disposable email domain"},
	}
}

func TestNewSlackClientWithoutWebhook(t *testing.T) {
	assert.Nil(t, NewSlackClient("", "#booking-risk"))
}

func TestSendHoldAlert(t *testing.T) {
	var received slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewSlackClient(server.URL, "#booking-risk")
	err := client.SendHoldAlert(context.Background(), testAlert())

	require.NoError(t, err)
	assert.Equal(t, "#booking-risk", received.Channel)
	require.Len(t, received.Attachments, 1)
	assert.Equal(t, "danger", received.Attachments[0].Color, "hard holds are marked red")
	assert.Contains(t, received.Attachments[0].Text, "Tor exit node")
}

func TestSendHoldAlertSoftStateColor(t *testing.T) {
	var received slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
	}))
	defer server.Close()

	alert := testAlert()
	alert.State = "soft"
	alert.Score = 45

	client := NewSlackClient(server.URL, "")
	require.NoError(t, client.SendHoldAlert(context.Background(), alert))
	assert.Equal(t, "warning", received.Attachments[0].Color)
}

func TestSendHoldAlertServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewSlackClient(server.URL, "")
	client.retry = fastSlackRetry()
	err := client.SendHoldAlert(context.Background(), testAlert())

	assert.Error(t, err)
}

func TestSendHoldAlertRetriesTransientFailure(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewSlackClient(server.URL, "")
	client.retry = fastSlackRetry()
	err := client.SendHoldAlert(context.Background(), testAlert())

	require.NoError(t, err)
	assert.Equal(t, 2, requests)
}

func TestSendConfirmationNotice(t *testing.T) {
	var received slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
	}))
	defer server.Close()

	client := NewSlackClient(server.URL, "#booking-risk")
	require.NoError(t, client.SendConfirmationNotice(context.Background(), testAlert()))

	assert.Contains(t, received.Text, "confirmed after review")
	require.Len(t, received.Attachments, 1)
	assert.Equal(t, "good", received.Attachments[0].Color)
}

func fastSlackRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 1,
	}
}

type recordingSlack struct {
	holds         int
	notices       int
	confirmations int
	rejections    int
	err           error
}

func (r *recordingSlack) SendHoldAlert(_ context.Context, _ RiskAlert) error {
	r.holds++
	return r.err
}

func (r *recordingSlack) SendScreeningNotice(_ context.Context, _ RiskAlert) error {
	r.notices++
	return r.err
}

func (r *recordingSlack) SendConfirmationNotice(_ context.Context, _ RiskAlert) error {
	r.confirmations++
	return r.err
}

func (r *recordingSlack) SendRejectionNotice(_ context.Context, _ RiskAlert, _ string) error {
	r.rejections++
	return r.err
}

type recordingSMS struct {
	sent []string
	err  error
}

func (r *recordingSMS) Send(to, _ string) error {
	r.sent = append(r.sent, to)
	return r.err
}

func TestServiceBookingHeldBestEffort(t *testing.T) {
	slack := &recordingSlack{err: assert.AnError}
	svc := NewService(slack, nil, false)

	// A delivery failure must not propagate.
	svc.BookingHeld(context.Background(), testAlert())
	assert.Equal(t, 1, slack.holds)
}

func TestServiceNilChannels(t *testing.T) {
	svc := NewService(nil, nil, true)

	svc.BookingHeld(context.Background(), testAlert())
	svc.BookingScreened(context.Background(), testAlert())
	svc.BookingConfirmed(context.Background(), testAlert())
	svc.BookingRejected(context.Background(), testAlert(), "reason")
	svc.GuestSMS(context.Background(), "+12125550100", "confirmed")
}

func TestServiceBookingScreenedGate(t *testing.T) {
	slack := &recordingSlack{}

	NewService(slack, nil, false).BookingScreened(context.Background(), testAlert())
	assert.Zero(t, slack.notices)

	NewService(slack, nil, true).BookingScreened(context.Background(), testAlert())
	assert.Equal(t, 1, slack.notices)
}

func TestServiceGuestSMS(t *testing.T) {
	sms := &recordingSMS{}
	svc := NewService(nil, sms, false)

	svc.GuestSMS(context.Background(), "+12125550100", "Your booking is confirmed.")

	assert.Equal(t, []string{"+12125550100"}, sms.sent)
}

func TestServiceGuestSMSEmptyPhone(t *testing.T) {
	sms := &recordingSMS{}
	svc := NewService(nil, sms, false)

	svc.GuestSMS(context.Background(), "", "message")

	assert.Empty(t, sms.sent)
}

func TestServiceBookingConfirmed(t *testing.T) {
	slack := &recordingSlack{}
	svc := NewService(slack, nil, false)

	svc.BookingConfirmed(context.Background(), testAlert())
	assert.Equal(t, 1, slack.confirmations)
}

func TestServiceBookingRejected(t *testing.T) {
	slack := &recordingSlack{}
	svc := NewService(slack, nil, false)

	svc.BookingRejected(context.Background(), testAlert(), "confirmed fraud pattern")
	assert.Equal(t, 1, slack.rejections)
}
