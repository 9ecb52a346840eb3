package risk

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	redisclient "github.com/calebdris/venue-booking/pkg/redis"
)

func TestEmailAnalyzerCleanAddress(t *testing.T) {
	sub := testSubmission()
	sub.GuestEmail = "jordan.avery@gmail.com"

	s := NewEmailAnalyzer().Analyze(context.Background(), sub)

	assert.Equal(t, 0, s.Score)
	assert.Empty(t, s.Reasons)
}

func TestEmailAnalyzerEmpty(t *testing.T) {
	sub := testSubmission()
	sub.GuestEmail = ""

	s := NewEmailAnalyzer().Analyze(context.Background(), sub)
	assert.Equal(t, 0, s.Score)
}

func TestEmailAnalyzerDisposableDomain(t *testing.T) {
	sub := testSubmission()
	sub.GuestEmail = "someone@mailinator.com"

	s := NewEmailAnalyzer().Analyze(context.Background(), sub)

	assert.Equal(t, 45, s.Score)
	assert.Contains(t, s.Reasons, "Disposable email domain")
	assert.Equal(t, true, s.Features["disposable_email"])
}

func TestEmailAnalyzerPlaceholderToken(t *testing.T) {
	sub := testSubmission()
	sub.GuestEmail = "testuser99@gmail.com"

	s := NewEmailAnalyzer().Analyze(context.Background(), sub)

	assert.Equal(t, true, s.Features["placeholder_email"])
	assert.GreaterOrEqual(t, s.Score, 30)
}

func TestEmailAnalyzerGibberishLocalPart(t *testing.T) {
	sub := testSubmission()
	sub.GuestEmail = "xkcdqwrtzp@gmail.com"

	s := NewEmailAnalyzer().Analyze(context.Background(), sub)

	assert.Equal(t, true, s.Features["gibberish_email"])
}

func TestEmailAnalyzerNumberedPlusTag(t *testing.T) {
	sub := testSubmission()
	sub.GuestEmail = "jordan.avery+83921@gmail.com"

	s := NewEmailAnalyzer().Analyze(context.Background(), sub)

	assert.Equal(t, 10, s.Score)
	assert.Equal(t, true, s.Features["plus_address_tag"])
}

func TestEmailAnalyzerNamedPlusTagNotFlagged(t *testing.T) {
	sub := testSubmission()
	sub.GuestEmail = "jordan.avery+newsletters@gmail.com"

	s := NewEmailAnalyzer().Analyze(context.Background(), sub)

	assert.Equal(t, 0, s.Score)
}

func TestEmailAnalyzerProfanityCanReachMax(t *testing.T) {
	sub := testSubmission()
	sub.GuestEmail = "fuckthisbot@mailinator.com"

	s := NewEmailAnalyzer().Analyze(context.Background(), sub)

	// Profanity 70 + disposable 45 + placeholder 30, clamped.
	assert.Equal(t, 100, s.Score)
	assert.Equal(t, true, s.Features["profane_email"])
}

func TestPhoneAnalyzerEmpty(t *testing.T) {
	sub := testSubmission()
	sub.GuestPhone = ""

	s := NewPhoneAnalyzer().Analyze(context.Background(), sub)
	assert.Equal(t, 0, s.Score)
}

func TestPhoneAnalyzerValidNumber(t *testing.T) {
	sub := testSubmission()
	sub.GuestPhone = "+1 (212) 867-4309"

	s := NewPhoneAnalyzer().Analyze(context.Background(), sub)
	assert.Equal(t, 0, s.Score)
}

func TestPhoneAnalyzerTestPattern(t *testing.T) {
	sub := testSubmission()
	sub.GuestPhone = "+1 555 012 3456"

	s := NewPhoneAnalyzer().Analyze(context.Background(), sub)

	assert.Equal(t, true, s.Features["test_phone"])
	assert.Contains(t, s.Reasons, "Test phone number pattern")
}

func TestPhoneAnalyzerRepeatingDigits(t *testing.T) {
	sub := testSubmission()
	sub.GuestPhone = "7777777777"

	s := NewPhoneAnalyzer().Analyze(context.Background(), sub)

	assert.Equal(t, true, s.Features["repeating_phone"])
}

func TestPhoneAnalyzerSequentialDigits(t *testing.T) {
	sub := testSubmission()
	sub.GuestPhone = "2123456789"

	s := NewPhoneAnalyzer().Analyze(context.Background(), sub)

	assert.Equal(t, true, s.Features["sequential_phone"])
}

func TestPhoneAnalyzerTooShort(t *testing.T) {
	sub := testSubmission()
	sub.GuestPhone = "12345"

	s := NewPhoneAnalyzer().Analyze(context.Background(), sub)

	assert.Equal(t, true, s.Features["invalid_phone"])
}

func TestNameAnalyzerCleanName(t *testing.T) {
	sub := testSubmission()
	sub.GuestName = "Maria Gonzalez"

	s := NewNameAnalyzer().Analyze(context.Background(), sub)
	assert.Equal(t, 0, s.Score)
}

func TestNameAnalyzerProfanityTriggersFloorRange(t *testing.T) {
	sub := testSubmission()
	sub.GuestName = "Fuck You"

	s := NewNameAnalyzer().Analyze(context.Background(), sub)

	assert.GreaterOrEqual(t, s.Score, 90)
	assert.Equal(t, true, s.Features["profane_name"])
}

func TestNameAnalyzerPlaceholder(t *testing.T) {
	sub := testSubmission()
	sub.GuestName = "Test Booking"

	s := NewNameAnalyzer().Analyze(context.Background(), sub)

	assert.Equal(t, true, s.Features["test_name"])
	assert.Contains(t, s.Reasons, "Test or placeholder name")
}

func TestNameAnalyzerDigits(t *testing.T) {
	sub := testSubmission()
	sub.GuestName = "John1234"

	s := NewNameAnalyzer().Analyze(context.Background(), sub)

	assert.Equal(t, true, s.Features["numeric_name"])
}

func TestIPAnalyzerEmpty(t *testing.T) {
	sub := testSubmission()
	sub.IP = ""

	s := NewIPAnalyzer(nil, nil).Analyze(context.Background(), sub)
	assert.Equal(t, 0, s.Score)
}

func TestIPAnalyzerPrivateAddress(t *testing.T) {
	sub := testSubmission()
	sub.IP = "10.1.2.3"

	s := NewIPAnalyzer(nil, nil).Analyze(context.Background(), sub)
	assert.Equal(t, 0, s.Score)
}

func TestIPAnalyzerUnparseable(t *testing.T) {
	sub := testSubmission()
	sub.IP = "not-an-ip"

	s := NewIPAnalyzer(nil, nil).Analyze(context.Background(), sub)

	assert.Equal(t, 10, s.Score)
	assert.Equal(t, true, s.Features["invalid_ip"])
}

func TestIPAnalyzerTorExit(t *testing.T) {
	sub := testSubmission()
	sub.IP = "185.220.101.5"

	s := NewIPAnalyzer([]string{"185.220.101.5"}, nil).Analyze(context.Background(), sub)

	assert.Equal(t, 60, s.Score)
	assert.Equal(t, true, s.Features["tor_exit"])
}

func TestIPAnalyzerDatacenter(t *testing.T) {
	sub := testSubmission()
	sub.IP = "3.15.20.7"

	s := NewIPAnalyzer(nil, nil).Analyze(context.Background(), sub)

	assert.Equal(t, 45, s.Score)
	assert.Equal(t, true, s.Features["datacenter_ip"])
}

func TestIPAnalyzerGeoMismatch(t *testing.T) {
	geo := NewStaticGeoResolver(map[string]string{"198.51.100.0/24": "BR"})

	sub := testSubmission()
	sub.IP = "198.51.100.9"
	sub.CountryHint = "US"

	s := NewIPAnalyzer(nil, geo).Analyze(context.Background(), sub)

	assert.Equal(t, 25, s.Score)
	assert.Equal(t, true, s.Features["geo_mismatch"])
}

func TestIPAnalyzerGeoMatchNoPenalty(t *testing.T) {
	geo := NewStaticGeoResolver(map[string]string{"198.51.100.0/24": "US"})

	sub := testSubmission()
	sub.IP = "198.51.100.9"
	sub.CountryHint = "us"

	s := NewIPAnalyzer(nil, geo).Analyze(context.Background(), sub)

	assert.Equal(t, 0, s.Score)
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) CountRecentByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	args := m.Called(ctx, email, since)
	return args.Int(0), args.Error(1)
}

func (m *mockHistory) CountRecentByPhone(ctx context.Context, phone string, since time.Time) (int, error) {
	args := m.Called(ctx, phone, since)
	return args.Int(0), args.Error(1)
}

func (m *mockHistory) CountDistinctVenuesByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	args := m.Called(ctx, email, since)
	return args.Int(0), args.Error(1)
}

func (m *mockHistory) CountCancelledByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	args := m.Called(ctx, email, since)
	return args.Int(0), args.Error(1)
}

func TestBehavioralAnalyzerQuietHistory(t *testing.T) {
	history := new(mockHistory)
	history.On("CountRecentByEmail", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	history.On("CountDistinctVenuesByEmail", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	history.On("CountCancelledByEmail", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)

	s := NewBehavioralAnalyzer(history, nil).Analyze(context.Background(), testSubmission())

	assert.Equal(t, 0, s.Score)
}

func TestBehavioralAnalyzerVenueHopping(t *testing.T) {
	history := new(mockHistory)
	history.On("CountRecentByEmail", mock.Anything, mock.Anything, mock.Anything).Return(1, nil)
	history.On("CountDistinctVenuesByEmail", mock.Anything, mock.Anything, mock.Anything).Return(4, nil)
	history.On("CountCancelledByEmail", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)

	s := NewBehavioralAnalyzer(history, nil).Analyze(context.Background(), testSubmission())

	assert.Equal(t, 30, s.Score)
	assert.Equal(t, true, s.Features["venue_hopping"])
}

func TestBehavioralAnalyzerHistoryErrorsDegrade(t *testing.T) {
	history := new(mockHistory)
	history.On("CountRecentByEmail", mock.Anything, mock.Anything, mock.Anything).Return(0, assert.AnError)
	history.On("CountDistinctVenuesByEmail", mock.Anything, mock.Anything, mock.Anything).Return(0, assert.AnError)
	history.On("CountCancelledByEmail", mock.Anything, mock.Anything, mock.Anything).Return(0, assert.AnError)

	s := NewBehavioralAnalyzer(history, nil).Analyze(context.Background(), testSubmission())

	assert.Equal(t, 0, s.Score, "store failures must not fail or inflate the screening")
}

func TestBehavioralAnalyzerVelocityBurst(t *testing.T) {
	db, mockRedis := redismock.NewClientMock()
	client := redisclient.Wrap(db)

	sub := testSubmission()
	key := "screen:velocity:email:" + sub.GuestEmail
	mockRedis.ExpectIncr(key).SetVal(3)

	history := new(mockHistory)
	history.On("CountRecentByEmail", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	history.On("CountDistinctVenuesByEmail", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	history.On("CountCancelledByEmail", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)

	s := NewBehavioralAnalyzer(history, client).Analyze(context.Background(), sub)

	assert.Equal(t, 40, s.Score)
	assert.Equal(t, true, s.Features["velocity_burst"])
}

func TestBehavioralAnalyzerPhoneReuse(t *testing.T) {
	history := new(mockHistory)
	history.On("CountRecentByEmail", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	history.On("CountRecentByPhone", mock.Anything, "2125550142", mock.Anything).Return(3, nil)
	history.On("CountDistinctVenuesByEmail", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	history.On("CountCancelledByEmail", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)

	sub := testSubmission()
	sub.GuestPhone = "2125550142"

	s := NewBehavioralAnalyzer(history, nil).Analyze(context.Background(), sub)

	assert.Equal(t, 20, s.Score)
	assert.Equal(t, true, s.Features["phone_reuse"])
}
