package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/calebdris/venue-booking/internal/audit"
	"github.com/calebdris/venue-booking/internal/booking"
	"github.com/calebdris/venue-booking/pkg/common"
	"github.com/calebdris/venue-booking/pkg/middleware"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) ScreenBookingByID(ctx context.Context, bookingID uuid.UUID, req *ScreenRequest) (*Assessment, booking.RiskState, error) {
	args := m.Called(ctx, bookingID, req)
	if args.Get(0) == nil {
		return nil, booking.RiskStateNone, args.Error(2)
	}
	return args.Get(0).(*Assessment), args.Get(1).(booking.RiskState), args.Error(2)
}

func (m *mockService) Approve(ctx context.Context, bookingID, reviewerID uuid.UUID, clientIP string) (*booking.Booking, error) {
	args := m.Called(ctx, bookingID, reviewerID, clientIP)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *mockService) Reject(ctx context.Context, bookingID, reviewerID uuid.UUID, reason, clientIP string) (*booking.Booking, error) {
	args := m.Called(ctx, bookingID, reviewerID, reason, clientIP)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *mockService) GetHeldBookings(ctx context.Context, limit, offset int) ([]*ReviewItem, int64, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*ReviewItem), args.Get(1).(int64), args.Error(2)
}

func (m *mockService) GetBookingRisk(ctx context.Context, bookingID uuid.UUID) (*booking.Booking, *Assessment, []*audit.Entry, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, nil, nil, args.Error(3)
	}
	return args.Get(0).(*booking.Booking), args.Get(1).(*Assessment), args.Get(2).([]*audit.Entry), args.Error(3)
}

func (m *mockService) ListAuditByEvent(ctx context.Context, event audit.Event, limit, offset int) ([]*audit.Entry, int64, error) {
	args := m.Called(ctx, event, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*audit.Entry), args.Get(1).(int64), args.Error(2)
}

func setupRouter(service ServiceInterface, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID.String())
		c.Next()
	})

	handler := NewHandler(service)
	handler.RegisterRoutes(router.Group("/api/v1/risk"))
	handler.RegisterInternalRoutes(router.Group("/api/v1/internal"))
	return router
}

func TestReviewQueueHandler(t *testing.T) {
	service := new(mockService)
	router := setupRouter(service, uuid.New())

	items := []*ReviewItem{{ID: uuid.New(), GuestName: "Jordan Avery", RiskScore: 75, RiskState: "hard"}}
	service.On("GetHeldBookings", mock.Anything, 20, 0).Return(items, int64(1), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk/review", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool         `json:"success"`
		Data    []ReviewItem `json:"data"`
		Meta    common.Meta  `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 75, resp.Data[0].RiskScore)
	assert.Equal(t, int64(1), resp.Meta.Total)
}

func TestReviewQueueHandlerPagination(t *testing.T) {
	service := new(mockService)
	router := setupRouter(service, uuid.New())

	service.On("GetHeldBookings", mock.Anything, 50, 10).Return([]*ReviewItem{}, int64(0), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk/review?limit=50&offset=10", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestAuditByEventHandler(t *testing.T) {
	service := new(mockService)
	router := setupRouter(service, uuid.New())

	entries := []*audit.Entry{audit.NewEntry(uuid.New(), audit.EventRejected, map[string]interface{}{"score": 88})}
	service.On("ListAuditByEvent", mock.Anything, audit.EventRejected, 20, 0).Return(entries, int64(1), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk/audit/REJECTED", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestAuditByEventHandlerUnknownEvent(t *testing.T) {
	service := new(mockService)
	router := setupRouter(service, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk/audit/NOPE", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "ListAuditByEvent")
}

func TestApproveHandler(t *testing.T) {
	service := new(mockService)
	reviewerID := uuid.New()
	router := setupRouter(service, reviewerID)

	bookingID := uuid.New()
	approved := &booking.Booking{ID: bookingID, Status: booking.StatusConfirmed}
	service.On("Approve", mock.Anything, bookingID, reviewerID, mock.Anything).Return(approved, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/risk/bookings/"+bookingID.String()+"/approve", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestApproveHandlerInvalidID(t *testing.T) {
	service := new(mockService)
	router := setupRouter(service, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/risk/bookings/not-a-uuid/approve", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "Approve")
}

func TestApproveHandlerConflict(t *testing.T) {
	service := new(mockService)
	router := setupRouter(service, uuid.New())

	bookingID := uuid.New()
	service.On("Approve", mock.Anything, bookingID, mock.Anything, mock.Anything).
		Return(nil, common.NewConflictError("booking was already reviewed", ErrAlreadyReviewed))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/risk/bookings/"+bookingID.String()+"/approve", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRejectHandler(t *testing.T) {
	service := new(mockService)
	reviewerID := uuid.New()
	router := setupRouter(service, reviewerID)

	bookingID := uuid.New()
	rejected := &booking.Booking{ID: bookingID, Status: booking.StatusCancelled}
	service.On("Reject", mock.Anything, bookingID, reviewerID, "confirmed fraud pattern", mock.Anything).
		Return(rejected, nil)

	body, _ := json.Marshal(RejectRequest{Reason: "confirmed fraud pattern"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/risk/bookings/"+bookingID.String()+"/reject", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestRejectHandlerMissingReason(t *testing.T) {
	service := new(mockService)
	router := setupRouter(service, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/risk/bookings/"+uuid.NewString()+"/reject",
		bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "Reject")
}

func TestGetBookingRiskHandler(t *testing.T) {
	service := new(mockService)
	router := setupRouter(service, uuid.New())

	bookingID := uuid.New()
	score := 82
	b := &booking.Booking{ID: bookingID, RiskScore: &score, RiskState: booking.RiskStateHard}
	assessment := &Assessment{Score: 82, Reasons: []string{"Tor exit node"}}
	trail := []*audit.Entry{audit.NewEntry(bookingID, audit.EventScored, nil)}

	service.On("GetBookingRisk", mock.Anything, bookingID).Return(b, assessment, trail, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk/bookings/"+bookingID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Assessment Assessment    `json:"assessment"`
			AuditLog   []audit.Entry `json:"audit_log"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 82, resp.Data.Assessment.Score)
	require.Len(t, resp.Data.AuditLog, 1)
	assert.Equal(t, audit.EventScored, resp.Data.AuditLog[0].Event)
}

func TestGetBookingRiskHandlerNotFound(t *testing.T) {
	service := new(mockService)
	router := setupRouter(service, uuid.New())

	bookingID := uuid.New()
	service.On("GetBookingRisk", mock.Anything, bookingID).
		Return(nil, nil, nil, common.NewNotFoundError("booking not found", booking.ErrNotFound))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/risk/bookings/"+bookingID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScreenHandler(t *testing.T) {
	service := new(mockService)
	router := setupRouter(service, uuid.New())

	bookingID := uuid.New()
	assessment := &Assessment{Score: 85, Reasons: []string{"Blacklisted entity"}}
	service.On("ScreenBookingByID", mock.Anything, bookingID, mock.Anything).
		Return(assessment, booking.RiskStateHard, nil)

	body, _ := json.Marshal(ScreenRequest{IP: "203.0.113.1"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/bookings/"+bookingID.String()+"/screen", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			RiskState string `json:"risk_state"`
			Held      bool   `json:"held"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "hard", resp.Data.RiskState)
	assert.True(t, resp.Data.Held)
}

func TestScreenHandlerEmptyBody(t *testing.T) {
	service := new(mockService)
	router := setupRouter(service, uuid.New())

	bookingID := uuid.New()
	service.On("ScreenBookingByID", mock.Anything, bookingID, mock.Anything).
		Return(&Assessment{Score: 0}, booking.RiskStateNone, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/bookings/"+bookingID.String()+"/screen", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
