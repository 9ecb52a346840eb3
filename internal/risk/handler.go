package risk

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/calebdris/venue-booking/internal/audit"
	"github.com/calebdris/venue-booking/internal/booking"
	"github.com/calebdris/venue-booking/pkg/common"
	"github.com/calebdris/venue-booking/pkg/middleware"
	"github.com/calebdris/venue-booking/pkg/validation"
)

// ServiceInterface defines the screening operations exposed over HTTP.
type ServiceInterface interface {
	ScreenBookingByID(ctx context.Context, bookingID uuid.UUID, req *ScreenRequest) (*Assessment, booking.RiskState, error)
	Approve(ctx context.Context, bookingID, reviewerID uuid.UUID, clientIP string) (*booking.Booking, error)
	Reject(ctx context.Context, bookingID, reviewerID uuid.UUID, reason, clientIP string) (*booking.Booking, error)
	GetHeldBookings(ctx context.Context, limit, offset int) ([]*ReviewItem, int64, error)
	GetBookingRisk(ctx context.Context, bookingID uuid.UUID) (*booking.Booking, *Assessment, []*audit.Entry, error)
	ListAuditByEvent(ctx context.Context, event audit.Event, limit, offset int) ([]*audit.Entry, int64, error)
}

// Handler handles review queue and screening requests.
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new risk handler.
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers reviewer-facing routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/review", h.ReviewQueue)
	rg.GET("/audit/:event", h.AuditByEvent)
	rg.GET("/bookings/:id", h.GetBookingRisk)
	rg.POST("/bookings/:id/approve", h.Approve)
	rg.POST("/bookings/:id/reject", h.Reject)
}

// RegisterInternalRoutes registers service-to-service routes.
func (h *Handler) RegisterInternalRoutes(rg *gin.RouterGroup) {
	rg.POST("/bookings/:id/screen", h.Screen)
}

// ReviewQueue returns held bookings awaiting a reviewer decision.
func (h *Handler) ReviewQueue(c *gin.Context) {
	limit, offset := paginationParams(c)

	items, total, err := h.service.GetHeldBookings(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err, "failed to load review queue")
		return
	}

	if items == nil {
		items = []*ReviewItem{}
	}

	common.SuccessResponseWithMeta(c, items, &common.Meta{Limit: limit, Offset: offset, Total: total})
}

// AuditByEvent lists recent audit entries for one event type.
func (h *Handler) AuditByEvent(c *gin.Context) {
	event, ok := audit.ParseEvent(c.Param("event"))
	if !ok {
		common.ErrorResponse(c, http.StatusBadRequest, "unknown audit event")
		return
	}

	limit, offset := paginationParams(c)

	entries, total, err := h.service.ListAuditByEvent(c.Request.Context(), event, limit, offset)
	if err != nil {
		respondError(c, err, "failed to list audit entries")
		return
	}

	if entries == nil {
		entries = []*audit.Entry{}
	}

	common.SuccessResponseWithMeta(c, entries, &common.Meta{Limit: limit, Offset: offset, Total: total})
}

// GetBookingRisk returns a booking with its assessment and audit trail.
func (h *Handler) GetBookingRisk(c *gin.Context) {
	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}

	b, assessment, trail, err := h.service.GetBookingRisk(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, err, "failed to load booking risk")
		return
	}

	if trail == nil {
		trail = []*audit.Entry{}
	}

	common.SuccessResponse(c, gin.H{
		"booking":    b,
		"assessment": assessment,
		"audit_log":  trail,
	})
}

// Approve confirms a held booking.
func (h *Handler) Approve(c *gin.Context) {
	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}

	reviewerID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "invalid user ID")
		return
	}

	b, err := h.service.Approve(c.Request.Context(), bookingID, reviewerID, c.ClientIP())
	if err != nil {
		respondError(c, err, "failed to approve booking")
		return
	}

	common.SuccessResponse(c, b)
}

// Reject cancels a held booking with a reviewer-provided reason.
func (h *Handler) Reject(c *gin.Context) {
	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}

	reviewerID, ok := middleware.GetUserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "invalid user ID")
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		middleware.RespondWithValidationError(c, err)
		return
	}

	b, err := h.service.Reject(c.Request.Context(), bookingID, reviewerID, req.Reason, c.ClientIP())
	if err != nil {
		respondError(c, err, "failed to reject booking")
		return
	}

	common.SuccessResponse(c, b)
}

// Screen runs screening for an existing booking. Called by the booking
// service after a reservation is created.
func (h *Handler) Screen(c *gin.Context) {
	bookingID, ok := parseBookingID(c)
	if !ok {
		return
	}

	// The request body is optional; callers may rely on header-derived
	// attributes alone.
	var req ScreenRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if req.IP == "" {
		req.IP = c.ClientIP()
	}
	if req.UserAgent == "" {
		req.UserAgent = c.Request.UserAgent()
	}

	assessment, state, err := h.service.ScreenBookingByID(c.Request.Context(), bookingID, &req)
	if err != nil {
		respondError(c, err, "failed to screen booking")
		return
	}

	common.SuccessResponse(c, gin.H{
		"assessment": assessment,
		"risk_state": string(state),
		"held":       state.Held(),
	})
}

func parseBookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid booking ID")
		return uuid.Nil, false
	}
	return id, true
}

func respondError(c *gin.Context, err error, fallback string) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.AppErrorResponse(c, appErr)
		return
	}
	common.ErrorResponse(c, http.StatusInternalServerError, fallback)
}

func paginationParams(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
