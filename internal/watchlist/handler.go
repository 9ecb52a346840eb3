package watchlist

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/calebdris/venue-booking/pkg/common"
	"github.com/calebdris/venue-booking/pkg/middleware"
	"github.com/calebdris/venue-booking/pkg/validation"
)

// ServiceInterface defines the watchlist operations exposed over HTTP.
type ServiceInterface interface {
	AddEntry(ctx context.Context, list List, req *CreateEntryRequest, createdBy *uuid.UUID) (*Entry, error)
	RemoveEntry(ctx context.Context, list List, id uuid.UUID) error
	ListEntries(ctx context.Context, list List, limit, offset int) ([]*Entry, int64, error)
}

// Handler handles admin watchlist requests.
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new watchlist handler.
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers watchlist admin routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	wl := rg.Group("/watchlist")
	{
		wl.GET("/:list", h.List)
		wl.POST("/:list", h.Create)
		wl.DELETE("/:list/:id", h.Delete)
	}
}

// List returns entries on the allow or deny list.
func (h *Handler) List(c *gin.Context) {
	list, ok := parseList(c)
	if !ok {
		return
	}

	limit, offset := paginationParams(c)

	entries, total, err := h.service.ListEntries(c.Request.Context(), list, limit, offset)
	if err != nil {
		respondError(c, err, "failed to list watchlist entries")
		return
	}

	if entries == nil {
		entries = []*Entry{}
	}

	common.SuccessResponseWithMeta(c, entries, &common.Meta{Limit: limit, Offset: offset, Total: total})
}

// Create adds a new entry to the allow or deny list.
func (h *Handler) Create(c *gin.Context) {
	list, ok := parseList(c)
	if !ok {
		return
	}

	var req CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		middleware.RespondWithValidationError(c, err)
		return
	}

	var createdBy *uuid.UUID
	if userID, ok := middleware.GetUserID(c); ok {
		createdBy = &userID
	}

	entry, err := h.service.AddEntry(c.Request.Context(), list, &req, createdBy)
	if err != nil {
		respondError(c, err, "failed to create watchlist entry")
		return
	}

	common.CreatedResponse(c, entry)
}

// Delete removes an entry from the allow or deny list.
func (h *Handler) Delete(c *gin.Context) {
	list, ok := parseList(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid entry ID")
		return
	}

	if err := h.service.RemoveEntry(c.Request.Context(), list, id); err != nil {
		respondError(c, err, "failed to delete watchlist entry")
		return
	}

	common.SuccessResponse(c, gin.H{"message": "watchlist entry removed"})
}

func parseList(c *gin.Context) (List, bool) {
	switch c.Param("list") {
	case "allow":
		return ListAllow, true
	case "deny":
		return ListDeny, true
	default:
		common.ErrorResponse(c, http.StatusBadRequest, "list must be 'allow' or 'deny'")
		return "", false
	}
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
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
