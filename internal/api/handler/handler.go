package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dtolk/booking-be/internal/booking"
	"github.com/dtolk/booking-be/internal/booking/domain"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Orchestrator *booking.Orchestrator
	Store        booking.Store
}

// BookingHandler handles booking HTTP requests
type BookingHandler struct {
	logger       *slog.Logger
	orchestrator *booking.Orchestrator
	store        booking.Store
}

// NewBookingHandler creates a new BookingHandler instance
func NewBookingHandler(deps *Dependencies) *BookingHandler {
	return &BookingHandler{
		logger:       deps.Logger,
		orchestrator: deps.Orchestrator,
		store:        deps.Store,
	}
}

// respondError maps domain errors onto HTTP codes. Validation errors name
// the field; conflicts and the cancellation window come back as 409.
func (h *BookingHandler) respondError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": verr.Message,
			"field": verr.Field,
		})
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrAssignmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrAlreadyAssigned), errors.Is(err, domain.ErrAlreadyBooked):
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrInvalidEnum):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	default:
		h.logger.Error("request failed",
			slog.String("path", c.Request.URL.Path),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal error",
		})
	}
}
