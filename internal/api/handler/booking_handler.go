package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dtolk/booking-be/internal/api/dto"
	"github.com/dtolk/booking-be/internal/booking"
	"github.com/dtolk/booking-be/internal/booking/domain"
)

// CreateBooking handles POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
		})
		return
	}

	gender, err := domain.ParseGender(req.Gender)
	if err != nil {
		h.respondError(c, err)
		return
	}
	cert, err := domain.ParseCertification(req.Certification)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var due time.Time
	if req.Due != "" {
		due, err = time.Parse(time.RFC3339, req.Due)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "due must be RFC 3339",
				"field": "due",
			})
			return
		}
	}

	res, err := h.orchestrator.Create(c.Request.Context(), booking.CreateRequest{
		CustomerID:     req.CustomerID,
		ConsumerType:   req.ConsumerType,
		FromLanguageID: req.FromLanguageID,
		Due:            due,
		DurationMin:    req.Duration,
		Immediate:      req.Immediate,
		PhoneType:      req.PhoneType,
		PhysicalType:   req.PhysicalType,
		Gender:         gender,
		Certification:  cert,
		Town:           req.Town,
		Address:        req.Address,
		Instructions:   req.Instructions,
		CustomerEmail:  req.CustomerEmail,
		Reference:      req.Reference,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":        res.JobID,
		"status":    string(domain.StatusPending),
		"immediate": res.Immediate,
		"due":       res.Due.Format(time.RFC3339),
	})
}

// GetBooking handles GET /api/v1/bookings/:booking_id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID := c.Param("booking_id")
	if _, err := uuid.Parse(bookingID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "booking_id must be a valid UUID",
		})
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.toDTO(c, job))
}

// UpdateBooking handles PUT /api/v1/bookings/:booking_id
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	bookingID := c.Param("booking_id")
	if _, err := uuid.Parse(bookingID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "booking_id must be a valid UUID",
		})
		return
	}

	var req dto.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
		})
		return
	}

	upd := booking.UpdateRequest{
		FromLanguageID:  req.FromLanguageID,
		TranslatorID:    req.TranslatorID,
		TranslatorEmail: req.TranslatorEmail,
		AdminComments:   req.AdminComments,
		SessionTime:     req.SessionTime,
		Reference:       req.Reference,
	}

	if req.Due != "" {
		due, err := time.Parse(time.RFC3339, req.Due)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "due must be RFC 3339",
				"field": "due",
			})
			return
		}
		upd.Due = &due
	}

	if req.Status != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			h.respondError(c, err)
			return
		}
		upd.TargetStatus = status
	}

	res, err := h.orchestrator.Update(c.Request.Context(), bookingID, upd)
	if err != nil {
		h.respondError(c, err)
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.UpdateBookingResponse{
		Booking:           h.toDTO(c, job),
		StatusChanged:     res.StatusChanged,
		Refused:           res.Refused,
		RefusedField:      res.RefusedField,
		TranslatorChanged: res.TranslatorChanged,
		DateChanged:       res.DateChanged,
		LanguageChanged:   res.LanguageChanged,
	})
}

// AcceptBooking handles POST /api/v1/bookings/:booking_id/accept
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	bookingID := c.Param("booking_id")

	var req dto.AcceptBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "translator_id is required",
		})
		return
	}

	res, err := h.orchestrator.Accept(c.Request.Context(), bookingID, req.TranslatorID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     res.JobID,
		"status": string(res.Status),
	})
}

// CancelBooking handles POST /api/v1/bookings/:booking_id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID := c.Param("booking_id")

	var req dto.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "user_id is required",
		})
		return
	}

	res, err := h.orchestrator.Cancel(c.Request.Context(), bookingID, req.UserID, req.IsCustomer)
	if err != nil {
		if errors.Is(err, domain.ErrCancellationWindowClosed) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   err.Error(),
				"message": res.Message,
			})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     bookingID,
		"status": string(res.Status),
	})
}

// EndBooking handles POST /api/v1/bookings/:booking_id/end
func (h *BookingHandler) EndBooking(c *gin.Context) {
	bookingID := c.Param("booking_id")

	var req dto.EndBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "user_id is required",
		})
		return
	}

	res, err := h.orchestrator.End(c.Request.Context(), bookingID, req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           bookingID,
		"completed":    res.Completed,
		"session_time": res.SessionTime,
	})
}

// NotCarriedOutBooking handles POST /api/v1/bookings/:booking_id/not-carried-out
func (h *BookingHandler) NotCarriedOutBooking(c *gin.Context) {
	bookingID := c.Param("booking_id")

	if err := h.orchestrator.NotCarriedOut(c.Request.Context(), bookingID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     bookingID,
		"status": string(domain.StatusNotCarriedOutByUser),
	})
}

// ReopenBooking handles POST /api/v1/bookings/:booking_id/reopen
func (h *BookingHandler) ReopenBooking(c *gin.Context) {
	bookingID := c.Param("booking_id")

	reopenedID, err := h.orchestrator.Reopen(c.Request.Context(), bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          bookingID,
		"reopened_id": reopenedID,
		"status":      string(domain.StatusPending),
	})
}

func (h *BookingHandler) toDTO(c *gin.Context, job *domain.Job) dto.BookingDTO {
	out := dto.BookingDTO{
		ID:             job.ID,
		CustomerID:     job.CustomerID,
		Status:         string(job.Status),
		Due:            job.Due.Format(time.RFC3339),
		FromLanguageID: job.FromLanguageID,
		Gender:         string(job.Gender),
		Certification:  string(job.Certification),
		JobType:        string(job.JobType),
		Immediate:      job.Immediate,
		PhoneType:      job.PhoneType,
		PhysicalType:   job.PhysicalType,
		Duration:       job.DurationMin,
		Town:           job.Town,
		Address:        job.Address,
		Instructions:   job.Instructions,
		CustomerEmail:  job.CustomerEmail,
		Reference:      job.Reference,
		AdminComments:  job.AdminComments,
		SessionTime:    job.SessionTime,
		EndAt:          dto.FormatTimePtr(job.EndAt),
		WithdrawAt:     dto.FormatTimePtr(job.WithdrawAt),
		WillExpireAt:   dto.FormatTimePtr(job.WillExpireAt),
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
	}

	if a, err := h.store.GetActiveAssignment(c.Request.Context(), job.ID); err == nil {
		out.TranslatorID = a.TranslatorID
	} else if !errors.Is(err, domain.ErrAssignmentNotFound) {
		h.logger.Error("assignment lookup failed",
			slog.String("booking_id", job.ID),
			slog.Any("error", err),
		)
	}

	return out
}
