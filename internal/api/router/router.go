package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dtolk/booking-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "booking-api-service",
		})
	})

	// Initialize booking handler
	bookingHandler := handler.NewBookingHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		bookings := v1.Group("/bookings")
		{
			// POST /api/v1/bookings - Create a new booking
			bookings.POST("", bookingHandler.CreateBooking)

			// GET /api/v1/bookings/:booking_id - Get booking details
			bookings.GET("/:booking_id", bookingHandler.GetBooking)

			// PUT /api/v1/bookings/:booking_id - Admin update
			bookings.PUT("/:booking_id", bookingHandler.UpdateBooking)

			// POST /api/v1/bookings/:booking_id/accept - Translator accepts
			bookings.POST("/:booking_id/accept", bookingHandler.AcceptBooking)

			// POST /api/v1/bookings/:booking_id/cancel - Customer or translator cancels
			bookings.POST("/:booking_id/cancel", bookingHandler.CancelBooking)

			// POST /api/v1/bookings/:booking_id/end - Close a started session
			bookings.POST("/:booking_id/end", bookingHandler.EndBooking)

			// POST /api/v1/bookings/:booking_id/not-carried-out - Customer no-show
			bookings.POST("/:booking_id/not-carried-out", bookingHandler.NotCarriedOutBooking)

			// POST /api/v1/bookings/:booking_id/reopen - Put a withdrawn or timed-out booking back on the market
			bookings.POST("/:booking_id/reopen", bookingHandler.ReopenBooking)
		}
	}

	return r
}
