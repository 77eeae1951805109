package wire

import (
	"net/http"

	"cinema-ticketing/internal/adaptor"
	"cinema-ticketing/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(r chi.Router, bookingHandler *adaptor.BookingHandler, auth func(http.Handler) http.Handler, log *zap.Logger) {
	r.Route("/api/bookings", func(r chi.Router) {
		// ==================== PUBLIC ROUTES ====================
		// GET /api/bookings/code/{code} - Look up a booking by its code
		r.Get("/code/{code}", bookingHandler.GetBookingByCode)

		// GET /api/bookings/code/{code}/qr - Check-in QR image
		r.Get("/code/{code}/qr", bookingHandler.GetCheckInQR)

		// ==================== PROTECTED ROUTES ====================
		r.Group(func(r chi.Router) {
			r.Use(auth)

			// POST /api/bookings - Reserve seats and confirm a booking
			r.Post("/", bookingHandler.CreateBooking)

			// GET /api/bookings/my-bookings - Booking history, newest first
			r.Get("/my-bookings", bookingHandler.GetUserBookings)

			// POST /api/bookings/code/{code}/cancel - Owner or admin
			r.Post("/code/{code}/cancel", bookingHandler.CancelBooking)
		})
	})

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/bookings", func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.Admin(log))

		r.Get("/", bookingHandler.ListAll)            // GET /api/admin/bookings
		r.Get("/{id}", bookingHandler.GetBookingByID) // GET /api/admin/bookings/{id}
	})
}
