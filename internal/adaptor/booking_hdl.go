package adaptor

import (
	"encoding/json"
	"errors"
	"net/http"

	"cinema-ticketing/internal/dto/request"
	"cinema-ticketing/internal/usecase"
	"cinema-ticketing/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxBookingBody bounds a create request: 260 seat labels plus the other
// fields fit in a few kilobytes.
const maxBookingBody = 16 << 10

type BookingHandler struct {
	service usecase.BookingService
	log     *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log.With(zap.String("handler", "booking")),
	}
}

// CreateBooking handles POST /api/bookings (protected)
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	buyer, ok := utils.GetIdentityFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.CreateBookingRequest
	body := http.MaxBytesReader(w, r.Body, maxBookingBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.ResponseBadRequest(w, "Request body too large", nil)
			return
		}
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	for i, seat := range req.Seats {
		req.Seats[i] = utils.NormalizeSeatLabel(seat)
	}

	// Validate request
	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), buyer, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create booking")
		return
	}

	utils.ResponseCreated(w, "Booking confirmed", booking)
}

// GetUserBookings handles GET /api/bookings/my-bookings (protected)
func (h *BookingHandler) GetUserBookings(w http.ResponseWriter, r *http.Request) {
	buyer, ok := utils.GetIdentityFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	query := r.URL.Query()
	req := &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}

	bookings, err := h.service.GetUserBookings(r.Context(), buyer.UserID.String(), req)
	if err != nil {
		handleServiceError(w, h.log, err, "get user bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// GetBookingByCode handles GET /api/bookings/code/{code}
func (h *BookingHandler) GetBookingByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		utils.ResponseBadRequest(w, "Booking code is required", nil)
		return
	}

	booking, err := h.service.GetBookingByCode(r.Context(), code)
	if err != nil {
		handleServiceError(w, h.log, err, "get booking by code")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// CancelBooking handles POST /api/bookings/code/{code}/cancel (owner or admin)
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.GetIdentityFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	code := chi.URLParam(r, "code")
	if code == "" {
		utils.ResponseBadRequest(w, "Booking code is required", nil)
		return
	}

	booking, err := h.service.CancelBooking(r.Context(), caller, code)
	if err != nil {
		handleServiceError(w, h.log, err, "cancel booking")
		return
	}

	utils.ResponseSuccess(w, "Booking cancelled", booking)
}

// GetCheckInQR handles GET /api/bookings/code/{code}/qr
func (h *BookingHandler) GetCheckInQR(w http.ResponseWriter, r *http.Request) {
	qr, err := h.service.GetCheckInQR(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		handleServiceError(w, h.log, err, "get check-in QR")
		return
	}

	utils.ResponseSuccess(w, "success", qr)
}

// ListAll handles GET /api/admin/bookings (admin only)
func (h *BookingHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}

	bookings, err := h.service.ListAll(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.log, err, "list all bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// GetBookingByID handles GET /api/admin/bookings/{id} (admin only)
func (h *BookingHandler) GetBookingByID(w http.ResponseWriter, r *http.Request) {
	booking, err := h.service.GetBookingByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get booking by ID")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}
