package adaptor

import (
	"cinema-ticketing/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Booking  *BookingHandler
	Schedule *ScheduleHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Booking:  NewBookingHandler(service.Booking, log),
		Schedule: NewScheduleHandler(service.Schedule, log),
	}
}
