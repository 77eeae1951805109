package usecase

import (
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/pkg/lock"
	"cinema-ticketing/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Booking  BookingService
	Schedule ScheduleService
}

func NewService(repo *repository.Repository, locker lock.Locker, notifier BookingNotifier, config *utils.Config, log *zap.Logger) *Service {
	return &Service{
		Booking:  NewBookingService(repo, locker, notifier, config.Booking, log),
		Schedule: NewScheduleService(repo, locker, config.Booking.LockWait, log),
	}
}
