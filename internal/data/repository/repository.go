package repository

import (
	"cinema-ticketing/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	User     UserRepository
	Session  SessionRepository
	Movie    MovieRepository
	Schedule ScheduleRepository
	Booking  BookingRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		User:     NewUserRepository(db, log),
		Session:  NewSessionRepository(db, log),
		Movie:    NewMovieRepository(db, log),
		Schedule: NewScheduleRepository(db, log),
		Booking:  NewBookingRepository(db, log),
	}
}
