package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Booking is immutable once written, except for the cancel transition.
type Booking struct {
	BaseNoDelete
	UserID         uuid.UUID     `db:"user_id"`
	UserEmail      string        `db:"user_email"`
	UserName       string        `db:"user_name"`
	ScheduleID     uuid.UUID     `db:"schedule_id"`
	MovieID        uuid.UUID     `db:"movie_id"`
	MovieTitle     string        `db:"movie_title"`
	Theater        string        `db:"theater"`
	ShowDate       time.Time     `db:"show_date"`
	ShowTime       string        `db:"show_time"`
	Seats          []string      `db:"seats"`
	TotalTickets   int           `db:"total_tickets"`
	TotalPrice     float64       `db:"total_price"`
	BookingCode    string        `db:"booking_code"`
	CheckInPayload string        `db:"checkin_payload"`
	Status         BookingStatus `db:"status"`
	CancelledAt    *time.Time    `db:"cancelled_at"`
}

func (b *Booking) IsCancelled() bool {
	return b.Status == BookingStatusCancelled
}
