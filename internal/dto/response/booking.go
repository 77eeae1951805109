package response

import (
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/pkg/utils"
)

type BookingResponse struct {
	ID             string               `json:"id"`
	BookingCode    string               `json:"booking_code"`
	UserID         string               `json:"user_id"`
	ScheduleID     string               `json:"schedule_id"`
	MovieID        string               `json:"movie_id"`
	MovieTitle     string               `json:"movie_title"`
	Theater        string               `json:"theater"`
	ShowDate       string               `json:"show_date"`
	ShowTime       string               `json:"show_time"`
	Seats          []string             `json:"seats"`
	TotalTickets   int                  `json:"total_tickets"`
	TotalPrice     float64              `json:"total_price"`
	CheckInPayload string               `json:"checkin_payload"`
	Status         entity.BookingStatus `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
	CancelledAt    *time.Time           `json:"cancelled_at,omitempty"`
}

func BookingToResponse(b *entity.Booking) BookingResponse {
	return BookingResponse{
		ID:             b.ID.String(),
		BookingCode:    b.BookingCode,
		UserID:         b.UserID.String(),
		ScheduleID:     b.ScheduleID.String(),
		MovieID:        b.MovieID.String(),
		MovieTitle:     b.MovieTitle,
		Theater:        b.Theater,
		ShowDate:       b.ShowDate.Format(utils.DateLayout),
		ShowTime:       b.ShowTime,
		Seats:          b.Seats,
		TotalTickets:   b.TotalTickets,
		TotalPrice:     b.TotalPrice,
		CheckInPayload: b.CheckInPayload,
		Status:         b.Status,
		CreatedAt:      b.CreatedAt,
		CancelledAt:    b.CancelledAt,
	}
}

type CheckInQRResponse struct {
	BookingCode    string `json:"booking_code"`
	CheckInPayload string `json:"checkin_payload"`
	QRImage        string `json:"qr_image"` // PNG data URL
}
