package response

import (
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/pkg/utils"
)

type ScheduleResponse struct {
	ID             string    `json:"id"`
	MovieID        string    `json:"movie_id"`
	MovieTitle     string    `json:"movie_title"`
	Theater        string    `json:"theater"`
	ShowDate       string    `json:"show_date"`
	ShowTime       string    `json:"show_time"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	Price          float64   `json:"price"`
	IsActive       bool      `json:"is_active"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SeatStatus is one cell of the seat map.
type SeatStatus struct {
	Label  string `json:"label"`
	Booked bool   `json:"booked"`
}

type ScheduleDetailResponse struct {
	ScheduleResponse
	BookedSeats []string     `json:"booked_seats"`
	Seats       []SeatStatus `json:"seats"`
}

func ScheduleToResponse(s *entity.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:             s.ID.String(),
		MovieID:        s.MovieID.String(),
		MovieTitle:     s.MovieTitle,
		Theater:        s.Theater,
		ShowDate:       s.ShowDate.Format(utils.DateLayout),
		ShowTime:       s.ShowTime,
		TotalSeats:     s.TotalSeats,
		AvailableSeats: s.AvailableSeats(),
		Price:          s.Price,
		IsActive:       s.IsActive,
		UpdatedAt:      s.UpdatedAt,
	}
}

func ScheduleToDetailResponse(s *entity.Schedule) ScheduleDetailResponse {
	layout := s.Layout()
	seats := make([]SeatStatus, len(layout))
	for i, label := range layout {
		seats[i] = SeatStatus{Label: label, Booked: s.IsBooked(label)}
	}

	booked := s.BookedSeats
	if booked == nil {
		booked = []string{}
	}

	return ScheduleDetailResponse{
		ScheduleResponse: ScheduleToResponse(s),
		BookedSeats:      booked,
		Seats:            seats,
	}
}
