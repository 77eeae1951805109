// Package notification delivers booking confirmations to the buyer. Delivery
// is best effort and never changes the outcome of a booking.
package notification

import (
	"time"
)

const BookingConfirmedQueue = "booking.confirmed"

type BookingConfirmedEvent struct {
	Recipient      string    `json:"recipient"`
	RecipientName  string    `json:"recipient_name"`
	BookingCode    string    `json:"booking_code"`
	MovieTitle     string    `json:"movie_title"`
	ShowDate       string    `json:"show_date"`
	ShowTime       string    `json:"show_time"`
	Theater        string    `json:"theater"`
	Seats          []string  `json:"seats"`
	TotalPrice     float64   `json:"total_price"`
	CheckInPayload string    `json:"checkin_payload"`
	CheckInImage   string    `json:"checkin_image,omitempty"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
}
