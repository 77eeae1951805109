package entity

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"cinema-ticketing/pkg/apperror"

	"github.com/google/uuid"
)

// SeatsPerRow is the width of every theater layout: A1..A10, B1..B10, ...
const SeatsPerRow = 10

const DefaultTotalSeats = 50

// Schedule is one showtime of one movie in one theater. BookedSeats is only
// changed through CommitSeats/ReleaseSeats; every change bumps Version.
// SeatHolders maps each booked seat to the booking that committed it.
type Schedule struct {
	BaseNoDelete
	MovieID     uuid.UUID            `db:"movie_id"`
	MovieTitle  string               `db:"movie_title"`
	Theater     string               `db:"theater"`
	ShowDate    time.Time            `db:"show_date"`
	ShowTime    string               `db:"show_time"` // HH:MM
	TotalSeats  int                  `db:"total_seats"`
	BookedSeats []string             `db:"-"`
	SeatHolders map[string]uuid.UUID `db:"-"`
	Price       float64              `db:"price"`
	IsActive    bool                 `db:"is_active"`
	Version     int64                `db:"version"`
}

// ScheduleUpdate lists the fields an admin may change after creation.
// Seat inventory is deliberately absent.
type ScheduleUpdate struct {
	Theater  *string
	ShowDate *time.Time
	ShowTime *string
	Price    *float64
	IsActive *bool
}

func (s *Schedule) AvailableSeats() int {
	available := s.TotalSeats - len(s.BookedSeats)
	if available < 0 {
		return 0
	}
	return available
}

func (s *Schedule) IsBooked(label string) bool {
	return slices.Contains(s.BookedSeats, label)
}

// HeldBy reports whether every one of seats is committed to holder.
func (s *Schedule) HeldBy(holder uuid.UUID, seats []string) bool {
	if len(seats) == 0 {
		return false
	}
	for _, seat := range seats {
		if h, ok := s.SeatHolders[seat]; !ok || h != holder {
			return false
		}
	}
	return true
}

// StartsAt combines show date and time in the date's location.
func (s *Schedule) StartsAt() time.Time {
	t, err := time.Parse("15:04", s.ShowTime)
	if err != nil {
		return s.ShowDate
	}
	y, m, d := s.ShowDate.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, s.ShowDate.Location())
}

// Layout returns every seat label of this schedule in row order.
func (s *Schedule) Layout() []string {
	labels := make([]string, 0, s.TotalSeats)
	for i := 1; i <= s.TotalSeats; i++ {
		labels = append(labels, SeatLabel(i))
	}
	return labels
}

func (s *Schedule) InLayout(label string) bool {
	n, ok := seatIndex(label)
	return ok && n >= 1 && n <= s.TotalSeats
}

// CheckCommit validates seats against the current inventory. The order of
// checks is part of the contract: conflict, then capacity, then layout.
func (s *Schedule) CheckCommit(seats []string) error {
	booked := make(map[string]struct{}, len(s.BookedSeats))
	for _, b := range s.BookedSeats {
		booked[b] = struct{}{}
	}
	for _, seat := range seats {
		if _, ok := booked[seat]; ok {
			return apperror.SeatConflict(seat)
		}
	}

	if available := s.AvailableSeats(); len(seats) > available {
		return apperror.InsufficientCapacity(len(seats), available)
	}

	for _, seat := range seats {
		if !s.InLayout(seat) {
			return apperror.Validation("seat %s is not part of schedule %s layout", seat, s.ID)
		}
	}

	return nil
}

// Clone returns a deep copy.
func (s *Schedule) Clone() *Schedule {
	c := *s
	c.BookedSeats = slices.Clone(s.BookedSeats)
	c.SeatHolders = maps.Clone(s.SeatHolders)
	return &c
}

// WithSeatsBooked returns a copy with seats committed to holder and the
// version bumped. Callers run CheckCommit first.
func (s *Schedule) WithSeatsBooked(holder uuid.UUID, seats []string, at time.Time) *Schedule {
	c := s.Clone()
	if c.SeatHolders == nil {
		c.SeatHolders = make(map[string]uuid.UUID, len(seats))
	}
	c.BookedSeats = append(c.BookedSeats, seats...)
	for _, seat := range seats {
		c.SeatHolders[seat] = holder
	}
	c.Version++
	c.UpdatedAt = at
	return c
}

// WithSeatsReleased returns a copy without the seats held by holder. Seats
// that are free or held by another booking are left alone.
func (s *Schedule) WithSeatsReleased(holder uuid.UUID, seats []string, at time.Time) *Schedule {
	c := s.Clone()
	release := make(map[string]struct{}, len(seats))
	for _, seat := range seats {
		if h, ok := c.SeatHolders[seat]; ok && h == holder {
			release[seat] = struct{}{}
			delete(c.SeatHolders, seat)
		}
	}
	c.BookedSeats = slices.DeleteFunc(c.BookedSeats, func(b string) bool {
		_, ok := release[b]
		return ok
	})
	c.Version++
	c.UpdatedAt = at
	return c
}

// Apply copies the set fields of upd onto s.
func (s *Schedule) Apply(upd ScheduleUpdate) {
	if upd.Theater != nil {
		s.Theater = *upd.Theater
	}
	if upd.ShowDate != nil {
		s.ShowDate = *upd.ShowDate
	}
	if upd.ShowTime != nil {
		s.ShowTime = *upd.ShowTime
	}
	if upd.Price != nil {
		s.Price = *upd.Price
	}
	if upd.IsActive != nil {
		s.IsActive = *upd.IsActive
	}
}

// SeatLabel maps a 1-based seat index to its label: 1 -> A1, 11 -> B1.
func SeatLabel(i int) string {
	row := rune('A' + (i-1)/SeatsPerRow)
	col := (i-1)%SeatsPerRow + 1
	return fmt.Sprintf("%c%d", row, col)
}

func seatIndex(label string) (int, bool) {
	if len(label) < 2 {
		return 0, false
	}
	row := label[0]
	if row < 'A' || row > 'Z' {
		return 0, false
	}

	col := 0
	for _, c := range label[1:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		col = col*10 + int(c-'0')
		if col > SeatsPerRow {
			return 0, false
		}
	}
	if col < 1 || label[1] == '0' {
		return 0, false
	}

	return int(row-'A')*SeatsPerRow + col, true
}
