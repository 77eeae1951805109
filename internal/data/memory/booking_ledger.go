package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/pkg/apperror"

	"github.com/google/uuid"
)

// BookingLedger is an in-process booking ledger with a unique code index.
type BookingLedger struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*entity.Booking
	byCode map[string]uuid.UUID
}

func NewBookingLedger() *BookingLedger {
	return &BookingLedger{
		byID:   make(map[uuid.UUID]*entity.Booking),
		byCode: make(map[string]uuid.UUID),
	}
}

func (l *BookingLedger) Create(_ context.Context, booking *entity.Booking) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byID[booking.ID]; ok {
		return nil
	}
	if _, ok := l.byCode[booking.BookingCode]; ok {
		return repository.ErrDuplicateCode
	}

	l.byID[booking.ID] = cloneBooking(booking)
	l.byCode[booking.BookingCode] = booking.ID
	return nil
}

func (l *BookingLedger) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, ok := l.byID[id]
	if !ok {
		return nil, apperror.NotFound("booking", id.String())
	}
	return cloneBooking(b), nil
}

func (l *BookingLedger) FindByCode(_ context.Context, code string) (*entity.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.byCode[code]
	if !ok {
		return nil, apperror.NotFound("booking", code)
	}
	return cloneBooking(l.byID[id]), nil
}

func (l *BookingLedger) ExistsByCode(_ context.Context, code string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.byCode[code]
	return ok, nil
}

func (l *BookingLedger) FindByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	return page(l.newestFirst(func(b *entity.Booking) bool { return b.UserID == userID }), limit, offset), nil
}

// FindAll pages over the whole ledger, newest first.
func (l *BookingLedger) FindAll(_ context.Context, limit, offset int) ([]*entity.Booking, error) {
	return page(l.newestFirst(func(*entity.Booking) bool { return true }), limit, offset), nil
}

func (l *BookingLedger) CountAll(_ context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.byID)), nil
}

func (l *BookingLedger) newestFirst(keep func(*entity.Booking) bool) []*entity.Booking {
	l.mu.RLock()
	var out []*entity.Booking
	for _, b := range l.byID {
		if keep(b) {
			out = append(out, cloneBooking(b))
		}
	}
	l.mu.RUnlock()

	slices.SortFunc(out, func(a, b *entity.Booking) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out
}

func (l *BookingLedger) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var n int64
	for _, b := range l.byID {
		if b.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (l *BookingLedger) UpdateStatus(_ context.Context, id uuid.UUID, status entity.BookingStatus, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byID[id]
	if !ok {
		return apperror.NotFound("booking", id.String())
	}

	next := cloneBooking(b)
	next.Status = status
	next.UpdatedAt = at
	if status == entity.BookingStatusCancelled {
		next.CancelledAt = &at
	}
	l.byID[id] = next
	return nil
}

// Len reports how many bookings are recorded.
func (l *BookingLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byID)
}

func cloneBooking(b *entity.Booking) *entity.Booking {
	c := *b
	c.Seats = slices.Clone(b.Seats)
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		c.CancelledAt = &at
	}
	return &c
}

var (
	_ repository.ScheduleRepository = (*ScheduleStore)(nil)
	_ repository.BookingRepository  = (*BookingLedger)(nil)
)
