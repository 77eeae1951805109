// Package memory holds in-process implementations of the schedule store and
// booking ledger. They back the service tests and single-node development.
package memory

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/pkg/apperror"

	"github.com/google/uuid"
)

// ScheduleStore keeps each schedule as an immutable snapshot. Seat commits
// and releases swap the snapshot with compare-and-swap, so concurrent writers
// to one schedule never lose an update even without an external lock.
type ScheduleStore struct {
	mu        sync.RWMutex
	schedules map[uuid.UUID]*atomic.Pointer[entity.Schedule]
	now       func() time.Time
}

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{
		schedules: make(map[uuid.UUID]*atomic.Pointer[entity.Schedule]),
		now:       time.Now,
	}
}

func (s *ScheduleStore) slot(id uuid.UUID) (*atomic.Pointer[entity.Schedule], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.schedules[id]
	return p, ok
}

func (s *ScheduleStore) Create(_ context.Context, schedule *entity.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[schedule.ID]; ok {
		return apperror.Validation("schedule %s already exists", schedule.ID)
	}

	p := new(atomic.Pointer[entity.Schedule])
	p.Store(schedule.Clone())
	s.schedules[schedule.ID] = p
	return nil
}

func (s *ScheduleStore) FindByID(_ context.Context, id uuid.UUID) (*entity.Schedule, error) {
	p, ok := s.slot(id)
	if !ok {
		return nil, apperror.NotFound("schedule", id.String())
	}
	return p.Load().Clone(), nil
}

func (s *ScheduleStore) FindActiveByMovieID(_ context.Context, movieID uuid.UUID) ([]*entity.Schedule, error) {
	return s.filter(func(sc *entity.Schedule) bool {
		return sc.IsActive && sc.MovieID == movieID
	}), nil
}

func (s *ScheduleStore) FindActiveByDate(_ context.Context, date time.Time) ([]*entity.Schedule, error) {
	y, m, d := date.Date()
	return s.filter(func(sc *entity.Schedule) bool {
		sy, sm, sd := sc.ShowDate.Date()
		return sc.IsActive && sy == y && sm == m && sd == d
	}), nil
}

func (s *ScheduleStore) Update(_ context.Context, id uuid.UUID, upd entity.ScheduleUpdate) (*entity.Schedule, error) {
	return s.swap(id, func(current *entity.Schedule) (*entity.Schedule, error) {
		next := current.Clone()
		next.Apply(upd)
		next.UpdatedAt = s.now()
		return next, nil
	})
}

func (s *ScheduleStore) DeactivatePast(_ context.Context, now time.Time) (int64, error) {
	s.mu.RLock()
	slots := make([]*atomic.Pointer[entity.Schedule], 0, len(s.schedules))
	for _, p := range s.schedules {
		slots = append(slots, p)
	}
	s.mu.RUnlock()

	var n int64
	for _, p := range slots {
		for {
			current := p.Load()
			if !current.IsActive || !current.StartsAt().Before(now) {
				break
			}
			next := current.Clone()
			next.IsActive = false
			next.UpdatedAt = now
			if p.CompareAndSwap(current, next) {
				n++
				break
			}
		}
	}
	return n, nil
}

// FindAll pages over every schedule, active or not, ordered by start.
func (s *ScheduleStore) FindAll(_ context.Context, limit, offset int) ([]*entity.Schedule, error) {
	all := s.filter(func(*entity.Schedule) bool { return true })
	return page(all, limit, offset), nil
}

func (s *ScheduleStore) CountAll(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.schedules)), nil
}

// CommitSeats books seats for holder. A replay by the same holder finds the
// seats already held and returns the current snapshot unchanged.
func (s *ScheduleStore) CommitSeats(_ context.Context, id, holder uuid.UUID, seats []string) (*entity.Schedule, error) {
	return s.swap(id, func(current *entity.Schedule) (*entity.Schedule, error) {
		if current.HeldBy(holder, seats) {
			return current, nil
		}
		if !current.IsActive {
			return nil, apperror.ScheduleInactive(id.String())
		}
		if err := current.CheckCommit(seats); err != nil {
			return nil, err
		}
		return current.WithSeatsBooked(holder, seats, s.now()), nil
	})
}

func (s *ScheduleStore) ReleaseSeats(_ context.Context, id, holder uuid.UUID, seats []string) (*entity.Schedule, error) {
	return s.swap(id, func(current *entity.Schedule) (*entity.Schedule, error) {
		return current.WithSeatsReleased(holder, seats, s.now()), nil
	})
}

// swap applies fn to the current snapshot until the result is installed
// without a concurrent change in between.
func (s *ScheduleStore) swap(id uuid.UUID, fn func(*entity.Schedule) (*entity.Schedule, error)) (*entity.Schedule, error) {
	p, ok := s.slot(id)
	if !ok {
		return nil, apperror.NotFound("schedule", id.String())
	}

	for {
		current := p.Load()
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		if next == current {
			return current.Clone(), nil
		}
		if p.CompareAndSwap(current, next) {
			return next.Clone(), nil
		}
	}
}

func (s *ScheduleStore) filter(keep func(*entity.Schedule) bool) []*entity.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.Schedule
	for _, p := range s.schedules {
		if sc := p.Load(); keep(sc) {
			out = append(out, sc.Clone())
		}
	}

	slices.SortFunc(out, func(a, b *entity.Schedule) int {
		return a.StartsAt().Compare(b.StartsAt())
	})
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
