package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/pkg/apperror"

	"github.com/google/uuid"
)

func newSchedule(total int) *entity.Schedule {
	return &entity.Schedule{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()},
		MovieID:      uuid.New(),
		MovieTitle:   "Inception",
		Theater:      "Studio 1",
		ShowDate:     time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		ShowTime:     "19:00",
		TotalSeats:   total,
		Price:        50000,
		IsActive:     true,
	}
}

func TestScheduleStoreCommitAndRelease(t *testing.T) {
	ctx := context.Background()
	store := NewScheduleStore()
	sc := newSchedule(50)
	if err := store.Create(ctx, sc); err != nil {
		t.Fatalf("create: %v", err)
	}

	mine, theirs := uuid.New(), uuid.New()
	updated, err := store.CommitSeats(ctx, sc.ID, mine, []string{"A1", "A2"})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if updated.AvailableSeats() != 48 || updated.Version != 1 {
		t.Fatalf("unexpected state: available=%d version=%d", updated.AvailableSeats(), updated.Version)
	}

	_, err = store.CommitSeats(ctx, sc.ID, theirs, []string{"A3", "A2"})
	if !apperror.Is(err, apperror.KindSeatConflict) || apperror.SeatOf(err) != "A2" {
		t.Fatalf("expected conflict on A2, got %v", err)
	}

	if got, _ := store.ReleaseSeats(ctx, sc.ID, theirs, []string{"A1"}); !got.IsBooked("A1") {
		t.Fatalf("a release by another booking must not free A1")
	}

	released, err := store.ReleaseSeats(ctx, sc.ID, mine, []string{"A1", "J9"})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.AvailableSeats() != 49 || released.IsBooked("A1") {
		t.Fatalf("A1 should be free again, booked=%v", released.BookedSeats)
	}
}

func TestScheduleStoreNotFound(t *testing.T) {
	store := NewScheduleStore()

	if _, err := store.FindByID(context.Background(), uuid.New()); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.CommitSeats(context.Background(), uuid.New(), uuid.New(), []string{"A1"}); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestScheduleStoreSnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewScheduleStore()
	sc := newSchedule(10)
	_ = store.Create(ctx, sc)

	got, _ := store.FindByID(ctx, sc.ID)
	got.BookedSeats = append(got.BookedSeats, "A1")

	again, _ := store.FindByID(ctx, sc.ID)
	if again.IsBooked("A1") {
		t.Fatalf("caller mutation leaked into the store")
	}
}

func TestScheduleStoreConcurrentCommitsWithoutLock(t *testing.T) {
	ctx := context.Background()
	store := NewScheduleStore()
	sc := newSchedule(50)
	_ = store.Create(ctx, sc)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.CommitSeats(ctx, sc.ID, uuid.New(), []string{"C5"}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(seat string) {
			defer wg.Done()
			if _, err := store.CommitSeats(ctx, sc.ID, uuid.New(), []string{seat}); err != nil {
				t.Errorf("disjoint seat %s: %v", seat, err)
			}
		}(fmt.Sprintf("A%d", i))
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner for C5, got %d", wins)
	}
	final, _ := store.FindByID(ctx, sc.ID)
	if len(final.BookedSeats) != 11 || final.Version != 11 {
		t.Fatalf("expected 11 seats at version 11, got %d at %d", len(final.BookedSeats), final.Version)
	}
}

func TestScheduleStoreReplayedCommitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewScheduleStore()
	sc := newSchedule(50)
	_ = store.Create(ctx, sc)

	holder := uuid.New()
	first, err := store.CommitSeats(ctx, sc.ID, holder, []string{"D1", "D2"})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	again, err := store.CommitSeats(ctx, sc.ID, holder, []string{"D1", "D2"})
	if err != nil {
		t.Fatalf("replay by the same booking must succeed, got %v", err)
	}
	if again.Version != first.Version || len(again.BookedSeats) != 2 {
		t.Fatalf("replay must not change the schedule, version %d -> %d", first.Version, again.Version)
	}

	if _, err := store.CommitSeats(ctx, sc.ID, uuid.New(), []string{"D1"}); apperror.SeatOf(err) != "D1" {
		t.Fatalf("another booking must conflict on D1, got %v", err)
	}
}

func TestScheduleStoreRejectsCommitOnInactiveSchedule(t *testing.T) {
	ctx := context.Background()
	store := NewScheduleStore()
	sc := newSchedule(50)
	_ = store.Create(ctx, sc)

	off := false
	if _, err := store.Update(ctx, sc.ID, entity.ScheduleUpdate{IsActive: &off}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := store.CommitSeats(ctx, sc.ID, uuid.New(), []string{"A1"}); !apperror.Is(err, apperror.KindScheduleInactive) {
		t.Fatalf("expected schedule inactive, got %v", err)
	}
	got, _ := store.FindByID(ctx, sc.ID)
	if len(got.BookedSeats) != 0 {
		t.Fatalf("no seat may be committed on an inactive schedule")
	}
}

func TestScheduleStoreFindAll(t *testing.T) {
	ctx := context.Background()
	store := NewScheduleStore()
	for i := 0; i < 3; i++ {
		sc := newSchedule(50)
		sc.ShowTime = fmt.Sprintf("1%d:00", i)
		sc.IsActive = i != 1
		_ = store.Create(ctx, sc)
	}

	all, _ := store.FindAll(ctx, 2, 0)
	if len(all) != 2 || all[0].ShowTime != "10:00" {
		t.Fatalf("expected the first page ordered by start, got %d", len(all))
	}
	rest, _ := store.FindAll(ctx, 2, 2)
	if len(rest) != 1 || rest[0].ShowTime != "12:00" {
		t.Fatalf("expected one schedule on page two")
	}
	if n, _ := store.CountAll(ctx); n != 3 {
		t.Fatalf("inactive schedules count too, got %d", n)
	}
}

func TestScheduleStoreQueries(t *testing.T) {
	ctx := context.Background()
	store := NewScheduleStore()

	movie := uuid.New()
	early := newSchedule(50)
	early.MovieID = movie
	early.ShowTime = "13:00"
	late := newSchedule(50)
	late.MovieID = movie
	inactive := newSchedule(50)
	inactive.MovieID = movie
	inactive.IsActive = false
	for _, sc := range []*entity.Schedule{late, early, inactive, newSchedule(50)} {
		_ = store.Create(ctx, sc)
	}

	byMovie, _ := store.FindActiveByMovieID(ctx, movie)
	if len(byMovie) != 2 || byMovie[0].ID != early.ID {
		t.Fatalf("expected two active schedules ordered by start, got %d", len(byMovie))
	}

	byDate, _ := store.FindActiveByDate(ctx, early.ShowDate)
	if len(byDate) != 3 {
		t.Fatalf("expected 3 active schedules on the date, got %d", len(byDate))
	}

	n, _ := store.DeactivatePast(ctx, time.Date(2030, 1, 1, 15, 0, 0, 0, time.UTC))
	if n != 1 {
		t.Fatalf("expected only the 13:00 show to be deactivated, got %d", n)
	}
	got, _ := store.FindByID(ctx, early.ID)
	if got.IsActive {
		t.Fatalf("13:00 show should be inactive")
	}
}

func TestScheduleStoreUpdateKeepsInventory(t *testing.T) {
	ctx := context.Background()
	store := NewScheduleStore()
	sc := newSchedule(50)
	_ = store.Create(ctx, sc)
	_, _ = store.CommitSeats(ctx, sc.ID, uuid.New(), []string{"B2"})

	price := 65000.0
	updated, err := store.Update(ctx, sc.ID, entity.ScheduleUpdate{Price: &price})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Price != price || !updated.IsBooked("B2") {
		t.Fatalf("update must change price and keep seats, got %+v", updated)
	}
}

func TestBookingLedger(t *testing.T) {
	ctx := context.Background()
	ledger := NewBookingLedger()
	user := uuid.New()
	base := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		b := &entity.Booking{
			BaseNoDelete: entity.BaseNoDelete{ID: uuid.New(), CreatedAt: base.Add(time.Duration(i) * time.Minute)},
			UserID:       user,
			BookingCode:  fmt.Sprintf("CODE00000%d", i),
			Seats:        []string{"A1"},
			Status:       entity.BookingStatusConfirmed,
		}
		if err := ledger.Create(ctx, b); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := ledger.Create(ctx, b); err != nil {
			t.Fatalf("replayed create should be a no-op: %v", err)
		}
	}

	dup := &entity.Booking{BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()}, BookingCode: "CODE000000"}
	if err := ledger.Create(ctx, dup); !errors.Is(err, repository.ErrDuplicateCode) {
		t.Fatalf("expected duplicate code, got %v", err)
	}

	page, _ := ledger.FindByUserID(ctx, user, 2, 0)
	if len(page) != 2 || page[0].BookingCode != "CODE000002" {
		t.Fatalf("expected newest first, got %d items", len(page))
	}
	rest, _ := ledger.FindByUserID(ctx, user, 2, 2)
	if len(rest) != 1 || rest[0].BookingCode != "CODE000000" {
		t.Fatalf("expected the oldest on page two")
	}

	if n, _ := ledger.CountByUserID(ctx, user); n != 3 {
		t.Fatalf("expected 3 bookings, got %d", n)
	}

	other := &entity.Booking{BaseNoDelete: entity.BaseNoDelete{ID: uuid.New(), CreatedAt: base.Add(time.Hour)}, UserID: uuid.New(), BookingCode: "CODE000009"}
	_ = ledger.Create(ctx, other)
	everyone, _ := ledger.FindAll(ctx, 10, 0)
	if len(everyone) != 4 || everyone[0].ID != other.ID {
		t.Fatalf("expected the whole ledger newest first, got %d items", len(everyone))
	}
	if n, _ := ledger.CountAll(ctx); n != 4 {
		t.Fatalf("expected 4 bookings in the ledger, got %d", n)
	}

	b, _ := ledger.FindByCode(ctx, "CODE000001")
	if err := ledger.UpdateStatus(ctx, b.ID, entity.BookingStatusCancelled, base); err != nil {
		t.Fatalf("update status: %v", err)
	}
	b, _ = ledger.FindByCode(ctx, "CODE000001")
	if !b.IsCancelled() || b.CancelledAt == nil {
		t.Fatalf("expected cancelled booking with timestamp")
	}
}
