package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/pkg/apperror"
	"cinema-ticketing/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ScheduleRepository is the durable seat inventory. CommitSeats and
// ReleaseSeats are atomic per schedule: the availability check and the
// mutation happen in one unit. Every committed seat records the booking
// (holder) it belongs to; a commit replayed by the same holder is a no-op
// and a release only frees the holder's own seats.
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *entity.Schedule) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Schedule, error)
	FindActiveByMovieID(ctx context.Context, movieID uuid.UUID) ([]*entity.Schedule, error)
	FindActiveByDate(ctx context.Context, date time.Time) ([]*entity.Schedule, error)
	Update(ctx context.Context, id uuid.UUID, upd entity.ScheduleUpdate) (*entity.Schedule, error)
	DeactivatePast(ctx context.Context, now time.Time) (int64, error)
	FindAll(ctx context.Context, limit, offset int) ([]*entity.Schedule, error)
	CountAll(ctx context.Context) (int64, error)

	// Seat inventory
	CommitSeats(ctx context.Context, id, holder uuid.UUID, seats []string) (*entity.Schedule, error)
	ReleaseSeats(ctx context.Context, id, holder uuid.UUID, seats []string) (*entity.Schedule, error)
}

const scheduleColumns = `s.id, s.movie_id, s.movie_title, s.theater, s.show_date, s.show_time,
	s.total_seats, s.price, s.is_active, s.version, s.created_at, s.updated_at`

const bookedSeatsColumn = `COALESCE((
		SELECT array_agg(ss.seat_label ORDER BY ss.committed_at, ss.seat_label)
		FROM schedule_seats ss
		WHERE ss.schedule_id = s.id
	), '{}')`

type scheduleRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewScheduleRepository(db database.PgxIface, log *zap.Logger) ScheduleRepository {
	return &scheduleRepository{
		db:  db,
		log: log.With(zap.String("repository", "schedule")),
	}
}

func (r *scheduleRepository) Create(ctx context.Context, schedule *entity.Schedule) error {
	query := `
		INSERT INTO schedules (id, movie_id, movie_title, theater, show_date, show_time,
		                       total_seats, price, is_active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		schedule.ID,
		schedule.MovieID,
		schedule.MovieTitle,
		schedule.Theater,
		schedule.ShowDate,
		schedule.ShowTime,
		schedule.TotalSeats,
		schedule.Price,
		schedule.IsActive,
		schedule.Version,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create schedule",
			zap.Error(err),
			zap.String("movie_id", schedule.MovieID.String()),
			zap.String("theater", schedule.Theater),
			zap.Time("show_date", schedule.ShowDate),
		)
		return persistenceError(fmt.Sprintf("create schedule for movie %s", schedule.MovieID), err)
	}

	return nil
}

func (r *scheduleRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `, ` + bookedSeatsColumn + `
		FROM schedules s
		WHERE s.id = $1
	`

	schedule, err := scanSchedule(r.db.QueryRow(ctx, query, id), true)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("schedule", id.String())
	}
	if err != nil {
		r.log.Error("Failed to find schedule by ID",
			zap.Error(err),
			zap.String("schedule_id", id.String()),
		)
		return nil, persistenceError(fmt.Sprintf("find schedule by ID %s", id), err)
	}

	return schedule, nil
}

func (r *scheduleRepository) FindActiveByMovieID(ctx context.Context, movieID uuid.UUID) ([]*entity.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `, ` + bookedSeatsColumn + `
		FROM schedules s
		WHERE s.movie_id = $1 AND s.is_active
		ORDER BY s.show_date, s.show_time
	`

	rows, err := r.db.Query(ctx, query, movieID)
	if err != nil {
		r.log.Error("Failed to find schedules by movie ID",
			zap.Error(err),
			zap.String("movie_id", movieID.String()),
		)
		return nil, persistenceError(fmt.Sprintf("find schedules by movie ID %s", movieID), err)
	}

	return r.collect(rows)
}

func (r *scheduleRepository) FindActiveByDate(ctx context.Context, date time.Time) ([]*entity.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `, ` + bookedSeatsColumn + `
		FROM schedules s
		WHERE s.show_date = $1 AND s.is_active
		ORDER BY s.show_time, s.theater
	`

	rows, err := r.db.Query(ctx, query, date)
	if err != nil {
		r.log.Error("Failed to find schedules by date",
			zap.Error(err),
			zap.Time("date", date),
		)
		return nil, persistenceError(fmt.Sprintf("find schedules by date %s", date.Format("2006-01-02")), err)
	}

	return r.collect(rows)
}

func (r *scheduleRepository) FindAll(ctx context.Context, limit, offset int) ([]*entity.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `, ` + bookedSeatsColumn + `
		FROM schedules s
		ORDER BY s.show_date, s.show_time, s.id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.log.Error("Failed to list schedules",
			zap.Error(err),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, persistenceError("list schedules", err)
	}

	return r.collect(rows)
}

func (r *scheduleRepository) CountAll(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM schedules`).Scan(&total); err != nil {
		r.log.Error("Failed to count schedules", zap.Error(err))
		return 0, persistenceError("count schedules", err)
	}
	return total, nil
}

func (r *scheduleRepository) Update(ctx context.Context, id uuid.UUID, upd entity.ScheduleUpdate) (*entity.Schedule, error) {
	var updated *entity.Schedule

	err := r.withTx(ctx, "update schedule", func(tx pgx.Tx) error {
		schedule, err := r.findForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		schedule.Apply(upd)
		schedule.UpdatedAt = time.Now()

		query := `
			UPDATE schedules
			SET theater = $2, show_date = $3, show_time = $4, price = $5, is_active = $6, updated_at = $7
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, query,
			id,
			schedule.Theater,
			schedule.ShowDate,
			schedule.ShowTime,
			schedule.Price,
			schedule.IsActive,
			schedule.UpdatedAt,
		); err != nil {
			return persistenceError(fmt.Sprintf("update schedule %s", id), err)
		}

		updated = schedule
		return nil
	})
	if err != nil {
		r.logFailure("Failed to update schedule", err, id)
		return nil, err
	}

	return updated, nil
}

func (r *scheduleRepository) DeactivatePast(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE schedules
		SET is_active = FALSE, updated_at = NOW()
		WHERE is_active AND (show_date + show_time::time) < $1::timestamp
	`

	result, err := r.db.Exec(ctx, query, now)
	if err != nil {
		r.log.Error("Failed to deactivate past schedules", zap.Error(err))
		return 0, persistenceError("deactivate past schedules", err)
	}

	return result.RowsAffected(), nil
}

func (r *scheduleRepository) CommitSeats(ctx context.Context, id, holder uuid.UUID, seats []string) (*entity.Schedule, error) {
	var updated *entity.Schedule

	err := r.withTx(ctx, "commit seats", func(tx pgx.Tx) error {
		schedule, err := r.findForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		if schedule.HeldBy(holder, seats) {
			updated = schedule
			return nil
		}
		if !schedule.IsActive {
			return apperror.ScheduleInactive(id.String())
		}
		if err := schedule.CheckCommit(seats); err != nil {
			return err
		}

		now := time.Now()
		_, err = tx.Exec(ctx, `
			INSERT INTO schedule_seats (schedule_id, seat_label, booking_id, committed_at)
			SELECT $1, unnest($2::text[]), $3, $4
		`, id, seats, holder, now)
		if err != nil {
			// storage-level backstop for the row lock above
			if pgErr, ok := uniqueViolation(err, constraintScheduleSeat); ok {
				return apperror.SeatConflict(conflictingSeat(pgErr))
			}
			return persistenceError(fmt.Sprintf("insert seats for schedule %s", id), err)
		}

		if err := r.bumpVersion(ctx, tx, id, now); err != nil {
			return err
		}

		updated = schedule.WithSeatsBooked(holder, seats, now)
		return nil
	})
	if err != nil {
		r.logFailure("Failed to commit seats", err, id, zap.Strings("seats", seats))
		return nil, err
	}

	r.log.Debug("Seats committed",
		zap.String("schedule_id", id.String()),
		zap.String("booking_id", holder.String()),
		zap.Strings("seats", seats),
		zap.Int64("version", updated.Version),
		zap.Int("available", updated.AvailableSeats()),
	)

	return updated, nil
}

func (r *scheduleRepository) ReleaseSeats(ctx context.Context, id, holder uuid.UUID, seats []string) (*entity.Schedule, error) {
	var updated *entity.Schedule

	err := r.withTx(ctx, "release seats", func(tx pgx.Tx) error {
		schedule, err := r.findForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		now := time.Now()
		_, err = tx.Exec(ctx,
			`DELETE FROM schedule_seats WHERE schedule_id = $1 AND seat_label = ANY($2::text[]) AND booking_id = $3`,
			id, seats, holder,
		)
		if err != nil {
			return persistenceError(fmt.Sprintf("delete seats for schedule %s", id), err)
		}

		if err := r.bumpVersion(ctx, tx, id, now); err != nil {
			return err
		}

		updated = schedule.WithSeatsReleased(holder, seats, now)
		return nil
	})
	if err != nil {
		r.logFailure("Failed to release seats", err, id, zap.Strings("seats", seats))
		return nil, err
	}

	return updated, nil
}

// findForUpdate row-locks the schedule for the rest of tx and loads its
// committed seats with their holders. The row lock also orders commits
// against DeactivatePast, which updates the same row.
func (r *scheduleRepository) findForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*entity.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM schedules s
		WHERE s.id = $1
		FOR UPDATE
	`

	schedule, err := scanSchedule(tx.QueryRow(ctx, query, id), false)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("schedule", id.String())
	}
	if err != nil {
		return nil, persistenceError(fmt.Sprintf("lock schedule %s", id), err)
	}

	rows, err := tx.Query(ctx,
		`SELECT seat_label, booking_id FROM schedule_seats WHERE schedule_id = $1 ORDER BY committed_at, seat_label`,
		id,
	)
	if err != nil {
		return nil, persistenceError(fmt.Sprintf("load seats for schedule %s", id), err)
	}
	defer rows.Close()

	schedule.SeatHolders = make(map[string]uuid.UUID)
	for rows.Next() {
		var (
			seat   string
			holder uuid.UUID
		)
		if err := rows.Scan(&seat, &holder); err != nil {
			return nil, persistenceError(fmt.Sprintf("scan seats for schedule %s", id), err)
		}
		schedule.BookedSeats = append(schedule.BookedSeats, seat)
		schedule.SeatHolders[seat] = holder
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError(fmt.Sprintf("iterate seats for schedule %s", id), err)
	}

	return schedule, nil
}

func (r *scheduleRepository) bumpVersion(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	_, err := tx.Exec(ctx,
		`UPDATE schedules SET version = version + 1, updated_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return persistenceError(fmt.Sprintf("bump schedule %s version", id), err)
	}
	return nil
}

func (r *scheduleRepository) withTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return persistenceError(op+": begin", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return persistenceError(op+": commit", err)
	}
	return nil
}

func (r *scheduleRepository) collect(rows pgx.Rows) ([]*entity.Schedule, error) {
	defer rows.Close()

	var schedules []*entity.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows, true)
		if err != nil {
			r.log.Error("Failed to scan schedule row", zap.Error(err))
			return nil, persistenceError("scan schedule row", err)
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("iterate schedule rows", err)
	}

	return schedules, nil
}

// logFailure logs storage faults as errors; business outcomes stay at debug.
func (r *scheduleRepository) logFailure(msg string, err error, id uuid.UUID, fields ...zap.Field) {
	fields = append(fields, zap.Error(err), zap.String("schedule_id", id.String()))
	if apperror.Is(err, apperror.KindPersistence) {
		r.log.Error(msg, fields...)
		return
	}
	r.log.Debug(msg, fields...)
}

func scanSchedule(row pgx.Row, withSeats bool) (*entity.Schedule, error) {
	var schedule entity.Schedule
	dest := []any{
		&schedule.ID,
		&schedule.MovieID,
		&schedule.MovieTitle,
		&schedule.Theater,
		&schedule.ShowDate,
		&schedule.ShowTime,
		&schedule.TotalSeats,
		&schedule.Price,
		&schedule.IsActive,
		&schedule.Version,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	}
	if withSeats {
		dest = append(dest, &schedule.BookedSeats)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &schedule, nil
}
