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

// BookingRepository is the booking ledger. Booking codes are unique across
// the ledger; Create returns ErrDuplicateCode when one is reused.
type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByCode(ctx context.Context, code string) (*entity.Booking, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	FindAll(ctx context.Context, limit, offset int) ([]*entity.Booking, error)
	CountAll(ctx context.Context) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.BookingStatus, at time.Time) error
}

const bookingColumns = `id, user_id, user_email, user_name, schedule_id, movie_id, movie_title,
	theater, show_date, show_time, seats, total_tickets, total_price, booking_code,
	checkin_payload, status, cancelled_at, created_at, updated_at`

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

// Create is safe to repeat with the same booking ID: a replayed insert after
// an ambiguous commit is a no-op.
func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.UserID,
		booking.UserEmail,
		booking.UserName,
		booking.ScheduleID,
		booking.MovieID,
		booking.MovieTitle,
		booking.Theater,
		booking.ShowDate,
		booking.ShowTime,
		booking.Seats,
		booking.TotalTickets,
		booking.TotalPrice,
		booking.BookingCode,
		booking.CheckInPayload,
		booking.Status,
		booking.CancelledAt,
		booking.CreatedAt,
		booking.UpdatedAt,
	)

	if _, dup := uniqueViolation(err, constraintBookingCode); dup {
		r.log.Warn("Booking code collision",
			zap.String("booking_code", booking.BookingCode),
			zap.String("booking_id", booking.ID.String()),
		)
		return ErrDuplicateCode
	}
	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("booking_code", booking.BookingCode),
			zap.String("user_id", booking.UserID.String()),
		)
		return persistenceError(fmt.Sprintf("create booking %s", booking.BookingCode), err)
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("booking", id.String())
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, persistenceError(fmt.Sprintf("find booking by ID %s", id), err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByCode(ctx context.Context, code string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_code = $1`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("booking", code)
	}
	if err != nil {
		r.log.Error("Failed to find booking by code",
			zap.Error(err),
			zap.String("booking_code", code),
		)
		return nil, persistenceError(fmt.Sprintf("find booking by code %s", code), err)
	}

	return booking, nil
}

func (r *bookingRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bookings WHERE booking_code = $1)`,
		code,
	).Scan(&exists)
	if err != nil {
		r.log.Error("Failed to check booking code",
			zap.Error(err),
			zap.String("booking_code", code),
		)
		return false, persistenceError("check booking code", err)
	}

	return exists, nil
}

func (r *bookingRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by user ID",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return nil, persistenceError(fmt.Sprintf("find bookings for user %s", userID), err)
	}

	return r.collect(rows)
}

func (r *bookingRepository) FindAll(ctx context.Context, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.log.Error("Failed to list bookings",
			zap.Error(err),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, persistenceError("list bookings", err)
	}

	return r.collect(rows)
}

func (r *bookingRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings", zap.Error(err))
		return 0, persistenceError("count bookings", err)
	}
	return count, nil
}

func (r *bookingRepository) collect(rows pgx.Rows) ([]*entity.Booking, error) {
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, persistenceError("scan booking row", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("iterate booking rows", err)
	}

	return bookings, nil
}

func (r *bookingRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count bookings by user ID",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return 0, persistenceError(fmt.Sprintf("count bookings for user %s", userID), err)
	}

	return count, nil
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.BookingStatus, at time.Time) error {
	query := `
		UPDATE bookings
		SET status = $2,
		    cancelled_at = CASE WHEN $2 = 'CANCELLED' THEN $3 ELSE cancelled_at END,
		    updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, status, at)
	if err != nil {
		r.log.Error("Failed to update booking status",
			zap.Error(err),
			zap.String("booking_id", id.String()),
			zap.String("status", string(status)),
		)
		return persistenceError(fmt.Sprintf("update booking %s status", id), err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NotFound("booking", id.String())
	}

	return nil
}

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var booking entity.Booking
	err := row.Scan(
		&booking.ID,
		&booking.UserID,
		&booking.UserEmail,
		&booking.UserName,
		&booking.ScheduleID,
		&booking.MovieID,
		&booking.MovieTitle,
		&booking.Theater,
		&booking.ShowDate,
		&booking.ShowTime,
		&booking.Seats,
		&booking.TotalTickets,
		&booking.TotalPrice,
		&booking.BookingCode,
		&booking.CheckInPayload,
		&booking.Status,
		&booking.CancelledAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}
