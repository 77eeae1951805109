package repository

import (
	"context"
	"errors"
	"regexp"

	"cinema-ticketing/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateCode reports a booking code already present in the ledger.
var ErrDuplicateCode = errors.New("booking code already exists")

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgTooManyConnections   = "53300"
	pgAdminShutdown        = "57P01"
	pgCannotConnectNow     = "57P03"

	constraintScheduleSeat = "schedule_seats_pkey"
	constraintBookingCode  = "bookings_booking_code_key"
)

// Detail looks like: Key (schedule_id, seat_label)=(<uuid>, A1) already exists.
var seatKeyDetail = regexp.MustCompile(`=\([^,]+, ([^)]+)\)`)

// persistenceError wraps a driver error; transient faults are marked retryable.
func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperror.Persistence(op, err, isTransient(err))
}

func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgTooManyConnections, pgAdminShutdown, pgCannotConnectNow:
			return true
		}
		// class 08: connection exception
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "08"
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

func uniqueViolation(err error, constraint string) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraint {
		return pgErr, true
	}
	return nil, false
}

func conflictingSeat(pgErr *pgconn.PgError) string {
	if m := seatKeyDetail.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return ""
}
