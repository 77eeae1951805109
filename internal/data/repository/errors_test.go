package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cinema-ticketing/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"connection failure class", &pgconn.PgError{Code: "08006"}, true},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "40001"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Fatalf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestConflictingSeat(t *testing.T) {
	tests := map[string]string{
		"Key (schedule_id, seat_label)=(6f1c3c8e-0000-4000-8000-000000000001, A1) already exists.":  "A1",
		"Key (schedule_id, seat_label)=(6f1c3c8e-0000-4000-8000-000000000001, Z10) already exists.": "Z10",
		"duplicate key": "",
		"":              "",
	}
	for detail, want := range tests {
		if got := conflictingSeat(&pgconn.PgError{Detail: detail}); got != want {
			t.Fatalf("conflictingSeat(%q) = %q, want %q", detail, got, want)
		}
	}
}

func TestUniqueViolationChecksConstraint(t *testing.T) {
	err := fmt.Errorf("exec: %w", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraintBookingCode})

	if _, ok := uniqueViolation(err, constraintBookingCode); !ok {
		t.Fatalf("expected a booking code violation")
	}
	if _, ok := uniqueViolation(err, constraintScheduleSeat); ok {
		t.Fatalf("a different constraint must not match")
	}
	if _, ok := uniqueViolation(nil, constraintBookingCode); ok {
		t.Fatalf("nil is not a violation")
	}
}

func TestPersistenceError(t *testing.T) {
	if persistenceError("op", nil) != nil {
		t.Fatalf("nil stays nil")
	}
	if err := persistenceError("op", context.Canceled); !errors.Is(err, context.Canceled) || apperror.KindOf(err) != "" {
		t.Fatalf("context errors pass through untouched, got %v", err)
	}

	err := persistenceError("op", &pgconn.PgError{Code: "40P01"})
	if !apperror.Is(err, apperror.KindPersistence) || !apperror.IsRetryable(err) {
		t.Fatalf("expected retryable persistence failure, got %v", err)
	}
	err = persistenceError("op", &pgconn.PgError{Code: "23503"})
	if apperror.IsRetryable(err) {
		t.Fatalf("a foreign key violation is permanent")
	}
}
