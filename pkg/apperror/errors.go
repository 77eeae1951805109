// Package apperror defines the error kinds shared by the booking core.
// Callers branch on Kind, never on message text.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound             Kind = "NOT_FOUND"
	KindSeatConflict         Kind = "SEAT_CONFLICT"
	KindInsufficientCapacity Kind = "INSUFFICIENT_CAPACITY"
	KindScheduleInactive     Kind = "SCHEDULE_INACTIVE"
	KindValidation           Kind = "VALIDATION_ERROR"
	KindPersistence          Kind = "PERSISTENCE_FAILURE"
	KindNotification         Kind = "NOTIFICATION_FAILURE"
	KindSchedulingBusy       Kind = "SCHEDULING_BUSY"
)

type Error struct {
	Kind    Kind
	Message string

	// Seat is set for KindSeatConflict.
	Seat string

	// Retryable marks transient persistence faults.
	Retryable bool

	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func NotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

func SeatConflict(seat string) *Error {
	return &Error{
		Kind:    KindSeatConflict,
		Message: fmt.Sprintf("seat %s is already booked", seat),
		Seat:    seat,
	}
}

func InsufficientCapacity(requested, available int) *Error {
	return &Error{
		Kind:    KindInsufficientCapacity,
		Message: fmt.Sprintf("not enough seats available: requested %d, available %d", requested, available),
	}
}

func ScheduleInactive(id string) *Error {
	return &Error{Kind: KindScheduleInactive, Message: fmt.Sprintf("schedule %s is no longer active", id)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Persistence(op string, err error, retryable bool) *Error {
	return &Error{Kind: KindPersistence, Message: op, Retryable: retryable, Err: err}
}

func Notification(err error) *Error {
	return &Error{Kind: KindNotification, Message: "notification delivery failed", Err: err}
}

func SchedulingBusy(scheduleID string) *Error {
	return &Error{
		Kind:    KindSchedulingBusy,
		Message: fmt.Sprintf("schedule %s is busy, try again", scheduleID),
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// SeatOf returns the conflicting seat label carried by err, if any.
func SeatOf(err error) string {
	var target *Error
	if errors.As(err, &target) {
		return target.Seat
	}
	return ""
}

func IsRetryable(err error) bool {
	var target *Error
	return errors.As(err, &target) && target.Kind == KindPersistence && target.Retryable
}
