package usecase

import (
	"context"
	"errors"
	"fmt"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/pkg/apperror"

	"go.uber.org/zap"
)

var errCodeSpaceExhausted = errors.New("no unused booking code found")

// issueBooking assigns a booking code that is not in the ledger and writes
// the booking. A code taken between the check and the insert is redrawn;
// both paths share one attempt budget.
func (s *bookingService) issueBooking(ctx context.Context, build func(code string) *entity.Booking) (*entity.Booking, error) {
	for attempt := 1; attempt <= s.cfg.CodeMaxAttempts; attempt++ {
		code := s.newCode()

		exists, err := withRetry(ctx, s.retry, "check booking code", func() (bool, error) {
			return s.repo.Booking.ExistsByCode(ctx, code)
		})
		if err != nil {
			return nil, err
		}
		if exists {
			s.log.Debug("Booking code already taken, drawing again",
				zap.String("booking_code", code),
				zap.Int("attempt", attempt),
			)
			continue
		}

		booking := build(code)
		err = withRetryErr(ctx, s.retry, "create booking", func() error {
			return s.repo.Booking.Create(ctx, booking)
		})
		if errors.Is(err, repository.ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return booking, nil
	}

	return nil, apperror.Persistence(
		fmt.Sprintf("assign booking code after %d attempts", s.cfg.CodeMaxAttempts),
		errCodeSpaceExhausted,
		false,
	)
}
