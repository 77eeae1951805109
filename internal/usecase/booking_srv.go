package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/dto/request"
	"cinema-ticketing/internal/dto/response"
	"cinema-ticketing/internal/notification"
	"cinema-ticketing/pkg/apperror"
	"cinema-ticketing/pkg/lock"
	"cinema-ticketing/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingService interface {
	// Authenticated
	CreateBooking(ctx context.Context, buyer utils.Identity, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	CancelBooking(ctx context.Context, caller utils.Identity, code string) (*response.BookingResponse, error)
	GetUserBookings(ctx context.Context, userID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)

	// Public
	GetBookingByCode(ctx context.Context, code string) (*response.BookingResponse, error)
	GetCheckInQR(ctx context.Context, code string) (*response.CheckInQRResponse, error)

	// Admin
	ListAll(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	GetBookingByID(ctx context.Context, id string) (*response.BookingResponse, error)
}

// BookingNotifier accepts confirmations for asynchronous delivery.
type BookingNotifier interface {
	Notify(event notification.BookingConfirmedEvent)
}

type BookingOption func(*bookingService)

// WithCodeGenerator replaces the random booking code source.
func WithCodeGenerator(gen func() string) BookingOption {
	return func(s *bookingService) { s.newCode = gen }
}

func WithClock(now func() time.Time) BookingOption {
	return func(s *bookingService) { s.now = now }
}

type bookingService struct {
	repo     *repository.Repository
	locker   lock.Locker
	notifier BookingNotifier
	cfg      utils.BookingConfig
	retry    retrier
	newCode  func() string
	now      func() time.Time
	log      *zap.Logger
}

func NewBookingService(
	repo *repository.Repository,
	locker lock.Locker,
	notifier BookingNotifier,
	cfg utils.BookingConfig,
	log *zap.Logger,
	opts ...BookingOption,
) BookingService {
	log = log.With(zap.String("service", "booking"))

	if cfg.CodeMaxAttempts < 1 {
		cfg.CodeMaxAttempts = 5
	}
	if cfg.PersistRetries < 0 {
		cfg.PersistRetries = 0
	}

	s := &bookingService{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		retry:    retrier{retries: cfg.PersistRetries, backoff: cfg.RetryBackoff, log: log},
		newCode:  utils.GenerateBookingCode,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *bookingService) CreateBooking(ctx context.Context, buyer utils.Identity, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	for i, seat := range req.Seats {
		req.Seats[i] = utils.NormalizeSeatLabel(seat)
	}

	// Validate request
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, apperror.Validation("validation failed: %s", utils.FormatValidationErrors(errs))
	}
	if buyer.UserID == uuid.Nil {
		return nil, apperror.Validation("buyer identity is required")
	}

	scheduleID, err := uuid.Parse(req.ScheduleID)
	if err != nil {
		return nil, apperror.Validation("invalid schedule ID %s", req.ScheduleID)
	}

	booking, err := s.reserve(ctx, buyer, scheduleID, req.Seats, req.TotalPrice)
	if err != nil {
		fields := []zap.Field{
			zap.Error(err),
			zap.String("kind", string(apperror.KindOf(err))),
			zap.String("schedule_id", scheduleID.String()),
			zap.Strings("seats", req.Seats),
			zap.String("user_id", buyer.UserID.String()),
		}
		if apperror.Is(err, apperror.KindPersistence) {
			s.log.Error("Failed to create booking", fields...)
		} else {
			s.log.Info("Booking rejected", fields...)
		}
		return nil, err
	}

	// outside the schedule lock
	s.notifier.Notify(confirmationEvent(booking))

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("booking_code", booking.BookingCode),
		zap.String("schedule_id", scheduleID.String()),
		zap.String("user_id", buyer.UserID.String()),
		zap.Int("seat_count", booking.TotalTickets),
		zap.Float64("total_price", booking.TotalPrice),
	)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// reserve runs the check-then-commit sequence under the schedule lock.
func (s *bookingService) reserve(ctx context.Context, buyer utils.Identity, scheduleID uuid.UUID, seats []string, totalPrice float64) (*entity.Booking, error) {
	unlock, err := s.lockSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	schedule, err := withRetry(ctx, s.retry, "load schedule", func() (*entity.Schedule, error) {
		return s.repo.Schedule.FindByID(ctx, scheduleID)
	})
	if err != nil {
		return nil, err
	}
	if !schedule.IsActive {
		return nil, apperror.ScheduleInactive(scheduleID.String())
	}

	if want := schedule.Price * float64(len(seats)); math.Abs(want-totalPrice) > 0.005 {
		s.log.Warn("Expected price differs from schedule price",
			zap.String("schedule_id", scheduleID.String()),
			zap.Float64("expected", totalPrice),
			zap.Float64("schedule_total", want),
		)
	}

	// the booking ID doubles as the seat holder, so a replayed commit
	// recognises its own seats and nobody else's
	bookingID := uuid.New()
	_, err = withRetry(ctx, s.retry, "commit seats", func() (*entity.Schedule, error) {
		return s.repo.Schedule.CommitSeats(ctx, scheduleID, bookingID, seats)
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	booking, err := s.issueBooking(ctx, func(code string) *entity.Booking {
		payload := utils.CheckInPayload(code, schedule.MovieTitle, schedule.ShowDate, schedule.ShowTime)
		return &entity.Booking{
			BaseNoDelete: entity.BaseNoDelete{
				ID:        bookingID,
				CreatedAt: now,
				UpdatedAt: now,
			},
			UserID:         buyer.UserID,
			UserEmail:      buyer.Email,
			UserName:       buyer.Name,
			ScheduleID:     schedule.ID,
			MovieID:        schedule.MovieID,
			MovieTitle:     schedule.MovieTitle,
			Theater:        schedule.Theater,
			ShowDate:       schedule.ShowDate,
			ShowTime:       schedule.ShowTime,
			Seats:          seats,
			TotalTickets:   len(seats),
			TotalPrice:     totalPrice,
			BookingCode:    code,
			CheckInPayload: utils.SignCheckInPayload(payload, s.cfg.CheckInSecret),
			Status:         entity.BookingStatusConfirmed,
		}
	})
	if err != nil {
		return s.settleFailedWrite(ctx, scheduleID, bookingID, seats, err)
	}

	return booking, nil
}

// settleFailedWrite decides what happens to committed seats when the booking
// write reported failure. A write that landed despite the error is kept; the
// seats are released only once the ledger confirms the booking is absent.
func (s *bookingService) settleFailedWrite(ctx context.Context, scheduleID, bookingID uuid.UUID, seats []string, cause error) (*entity.Booking, error) {
	ctx = context.WithoutCancel(ctx)

	stored, err := withRetry(ctx, s.retry, "find booking", func() (*entity.Booking, error) {
		return s.repo.Booking.FindByID(ctx, bookingID)
	})
	switch {
	case err == nil:
		s.log.Warn("Booking write reported failure but the booking is stored",
			zap.NamedError("cause", cause),
			zap.String("booking_id", bookingID.String()),
			zap.String("booking_code", stored.BookingCode),
		)
		return stored, nil
	case apperror.Is(err, apperror.KindNotFound):
		s.releaseAfterFailure(ctx, scheduleID, bookingID, seats, cause)
	default:
		s.log.Error("Cannot tell whether the booking was stored, seats remain committed",
			zap.Error(err),
			zap.NamedError("cause", cause),
			zap.String("booking_id", bookingID.String()),
			zap.String("schedule_id", scheduleID.String()),
			zap.Strings("seats", seats),
		)
	}
	return nil, cause
}

func (s *bookingService) releaseAfterFailure(ctx context.Context, scheduleID, bookingID uuid.UUID, seats []string, cause error) {
	err := withRetryErr(ctx, s.retry, "release seats", func() error {
		_, err := s.repo.Schedule.ReleaseSeats(ctx, scheduleID, bookingID, seats)
		return err
	})
	if err != nil {
		s.log.Error("Failed to release seats after booking write failure, seats remain committed",
			zap.Error(err),
			zap.NamedError("cause", cause),
			zap.String("schedule_id", scheduleID.String()),
			zap.Strings("seats", seats),
		)
		return
	}

	s.log.Warn("Seats released after booking write failure",
		zap.Error(cause),
		zap.String("schedule_id", scheduleID.String()),
		zap.Strings("seats", seats),
	)
}

func (s *bookingService) CancelBooking(ctx context.Context, caller utils.Identity, code string) (*response.BookingResponse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !utils.IsBookingCode(code) {
		return nil, apperror.Validation("invalid booking code %s", code)
	}

	booking, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if booking.UserID != caller.UserID && !caller.IsAdmin() {
		s.log.Warn("Cancel attempt on foreign booking",
			zap.String("booking_code", code),
			zap.String("user_id", caller.UserID.String()),
		)
		return nil, apperror.NotFound("booking", code)
	}
	if booking.IsCancelled() {
		resp := response.BookingToResponse(booking)
		return &resp, nil
	}

	unlock, err := s.lockSchedule(ctx, booking.ScheduleID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// a concurrent cancel may have finished while we waited
	booking, err = s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if booking.IsCancelled() {
		resp := response.BookingToResponse(booking)
		return &resp, nil
	}

	_, err = withRetry(ctx, s.retry, "release seats", func() (*entity.Schedule, error) {
		return s.repo.Schedule.ReleaseSeats(ctx, booking.ScheduleID, booking.ID, booking.Seats)
	})
	if err != nil {
		s.log.Error("Failed to release seats for cancellation",
			zap.Error(err),
			zap.String("booking_code", code),
		)
		return nil, err
	}

	now := s.now()
	err = withRetryErr(ctx, s.retry, "cancel booking", func() error {
		return s.repo.Booking.UpdateStatus(ctx, booking.ID, entity.BookingStatusCancelled, now)
	})
	if err != nil {
		s.restoreSeats(ctx, booking, err)
		return nil, err
	}

	booking.Status = entity.BookingStatusCancelled
	booking.CancelledAt = &now
	booking.UpdatedAt = now

	s.log.Info("Booking cancelled",
		zap.String("booking_code", code),
		zap.String("schedule_id", booking.ScheduleID.String()),
		zap.Strings("seats", booking.Seats),
		zap.String("cancelled_by", caller.UserID.String()),
	)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// restoreSeats re-commits the seats of a booking whose status flip failed,
// so the ledger and the inventory agree again.
func (s *bookingService) restoreSeats(ctx context.Context, booking *entity.Booking, cause error) {
	ctx = context.WithoutCancel(ctx)

	_, err := withRetry(ctx, s.retry, "restore seats", func() (*entity.Schedule, error) {
		return s.repo.Schedule.CommitSeats(ctx, booking.ScheduleID, booking.ID, booking.Seats)
	})
	if err != nil {
		s.log.Error("Failed to restore seats after cancel failure",
			zap.Error(err),
			zap.NamedError("cause", cause),
			zap.String("booking_code", booking.BookingCode),
			zap.Strings("seats", booking.Seats),
		)
		return
	}

	s.log.Warn("Cancellation rolled back",
		zap.Error(cause),
		zap.String("booking_code", booking.BookingCode),
	)
}

func (s *bookingService) GetUserBookings(ctx context.Context, userID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperror.Validation("invalid user ID %s", userID)
	}

	page := max(req.Page, 1)
	limit := req.Limit()
	offset := req.Offset()

	bookings, err := withRetry(ctx, s.retry, "list bookings", func() ([]*entity.Booking, error) {
		return s.repo.Booking.FindByUserID(ctx, userUUID, limit, offset)
	})
	if err != nil {
		s.log.Error("Failed to get user bookings",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.Int("page", page),
			zap.Int("per_page", limit),
		)
		return nil, err
	}

	total, err := withRetry(ctx, s.retry, "count bookings", func() (int64, error) {
		return s.repo.Booking.CountByUserID(ctx, userUUID)
	})
	if err != nil {
		s.log.Error("Failed to count user bookings", zap.Error(err))
		return nil, err
	}

	items := make([]response.BookingResponse, len(bookings))
	for i, booking := range bookings {
		items[i] = response.BookingToResponse(booking)
	}

	s.log.Debug("User bookings retrieved",
		zap.String("user_id", userID),
		zap.Int("count", len(items)),
		zap.Int64("total", total),
	)

	return response.NewPaginatedResponse(items, page, limit, total), nil
}

func (s *bookingService) GetBookingByCode(ctx context.Context, code string) (*response.BookingResponse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !utils.IsBookingCode(code) {
		return nil, apperror.NotFound("booking", code)
	}

	booking, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// GetCheckInQR renders the booking's signed check-in payload as a QR image.
func (s *bookingService) GetCheckInQR(ctx context.Context, code string) (*response.CheckInQRResponse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !utils.IsBookingCode(code) {
		return nil, apperror.NotFound("booking", code)
	}

	booking, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if booking.IsCancelled() {
		return nil, apperror.Validation("booking %s is cancelled", code)
	}

	image, err := utils.RenderCheckInQR(booking.CheckInPayload)
	if err != nil {
		s.log.Error("Failed to render check-in QR",
			zap.Error(err),
			zap.String("booking_code", code),
		)
		return nil, err
	}

	return &response.CheckInQRResponse{
		BookingCode:    booking.BookingCode,
		CheckInPayload: booking.CheckInPayload,
		QRImage:        image,
	}, nil
}

func (s *bookingService) ListAll(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	page := max(req.Page, 1)
	limit := req.Limit()
	offset := req.Offset()

	bookings, err := withRetry(ctx, s.retry, "list all bookings", func() ([]*entity.Booking, error) {
		return s.repo.Booking.FindAll(ctx, limit, offset)
	})
	if err != nil {
		s.log.Error("Failed to list bookings", zap.Error(err), zap.Int("page", page))
		return nil, err
	}

	total, err := withRetry(ctx, s.retry, "count all bookings", func() (int64, error) {
		return s.repo.Booking.CountAll(ctx)
	})
	if err != nil {
		s.log.Error("Failed to count bookings", zap.Error(err))
		return nil, err
	}

	items := make([]response.BookingResponse, len(bookings))
	for i, booking := range bookings {
		items[i] = response.BookingToResponse(booking)
	}

	return response.NewPaginatedResponse(items, page, limit, total), nil
}

func (s *bookingService) GetBookingByID(ctx context.Context, id string) (*response.BookingResponse, error) {
	bookingID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("invalid booking ID %s", id)
	}

	booking, err := withRetry(ctx, s.retry, "find booking", func() (*entity.Booking, error) {
		return s.repo.Booking.FindByID(ctx, bookingID)
	})
	if err != nil {
		return nil, err
	}

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) findByCode(ctx context.Context, code string) (*entity.Booking, error) {
	return withRetry(ctx, s.retry, "find booking", func() (*entity.Booking, error) {
		return s.repo.Booking.FindByCode(ctx, code)
	})
}

func (s *bookingService) lockSchedule(ctx context.Context, scheduleID uuid.UUID) (lock.Unlock, error) {
	return acquireScheduleLock(ctx, s.locker, scheduleID, s.cfg.LockWait, s.log)
}

func scheduleLockKey(id uuid.UUID) string {
	return "schedule:" + id.String()
}

// acquireScheduleLock maps lock failures onto the error taxonomy.
func acquireScheduleLock(ctx context.Context, locker lock.Locker, scheduleID uuid.UUID, wait time.Duration, log *zap.Logger) (lock.Unlock, error) {
	unlock, err := locker.Acquire(ctx, scheduleLockKey(scheduleID), wait)
	switch {
	case err == nil:
		return unlock, nil
	case errors.Is(err, lock.ErrBusy):
		log.Warn("Schedule busy",
			zap.String("schedule_id", scheduleID.String()),
			zap.Duration("waited", wait),
		)
		return nil, apperror.SchedulingBusy(scheduleID.String())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		log.Error("Failed to acquire schedule lock",
			zap.Error(err),
			zap.String("schedule_id", scheduleID.String()),
		)
		return nil, apperror.Persistence("acquire schedule lock", err, false)
	}
}

func confirmationEvent(b *entity.Booking) notification.BookingConfirmedEvent {
	return notification.BookingConfirmedEvent{
		Recipient:      b.UserEmail,
		RecipientName:  b.UserName,
		BookingCode:    b.BookingCode,
		MovieTitle:     b.MovieTitle,
		ShowDate:       b.ShowDate.Format(utils.DateLayout),
		ShowTime:       b.ShowTime,
		Theater:        b.Theater,
		Seats:          b.Seats,
		TotalPrice:     b.TotalPrice,
		CheckInPayload: b.CheckInPayload,
		ConfirmedAt:    b.CreatedAt,
	}
}
