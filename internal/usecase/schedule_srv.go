package usecase

import (
	"context"
	"strings"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/dto/request"
	"cinema-ticketing/internal/dto/response"
	"cinema-ticketing/pkg/apperror"
	"cinema-ticketing/pkg/lock"
	"cinema-ticketing/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ScheduleService interface {
	// Public
	GetSchedule(ctx context.Context, id string) (*response.ScheduleDetailResponse, error)
	ListByMovie(ctx context.Context, movieID string) ([]response.ScheduleResponse, error)
	ListByDate(ctx context.Context, date string) ([]response.ScheduleResponse, error)

	// Admin
	ListAll(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.ScheduleResponse], error)
	CreateSchedule(ctx context.Context, req *request.CreateScheduleRequest) (*response.ScheduleDetailResponse, error)
	UpdateSchedule(ctx context.Context, id string, req *request.UpdateScheduleRequest) (*response.ScheduleDetailResponse, error)

	// Background
	DeactivatePast(ctx context.Context) (int64, error)
}

type scheduleService struct {
	repo     *repository.Repository
	locker   lock.Locker
	lockWait time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewScheduleService(repo *repository.Repository, locker lock.Locker, lockWait time.Duration, log *zap.Logger) ScheduleService {
	return &scheduleService{
		repo:     repo,
		locker:   locker,
		lockWait: lockWait,
		now:      time.Now,
		log:      log.With(zap.String("service", "schedule")),
	}
}

func (s *scheduleService) GetSchedule(ctx context.Context, id string) (*response.ScheduleDetailResponse, error) {
	scheduleID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("invalid schedule ID %s", id)
	}

	schedule, err := s.repo.Schedule.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	resp := response.ScheduleToDetailResponse(schedule)
	return &resp, nil
}

func (s *scheduleService) ListByMovie(ctx context.Context, movieID string) ([]response.ScheduleResponse, error) {
	movieUUID, err := uuid.Parse(movieID)
	if err != nil {
		return nil, apperror.Validation("invalid movie ID %s", movieID)
	}

	schedules, err := s.repo.Schedule.FindActiveByMovieID(ctx, movieUUID)
	if err != nil {
		s.log.Error("Failed to list schedules by movie", zap.Error(err), zap.String("movie_id", movieID))
		return nil, err
	}

	return schedulesToResponse(schedules), nil
}

func (s *scheduleService) ListByDate(ctx context.Context, date string) ([]response.ScheduleResponse, error) {
	day, err := utils.ParseDate(date)
	if err != nil {
		return nil, apperror.Validation("invalid date %s, expected yyyy-mm-dd", date)
	}

	schedules, err := s.repo.Schedule.FindActiveByDate(ctx, day)
	if err != nil {
		s.log.Error("Failed to list schedules by date", zap.Error(err), zap.String("date", date))
		return nil, err
	}

	return schedulesToResponse(schedules), nil
}

// ListAll pages over every schedule, including inactive ones.
func (s *scheduleService) ListAll(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.ScheduleResponse], error) {
	page := max(req.Page, 1)
	limit := req.Limit()

	schedules, err := s.repo.Schedule.FindAll(ctx, limit, req.Offset())
	if err != nil {
		s.log.Error("Failed to list schedules", zap.Error(err), zap.Int("page", page))
		return nil, err
	}

	total, err := s.repo.Schedule.CountAll(ctx)
	if err != nil {
		s.log.Error("Failed to count schedules", zap.Error(err))
		return nil, err
	}

	return response.NewPaginatedResponse(schedulesToResponse(schedules), page, limit, total), nil
}

func (s *scheduleService) CreateSchedule(ctx context.Context, req *request.CreateScheduleRequest) (*response.ScheduleDetailResponse, error) {
	// Validate request
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create schedule validation failed", zap.Any("errors", errs))
		return nil, apperror.Validation("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	movieID, err := uuid.Parse(req.MovieID)
	if err != nil {
		return nil, apperror.Validation("invalid movie ID %s", req.MovieID)
	}
	showDate, err := utils.ParseDate(req.ShowDate)
	if err != nil {
		return nil, apperror.Validation("invalid show date %s", req.ShowDate)
	}

	movie, err := s.repo.Movie.FindByID(ctx, movieID)
	if err != nil {
		return nil, err
	}

	totalSeats := req.TotalSeats
	if totalSeats == 0 {
		totalSeats = entity.DefaultTotalSeats
	}

	now := s.now()
	schedule := &entity.Schedule{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        utils.GenerateUUID(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		MovieID:     movie.ID,
		MovieTitle:  movie.Title,
		Theater:     strings.TrimSpace(req.Theater),
		ShowDate:    showDate,
		ShowTime:    req.ShowTime,
		TotalSeats:  totalSeats,
		BookedSeats: []string{},
		Price:       req.Price,
		IsActive:    true,
	}

	if err := s.repo.Schedule.Create(ctx, schedule); err != nil {
		return nil, err
	}

	s.log.Info("Schedule created",
		zap.String("schedule_id", schedule.ID.String()),
		zap.String("movie_id", movie.ID.String()),
		zap.String("theater", schedule.Theater),
		zap.String("show_date", req.ShowDate),
		zap.String("show_time", req.ShowTime),
		zap.Int("total_seats", totalSeats),
	)

	resp := response.ScheduleToDetailResponse(schedule)
	return &resp, nil
}

func (s *scheduleService) UpdateSchedule(ctx context.Context, id string, req *request.UpdateScheduleRequest) (*response.ScheduleDetailResponse, error) {
	scheduleID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("invalid schedule ID %s", id)
	}
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Update schedule validation failed", zap.Any("errors", errs))
		return nil, apperror.Validation("validation failed: %s", utils.FormatValidationErrors(errs))
	}
	if req.Empty() {
		return nil, apperror.Validation("no fields to update")
	}

	upd := entity.ScheduleUpdate{
		ShowTime: req.ShowTime,
		Price:    req.Price,
		IsActive: req.IsActive,
	}
	if req.Theater != nil {
		theater := strings.TrimSpace(*req.Theater)
		upd.Theater = &theater
	}
	if req.ShowDate != nil {
		showDate, err := utils.ParseDate(*req.ShowDate)
		if err != nil {
			return nil, apperror.Validation("invalid show date %s", *req.ShowDate)
		}
		upd.ShowDate = &showDate
	}

	unlock, err := acquireScheduleLock(ctx, s.locker, scheduleID, s.lockWait, s.log)
	if err != nil {
		return nil, err
	}
	defer unlock()

	schedule, err := s.repo.Schedule.Update(ctx, scheduleID, upd)
	if err != nil {
		return nil, err
	}

	s.log.Info("Schedule updated",
		zap.String("schedule_id", id),
		zap.Bool("is_active", schedule.IsActive),
		zap.Float64("price", schedule.Price),
	)

	resp := response.ScheduleToDetailResponse(schedule)
	return &resp, nil
}

func (s *scheduleService) DeactivatePast(ctx context.Context) (int64, error) {
	n, err := s.repo.Schedule.DeactivatePast(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("Past schedules deactivated", zap.Int64("count", n))
	}
	return n, nil
}

func schedulesToResponse(schedules []*entity.Schedule) []response.ScheduleResponse {
	items := make([]response.ScheduleResponse, len(schedules))
	for i, schedule := range schedules {
		items[i] = response.ScheduleToResponse(schedule)
	}
	return items
}
