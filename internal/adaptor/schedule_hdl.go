package adaptor

import (
	"encoding/json"
	"net/http"

	"cinema-ticketing/internal/dto/request"
	"cinema-ticketing/internal/usecase"
	"cinema-ticketing/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ScheduleHandler struct {
	service usecase.ScheduleService
	log     *zap.Logger
}

func NewScheduleHandler(service usecase.ScheduleService, log *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		service: service,
		log:     log.With(zap.String("handler", "schedule")),
	}
}

// GetSchedule handles GET /api/schedules/{id}
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.service.GetSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get schedule")
		return
	}

	utils.ResponseSuccess(w, "success", schedule)
}

// ListByMovie handles GET /api/schedules/movie/{movieID}
func (h *ScheduleHandler) ListByMovie(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.service.ListByMovie(r.Context(), chi.URLParam(r, "movieID"))
	if err != nil {
		handleServiceError(w, h.log, err, "list schedules by movie")
		return
	}

	utils.ResponseSuccess(w, "success", schedules)
}

// ListByDate handles GET /api/schedules/date/{date}
func (h *ScheduleHandler) ListByDate(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.service.ListByDate(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		handleServiceError(w, h.log, err, "list schedules by date")
		return
	}

	utils.ResponseSuccess(w, "success", schedules)
}

// ListAll handles GET /api/admin/schedules (admin only)
func (h *ScheduleHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}

	schedules, err := h.service.ListAll(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.log, err, "list all schedules")
		return
	}

	utils.ResponseSuccess(w, "success", schedules)
}

// CreateSchedule handles POST /api/admin/schedules (admin only)
func (h *ScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req request.CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	schedule, err := h.service.CreateSchedule(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create schedule")
		return
	}

	utils.ResponseCreated(w, "Schedule created", schedule)
}

// UpdateSchedule handles PUT /api/admin/schedules/{id} (admin only)
func (h *ScheduleHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req request.UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	schedule, err := h.service.UpdateSchedule(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "update schedule")
		return
	}

	utils.ResponseSuccess(w, "Schedule updated", schedule)
}
