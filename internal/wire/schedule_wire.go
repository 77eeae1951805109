package wire

import (
	"net/http"

	"cinema-ticketing/internal/adaptor"
	"cinema-ticketing/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireSchedule(r chi.Router, scheduleHandler *adaptor.ScheduleHandler, auth func(http.Handler) http.Handler, log *zap.Logger) {
	// ==================== PUBLIC ROUTES ====================
	r.Route("/api/schedules", func(r chi.Router) {
		r.Get("/{id}", scheduleHandler.GetSchedule)
		r.Get("/movie/{movieID}", scheduleHandler.ListByMovie)
		r.Get("/date/{date}", scheduleHandler.ListByDate)
	})

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/schedules", func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.Admin(log))

		r.Get("/", scheduleHandler.ListAll)            // GET /api/admin/schedules
		r.Post("/", scheduleHandler.CreateSchedule)    // POST /api/admin/schedules
		r.Put("/{id}", scheduleHandler.UpdateSchedule) // PUT /api/admin/schedules/{id}
	})
}
