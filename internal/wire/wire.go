package wire

import (
	"net/http"

	"cinema-ticketing/internal/adaptor"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/usecase"
	"cinema-ticketing/pkg/lock"
	"cinema-ticketing/pkg/middleware"
	"cinema-ticketing/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App holds the wired router and the services background jobs need.
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring builds services, handlers and routes.
func Wiring(
	repo *repository.Repository,
	locker lock.Locker,
	notifier usecase.BookingNotifier,
	config *utils.Config,
	logger *zap.Logger,
) *App {
	service := usecase.NewService(repo, locker, notifier, config, logger)
	handler := adaptor.NewHandler(service, logger)

	return &App{
		Router:  setupRouter(handler, repo, config, logger),
		Service: service,
	}
}

func setupRouter(handler *adaptor.Handler, repo *repository.Repository, config *utils.Config, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(config.App.CORSOrigins))

	auth := middleware.AuthSession(repo.Session, repo.User, logger)

	wireBooking(r, handler.Booking, auth, logger)
	wireSchedule(r, handler.Schedule, auth, logger)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.ResponseSuccess(w, "OK", nil)
	})

	return r
}
