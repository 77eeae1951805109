package adaptor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/memory"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/notification"
	"cinema-ticketing/internal/usecase"
	"cinema-ticketing/pkg/lock"
	"cinema-ticketing/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

type nopNotifier struct{}

func (nopNotifier) Notify(notification.BookingConfirmedEvent) {}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

type testServer struct {
	router   *chi.Mux
	store    *memory.ScheduleStore
	schedule *entity.Schedule
}

// withIdentity stands in for the session middleware.
func withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get("X-Test-User"))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := utils.SetIdentityContext(r.Context(), utils.Identity{
			UserID: id,
			Email:  "sari@example.com",
			Name:   "Sari",
			Role:   r.Header.Get("X-Test-Role"),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTestServer(t *testing.T, totalSeats int) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)

	store := memory.NewScheduleStore()
	schedule := &entity.Schedule{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()},
		MovieID:      uuid.New(),
		MovieTitle:   "Dune",
		Theater:      "Studio 3",
		ShowDate:     time.Date(2030, 6, 1, 0, 0, 0, 0, time.Local),
		ShowTime:     "18:00",
		TotalSeats:   totalSeats,
		Price:        40000,
		IsActive:     true,
	}
	if err := store.Create(context.Background(), schedule); err != nil {
		t.Fatalf("seed: %v", err)
	}

	repo := &repository.Repository{Schedule: store, Booking: memory.NewBookingLedger()}
	cfg := &utils.Config{Booking: utils.BookingConfig{LockWait: time.Second, CodeMaxAttempts: 5}}
	service := usecase.NewService(repo, lock.NewLocalLocker(), nopNotifier{}, cfg, log)
	handler := NewHandler(service, log)

	r := chi.NewRouter()
	r.Use(withIdentity)
	r.Post("/api/bookings", handler.Booking.CreateBooking)
	r.Get("/api/bookings/my-bookings", handler.Booking.GetUserBookings)
	r.Get("/api/bookings/code/{code}", handler.Booking.GetBookingByCode)
	r.Get("/api/bookings/code/{code}/qr", handler.Booking.GetCheckInQR)
	r.Post("/api/bookings/code/{code}/cancel", handler.Booking.CancelBooking)
	r.Get("/api/admin/bookings", handler.Booking.ListAll)
	r.Get("/api/admin/bookings/{id}", handler.Booking.GetBookingByID)
	r.Get("/api/admin/schedules", handler.Schedule.ListAll)
	r.Get("/api/schedules/{id}", handler.Schedule.GetSchedule)
	r.Get("/api/schedules/date/{date}", handler.Schedule.ListByDate)

	return &testServer{router: r, store: store, schedule: schedule}
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

func (s *testServer) book(seats ...string) map[string]any {
	return map[string]any{
		"schedule_id": s.schedule.ID.String(),
		"seats":       seats,
		"total_price": 40000 * float64(len(seats)),
	}
}

func TestCreateBookingHandler(t *testing.T) {
	s := newTestServer(t, 50)
	user := uuid.NewString()

	rec, env := s.do(t, http.MethodPost, "/api/bookings", user, s.book("a1", "A2"))
	if rec.Code != http.StatusCreated || !env.Status {
		t.Fatalf("expected 201, got %d: %s", rec.Code, env.Message)
	}

	var booking struct {
		BookingCode string   `json:"booking_code"`
		Seats       []string `json:"seats"`
		Status      string   `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &booking); err != nil {
		t.Fatalf("decode booking: %v", err)
	}
	if booking.Status != "CONFIRMED" || len(booking.Seats) != 2 || !utils.IsBookingCode(booking.BookingCode) {
		t.Fatalf("unexpected booking: %+v", booking)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/bookings/code/"+booking.BookingCode, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected lookup by code to succeed, got %d", rec.Code)
	}
}

func TestCreateBookingHandlerStatusCodes(t *testing.T) {
	s := newTestServer(t, 2)
	user := uuid.NewString()

	if rec, _ := s.do(t, http.MethodPost, "/api/bookings", user, s.book("A1")); rec.Code != http.StatusCreated {
		t.Fatalf("setup booking failed: %d", rec.Code)
	}

	tests := []struct {
		name string
		user string
		body any
		want int
		kind string
	}{
		{"unauthenticated", "", s.book("A2"), http.StatusUnauthorized, ""},
		{"empty seats", user, s.book(), http.StatusBadRequest, ""},
		{"seat conflict", user, s.book("A1"), http.StatusConflict, "SEAT_CONFLICT"},
		{"capacity", user, s.book("A2", "B1"), http.StatusConflict, "INSUFFICIENT_CAPACITY"},
		{"unknown schedule", user, map[string]any{"schedule_id": uuid.NewString(), "seats": []string{"A1"}, "total_price": 1}, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, http.MethodPost, "/api/bookings", tt.user, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, env.Message)
			}
			if env.Status {
				t.Fatalf("error responses must carry status=false")
			}
			if tt.kind != "" {
				var detail struct {
					Kind string `json:"kind"`
				}
				_ = json.Unmarshal(env.Errors, &detail)
				if detail.Kind != tt.kind {
					t.Fatalf("expected kind %s, got %s", tt.kind, detail.Kind)
				}
			}
		})
	}
}

func TestCreateBookingHandlerInvalidBody(t *testing.T) {
	s := newTestServer(t, 50)

	req := httptest.NewRequest(http.MethodPost, "/api/bookings", bytes.NewBufferString("{not json"))
	req.Header.Set("X-Test-User", uuid.NewString())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCancelBookingHandler(t *testing.T) {
	s := newTestServer(t, 50)
	owner := uuid.NewString()

	_, env := s.do(t, http.MethodPost, "/api/bookings", owner, s.book("C1"))
	var booking struct {
		BookingCode string `json:"booking_code"`
	}
	_ = json.Unmarshal(env.Data, &booking)

	path := "/api/bookings/code/" + booking.BookingCode + "/cancel"
	if rec, _ := s.do(t, http.MethodPost, path, uuid.NewString(), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("a stranger must get 404, got %d", rec.Code)
	}

	for i := 0; i < 2; i++ {
		rec, env := s.do(t, http.MethodPost, path, owner, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("cancel #%d: expected 200, got %d: %s", i+1, rec.Code, env.Message)
		}
	}

	rec, env := s.do(t, http.MethodGet, "/api/schedules/"+s.schedule.ID.String(), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get schedule: %d", rec.Code)
	}
	var schedule struct {
		AvailableSeats int `json:"available_seats"`
	}
	_ = json.Unmarshal(env.Data, &schedule)
	if schedule.AvailableSeats != 50 {
		t.Fatalf("expected all seats free after cancel, got %d", schedule.AvailableSeats)
	}
}

func TestGetUserBookingsHandler(t *testing.T) {
	s := newTestServer(t, 50)
	user := uuid.NewString()
	for _, seat := range []string{"A1", "A2", "A3"} {
		s.do(t, http.MethodPost, "/api/bookings", user, s.book(seat))
	}

	rec, env := s.do(t, http.MethodGet, "/api/bookings/my-bookings?page=2&per_page=2", user, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var page struct {
		Data       []json.RawMessage `json:"data"`
		Pagination struct {
			Total      int64 `json:"total"`
			Page       int   `json:"page"`
			TotalPages int   `json:"total_pages"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Pagination.Total != 3 || page.Pagination.Page != 2 || page.Pagination.TotalPages != 2 || len(page.Data) != 1 {
		t.Fatalf("unexpected page: %+v with %d items", page.Pagination, len(page.Data))
	}
}

func TestScheduleHandlers(t *testing.T) {
	s := newTestServer(t, 50)

	rec, env := s.do(t, http.MethodGet, "/api/schedules/date/2030-06-01", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []map[string]any
	_ = json.Unmarshal(env.Data, &list)
	if len(list) != 1 {
		t.Fatalf("expected one schedule on the date, got %d", len(list))
	}

	if rec, _ := s.do(t, http.MethodGet, "/api/schedules/not-a-uuid", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
	if rec, _ := s.do(t, http.MethodGet, "/api/schedules/"+uuid.NewString(), "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown schedule, got %d", rec.Code)
	}
}

func TestCreateBookingHandlerBodyLimits(t *testing.T) {
	s := newTestServer(t, 50)
	user := uuid.NewString()

	padded := `{"schedule_id":"` + s.schedule.ID.String() + `","total_price":40000,"seats":["A1"],"note":"` +
		strings.Repeat("x", maxBookingBody) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(padded))
	req.Header.Set("X-Test-User", user)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "too large") {
		t.Fatalf("expected 400 for an oversized body, got %d: %s", rec.Code, rec.Body.String())
	}

	seats := make([]string, 261)
	for i := range seats {
		seats[i] = fmt.Sprintf("B%d", i+1)
	}
	if rec, env := s.do(t, http.MethodPost, "/api/bookings", user, s.book(seats...)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for 261 seats, got %d: %s", rec.Code, env.Message)
	}

	rec, env := s.do(t, http.MethodGet, "/api/schedules/"+s.schedule.ID.String(), "", nil)
	var schedule struct {
		AvailableSeats int `json:"available_seats"`
	}
	_ = json.Unmarshal(env.Data, &schedule)
	if rec.Code != http.StatusOK || schedule.AvailableSeats != 50 {
		t.Fatalf("rejected requests must not touch the schedule, %d available", schedule.AvailableSeats)
	}
}

func TestCheckInQRHandler(t *testing.T) {
	s := newTestServer(t, 50)

	_, env := s.do(t, http.MethodPost, "/api/bookings", uuid.NewString(), s.book("D4"))
	var booking struct {
		BookingCode string `json:"booking_code"`
	}
	_ = json.Unmarshal(env.Data, &booking)

	rec, env := s.do(t, http.MethodGet, "/api/bookings/code/"+booking.BookingCode+"/qr", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, env.Message)
	}
	var qr struct {
		BookingCode string `json:"booking_code"`
		QRImage     string `json:"qr_image"`
	}
	_ = json.Unmarshal(env.Data, &qr)
	if qr.BookingCode != booking.BookingCode || !strings.HasPrefix(qr.QRImage, "data:image/png;base64,") {
		t.Fatalf("unexpected qr response: %s", env.Data)
	}

	if rec, _ := s.do(t, http.MethodGet, "/api/bookings/code/ZZZZZZZZZZ/qr", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown code, got %d", rec.Code)
	}
}

func TestAdminListingHandlers(t *testing.T) {
	s := newTestServer(t, 50)
	for _, seat := range []string{"A1", "A2"} {
		s.do(t, http.MethodPost, "/api/bookings", uuid.NewString(), s.book(seat))
	}

	rec, env := s.do(t, http.MethodGet, "/api/admin/bookings?page=1&per_page=10", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	_ = json.Unmarshal(env.Data, &page)
	if page.Pagination.Total != 2 || len(page.Data) != 2 {
		t.Fatalf("expected both bookings, got %s", env.Data)
	}

	if rec, _ := s.do(t, http.MethodGet, "/api/admin/bookings/"+page.Data[0].ID, "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a known id, got %d", rec.Code)
	}
	if rec, _ := s.do(t, http.MethodGet, "/api/admin/bookings/not-a-uuid", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed id, got %d", rec.Code)
	}

	rec, env = s.do(t, http.MethodGet, "/api/admin/schedules", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), s.schedule.ID.String()) {
		t.Fatalf("expected the schedule in the admin listing, got %d: %s", rec.Code, env.Data)
	}
}
