package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clinicbook/internal/domain"
	"clinicbook/internal/service/scheduling"
	"clinicbook/internal/store"
)

// schedulingService is the slice of the orchestrator this transport needs.
type schedulingService interface {
	Book(ctx context.Context, req domain.BookingRequest) (scheduling.Result, error)
	Cancel(ctx context.Context, code string) (scheduling.Result, error)
	MarkAttended(ctx context.Context, code string) (scheduling.Result, error)
	MarkNoShow(ctx context.Context, code string) (scheduling.Result, error)
	OccupiedTimes(ctx context.Context, staff, date string) ([]string, error)
	IsAvailable(ctx context.Context, staff, date, timeOfDay string) (bool, error)
	Pending(ctx context.Context) ([]domain.Appointment, error)
	Cancellable(ctx context.Context) ([]domain.Appointment, error)
	All(ctx context.Context) ([]domain.Appointment, error)
	FindByCode(ctx context.Context, code string) (domain.Appointment, error)
	Stats(ctx context.Context) (scheduling.Stats, error)
}

type Server struct {
	svc schedulingService
	log *slog.Logger
}

func NewServer(svc schedulingService, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		svc: svc,
		log: log.With(slog.String("component", "httpapi")),
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/appointments", s.bookAppointment)
		r.Get("/appointments", s.listAll)
		r.Get("/appointments/pending", s.listPending)
		r.Get("/appointments/cancellable", s.listCancellable)
		r.Get("/appointments/{code}", s.getAppointment)
		r.Post("/appointments/{code}/cancel", s.cancelAppointment)
		r.Post("/appointments/{code}/attended", s.markAttended)
		r.Post("/appointments/{code}/no-show", s.markNoShow)

		r.Get("/availability", s.occupiedTimes)
		r.Get("/availability/slot", s.checkSlot)
		r.Get("/stats", s.stats)
	})

	return r
}

type bookRequest struct {
	Service string `json:"service"`
	Staff   string `json:"staff"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Reason  string `json:"reason,omitempty"`
}

// bookAppointment creates a pending appointment.
// POST /v1/appointments
func (s *Server) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	res, err := s.svc.Book(r.Context(), domain.BookingRequest{
		Service: req.Service,
		Staff:   req.Staff,
		Date:    req.Date,
		Time:    req.Time,
		Reason:  req.Reason,
	})
	if err != nil {
		s.log.Error("booking failed", slog.Any("err", err))
		jsonError(w, "appointment backend unavailable", http.StatusServiceUnavailable)
		return
	}

	status := http.StatusCreated
	if !res.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

// cancelAppointment cancels by code, subject to the 2-hour policy.
// POST /v1/appointments/{code}/cancel
func (s *Server) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	s.resultOp(w, r, s.svc.Cancel)
}

// POST /v1/appointments/{code}/attended
func (s *Server) markAttended(w http.ResponseWriter, r *http.Request) {
	s.resultOp(w, r, s.svc.MarkAttended)
}

// POST /v1/appointments/{code}/no-show
func (s *Server) markNoShow(w http.ResponseWriter, r *http.Request) {
	s.resultOp(w, r, s.svc.MarkNoShow)
}

func (s *Server) resultOp(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (scheduling.Result, error)) {
	code := chi.URLParam(r, "code")
	if code == "" {
		jsonError(w, "appointment code required", http.StatusBadRequest)
		return
	}

	res, err := op(r.Context(), code)
	if err != nil {
		s.log.Error("appointment operation failed", slog.String("code", code), slog.Any("err", err))
		jsonError(w, "appointment backend unavailable", http.StatusServiceUnavailable)
		return
	}

	status := http.StatusOK
	if !res.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

// GET /v1/appointments/{code}
func (s *Server) getAppointment(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	appt, err := s.svc.FindByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, "appointment not found", http.StatusNotFound)
			return
		}
		s.log.Error("lookup failed", slog.String("code", code), slog.Any("err", err))
		jsonError(w, "appointment backend unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// GET /v1/appointments
func (s *Server) listAll(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, s.svc.All)
}

// GET /v1/appointments/pending
func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, s.svc.Pending)
}

// GET /v1/appointments/cancellable
func (s *Server) listCancellable(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, s.svc.Cancellable)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, op func(context.Context) ([]domain.Appointment, error)) {
	appts, err := op(r.Context())
	if err != nil {
		s.log.Error("list failed", slog.Any("err", err))
		jsonError(w, "appointment backend unavailable", http.StatusServiceUnavailable)
		return
	}
	if appts == nil {
		appts = []domain.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

// GET /v1/availability?staff=...&date=...
func (s *Server) occupiedTimes(w http.ResponseWriter, r *http.Request) {
	staff := r.URL.Query().Get("staff")
	date := r.URL.Query().Get("date")
	if staff == "" || date == "" {
		jsonError(w, "staff and date are required", http.StatusBadRequest)
		return
	}

	times, err := s.svc.OccupiedTimes(r.Context(), staff, date)
	if err != nil {
		s.log.Error("availability lookup failed", slog.Any("err", err))
		jsonError(w, "appointment backend unavailable", http.StatusServiceUnavailable)
		return
	}
	if times == nil {
		times = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"staff":          staff,
		"date":           date,
		"occupied_times": times,
	})
}

// GET /v1/availability/slot?staff=...&date=...&time=...
func (s *Server) checkSlot(w http.ResponseWriter, r *http.Request) {
	staff := r.URL.Query().Get("staff")
	date := r.URL.Query().Get("date")
	timeOfDay := r.URL.Query().Get("time")
	if staff == "" || date == "" || timeOfDay == "" {
		jsonError(w, "staff, date and time are required", http.StatusBadRequest)
		return
	}

	available, err := s.svc.IsAvailable(r.Context(), staff, date, timeOfDay)
	if err != nil {
		s.log.Error("slot check failed", slog.Any("err", err))
		jsonError(w, "appointment backend unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"staff":     staff,
		"date":      date,
		"time":      timeOfDay,
		"available": available,
	})
}

// GET /v1/stats
func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.log.Error("stats failed", slog.Any("err", err))
		jsonError(w, "appointment backend unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
