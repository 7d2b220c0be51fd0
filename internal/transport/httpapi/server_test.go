package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clinicbook/internal/domain"
	"clinicbook/internal/service/scheduling"
	"clinicbook/internal/store"
)

type fakeService struct {
	bookFn          func(ctx context.Context, req domain.BookingRequest) (scheduling.Result, error)
	cancelFn        func(ctx context.Context, code string) (scheduling.Result, error)
	findByCodeFn    func(ctx context.Context, code string) (domain.Appointment, error)
	occupiedTimesFn func(ctx context.Context, staff, date string) ([]string, error)
	isAvailableFn   func(ctx context.Context, staff, date, timeOfDay string) (bool, error)
	statsFn         func(ctx context.Context) (scheduling.Stats, error)
}

func (f *fakeService) Book(ctx context.Context, req domain.BookingRequest) (scheduling.Result, error) {
	if f.bookFn == nil {
		panic("Book not configured")
	}
	return f.bookFn(ctx, req)
}

func (f *fakeService) Cancel(ctx context.Context, code string) (scheduling.Result, error) {
	if f.cancelFn == nil {
		panic("Cancel not configured")
	}
	return f.cancelFn(ctx, code)
}

func (f *fakeService) MarkAttended(ctx context.Context, code string) (scheduling.Result, error) {
	return scheduling.Result{OK: true, Code: code}, nil
}

func (f *fakeService) MarkNoShow(ctx context.Context, code string) (scheduling.Result, error) {
	return scheduling.Result{OK: true, Code: code}, nil
}

func (f *fakeService) OccupiedTimes(ctx context.Context, staff, date string) ([]string, error) {
	if f.occupiedTimesFn == nil {
		return nil, nil
	}
	return f.occupiedTimesFn(ctx, staff, date)
}

func (f *fakeService) IsAvailable(ctx context.Context, staff, date, timeOfDay string) (bool, error) {
	if f.isAvailableFn == nil {
		return true, nil
	}
	return f.isAvailableFn(ctx, staff, date, timeOfDay)
}

func (f *fakeService) Pending(ctx context.Context) ([]domain.Appointment, error) {
	return nil, nil
}

func (f *fakeService) Cancellable(ctx context.Context) ([]domain.Appointment, error) {
	return nil, nil
}

func (f *fakeService) All(ctx context.Context) ([]domain.Appointment, error) {
	return nil, nil
}

func (f *fakeService) FindByCode(ctx context.Context, code string) (domain.Appointment, error) {
	if f.findByCodeFn == nil {
		panic("FindByCode not configured")
	}
	return f.findByCodeFn(ctx, code)
}

func (f *fakeService) Stats(ctx context.Context) (scheduling.Stats, error) {
	if f.statsFn == nil {
		return scheduling.Stats{}, nil
	}
	return f.statsFn(ctx)
}

func serve(t *testing.T, svc schedulingService, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	NewServer(svc, nil).Routes().ServeHTTP(rec, req)
	return rec
}

func TestBookAppointment_Created(t *testing.T) {
	var got domain.BookingRequest
	svc := &fakeService{
		bookFn: func(ctx context.Context, req domain.BookingRequest) (scheduling.Result, error) {
			got = req
			return scheduling.Result{OK: true, Code: "APPT-A1B2C3D4", Message: "Appointment booked successfully. Code: APPT-A1B2C3D4"}, nil
		},
	}

	rec := serve(t, svc, http.MethodPost, "/v1/appointments",
		`{"service":"Consult","staff":"Dr.X","date":"2026-03-15","time":"10:00","reason":"checkup"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if got.Staff != "Dr.X" || got.Date != "2026-03-15" || got.Reason != "checkup" {
		t.Fatalf("request not passed through: %+v", got)
	}

	var res scheduling.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.OK || res.Code != "APPT-A1B2C3D4" {
		t.Fatalf("res = %+v", res)
	}
}

func TestBookAppointment_ValidationFailure(t *testing.T) {
	svc := &fakeService{
		bookFn: func(ctx context.Context, req domain.BookingRequest) (scheduling.Result, error) {
			return scheduling.Result{OK: false, Message: scheduling.MsgPastDate}, nil
		},
	}

	rec := serve(t, svc, http.MethodPost, "/v1/appointments",
		`{"service":"Consult","staff":"Dr.X","date":"2020-01-01","time":"10:00"}`)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	if !strings.Contains(rec.Body.String(), scheduling.MsgPastDate) {
		t.Fatalf("body = %q, want the past-date message", rec.Body.String())
	}
}

func TestBookAppointment_BadJSON(t *testing.T) {
	svc := &fakeService{}
	rec := serve(t, svc, http.MethodPost, "/v1/appointments", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestBookAppointment_BackendUnavailable(t *testing.T) {
	svc := &fakeService{
		bookFn: func(ctx context.Context, req domain.BookingRequest) (scheduling.Result, error) {
			return scheduling.Result{}, context.DeadlineExceeded
		},
	}

	rec := serve(t, svc, http.MethodPost, "/v1/appointments",
		`{"service":"Consult","staff":"Dr.X","date":"2026-03-15","time":"10:00"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestCancelAppointment(t *testing.T) {
	svc := &fakeService{
		cancelFn: func(ctx context.Context, code string) (scheduling.Result, error) {
			if code != "APPT-A1B2C3D4" {
				t.Fatalf("code = %q", code)
			}
			return scheduling.Result{OK: true, Code: code, Message: "Appointment cancelled successfully."}, nil
		},
	}

	rec := serve(t, svc, http.MethodPost, "/v1/appointments/APPT-A1B2C3D4/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestCancelAppointment_PolicyRejection(t *testing.T) {
	svc := &fakeService{
		cancelFn: func(ctx context.Context, code string) (scheduling.Result, error) {
			return scheduling.Result{OK: false, Message: scheduling.MsgCannotCancel}, nil
		},
	}

	rec := serve(t, svc, http.MethodPost, "/v1/appointments/APPT-A1B2C3D4/cancel", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestGetAppointment(t *testing.T) {
	svc := &fakeService{
		findByCodeFn: func(ctx context.Context, code string) (domain.Appointment, error) {
			if code == "APPT-A1B2C3D4" {
				return domain.Appointment{Code: code, Staff: "Dr.X", Status: domain.StatusPending}, nil
			}
			return domain.Appointment{}, store.ErrNotFound
		},
	}

	rec := serve(t, svc, http.MethodGet, "/v1/appointments/APPT-A1B2C3D4", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var appt domain.Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &appt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if appt.Code != "APPT-A1B2C3D4" {
		t.Fatalf("appt = %+v", appt)
	}

	rec = serve(t, svc, http.MethodGet, "/v1/appointments/APPT-FFFFFFFF", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestOccupiedTimes(t *testing.T) {
	svc := &fakeService{
		occupiedTimesFn: func(ctx context.Context, staff, date string) ([]string, error) {
			return []string{"09:00", "10:00"}, nil
		},
	}

	rec := serve(t, svc, http.MethodGet, "/v1/availability?staff=Dr.X&date=2026-03-15", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		OccupiedTimes []string `json:"occupied_times"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.OccupiedTimes) != 2 {
		t.Fatalf("occupied_times = %v", body.OccupiedTimes)
	}

	rec = serve(t, svc, http.MethodGet, "/v1/availability?staff=Dr.X", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d for missing date", rec.Code, http.StatusBadRequest)
	}
}

func TestCheckSlot(t *testing.T) {
	svc := &fakeService{
		isAvailableFn: func(ctx context.Context, staff, date, timeOfDay string) (bool, error) {
			return timeOfDay != "10:00", nil
		},
	}

	rec := serve(t, svc, http.MethodGet, "/v1/availability/slot?staff=Dr.X&date=2026-03-15&time=10:00", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		Available bool `json:"available"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Available {
		t.Fatalf("expected occupied slot")
	}
}

func TestStatsEndpoint(t *testing.T) {
	svc := &fakeService{
		statsFn: func(ctx context.Context) (scheduling.Stats, error) {
			return scheduling.Stats{Pending: 2, Cancelled: 1, Total: 3}, nil
		},
	}

	rec := serve(t, svc, http.MethodGet, "/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var stats scheduling.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestHealthz(t *testing.T) {
	rec := serve(t, &fakeService{}, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
