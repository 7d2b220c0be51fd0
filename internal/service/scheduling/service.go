package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clinicbook/internal/domain"
	"clinicbook/internal/metrics"
	"clinicbook/internal/store"
)

// Fixed user-facing messages, one per failure classification.
const (
	MsgIncompleteFields = "Please complete all required fields."
	MsgPastDate         = "Appointments cannot be booked on past dates."
	MsgPastTime         = "Appointments cannot be booked at a time that has already passed."
	MsgSlotOccupied     = "The selected slot is already occupied. Please choose another."
	MsgCannotCancel     = "The appointment cannot be cancelled. Cancellations require at least 2 hours of notice."
	MsgAlreadyTerminal  = "The appointment is no longer pending."
	MsgSaveFailed       = "Could not save the appointment. The slot might be occupied."
)

func messageFor(f domain.Fault) string {
	switch f {
	case domain.FaultIncompleteFields:
		return MsgIncompleteFields
	case domain.FaultPastDate:
		return MsgPastDate
	case domain.FaultPastTime:
		return MsgPastTime
	case domain.FaultSlotOccupied:
		return MsgSlotOccupied
	case domain.FaultCannotCancel:
		return MsgCannotCancel
	}
	return "Unknown validation error."
}

// Result is the uniform outcome of a booking or cancellation attempt.
// Expected business failures land here with OK=false; only infrastructure
// failures surface as errors.
type Result struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Stats aggregates appointment counts per status.
type Stats struct {
	Pending   int64 `json:"pending"`
	Attended  int64 `json:"attended"`
	Cancelled int64 `json:"cancelled"`
	NoShow    int64 `json:"no_show"`
	Total     int64 `json:"total"`
}

// Service coordinates validation and persistence for bookings and
// cancellations. Reads are direct delegations to the store.
type Service struct {
	store   store.AppointmentStore
	log     *slog.Logger
	metrics *metrics.SchedulingMetrics
	now     func() time.Time
}

func NewService(st store.AppointmentStore, log *slog.Logger, m *metrics.SchedulingMetrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:   st,
		log:     log.With(slog.String("component", "service.scheduling")),
		metrics: m,
		now:     time.Now,
	}
}

// Book validates the request against current bookings and persists the
// appointment. Any validation failure is reported once with its fixed
// message; a lost race for the slot reports the generic save failure.
func (s *Service) Book(ctx context.Context, req domain.BookingRequest) (Result, error) {
	now := s.now()

	snapshot, err := s.store.FindAll(ctx)
	if err != nil {
		s.metrics.ObserveBooking("backend_error")
		return Result{}, err
	}

	if fault := domain.CheckBooking(req, snapshot, now); fault != domain.FaultNone {
		s.log.Info("booking rejected",
			slog.String("fault", fault.String()),
			slog.String("staff", req.Staff),
			slog.String("date", req.Date),
			slog.String("time", req.Time))
		s.metrics.ObserveBooking(fault.String())
		return Result{OK: false, Message: messageFor(fault)}, nil
	}

	appt := domain.NewAppointment(req.Service, req.Staff, req.Date, req.Time, req.Reason)

	if err := s.store.Save(ctx, appt); err != nil {
		if errors.Is(err, store.ErrSlotTaken) {
			s.metrics.ObserveBooking(domain.FaultSlotOccupied.String())
			return Result{OK: false, Message: MsgSaveFailed}, nil
		}
		s.metrics.ObserveBooking("backend_error")
		return Result{}, err
	}

	s.log.Info("appointment booked",
		slog.String("code", appt.Code),
		slog.String("staff", appt.Staff),
		slog.String("date", appt.Date),
		slog.String("time", appt.Time))
	s.metrics.ObserveBooking("booked")
	return Result{OK: true, Code: appt.Code, Message: "Appointment booked successfully. Code: " + appt.Code}, nil
}

// Cancel looks the appointment up and cancels it when the 2-hour policy
// allows. An appointment already in a terminal state gets its own message.
func (s *Service) Cancel(ctx context.Context, code string) (Result, error) {
	now := s.now()

	appt, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.ObserveCancellation(domain.FaultNotFound.String())
			return Result{OK: false, Message: "No appointment was found with code: " + code}, nil
		}
		s.metrics.ObserveCancellation("backend_error")
		return Result{}, err
	}

	if appt.Status != domain.StatusPending {
		s.metrics.ObserveCancellation("already_terminal")
		return Result{OK: false, Message: MsgAlreadyTerminal}, nil
	}
	if !appt.CanCancelAt(now) {
		s.metrics.ObserveCancellation(domain.FaultCannotCancel.String())
		return Result{OK: false, Message: MsgCannotCancel}, nil
	}

	if err := s.store.Cancel(ctx, code, now); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return Result{OK: false, Message: "No appointment was found with code: " + code}, nil
		case errors.Is(err, store.ErrNotCancellable):
			// Lost a race with another transition between the check and
			// the store call.
			s.metrics.ObserveCancellation(domain.FaultCannotCancel.String())
			return Result{OK: false, Message: MsgCannotCancel}, nil
		}
		s.metrics.ObserveCancellation("backend_error")
		return Result{}, err
	}

	s.log.Info("appointment cancelled", slog.String("code", code))
	s.metrics.ObserveCancellation("cancelled")
	return Result{OK: true, Code: code, Message: "Appointment cancelled successfully."}, nil
}

// MarkAttended records that the appointment took place.
func (s *Service) MarkAttended(ctx context.Context, code string) (Result, error) {
	return s.mark(ctx, code, s.store.MarkAttended, "Appointment marked as attended.")
}

// MarkNoShow records that the seeker did not show up.
func (s *Service) MarkNoShow(ctx context.Context, code string) (Result, error) {
	return s.mark(ctx, code, s.store.MarkNoShow, "Appointment marked as no-show.")
}

func (s *Service) mark(ctx context.Context, code string, op func(context.Context, string) error, okMsg string) (Result, error) {
	if err := op(ctx, code); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return Result{OK: false, Message: "No appointment was found with code: " + code}, nil
		case errors.Is(err, store.ErrNotPending):
			return Result{OK: false, Message: MsgAlreadyTerminal}, nil
		}
		return Result{}, err
	}
	return Result{OK: true, Code: code, Message: okMsg}, nil
}

// OccupiedTimes lists the times held by pending appointments for a staff
// member on a date.
func (s *Service) OccupiedTimes(ctx context.Context, staff, date string) ([]string, error) {
	return s.store.FindByStaffAndDate(ctx, staff, date)
}

// IsAvailable reports whether the exact slot is free.
func (s *Service) IsAvailable(ctx context.Context, staff, date, timeOfDay string) (bool, error) {
	occupied, err := s.store.IsSlotOccupied(ctx, staff, date, timeOfDay)
	if err != nil {
		return false, err
	}
	return !occupied, nil
}

func (s *Service) Pending(ctx context.Context) ([]domain.Appointment, error) {
	return s.store.FindPending(ctx)
}

func (s *Service) Cancellable(ctx context.Context) ([]domain.Appointment, error) {
	return s.store.FindCancellable(ctx, s.now())
}

func (s *Service) All(ctx context.Context) ([]domain.Appointment, error) {
	return s.store.FindAll(ctx)
}

func (s *Service) FindByCode(ctx context.Context, code string) (domain.Appointment, error) {
	return s.store.FindByCode(ctx, code)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	for _, c := range []struct {
		status domain.Status
		dst    *int64
	}{
		{domain.StatusPending, &out.Pending},
		{domain.StatusAttended, &out.Attended},
		{domain.StatusCancelled, &out.Cancelled},
		{domain.StatusNoShow, &out.NoShow},
	} {
		n, err := s.store.CountByStatus(ctx, c.status)
		if err != nil {
			return Stats{}, err
		}
		*c.dst = n
	}
	out.Total = out.Pending + out.Attended + out.Cancelled + out.NoShow
	return out, nil
}
