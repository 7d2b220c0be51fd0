// Package memory holds appointments in process memory. It backs tests and
// single-node development runs; the postgres store is the durable backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"clinicbook/internal/domain"
	"clinicbook/internal/store"
)

type Store struct {
	mu     sync.Mutex
	byCode map[string]domain.Appointment
}

func New() *Store {
	return &Store{byCode: make(map[string]domain.Appointment)}
}

// Save inserts the appointment. The occupancy check and the insert run
// under one lock, so concurrent bookings of the same slot serialize and
// at most one succeeds.
func (s *Store) Save(ctx context.Context, appt domain.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byCode[appt.Code]; exists {
		return store.ErrSlotTaken
	}
	if appt.Status == domain.StatusPending && s.slotOccupiedLocked(appt.Staff, appt.Date, appt.Time) {
		return store.ErrSlotTaken
	}
	s.byCode[appt.Code] = appt
	return nil
}

func (s *Store) FindByCode(ctx context.Context, code string) (domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.byCode[code]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return appt, nil
}

func (s *Store) FindAll(ctx context.Context) ([]domain.Appointment, error) {
	return s.filter(func(domain.Appointment) bool { return true }), nil
}

func (s *Store) FindPending(ctx context.Context) ([]domain.Appointment, error) {
	return s.filter(func(a domain.Appointment) bool {
		return a.Status == domain.StatusPending
	}), nil
}

func (s *Store) FindCancellable(ctx context.Context, now time.Time) ([]domain.Appointment, error) {
	return s.filter(func(a domain.Appointment) bool {
		return a.CanCancelAt(now)
	}), nil
}

func (s *Store) FindByStaffAndDate(ctx context.Context, staff, date string) ([]string, error) {
	appts := s.filter(func(a domain.Appointment) bool {
		return a.Status == domain.StatusPending && a.Staff == staff && a.Date == date
	})
	times := make([]string, 0, len(appts))
	for _, a := range appts {
		times = append(times, a.Time)
	}
	sort.Strings(times)
	return times, nil
}

func (s *Store) IsSlotOccupied(ctx context.Context, staff, date, timeOfDay string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slotOccupiedLocked(staff, date, timeOfDay), nil
}

func (s *Store) Cancel(ctx context.Context, code string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.byCode[code]
	if !ok {
		return store.ErrNotFound
	}
	if !appt.Cancel(now) {
		return store.ErrNotCancellable
	}
	s.byCode[code] = appt
	return nil
}

func (s *Store) MarkAttended(ctx context.Context, code string) error {
	return s.mark(code, (*domain.Appointment).MarkAttended)
}

func (s *Store) MarkNoShow(ctx context.Context, code string) error {
	return s.mark(code, (*domain.Appointment).MarkNoShow)
}

func (s *Store) CountByStatus(ctx context.Context, status domain.Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, a := range s.byCode {
		if a.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *Store) mark(code string, transition func(*domain.Appointment) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.byCode[code]
	if !ok {
		return store.ErrNotFound
	}
	if !transition(&appt) {
		return store.ErrNotPending
	}
	s.byCode[code] = appt
	return nil
}

func (s *Store) filter(keep func(domain.Appointment) bool) []domain.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Appointment, 0, len(s.byCode))
	for _, a := range s.byCode {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Code < out[j].Code
	})
	return out
}

func (s *Store) slotOccupiedLocked(staff, date, timeOfDay string) bool {
	for _, a := range s.byCode {
		if a.Status == domain.StatusPending && a.Staff == staff && a.Date == date && a.Time == timeOfDay {
			return true
		}
	}
	return false
}
