// Package rediscache layers a read cache over an AppointmentStore for the
// availability lookups presentation collaborators poll most: the occupied
// times for a staff member on a date, and single-slot occupancy. Entries
// are short-lived and invalidated whenever the store mutates; on any redis
// failure the wrapped store answers directly.
package rediscache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"clinicbook/internal/domain"
	"clinicbook/internal/store"
)

const DefaultTTL = 30 * time.Second

type Store struct {
	inner store.AppointmentStore
	rdb   *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

func New(inner store.AppointmentStore, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.With(slog.String("component", "store.rediscache")),
	}
}

func slotsKey(staff, date string) string {
	return "clinicbook:slots:" + staff + ":" + date
}

func (s *Store) FindByStaffAndDate(ctx context.Context, staff, date string) ([]string, error) {
	key := slotsKey(staff, date)

	if raw, err := s.rdb.Get(ctx, key).Result(); err == nil {
		var times []string
		if err := json.Unmarshal([]byte(raw), &times); err == nil {
			return times, nil
		}
	} else if err != redis.Nil {
		s.log.Warn("cache read failed", slog.String("key", key), slog.Any("err", err))
	}

	times, err := s.inner.FindByStaffAndDate(ctx, staff, date)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(times); err == nil {
		if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
			s.log.Warn("cache write failed", slog.String("key", key), slog.Any("err", err))
		}
	}
	return times, nil
}

func (s *Store) IsSlotOccupied(ctx context.Context, staff, date, timeOfDay string) (bool, error) {
	times, err := s.FindByStaffAndDate(ctx, staff, date)
	if err != nil {
		return false, err
	}
	for _, t := range times {
		if t == timeOfDay {
			return true, nil
		}
	}
	return false, nil
}

// Save writes through and drops the cached day for the affected slot.
func (s *Store) Save(ctx context.Context, appt domain.Appointment) error {
	if err := s.inner.Save(ctx, appt); err != nil {
		return err
	}
	s.invalidate(ctx, appt.Staff, appt.Date)
	return nil
}

func (s *Store) Cancel(ctx context.Context, code string, now time.Time) error {
	return s.mutateByCode(ctx, code, func() error {
		return s.inner.Cancel(ctx, code, now)
	})
}

func (s *Store) MarkAttended(ctx context.Context, code string) error {
	return s.mutateByCode(ctx, code, func() error {
		return s.inner.MarkAttended(ctx, code)
	})
}

func (s *Store) MarkNoShow(ctx context.Context, code string) error {
	return s.mutateByCode(ctx, code, func() error {
		return s.inner.MarkNoShow(ctx, code)
	})
}

// mutateByCode runs a status transition and, when it sticks, frees the
// cached day: leaving Pending releases the slot.
func (s *Store) mutateByCode(ctx context.Context, code string, mutate func() error) error {
	appt, lookupErr := s.inner.FindByCode(ctx, code)
	if err := mutate(); err != nil {
		return err
	}
	if lookupErr == nil {
		s.invalidate(ctx, appt.Staff, appt.Date)
	}
	return nil
}

func (s *Store) invalidate(ctx context.Context, staff, date string) {
	key := slotsKey(staff, date)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.Warn("cache invalidation failed", slog.String("key", key), slog.Any("err", err))
	}
}

// Reads without a caching story delegate unchanged.

func (s *Store) FindByCode(ctx context.Context, code string) (domain.Appointment, error) {
	return s.inner.FindByCode(ctx, code)
}

func (s *Store) FindAll(ctx context.Context) ([]domain.Appointment, error) {
	return s.inner.FindAll(ctx)
}

func (s *Store) FindPending(ctx context.Context) ([]domain.Appointment, error) {
	return s.inner.FindPending(ctx)
}

func (s *Store) FindCancellable(ctx context.Context, now time.Time) ([]domain.Appointment, error) {
	return s.inner.FindCancellable(ctx, now)
}

func (s *Store) CountByStatus(ctx context.Context, status domain.Status) (int64, error) {
	return s.inner.CountByStatus(ctx, status)
}
