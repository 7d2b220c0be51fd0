package store

import (
	"context"
	"time"

	"clinicbook/internal/domain"
)

// AppointmentStore owns the durable collection of appointments. All
// mutation goes through Save, Cancel and the administrative mark
// operations; values handed back to callers are detached copies.
//
// Save must perform its occupancy re-check and the insertion as one
// indivisible step: under concurrent bookings of the same
// (staff, date, time) slot at most one call may succeed, the rest fail
// with ErrSlotTaken.
type AppointmentStore interface {
	Save(ctx context.Context, appt domain.Appointment) error
	FindByCode(ctx context.Context, code string) (domain.Appointment, error)
	FindAll(ctx context.Context) ([]domain.Appointment, error)
	FindPending(ctx context.Context) ([]domain.Appointment, error)
	FindCancellable(ctx context.Context, now time.Time) ([]domain.Appointment, error)

	// FindByStaffAndDate returns the times-of-day occupied by pending
	// appointments for one staff member on one date.
	FindByStaffAndDate(ctx context.Context, staff, date string) ([]string, error)
	IsSlotOccupied(ctx context.Context, staff, date, timeOfDay string) (bool, error)

	// Cancel looks an appointment up by code and transitions it to
	// Cancelled when the cancellation guard holds at now. It fails with
	// ErrNotFound or ErrNotCancellable, leaving the record untouched.
	Cancel(ctx context.Context, code string, now time.Time) error

	MarkAttended(ctx context.Context, code string) error
	MarkNoShow(ctx context.Context, code string) error

	CountByStatus(ctx context.Context, status domain.Status) (int64, error)
}
