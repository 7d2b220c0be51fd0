package domain

import (
	"strings"
	"time"
)

// Fault classifies why a proposed booking (or cancellation) was rejected.
// The zero value means the request passed every check.
type Fault int

const (
	FaultNone Fault = iota
	FaultIncompleteFields
	FaultPastDate
	FaultPastTime
	FaultSlotOccupied
	FaultCannotCancel
	FaultNotFound
	FaultBackendUnavailable
)

func (f Fault) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultIncompleteFields:
		return "incomplete_fields"
	case FaultPastDate:
		return "past_date"
	case FaultPastTime:
		return "past_time"
	case FaultSlotOccupied:
		return "slot_occupied"
	case FaultCannotCancel:
		return "cannot_cancel"
	case FaultNotFound:
		return "not_found"
	case FaultBackendUnavailable:
		return "backend_unavailable"
	}
	return "unknown"
}

// BookingRequest is a proposed booking as received from a presentation
// collaborator: plain scalars, date and time in canonical layouts.
type BookingRequest struct {
	Service string
	Staff   string
	Date    string
	Time    string
	Reason  string
}

// CheckBooking runs the business-policy checks against a proposed booking
// and a snapshot of the existing appointments. Checks run in a fixed
// order and the first failure wins:
//
//  1. all of service/staff/date/time present
//  2. date not before today
//  3. the combined instant strictly in the future
//  4. no pending appointment already holds the (staff, date, time) slot
//
// Staff and service are free labels; any non-empty string is accepted.
func CheckBooking(req BookingRequest, existing []Appointment, now time.Time) Fault {
	if !fieldsComplete(req) {
		return FaultIncompleteFields
	}
	scheduled, ok := CombineDateTime(req.Date, req.Time)
	if !ok {
		return FaultIncompleteFields
	}
	if dateBeforeToday(scheduled, now) {
		return FaultPastDate
	}
	if !scheduled.After(now) {
		return FaultPastTime
	}
	if SlotTaken(req.Staff, req.Date, req.Time, existing) {
		return FaultSlotOccupied
	}
	return FaultNone
}

func fieldsComplete(req BookingRequest) bool {
	return strings.TrimSpace(req.Service) != "" &&
		strings.TrimSpace(req.Staff) != "" &&
		strings.TrimSpace(req.Date) != "" &&
		strings.TrimSpace(req.Time) != ""
}

// dateBeforeToday compares calendar dates only. A same-day booking passes
// here and is left to the instant check.
func dateBeforeToday(scheduled, now time.Time) bool {
	y1, m1, d1 := scheduled.Date()
	y2, m2, d2 := now.Date()
	if y1 != y2 {
		return y1 < y2
	}
	if m1 != m2 {
		return m1 < m2
	}
	return d1 < d2
}

// SlotTaken reports whether a pending appointment in existing already
// occupies the exact (staff, date, time) triple. Non-pending appointments
// do not block the slot.
func SlotTaken(staff, date, timeOfDay string, existing []Appointment) bool {
	staff = strings.TrimSpace(staff)
	date = strings.TrimSpace(date)
	timeOfDay = strings.TrimSpace(timeOfDay)
	for _, a := range existing {
		if a.Status == StatusPending && a.Staff == staff && a.Date == date && a.Time == timeOfDay {
			return true
		}
	}
	return false
}

// CancellationAllowed is the raw cancellation-deadline predicate: now must
// be strictly before the scheduled instant minus the lead time. Callers
// that also need the status check should use Appointment.CanCancelAt.
func CancellationAllowed(scheduled, now time.Time) bool {
	if scheduled.IsZero() {
		return false
	}
	return now.Before(scheduled.Add(-CancellationLeadTime))
}
