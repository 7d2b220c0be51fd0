package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Layouts for the naive calendar date and time-of-day carried by an
// appointment. Both are interpreted in local time; no zone information is
// stored or transmitted.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// CancellationLeadTime is the minimum interval between now and the
// scheduled instant for a cancellation to be permitted.
const CancellationLeadTime = 2 * time.Hour

const codePrefix = "APPT-"

type Status string

const (
	StatusPending   Status = "Pending"
	StatusAttended  Status = "Attended"
	StatusCancelled Status = "Cancelled"
	StatusNoShow    Status = "NoShow"
)

// ValidStatus reports whether s is one of the four appointment statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusAttended, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Appointment is a booked visit between a service seeker and a staff
// member. Pending is the only state that occupies its (staff, date, time)
// slot; the other three states are terminal.
type Appointment struct {
	Code      string    `json:"code"`
	Service   string    `json:"service"`
	Staff     string    `json:"staff"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Reason    string    `json:"reason,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAppointment constructs a pending appointment with a freshly generated
// code. Inputs are assumed to have passed CheckBooking.
func NewAppointment(service, staff, date, timeOfDay, reason string) Appointment {
	return Appointment{
		Code:      NewCode(),
		Service:   strings.TrimSpace(service),
		Staff:     strings.TrimSpace(staff),
		Date:      strings.TrimSpace(date),
		Time:      strings.TrimSpace(timeOfDay),
		Reason:    strings.TrimSpace(reason),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}

// NewCode generates a booking code of the form APPT-XXXXXXXX.
func NewCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return codePrefix + strings.ToUpper(raw[:8])
}

// ScheduledAt combines the date and time-of-day into the appointment's
// scheduled instant, in local time. ok is false when either part is
// missing or not in canonical form.
func (a Appointment) ScheduledAt() (time.Time, bool) {
	return CombineDateTime(a.Date, a.Time)
}

// CombineDateTime parses a canonical date and time-of-day pair into a
// single local instant.
func CombineDateTime(date, timeOfDay string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	timeOfDay = strings.TrimSpace(timeOfDay)
	if date == "" || timeOfDay == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+timeOfDay, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CanCancelAt reports whether the appointment may be cancelled at the
// given instant: it must still be pending and now must be strictly before
// the scheduled instant minus the lead time. A missing or malformed
// date/time means not cancellable, never an error.
func (a Appointment) CanCancelAt(now time.Time) bool {
	if a.Status != StatusPending {
		return false
	}
	scheduled, ok := a.ScheduledAt()
	if !ok {
		return false
	}
	return CancellationAllowed(scheduled, now)
}

// Cancel checks the cancellation guard and, when it holds, transitions the
// appointment to Cancelled. It reports whether the cancellation took
// effect; a failed guard is a false return, not an error.
func (a *Appointment) Cancel(now time.Time) bool {
	if !a.CanCancelAt(now) {
		return false
	}
	a.Status = StatusCancelled
	return true
}

// MarkAttended transitions a pending appointment to Attended. It reports
// whether the transition happened; terminal states are left untouched.
func (a *Appointment) MarkAttended() bool {
	if a.Status != StatusPending {
		return false
	}
	a.Status = StatusAttended
	return true
}

// MarkNoShow transitions a pending appointment to NoShow.
func (a *Appointment) MarkNoShow() bool {
	if a.Status != StatusPending {
		return false
	}
	a.Status = StatusNoShow
	return true
}
