package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"clinicbook/internal/domain"
	"clinicbook/internal/store"
)

const pendingSlotConstraint = "appointments_pending_slot_idx"

// appointmentRow is the storage shape of an appointment. Dates, times and
// timestamps cross the storage boundary as ISO strings only; conversion to
// and from domain values happens here and nowhere else.
type appointmentRow struct {
	bun.BaseModel `bun:"table:appointments"`

	Code      string `bun:"code,pk"`
	Service   string `bun:"service,notnull"`
	Staff     string `bun:"staff,notnull"`
	Date      string `bun:"date,notnull"`
	Time      string `bun:"time,notnull"`
	Reason    string `bun:"reason"`
	Status    string `bun:"status,notnull"`
	CreatedAt string `bun:"created_at,notnull"`
}

func toRow(a domain.Appointment) appointmentRow {
	return appointmentRow{
		Code:      a.Code,
		Service:   a.Service,
		Staff:     a.Staff,
		Date:      a.Date,
		Time:      a.Time,
		Reason:    a.Reason,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func fromRow(r appointmentRow) domain.Appointment {
	createdAt, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return domain.Appointment{
		Code:      r.Code,
		Service:   r.Service,
		Staff:     r.Staff,
		Date:      r.Date,
		Time:      r.Time,
		Reason:    r.Reason,
		Status:    domain.Status(r.Status),
		CreatedAt: createdAt,
	}
}

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

// Save inserts the appointment. The partial unique index over
// (staff, date, time) for pending rows is the source of truth for slot
// uniqueness; a violation maps to store.ErrSlotTaken.
func (r *AppointmentRepo) Save(ctx context.Context, appt domain.Appointment) error {
	row := toRow(appt)
	_, err := r.db.NewInsert().Model(&row).Exec(ctx)
	if err != nil {
		if isPendingSlotViolation(err) {
			return store.ErrSlotTaken
		}
		return err
	}
	return nil
}

func isPendingSlotViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == pendingSlotConstraint
}

func (r *AppointmentRepo) FindByCode(ctx context.Context, code string) (domain.Appointment, error) {
	var row appointmentRow
	err := r.db.NewSelect().
		Model(&row).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return fromRow(row), nil
}

func (r *AppointmentRepo) FindAll(ctx context.Context) ([]domain.Appointment, error) {
	return r.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery { return q })
}

func (r *AppointmentRepo) FindPending(ctx context.Context) ([]domain.Appointment, error) {
	return r.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("status = ?", string(domain.StatusPending))
	})
}

// FindCancellable loads the pending appointments and applies the deadline
// predicate in code: the guard belongs to the domain and this query is not
// on a hot path.
func (r *AppointmentRepo) FindCancellable(ctx context.Context, now time.Time) ([]domain.Appointment, error) {
	pending, err := r.FindPending(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Appointment, 0, len(pending))
	for _, a := range pending {
		if a.CanCancelAt(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *AppointmentRepo) FindByStaffAndDate(ctx context.Context, staff, date string) ([]string, error) {
	var times []string
	err := r.db.NewSelect().
		Model((*appointmentRow)(nil)).
		Column("time").
		Where("staff = ?", staff).
		Where("date = ?", date).
		Where("status = ?", string(domain.StatusPending)).
		OrderExpr("time ASC").
		Scan(ctx, &times)
	if err != nil {
		return nil, err
	}
	return times, nil
}

func (r *AppointmentRepo) IsSlotOccupied(ctx context.Context, staff, date, timeOfDay string) (bool, error) {
	return r.db.NewSelect().
		Model((*appointmentRow)(nil)).
		Where("staff = ?", staff).
		Where("date = ?", date).
		Where("time = ?", timeOfDay).
		Where("status = ?", string(domain.StatusPending)).
		Exists(ctx)
}

func (r *AppointmentRepo) Cancel(ctx context.Context, code string, now time.Time) error {
	return r.transition(ctx, code, func(a *domain.Appointment) error {
		if !a.Cancel(now) {
			return store.ErrNotCancellable
		}
		return nil
	})
}

func (r *AppointmentRepo) MarkAttended(ctx context.Context, code string) error {
	return r.transition(ctx, code, func(a *domain.Appointment) error {
		if !a.MarkAttended() {
			return store.ErrNotPending
		}
		return nil
	})
}

func (r *AppointmentRepo) MarkNoShow(ctx context.Context, code string) error {
	return r.transition(ctx, code, func(a *domain.Appointment) error {
		if !a.MarkNoShow() {
			return store.ErrNotPending
		}
		return nil
	})
}

func (r *AppointmentRepo) CountByStatus(ctx context.Context, status domain.Status) (int64, error) {
	n, err := r.db.NewSelect().
		Model((*appointmentRow)(nil)).
		Where("status = ?", string(status)).
		Count(ctx)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// transition loads the row under a row lock, applies the guarded state
// change and writes the new status back. Guard failures leave the record
// untouched.
func (r *AppointmentRepo) transition(ctx context.Context, code string, apply func(*domain.Appointment) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row appointmentRow
		err := tx.NewSelect().
			Model(&row).
			Where("code = ?", code).
			For("UPDATE").
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}

		appt := fromRow(row)
		if err := apply(&appt); err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*appointmentRow)(nil)).
			Set("status = ?", string(appt.Status)).
			Where("code = ?", code).
			Exec(ctx)
		return err
	})
}

func (r *AppointmentRepo) list(ctx context.Context, mod func(*bun.SelectQuery) *bun.SelectQuery) ([]domain.Appointment, error) {
	var rows []appointmentRow
	err := mod(r.db.NewSelect().Model(&rows)).
		OrderExpr("date ASC, time ASC, code ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Appointment, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}
