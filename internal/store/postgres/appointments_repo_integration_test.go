package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"clinicbook/internal/domain"
	"clinicbook/internal/store"
)

func openTestRepo(t *testing.T) (*AppointmentRepo, string) {
	t.Helper()

	databaseURL := strings.TrimSpace(os.Getenv("CLINICBOOK_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("CLINICBOOK_TEST_DATABASE_URL not set")
	}

	db, err := Open(databaseURL, PoolConfig{MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Each run books against a unique staff label so parallel or aborted
	// runs cannot collide; rows are removed afterwards.
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		t.Fatalf("rand: %v", err)
	}
	staff := "it-staff-" + hex.EncodeToString(suffix)

	t.Cleanup(func() {
		_, _ = db.NewDelete().
			Model((*appointmentRow)(nil)).
			Where("staff = ?", staff).
			Exec(context.Background())
		_ = Close(db)
	})

	return NewAppointmentRepo(db), staff
}

func TestPostgresIntegration_SaveConflictAndQueries(t *testing.T) {
	repo, staff := openTestRepo(t)
	ctx := context.Background()

	appt := domain.NewAppointment("Consult", staff, "2030-06-01", "10:00", "")
	if err := repo.Save(ctx, appt); err != nil {
		t.Fatalf("save: %v", err)
	}

	rival := domain.NewAppointment("Consult", staff, "2030-06-01", "10:00", "")
	if err := repo.Save(ctx, rival); !errors.Is(err, store.ErrSlotTaken) {
		t.Fatalf("err = %v, want %v", err, store.ErrSlotTaken)
	}

	got, err := repo.FindByCode(ctx, appt.Code)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Staff != staff || got.Time != "10:00" || got.Status != domain.StatusPending {
		t.Fatalf("got %+v", got)
	}

	if _, err := repo.FindByCode(ctx, "APPT-FFFFFFFF"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, store.ErrNotFound)
	}

	second := domain.NewAppointment("Consult", staff, "2030-06-01", "09:00", "")
	if err := repo.Save(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	times, err := repo.FindByStaffAndDate(ctx, staff, "2030-06-01")
	if err != nil {
		t.Fatalf("times: %v", err)
	}
	if len(times) != 2 || times[0] != "09:00" || times[1] != "10:00" {
		t.Fatalf("times = %v, want [09:00 10:00]", times)
	}

	occupied, err := repo.IsSlotOccupied(ctx, staff, "2030-06-01", "10:00")
	if err != nil || !occupied {
		t.Fatalf("occupied = %v err %v, want true", occupied, err)
	}

	n, err := repo.CountByStatus(ctx, domain.StatusPending)
	if err != nil || n < 2 {
		t.Fatalf("count = %d err %v, want >= 2", n, err)
	}
}

// Concurrent saves race for one slot; the partial unique index must let
// exactly one through.
func TestPostgresIntegration_ConcurrentSlotRace(t *testing.T) {
	repo, staff := openTestRepo(t)
	ctx := context.Background()

	const attempts = 8
	errCh := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			errCh <- repo.Save(ctx, domain.NewAppointment("Consult", staff, "2030-06-02", "14:00", ""))
		}()
	}

	var won, lost int
	for i := 0; i < attempts; i++ {
		switch err := <-errCh; {
		case err == nil:
			won++
		case errors.Is(err, store.ErrSlotTaken):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != attempts-1 {
		t.Fatalf("won = %d, lost = %d, want 1 and %d", won, lost, attempts-1)
	}
}

func TestPostgresIntegration_CancelGuard(t *testing.T) {
	repo, staff := openTestRepo(t)
	ctx := context.Background()

	date := time.Now().AddDate(0, 0, 1).Format(domain.DateLayout)
	appt := domain.NewAppointment("Consult", staff, date, "10:00", "")
	if err := repo.Save(ctx, appt); err != nil {
		t.Fatalf("save: %v", err)
	}
	scheduled, ok := appt.ScheduledAt()
	if !ok {
		t.Fatalf("scheduled instant missing")
	}

	if err := repo.Cancel(ctx, appt.Code, scheduled.Add(-time.Hour)); !errors.Is(err, store.ErrNotCancellable) {
		t.Fatalf("err = %v, want %v", err, store.ErrNotCancellable)
	}
	got, _ := repo.FindByCode(ctx, appt.Code)
	if got.Status != domain.StatusPending {
		t.Fatalf("failed cancel changed status to %q", got.Status)
	}

	if err := repo.Cancel(ctx, appt.Code, scheduled.Add(-3*time.Hour)); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, _ = repo.FindByCode(ctx, appt.Code)
	if got.Status != domain.StatusCancelled {
		t.Fatalf("status = %q, want %q", got.Status, domain.StatusCancelled)
	}

	// The freed slot is bookable again.
	if err := repo.Save(ctx, domain.NewAppointment("Consult", staff, date, "10:00", "")); err != nil {
		t.Fatalf("rebook freed slot: %v", err)
	}

	if err := repo.Cancel(ctx, "APPT-FFFFFFFF", time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, store.ErrNotFound)
	}
}

func TestPostgresIntegration_MarkTransitions(t *testing.T) {
	repo, staff := openTestRepo(t)
	ctx := context.Background()

	appt := domain.NewAppointment("Consult", staff, "2030-06-03", "10:00", "")
	if err := repo.Save(ctx, appt); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := repo.MarkAttended(ctx, appt.Code); err != nil {
		t.Fatalf("mark attended: %v", err)
	}
	if err := repo.MarkNoShow(ctx, appt.Code); !errors.Is(err, store.ErrNotPending) {
		t.Fatalf("err = %v, want %v", err, store.ErrNotPending)
	}

	// Attended released the slot for new bookings.
	if err := repo.Save(ctx, domain.NewAppointment("Consult", staff, "2030-06-03", "10:00", "")); err != nil {
		t.Fatalf("rebook after attended: %v", err)
	}
}
