package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"telehealth/internal/apperr"
	"telehealth/internal/models"
	"telehealth/internal/testutil"
)

func TestParseScheduledFor(t *testing.T) {
	want := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	for _, raw := range []string{
		"2025-03-01T09:30:00Z",
		"2025-03-01T11:30:00+02:00",
		"2025-03-01T09:30:00.000Z",
		"2025-03-01T09:30:00",
		"2025-03-01T09:30",
		"2025-03-01 09:30:00",
	} {
		got, err := ParseScheduledFor(raw)
		if err != nil {
			t.Errorf("%s: %v", raw, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("%s: got %v want %v", raw, got, want)
		}
	}
	if _, err := ParseScheduledFor("next tuesday"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

type fixture struct {
	svc     *ConsultationService
	patient *models.User
	doctor  *models.User
	other   *models.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	return fixture{
		svc:     NewConsultationService(db),
		patient: testutil.CreateUser(t, db, "pat", "secret123", models.RolePatient),
		doctor:  testutil.CreateUser(t, db, "doc", "secret123", models.RoleDoctor),
		other:   testutil.CreateUser(t, db, "pat2", "secret123", models.RolePatient),
	}
}

func TestSchedule(t *testing.T) {
	f := newFixture(t)
	notes := "follow-up"
	c, err := f.svc.Schedule(context.Background(), ScheduleInput{
		PatientID: f.patient.ID, DoctorID: f.doctor.ID, ScheduledFor: "2030-01-02T10:00:00Z", Notes: &notes,
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if c.ID == 0 || c.Status != models.StatusPending || c.Notes == nil || *c.Notes != notes {
		t.Fatalf("unexpected consultation: %+v", c)
	}
	if !c.ScheduledFor.Equal(time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("scheduledFor = %v", c.ScheduledFor)
	}
}

func TestSchedule_Rejects(t *testing.T) {
	f := newFixture(t)
	cases := map[string]ScheduleInput{
		"same user":         {PatientID: f.patient.ID, DoctorID: f.patient.ID, ScheduledFor: "2030-01-02T10:00:00Z"},
		"doctor is patient": {PatientID: f.patient.ID, DoctorID: f.other.ID, ScheduledFor: "2030-01-02T10:00:00Z"},
		"patient is doctor": {PatientID: f.doctor.ID, DoctorID: f.doctor.ID + 100, ScheduledFor: "2030-01-02T10:00:00Z"},
		"unknown doctor":    {PatientID: f.patient.ID, DoctorID: 999, ScheduledFor: "2030-01-02T10:00:00Z"},
		"bad time":          {PatientID: f.patient.ID, DoctorID: f.doctor.ID, ScheduledFor: "soon"},
		"missing time":      {PatientID: f.patient.ID, DoctorID: f.doctor.ID},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := f.svc.Schedule(context.Background(), in); !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestListForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, at := range []string{"2030-01-03T10:00:00Z", "2030-01-01T10:00:00Z", "2030-01-02T10:00:00Z"} {
		if _, err := f.svc.Schedule(ctx, ScheduleInput{PatientID: f.patient.ID, DoctorID: f.doctor.ID, ScheduledFor: at}); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}

	mine, err := f.svc.ListForUser(ctx, f.patient.ID, models.RolePatient)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(mine) != 3 {
		t.Fatalf("patient sees %d consultations, want 3", len(mine))
	}
	for i := 1; i < len(mine); i++ {
		if mine[i].ScheduledFor.Before(mine[i-1].ScheduledFor) {
			t.Fatalf("not ordered by scheduledFor: %v", mine)
		}
	}

	docs, err := f.svc.ListForUser(ctx, f.doctor.ID, models.RoleDoctor)
	if err != nil || len(docs) != 3 {
		t.Fatalf("doctor list: %d, %v", len(docs), err)
	}

	none, err := f.svc.ListForUser(ctx, f.other.ID, models.RolePatient)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", none)
	}
}

func TestGetForParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.Schedule(ctx, ScheduleInput{PatientID: f.patient.ID, DoctorID: f.doctor.ID, ScheduledFor: "2030-01-01T10:00:00Z"})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := f.svc.GetForParticipant(ctx, c.ID, f.doctor.ID); err != nil {
		t.Fatalf("doctor: %v", err)
	}
	_, outsider := f.svc.GetForParticipant(ctx, c.ID, f.other.ID)
	_, missing := f.svc.GetForParticipant(ctx, c.ID+100, f.patient.ID)
	if !apperr.Is(outsider, apperr.KindNotFound) || !apperr.Is(missing, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v / %v", outsider, missing)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.Schedule(ctx, ScheduleInput{PatientID: f.patient.ID, DoctorID: f.doctor.ID, ScheduledFor: "2030-01-01T10:00:00Z"})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	if _, err := f.svc.UpdateStatus(ctx, c.ID, "completed"); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("pending -> completed: got %v", err)
	}
	if !errors.Is(mustErr(f.svc.UpdateStatus(ctx, c.ID, "completed")), models.ErrInvalidTransition) {
		t.Fatal("transition error does not wrap models.ErrInvalidTransition")
	}

	for _, next := range []string{"confirmed", "completed", "cancelled"} {
		got, err := f.svc.UpdateStatus(ctx, c.ID, next)
		if err != nil {
			t.Fatalf("-> %s: %v", next, err)
		}
		if string(got.Status) != next {
			t.Fatalf("status = %s, want %s", got.Status, next)
		}
		stored, _ := f.svc.Get(ctx, c.ID)
		if string(stored.Status) != next {
			t.Fatalf("stored status = %s, want %s", stored.Status, next)
		}
	}

	// cancelled is terminal
	for _, next := range []string{"pending", "confirmed", "completed", "cancelled"} {
		if _, err := f.svc.UpdateStatus(ctx, c.ID, next); !apperr.Is(err, apperr.KindInvalidTransition) {
			t.Fatalf("cancelled -> %s: got %v", next, err)
		}
	}

	if _, err := f.svc.UpdateStatus(ctx, c.ID, "archived"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("unknown status: got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, c.ID+100, "confirmed"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("missing consultation: got %v", err)
	}
}

func TestUpdateStatus_ConcurrentConfirmSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.Schedule(ctx, ScheduleInput{PatientID: f.patient.ID, DoctorID: f.doctor.ID, ScheduledFor: "2030-01-01T10:00:00Z"})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	const n = 8
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.UpdateStatus(ctx, c.ID, "confirmed"); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if ok != 1 {
		t.Fatalf("%d confirms succeeded, want 1", ok)
	}
}

func mustErr(_ *models.Consultation, err error) error { return err }
