package event

import (
	"sync"
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/internal/apperr"
	"github.com/gatehouse/gatehouse/internal/db"
	"github.com/gatehouse/gatehouse/internal/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func seedApp(t *testing.T, gdb *gorm.DB, email string) *models.Application {
	t.Helper()
	app := models.Application{
		ID: uuid.New(), CycleID: uuid.New(), Email: email,
		Track: models.TrackBusiness, Stage: models.StageDraft,
	}
	if err := gdb.Create(&app).Error; err != nil {
		t.Fatal(err)
	}
	return &app
}

func seedEvent(t *testing.T, gdb *gorm.DB, opts CreateOpts) *models.RecruitmentEvent {
	t.Helper()
	if opts.Name == "" {
		opts.Name = "Info Night"
	}
	if opts.StartAt.IsZero() {
		opts.StartAt = time.Now().Add(24 * time.Hour)
		opts.EndAt = opts.StartAt.Add(2 * time.Hour)
	}
	ev, err := Create(gdb, opts)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev
}

func TestRsvp_IdempotentAndCounted(t *testing.T) {
	gdb := testDB(t)
	app := seedApp(t, gdb, "x@example.edu")
	ev := seedEvent(t, gdb, CreateOpts{RsvpEnabled: true})

	first, err := Rsvp(gdb, ev.ID, app)
	if err != nil {
		t.Fatalf("Rsvp: %v", err)
	}
	second, err := Rsvp(gdb, ev.ID, app)
	if err != nil {
		t.Fatalf("repeat Rsvp: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("repeat RSVP created a new record: %s vs %s", second.ID, first.ID)
	}

	got, _ := Get(gdb, ev.ID)
	if got.RsvpCount != 1 {
		t.Errorf("rsvp_count = %d, want 1", got.RsvpCount)
	}

	var pending int64
	gdb.Model(&models.Notification{}).
		Where("recipient = ? AND kind = ?", app.Email, models.NotifyRsvpConfirmed).
		Count(&pending)
	if pending != 1 {
		t.Errorf("outbox rows = %d, want 1", pending)
	}
}

func TestRsvp_CapacityUnderConcurrency(t *testing.T) {
	gdb := testDB(t)
	ev := seedEvent(t, gdb, CreateOpts{RsvpEnabled: true, Capacity: 3})

	const attempts = 8
	apps := make([]*models.Application, attempts)
	for i := range apps {
		apps[i] = seedApp(t, gdb, string(rune('a'+i))+"@example.edu")
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = Rsvp(gdb, ev.ID, apps[i])
		}(i)
	}
	wg.Wait()

	var ok, full int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.ConflictReason(err) == apperr.ReasonEventFull:
			full++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 3 || full != attempts-3 {
		t.Errorf("ok = %d, full = %d; want 3 and %d", ok, full, attempts-3)
	}
	got, _ := Get(gdb, ev.ID)
	if got.RsvpCount != 3 {
		t.Errorf("rsvp_count = %d, want 3", got.RsvpCount)
	}
}

func TestRsvp_DisabledAndEnded(t *testing.T) {
	gdb := testDB(t)
	app := seedApp(t, gdb, "x@example.edu")

	closed := seedEvent(t, gdb, CreateOpts{RsvpEnabled: false})
	if _, err := Rsvp(gdb, closed.ID, app); apperr.ConflictReason(err) != apperr.ReasonEventClosed {
		t.Errorf("disabled event error = %v, want event_closed", err)
	}

	past := seedEvent(t, gdb, CreateOpts{
		RsvpEnabled: true,
		StartAt:     time.Now().Add(-4 * time.Hour),
		EndAt:       time.Now().Add(-2 * time.Hour),
	})
	if _, err := Rsvp(gdb, past.ID, app); apperr.ConflictReason(err) != apperr.ReasonEventClosed {
		t.Errorf("ended event error = %v, want event_closed", err)
	}
}

func TestCancelRsvp_FreesSeatAndAllowsReRsvp(t *testing.T) {
	gdb := testDB(t)
	app := seedApp(t, gdb, "x@example.edu")
	ev := seedEvent(t, gdb, CreateOpts{RsvpEnabled: true, Capacity: 1})

	r, err := Rsvp(gdb, ev.ID, app)
	if err != nil {
		t.Fatal(err)
	}
	cancelled, err := CancelRsvp(gdb, r.ID)
	if err != nil {
		t.Fatalf("CancelRsvp: %v", err)
	}
	if cancelled.Active != nil || cancelled.CancelledAt == nil {
		t.Errorf("rsvp = %+v, want inactive with timestamp", cancelled)
	}
	got, _ := Get(gdb, ev.ID)
	if got.RsvpCount != 0 {
		t.Errorf("rsvp_count = %d, want 0 after cancel", got.RsvpCount)
	}

	// Idempotent repeat cancel.
	if _, err := CancelRsvp(gdb, r.ID); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	got, _ = Get(gdb, ev.ID)
	if got.RsvpCount != 0 {
		t.Errorf("rsvp_count = %d after repeat cancel, want 0", got.RsvpCount)
	}

	// The unique index admits a fresh RSVP once the old one is inactive.
	if _, err := Rsvp(gdb, ev.ID, app); err != nil {
		t.Fatalf("re-RSVP after cancel: %v", err)
	}
}

func TestCheckIn_WindowAndProof(t *testing.T) {
	gdb := testDB(t)
	app := seedApp(t, gdb, "x@example.edu")
	lat, lng := 42.3601, -71.0942
	live := seedEvent(t, gdb, CreateOpts{
		RsvpEnabled: true, CheckInEnabled: true,
		StartAt: time.Now().Add(-time.Hour),
		EndAt:   time.Now().Add(time.Hour),
	})

	r, err := CheckIn(gdb, live.ID, app, Proof{PhotoRef: "uploads/abc.jpg", Lat: &lat, Lng: &lng})
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if r.CheckedInAt == nil || r.AttendedAt == nil {
		t.Errorf("rsvp = %+v, want check-in timestamps set", r)
	}
	if r.ProofPhotoRef != "uploads/abc.jpg" || r.ProofLat == nil || *r.ProofLat != lat {
		t.Errorf("proof not stored: %+v", r)
	}
	// No prior RSVP: one was auto-created.
	got, _ := Get(gdb, live.ID)
	if got.RsvpCount != 1 {
		t.Errorf("rsvp_count = %d, want 1 from auto-RSVP", got.RsvpCount)
	}

	// Repeated check-in keeps the original record and proof.
	again, err := CheckIn(gdb, live.ID, app, Proof{PhotoRef: "uploads/other.jpg"})
	if err != nil {
		t.Fatalf("repeat CheckIn: %v", err)
	}
	if again.ID != r.ID || again.ProofPhotoRef != "uploads/abc.jpg" {
		t.Errorf("repeat check-in rewrote the record: %+v", again)
	}
}

func TestCheckIn_Rejections(t *testing.T) {
	gdb := testDB(t)
	app := seedApp(t, gdb, "x@example.edu")

	noCheckIn := seedEvent(t, gdb, CreateOpts{
		RsvpEnabled: true,
		StartAt:     time.Now().Add(-time.Hour),
		EndAt:       time.Now().Add(time.Hour),
	})
	if _, err := CheckIn(gdb, noCheckIn.ID, app, Proof{}); apperr.ConflictReason(err) != apperr.ReasonEventClosed {
		t.Errorf("check-in disabled error = %v, want event_closed", err)
	}

	future := seedEvent(t, gdb, CreateOpts{RsvpEnabled: true, CheckInEnabled: true})
	if _, err := CheckIn(gdb, future.ID, app, Proof{}); apperr.ConflictReason(err) != apperr.ReasonEventClosed {
		t.Errorf("not-started error = %v, want event_closed", err)
	}
}

func TestCheckIn_ExistingRsvpNotDoubleCounted(t *testing.T) {
	gdb := testDB(t)
	app := seedApp(t, gdb, "x@example.edu")
	ev := seedEvent(t, gdb, CreateOpts{
		RsvpEnabled: true, CheckInEnabled: true,
		StartAt: time.Now().Add(-time.Hour),
		EndAt:   time.Now().Add(time.Hour),
	})

	r, err := Rsvp(gdb, ev.ID, app)
	if err != nil {
		t.Fatal(err)
	}
	checked, err := CheckIn(gdb, ev.ID, app, Proof{})
	if err != nil {
		t.Fatal(err)
	}
	if checked.ID != r.ID {
		t.Errorf("check-in created a second RSVP")
	}
	got, _ := Get(gdb, ev.ID)
	if got.RsvpCount != 1 {
		t.Errorf("rsvp_count = %d, want 1", got.RsvpCount)
	}
}

func TestSummarizeAndAttendees(t *testing.T) {
	gdb := testDB(t)
	ev := seedEvent(t, gdb, CreateOpts{
		RsvpEnabled: true, CheckInEnabled: true,
		StartAt: time.Now().Add(-time.Hour),
		EndAt:   time.Now().Add(time.Hour),
	})

	a := seedApp(t, gdb, "a@example.edu")
	b := seedApp(t, gdb, "b@example.edu")
	c := seedApp(t, gdb, "c@example.edu")

	if _, err := Rsvp(gdb, ev.ID, a); err != nil {
		t.Fatal(err)
	}
	if _, err := CheckIn(gdb, ev.ID, b, Proof{}); err != nil {
		t.Fatal(err)
	}
	r, err := Rsvp(gdb, ev.ID, c)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := CancelRsvp(gdb, r.ID); err != nil {
		t.Fatal(err)
	}

	sum, err := Summarize(gdb, ev.ID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.RsvpCount != 2 || sum.CheckedIn != 1 || sum.CancelledRsv != 1 {
		t.Errorf("summary = %+v, want 2 active / 1 checked in / 1 cancelled", sum)
	}

	list, err := Attendees(gdb, ev.ID)
	if err != nil {
		t.Fatalf("Attendees: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("attendees = %d, want 2", len(list))
	}
	// Checked-in rows sort first.
	if list[0].ApplicationID != b.ID {
		t.Errorf("attendees[0] = %s, want checked-in applicant %s", list[0].ApplicationID, b.ID)
	}
}

func TestCreate_Validation(t *testing.T) {
	gdb := testDB(t)
	_, err := Create(gdb, CreateOpts{
		Name:    "Backwards",
		StartAt: time.Now().Add(2 * time.Hour),
		EndAt:   time.Now().Add(time.Hour),
	})
	if !apperr.IsValidation(err) {
		t.Errorf("error = %v, want validation error", err)
	}
	if _, err := Create(gdb, CreateOpts{StartAt: time.Now(), EndAt: time.Now().Add(time.Hour)}); !apperr.IsValidation(err) {
		t.Errorf("missing name error = %v, want validation error", err)
	}
}
