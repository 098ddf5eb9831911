package cycle

import (
	"strings"
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
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func fallDates() (time.Time, time.Time, time.Time) {
	open := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	due := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	close := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	return open, due, close
}

func mustCreate(t *testing.T, gdb *gorm.DB, name, slug string) *models.RecruitmentCycle {
	t.Helper()
	open, due, close := fallDates()
	c, err := Create(gdb, CreateOpts{
		Name: name, Slug: slug,
		PortalOpenAt: open, ApplicationDueAt: due, PortalCloseAt: close,
	})
	if err != nil {
		t.Fatalf("create cycle: %v", err)
	}
	return c
}

func TestCreate_Defaults(t *testing.T) {
	gdb := testDB(t)
	c := mustCreate(t, gdb, "Fall 2025", "fall-2025")

	if c.IsActive {
		t.Error("new cycle must start inactive")
	}
	if err := SetActive(gdb, c.ID); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	got, err := Active(gdb)
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if got.Slug != "fall-2025" {
		t.Errorf("active slug = %q, want fall-2025", got.Slug)
	}
}

func TestCreate_BadDateOrder(t *testing.T) {
	gdb := testDB(t)
	open, due, _ := fallDates()
	_, err := Create(gdb, CreateOpts{
		Name: "Bad", Slug: "bad",
		PortalOpenAt: due, ApplicationDueAt: open, PortalCloseAt: due,
	})
	if err == nil {
		t.Fatal("expected validation error for due before open")
	}
	if !apperr.IsValidation(err) {
		t.Errorf("error = %T, want ValidationError", err)
	}
}

func TestCreate_DuplicateSlug(t *testing.T) {
	gdb := testDB(t)
	mustCreate(t, gdb, "Fall 2025", "fall-2025")
	open, due, close := fallDates()
	_, err := Create(gdb, CreateOpts{
		Name: "Fall again", Slug: "fall-2025",
		PortalOpenAt: open, ApplicationDueAt: due, PortalCloseAt: close,
	})
	if err == nil {
		t.Fatal("expected error for duplicate slug")
	}
	if !apperr.IsValidation(err) {
		t.Errorf("error = %T, want ValidationError", err)
	}
}

// At any observation point at most one cycle is active.
func TestSetActive_SingleActiveInvariant(t *testing.T) {
	gdb := testDB(t)
	a := mustCreate(t, gdb, "Fall 2025", "fall-2025")
	b := mustCreate(t, gdb, "Spring 2026", "spring-2026")
	c := mustCreate(t, gdb, "Fall 2026", "fall-2026")

	for _, id := range []uuid.UUID{a.ID, b.ID, c.ID, b.ID, a.ID} {
		if err := SetActive(gdb, id); err != nil {
			t.Fatalf("SetActive(%s): %v", id, err)
		}
		var active int64
		if err := gdb.Model(&models.RecruitmentCycle{}).Where("is_active = ?", true).Count(&active).Error; err != nil {
			t.Fatal(err)
		}
		if active != 1 {
			t.Fatalf("active cycles = %d, want exactly 1", active)
		}
		got, err := Active(gdb)
		if err != nil {
			t.Fatalf("Active: %v", err)
		}
		if got.ID != id {
			t.Errorf("active = %s, want %s", got.ID, id)
		}
	}
}

func TestSetActive_Unknown(t *testing.T) {
	gdb := testDB(t)
	if err := SetActive(gdb, uuid.New()); err == nil {
		t.Fatal("expected error for unknown cycle")
	}
}

func TestUpdate_DateValidationAgainstResult(t *testing.T) {
	gdb := testDB(t)
	c := mustCreate(t, gdb, "Fall 2025", "fall-2025")

	// Moving close before the existing due date must fail even though the
	// patch touches only one field.
	badClose := c.ApplicationDueAt.Add(-24 * time.Hour)
	_, err := Update(gdb, c.ID, UpdateOpts{PortalCloseAt: &badClose})
	if err == nil {
		t.Fatal("expected validation error")
	}

	name := "Fall 2025 (extended)"
	newClose := c.PortalCloseAt.Add(72 * time.Hour)
	got, err := Update(gdb, c.ID, UpdateOpts{Name: &name, PortalCloseAt: &newClose})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Name != name || !got.PortalCloseAt.Equal(newClose) {
		t.Errorf("updated cycle = %+v", got)
	}
}

func TestDelete_RequiresConfirmationWithDependents(t *testing.T) {
	gdb := testDB(t)
	c := mustCreate(t, gdb, "Fall 2025", "fall-2025")

	app := models.Application{ID: uuid.New(), CycleID: c.ID, Email: "x@example.edu", Track: models.TrackBusiness, Stage: models.StageDraft}
	if err := gdb.Create(&app).Error; err != nil {
		t.Fatal(err)
	}
	slot := models.RecruitmentSlot{ID: uuid.New(), CycleID: c.ID, Kind: models.SlotCoffeeChat, StartTime: time.Now().Add(48 * time.Hour), DurationMinutes: 30, MaxBookings: 1}
	if err := gdb.Create(&slot).Error; err != nil {
		t.Fatal(err)
	}

	err := Delete(gdb, c.ID, false)
	if err == nil {
		t.Fatal("expected confirmation-required error")
	}
	if !apperr.IsDependency(err) {
		t.Fatalf("error = %T, want DependencyError", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "1 applications") || !strings.Contains(msg, "1 slots") {
		t.Errorf("summary = %q, want application and slot counts", msg)
	}

	// Second call with confirmation cascades.
	if err := Delete(gdb, c.ID, true); err != nil {
		t.Fatalf("confirmed delete: %v", err)
	}
	var n int64
	gdb.Model(&models.Application{}).Count(&n)
	if n != 0 {
		t.Errorf("applications remaining = %d, want 0", n)
	}
	if _, err := Get(gdb, c.ID); err == nil {
		t.Error("cycle still present after confirmed delete")
	}
}

func TestDelete_NoDependentsNoConfirmationNeeded(t *testing.T) {
	gdb := testDB(t)
	c := mustCreate(t, gdb, "Empty", "empty")
	if err := Delete(gdb, c.ID, false); err != nil {
		t.Fatalf("delete without dependents: %v", err)
	}
}
