package ranking

import (
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/internal/apperr"
	"github.com/gatehouse/gatehouse/internal/db"
	"github.com/gatehouse/gatehouse/internal/models"
	"github.com/gatehouse/gatehouse/internal/review"
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

func seedCycle(t *testing.T, gdb *gorm.DB) uuid.UUID {
	t.Helper()
	c := models.RecruitmentCycle{
		ID: uuid.New(), Name: "Fall 2025", Slug: "fall-2025",
		PortalOpenAt:     time.Now().Add(-48 * time.Hour),
		ApplicationDueAt: time.Now().Add(24 * time.Hour),
		PortalCloseAt:    time.Now().Add(48 * time.Hour),
	}
	if err := gdb.Create(&c).Error; err != nil {
		t.Fatal(err)
	}
	return c.ID
}

func seedApplicant(t *testing.T, gdb *gorm.DB, cycleID uuid.UUID, email string, submittedAt time.Time) uuid.UUID {
	t.Helper()
	app := models.Application{
		ID: uuid.New(), CycleID: cycleID, Email: email,
		Track: models.TrackBusiness, Stage: models.StageSubmitted,
		SubmittedAt: &submittedAt,
	}
	if err := gdb.Create(&app).Error; err != nil {
		t.Fatal(err)
	}
	return app.ID
}

func score(t *testing.T, gdb *gorm.DB, cycleID, appID uuid.UUID, reviewer string, s float64) {
	t.Helper()
	if _, err := review.Record(gdb, review.RecordOpts{
		CycleID: cycleID, Phase: models.PhaseApplication,
		ApplicationID: appID, ReviewerEmail: reviewer, Score: s,
	}); err != nil {
		t.Fatalf("record review: %v", err)
	}
}

// Scores 8 and 6 aggregate to 7.
func TestGenerate_MeanAggregate(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	appID := seedApplicant(t, gdb, cycleID, "x@example.edu", time.Now())

	score(t, gdb, cycleID, appID, "a@org.edu", 8)
	score(t, gdb, cycleID, appID, "b@org.edu", 6)

	gen, err := Generate(gdb, cycleID, models.PhaseApplication)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(gen.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(gen.Entries))
	}
	e := gen.Entries[0]
	if e.Score != 7 || e.Rank != 1 || e.Unscored || e.ReviewCount != 2 {
		t.Errorf("entry = %+v, want score 7, rank 1, 2 reviews", e)
	}
}

// Repeated generation with identical inputs yields identical order.
func TestGenerate_Deterministic(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	base := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)

	// Three applicants with a score tie; tie broken by submission time
	// then email.
	ids := map[string]uuid.UUID{}
	for i, email := range []string{"carol@example.edu", "alice@example.edu", "bob@example.edu"} {
		ids[email] = seedApplicant(t, gdb, cycleID, email, base.Add(time.Duration(i)*time.Hour))
	}
	score(t, gdb, cycleID, ids["carol@example.edu"], "r@org.edu", 7)
	score(t, gdb, cycleID, ids["alice@example.edu"], "r@org.edu", 7)
	score(t, gdb, cycleID, ids["bob@example.edu"], "r@org.edu", 9)

	first, err := Generate(gdb, cycleID, models.PhaseApplication)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := Generate(gdb, cycleID, models.PhaseApplication)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}

	if len(first.Entries) != 3 || len(second.Entries) != 3 {
		t.Fatalf("entries = %d/%d, want 3/3", len(first.Entries), len(second.Entries))
	}
	for i := range first.Entries {
		a, b := first.Entries[i], second.Entries[i]
		if a.ApplicationID != b.ApplicationID || a.Rank != b.Rank || a.Score != b.Score {
			t.Errorf("rank %d differs between runs: %+v vs %+v", i+1, a, b)
		}
	}

	// bob (9) first, then the tied 7s by earliest submission: carol before
	// alice.
	wantOrder := []string{"bob@example.edu", "carol@example.edu", "alice@example.edu"}
	for i, want := range wantOrder {
		if first.Entries[i].Email != want {
			t.Errorf("rank %d = %s, want %s", i+1, first.Entries[i].Email, want)
		}
	}

	// Superseded wholesale: only one generation remains.
	var gens int64
	gdb.Model(&models.RankingGeneration{}).Where("cycle_id = ?", cycleID).Count(&gens)
	if gens != 1 {
		t.Errorf("generations = %d, want 1 (old superseded)", gens)
	}
}

// A score tie broken by submission time must respect sub-second
// precision. MySQL keeps fractional-second datetimes, so a whole-second
// submission and one 500ms later are a realistic tied pair; the earlier
// submitter has to rank first even though its formatted timestamp is
// shorter.
func TestGenerate_TieBreakSubSecond(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	base := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)

	early := seedApplicant(t, gdb, cycleID, "early@example.edu", base)
	late := seedApplicant(t, gdb, cycleID, "late@example.edu", base.Add(500*time.Millisecond))
	score(t, gdb, cycleID, early, "r@org.edu", 7)
	score(t, gdb, cycleID, late, "r@org.edu", 7)

	gen, err := Generate(gdb, cycleID, models.PhaseApplication)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(gen.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(gen.Entries))
	}
	if gen.Entries[0].Email != "early@example.edu" {
		t.Errorf("rank 1 = %s, want early@example.edu", gen.Entries[0].Email)
	}
}

func TestGenerate_UnscoredIncludedLast(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	scored := seedApplicant(t, gdb, cycleID, "scored@example.edu", time.Now())
	seedApplicant(t, gdb, cycleID, "silent@example.edu", time.Now())

	score(t, gdb, cycleID, scored, "r@org.edu", 3)

	gen, err := Generate(gdb, cycleID, models.PhaseApplication)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(gen.Entries) != 2 {
		t.Fatalf("entries = %d, want 2 (unscored included, not omitted)", len(gen.Entries))
	}
	last := gen.Entries[1]
	if !last.Unscored || last.Email != "silent@example.edu" {
		t.Errorf("last entry = %+v, want unscored silent@example.edu", last)
	}
}

// Generation fails once the phase is finalized.
func TestGenerate_PhaseFinalized(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	seedApplicant(t, gdb, cycleID, "x@example.edu", time.Now())

	pc, _ := review.EnsurePhase(gdb, cycleID, models.PhaseApplication)
	now := time.Now()
	gdb.Model(pc).Updates(map[string]interface{}{"status": models.PhaseFinalized, "finalized_at": now})

	_, err := Generate(gdb, cycleID, models.PhaseApplication)
	if apperr.ConflictReason(err) != apperr.ReasonPhaseFinalized {
		t.Errorf("error = %v, want phase_finalized conflict", err)
	}
}

func TestLatest_NoneGenerated(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	if _, err := Latest(gdb, cycleID, models.PhaseApplication); err == nil {
		t.Fatal("expected error when no ranking exists")
	}
}

func TestLatest_ReturnsEntriesInRankOrder(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	a := seedApplicant(t, gdb, cycleID, "a@example.edu", time.Now())
	b := seedApplicant(t, gdb, cycleID, "b@example.edu", time.Now())
	score(t, gdb, cycleID, a, "r@org.edu", 4)
	score(t, gdb, cycleID, b, "r@org.edu", 8)

	if _, err := Generate(gdb, cycleID, models.PhaseApplication); err != nil {
		t.Fatal(err)
	}
	gen, err := Latest(gdb, cycleID, models.PhaseApplication)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if gen.Entries[0].Email != "b@example.edu" || gen.Entries[1].Email != "a@example.edu" {
		t.Errorf("order = %s, %s", gen.Entries[0].Email, gen.Entries[1].Email)
	}
}
