package cutoff

import (
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/internal/apperr"
	"github.com/gatehouse/gatehouse/internal/db"
	"github.com/gatehouse/gatehouse/internal/models"
	"github.com/gatehouse/gatehouse/internal/ranking"
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

// seedScored creates a submitted applicant with one review at the given
// score.
func seedScored(t *testing.T, gdb *gorm.DB, cycleID uuid.UUID, email, track string, s float64) uuid.UUID {
	t.Helper()
	now := time.Now()
	app := models.Application{
		ID: uuid.New(), CycleID: cycleID, Email: email,
		Track: track, Stage: models.StageSubmitted, SubmittedAt: &now,
	}
	if err := gdb.Create(&app).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := review.Record(gdb, review.RecordOpts{
		CycleID: cycleID, Phase: models.PhaseApplication,
		ApplicationID: app.ID, ReviewerEmail: "r@org.edu", Score: s,
	}); err != nil {
		t.Fatal(err)
	}
	return app.ID
}

func stageOf(t *testing.T, gdb *gorm.DB, id uuid.UUID) string {
	t.Helper()
	var app models.Application
	if err := gdb.Where("id = ?", id).First(&app).Error; err != nil {
		t.Fatal(err)
	}
	return app.Stage
}

func TestApply_TopNPerTrack(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	bizTop := seedScored(t, gdb, cycleID, "biz1@example.edu", models.TrackBusiness, 9)
	bizLow := seedScored(t, gdb, cycleID, "biz2@example.edu", models.TrackBusiness, 4)
	engTop := seedScored(t, gdb, cycleID, "eng1@example.edu", models.TrackEngineering, 5)

	if _, err := ranking.Generate(gdb, cycleID, models.PhaseApplication); err != nil {
		t.Fatal(err)
	}

	res, err := Apply(gdb, ApplyOpts{
		CycleID: cycleID, Phase: models.PhaseApplication,
		Criteria: map[string]Criteria{
			models.TrackBusiness:    {TopN: 1},
			models.TrackEngineering: {TopN: 1},
		},
		SendNotifications: true,
		DecidedBy:         "admin@org.edu",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Advanced != 2 || res.Rejected != 1 {
		t.Errorf("result = %+v, want 2 advanced, 1 rejected", res)
	}

	// Criteria apply per track independently: eng1 advances despite
	// scoring below biz1.
	if got := stageOf(t, gdb, bizTop); got != models.StageInterviewRound1 {
		t.Errorf("biz1 stage = %q, want interview_round1", got)
	}
	if got := stageOf(t, gdb, engTop); got != models.StageInterviewRound1 {
		t.Errorf("eng1 stage = %q, want interview_round1", got)
	}
	if got := stageOf(t, gdb, bizLow); got != models.StageRejected {
		t.Errorf("biz2 stage = %q, want rejected", got)
	}

	// Phase finalized, notifications enqueued, decisions audited.
	pc, _ := review.EnsurePhase(gdb, cycleID, models.PhaseApplication)
	if pc.Status != models.PhaseFinalized {
		t.Errorf("phase status = %q, want finalized", pc.Status)
	}
	var notifications int64
	gdb.Model(&models.Notification{}).Where("status = ?", models.NotifyPending).Count(&notifications)
	if notifications != 3 {
		t.Errorf("pending notifications = %d, want 3", notifications)
	}
	decisions, err := Decisions(gdb, cycleID, models.PhaseApplication)
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 3 {
		t.Errorf("decisions = %d, want 3", len(decisions))
	}
}

// A manual override rejecting the top-ranked applicant wins, and the
// next-ranked applicant advances on the rank criterion.
func TestApply_OverrideWins(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	top := seedScored(t, gdb, cycleID, "top@example.edu", models.TrackBusiness, 9)
	second := seedScored(t, gdb, cycleID, "second@example.edu", models.TrackBusiness, 7)

	if _, err := ranking.Generate(gdb, cycleID, models.PhaseApplication); err != nil {
		t.Fatal(err)
	}

	_, err := Apply(gdb, ApplyOpts{
		CycleID: cycleID, Phase: models.PhaseApplication,
		Criteria: map[string]Criteria{models.TrackBusiness: {TopN: 1}},
		Overrides: []Override{
			{ApplicationID: top, Action: models.ActionReject, Reason: "code of conduct violation"},
		},
		DecidedBy: "admin@org.edu",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if got := stageOf(t, gdb, top); got != models.StageRejected {
		t.Errorf("top stage = %q, want rejected (override wins)", got)
	}
	if got := stageOf(t, gdb, second); got != models.StageInterviewRound1 {
		t.Errorf("second stage = %q, want interview_round1", got)
	}

	decisions, _ := Decisions(gdb, cycleID, models.PhaseApplication)
	var found bool
	for _, d := range decisions {
		if d.ApplicationID == top {
			found = true
			if !d.Overridden || d.OverrideReason != "code of conduct violation" {
				t.Errorf("decision = %+v, want overridden with reason", d)
			}
		}
	}
	if !found {
		t.Error("no audit decision for overridden applicant")
	}
}

func TestApply_MinScoreCriteria(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	hi := seedScored(t, gdb, cycleID, "hi@example.edu", models.TrackEngineering, 8)
	lo := seedScored(t, gdb, cycleID, "lo@example.edu", models.TrackEngineering, 5.5)

	ranking.Generate(gdb, cycleID, models.PhaseApplication)

	min := 6.0
	if _, err := Apply(gdb, ApplyOpts{
		CycleID: cycleID, Phase: models.PhaseApplication,
		Criteria: map[string]Criteria{models.TrackEngineering: {MinScore: &min}},
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if got := stageOf(t, gdb, hi); got != models.StageInterviewRound1 {
		t.Errorf("hi stage = %q", got)
	}
	if got := stageOf(t, gdb, lo); got != models.StageRejected {
		t.Errorf("lo stage = %q", got)
	}
}

// Re-applying a finalized phase fails and changes nothing.
func TestApply_OneShot(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	seedScored(t, gdb, cycleID, "x@example.edu", models.TrackBusiness, 7)
	ranking.Generate(gdb, cycleID, models.PhaseApplication)

	opts := ApplyOpts{
		CycleID: cycleID, Phase: models.PhaseApplication,
		Criteria: map[string]Criteria{models.TrackBusiness: {TopN: 1}},
	}
	if _, err := Apply(gdb, opts); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	_, err := Apply(gdb, opts)
	if apperr.ConflictReason(err) != apperr.ReasonPhaseFinalized {
		t.Errorf("error = %v, want phase_finalized conflict", err)
	}
}

// Missing criteria for an applicant's track is rejected before any write
// starts.
func TestApply_MissingTrackCriteria(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	appID := seedScored(t, gdb, cycleID, "x@example.edu", models.TrackBusiness, 7)
	ranking.Generate(gdb, cycleID, models.PhaseApplication)

	_, err := Apply(gdb, ApplyOpts{
		CycleID: cycleID, Phase: models.PhaseApplication,
		Criteria: map[string]Criteria{models.TrackEngineering: {TopN: 1}},
	})
	if err == nil {
		t.Fatal("expected error for missing track criteria")
	}

	if got := stageOf(t, gdb, appID); got != models.StageSubmitted {
		t.Errorf("stage = %q, want unchanged submitted", got)
	}
	var decisions int64
	gdb.Model(&models.CutoffDecision{}).Count(&decisions)
	if decisions != 0 {
		t.Errorf("decisions = %d, want 0", decisions)
	}
}

// A failure inside the commit transaction must roll back every stage
// transition already written and leave the phase open. Dropping the
// decisions table makes the audit insert fail after the first stage
// update has gone through.
func TestApply_AtomicOnFailure(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	first := seedScored(t, gdb, cycleID, "first@example.edu", models.TrackBusiness, 9)
	second := seedScored(t, gdb, cycleID, "second@example.edu", models.TrackBusiness, 4)
	ranking.Generate(gdb, cycleID, models.PhaseApplication)

	if err := gdb.Migrator().DropTable(&models.CutoffDecision{}); err != nil {
		t.Fatal(err)
	}

	_, err := Apply(gdb, ApplyOpts{
		CycleID: cycleID, Phase: models.PhaseApplication,
		Criteria: map[string]Criteria{models.TrackBusiness: {TopN: 1}},
	})
	if err == nil {
		t.Fatal("expected error once the audit insert fails")
	}

	if got := stageOf(t, gdb, first); got != models.StageSubmitted {
		t.Errorf("first stage = %q, want rolled back to submitted", got)
	}
	if got := stageOf(t, gdb, second); got != models.StageSubmitted {
		t.Errorf("second stage = %q, want rolled back to submitted", got)
	}
	pc, _ := review.EnsurePhase(gdb, cycleID, models.PhaseApplication)
	if pc.Status != models.PhaseOpen {
		t.Errorf("phase status = %q, want still open", pc.Status)
	}
}

func TestApply_NoRanking(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	seedScored(t, gdb, cycleID, "x@example.edu", models.TrackBusiness, 7)

	_, err := Apply(gdb, ApplyOpts{
		CycleID: cycleID, Phase: models.PhaseApplication,
		Criteria: map[string]Criteria{models.TrackBusiness: {TopN: 1}},
	})
	if apperr.ConflictReason(err) != apperr.ReasonNoRanking {
		t.Errorf("error = %v, want no_ranking conflict", err)
	}
}

func TestApply_UnscoredNeedsOverride(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	seedScored(t, gdb, cycleID, "scored@example.edu", models.TrackBusiness, 7)
	now := time.Now()
	silent := models.Application{
		ID: uuid.New(), CycleID: cycleID, Email: "silent@example.edu",
		Track: models.TrackBusiness, Stage: models.StageSubmitted, SubmittedAt: &now,
	}
	if err := gdb.Create(&silent).Error; err != nil {
		t.Fatal(err)
	}
	ranking.Generate(gdb, cycleID, models.PhaseApplication)

	opts := ApplyOpts{
		CycleID: cycleID, Phase: models.PhaseApplication,
		Criteria: map[string]Criteria{models.TrackBusiness: {TopN: 1}},
	}
	_, err := Apply(gdb, opts)
	if !apperr.IsValidation(err) {
		t.Fatalf("error = %v, want validation error surfacing unscored applicant", err)
	}

	// An explicit override resolves it.
	opts.Overrides = []Override{
		{ApplicationID: silent.ID, Action: models.ActionReject, Reason: "never reviewed, missed deadline"},
	}
	if _, err := Apply(gdb, opts); err != nil {
		t.Fatalf("Apply with override: %v", err)
	}
	if got := stageOf(t, gdb, silent.ID); got != models.StageRejected {
		t.Errorf("silent stage = %q, want rejected", got)
	}
}

func TestApply_SkipsWithdrawn(t *testing.T) {
	gdb := testDB(t)
	cycleID := seedCycle(t, gdb)
	appID := seedScored(t, gdb, cycleID, "x@example.edu", models.TrackBusiness, 7)
	keep := seedScored(t, gdb, cycleID, "keep@example.edu", models.TrackBusiness, 6)
	ranking.Generate(gdb, cycleID, models.PhaseApplication)

	// Withdraws after the ranking was generated.
	gdb.Model(&models.Application{}).Where("id = ?", appID).Update("stage", models.StageWithdrawn)

	res, err := Apply(gdb, ApplyOpts{
		CycleID: cycleID, Phase: models.PhaseApplication,
		Criteria: map[string]Criteria{models.TrackBusiness: {TopN: 2}},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Advanced != 1 {
		t.Errorf("advanced = %d, want 1 (withdrawn applicant skipped)", res.Advanced)
	}
	if got := stageOf(t, gdb, appID); got != models.StageWithdrawn {
		t.Errorf("withdrawn stage = %q, want untouched", got)
	}
	if got := stageOf(t, gdb, keep); got != models.StageInterviewRound1 {
		t.Errorf("keep stage = %q", got)
	}
}
