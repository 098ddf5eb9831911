package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tealeg/xlsx/v3"

	"github.com/gatehouse/gatehouse/internal/booking"
	"github.com/gatehouse/gatehouse/internal/cutoff"
	"github.com/gatehouse/gatehouse/internal/cycle"
	"github.com/gatehouse/gatehouse/internal/event"
	"github.com/gatehouse/gatehouse/internal/export"
	"github.com/gatehouse/gatehouse/internal/models"
	"github.com/gatehouse/gatehouse/internal/ranking"
	"github.com/gatehouse/gatehouse/internal/review"
)

func cycleJSON(cy *models.RecruitmentCycle) gin.H {
	return gin.H{
		"id":                 cy.ID,
		"name":               cy.Name,
		"slug":               cy.Slug,
		"portal_open_at":     cy.PortalOpenAt,
		"application_due_at": cy.ApplicationDueAt,
		"portal_close_at":    cy.PortalCloseAt,
		"is_active":          cy.IsActive,
	}
}

func (s *Server) handleListCycles(c *gin.Context) {
	cycles, err := cycle.List(s.db)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(cycles))
	for i := range cycles {
		out = append(out, cycleJSON(&cycles[i]))
	}
	c.JSON(http.StatusOK, gin.H{"cycles": out})
}

type cycleRequest struct {
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	PortalOpenAt     time.Time `json:"portal_open_at"`
	ApplicationDueAt time.Time `json:"application_due_at"`
	PortalCloseAt    time.Time `json:"portal_close_at"`
}

func (s *Server) handleCreateCycle(c *gin.Context) {
	var req cycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cy, err := cycle.Create(s.db, cycle.CreateOpts{
		Name:             req.Name,
		Slug:             req.Slug,
		PortalOpenAt:     req.PortalOpenAt,
		ApplicationDueAt: req.ApplicationDueAt,
		PortalCloseAt:    req.PortalCloseAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cycleJSON(cy))
}

func (s *Server) handleUpdateCycle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cycle id"})
		return
	}
	var req struct {
		Name             *string    `json:"name"`
		PortalOpenAt     *time.Time `json:"portal_open_at"`
		ApplicationDueAt *time.Time `json:"application_due_at"`
		PortalCloseAt    *time.Time `json:"portal_close_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cy, err := cycle.Update(s.db, id, cycle.UpdateOpts{
		Name:             req.Name,
		PortalOpenAt:     req.PortalOpenAt,
		ApplicationDueAt: req.ApplicationDueAt,
		PortalCloseAt:    req.PortalCloseAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cycleJSON(cy))
}

func (s *Server) handleActivateCycle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cycle id"})
		return
	}
	if err := cycle.SetActive(s.db, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleDeleteCycle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cycle id"})
		return
	}
	confirmed := c.Query("confirm") == "true"
	if err := cycle.Delete(s.db, id, confirmed); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleSetRequiredReviewers(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	var req struct {
		Required int `json:"required" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := review.SetRequiredReviewers(s.db, cy.ID, c.Param("phase"), req.Required); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleReopenPhase(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	if err := review.Reopen(s.db, cy.ID, c.Param("phase")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleGenerateRanking(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	gen, err := ranking.Generate(s.db, cy.ID, c.Param("phase"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rankingJSON(gen))
}

func (s *Server) handleGetRanking(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	gen, err := ranking.Latest(s.db, cy.ID, c.Param("phase"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rankingJSON(gen))
}

func rankingJSON(gen *models.RankingGeneration) gin.H {
	entries := make([]gin.H, 0, len(gen.Entries))
	for _, e := range gen.Entries {
		entries = append(entries, gin.H{
			"rank":         e.Rank,
			"email":        e.Email,
			"track":        e.Track,
			"score":        e.Score,
			"unscored":     e.Unscored,
			"review_count": e.ReviewCount,
		})
	}
	return gin.H{
		"phase":        gen.Phase,
		"generated_at": gen.GeneratedAt,
		"entries":      entries,
	}
}

func (s *Server) handleApplyCutoff(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	var req struct {
		Criteria map[string]struct {
			TopN     int      `json:"top_n"`
			MinScore *float64 `json:"min_score"`
		} `json:"criteria" binding:"required"`
		Overrides []struct {
			ApplicationID string `json:"application_id"`
			Action        string `json:"action"`
			Reason        string `json:"reason"`
		} `json:"overrides"`
		SendNotifications bool `json:"send_notifications"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	criteria := make(map[string]cutoff.Criteria, len(req.Criteria))
	for track, cr := range req.Criteria {
		criteria[track] = cutoff.Criteria{TopN: cr.TopN, MinScore: cr.MinScore}
	}
	overrides := make([]cutoff.Override, 0, len(req.Overrides))
	for _, o := range req.Overrides {
		appID, err := uuid.Parse(o.ApplicationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid override application id"})
			return
		}
		overrides = append(overrides, cutoff.Override{
			ApplicationID: appID,
			Action:        o.Action,
			Reason:        o.Reason,
		})
	}

	res, err := cutoff.Apply(s.db, cutoff.ApplyOpts{
		CycleID:           cy.ID,
		Phase:             c.Param("phase"),
		Criteria:          criteria,
		Overrides:         overrides,
		SendNotifications: req.SendNotifications,
		DecidedBy:         callerEmail(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"advanced":   res.Advanced,
		"rejected":   res.Rejected,
		"overrides":  res.Overrides,
		"next_stage": res.NextStage,
	})
}

func (s *Server) handleListDecisions(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	decisions, err := cutoff.Decisions(s.db, cy.ID, c.Param("phase"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, gin.H{
			"application_id":  d.ApplicationID,
			"action":          d.Action,
			"overridden":      d.Overridden,
			"override_reason": d.OverrideReason,
			"from_stage":      d.FromStage,
			"to_stage":        d.ToStage,
			"decided_by":      d.DecidedBy,
			"decided_at":      d.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"decisions": out})
}

type slotRequest struct {
	Kind            string    `json:"kind"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	MaxBookings     int       `json:"max_bookings"`
	HostName        string    `json:"host_name"`
	HostEmail       string    `json:"host_email"`
	Location        string    `json:"location"`
	MeetingURL      string    `json:"meeting_url"`
	ForTrack        string    `json:"for_track"`
}

func (r slotRequest) opts(cycleID uuid.UUID) booking.SlotOpts {
	return booking.SlotOpts{
		CycleID:         cycleID,
		Kind:            r.Kind,
		StartTime:       r.StartTime,
		DurationMinutes: r.DurationMinutes,
		MaxBookings:     r.MaxBookings,
		HostName:        r.HostName,
		HostEmail:       r.HostEmail,
		Location:        r.Location,
		MeetingURL:      r.MeetingURL,
		ForTrack:        r.ForTrack,
	}
}

func (s *Server) handleCreateSlot(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	var req slotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sl, err := booking.CreateSlot(s.db, req.opts(cy.ID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slotJSON(*sl))
}

func (s *Server) handleBulkCreateSlots(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	var req struct {
		slotRequest
		Count int `json:"count" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slots, err := booking.BulkCreateSlots(s.db, req.opts(cy.ID), req.StartTime, req.Count)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(slots))
	for _, sl := range slots {
		out = append(out, slotJSON(sl))
	}
	c.JSON(http.StatusCreated, gin.H{"slots": out})
}

func (s *Server) handleCreateEvent(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	var req struct {
		Name           string    `json:"name"`
		Description    string    `json:"description"`
		Location       string    `json:"location"`
		StartAt        time.Time `json:"start_at"`
		EndAt          time.Time `json:"end_at"`
		RsvpEnabled    bool      `json:"rsvp_enabled"`
		CheckInEnabled bool      `json:"check_in_enabled"`
		Capacity       int       `json:"capacity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ev, err := event.Create(s.db, event.CreateOpts{
		CycleID:        cy.ID,
		Name:           req.Name,
		Description:    req.Description,
		Location:       req.Location,
		StartAt:        req.StartAt,
		EndAt:          req.EndAt,
		RsvpEnabled:    req.RsvpEnabled,
		CheckInEnabled: req.CheckInEnabled,
		Capacity:       req.Capacity,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": ev.ID, "name": ev.Name})
}

func (s *Server) handleAttendance(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	sum, err := event.Summarize(s.db, eventID)
	if err != nil {
		writeError(c, err)
		return
	}
	attendees, err := event.Attendees(s.db, eventID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(attendees))
	for _, r := range attendees {
		out = append(out, gin.H{
			"application_id": r.ApplicationID,
			"rsvp_at":        r.RsvpAt,
			"checked_in_at":  r.CheckedInAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"rsvps":      sum.RsvpCount,
		"checked_in": sum.CheckedIn,
		"cancelled":  sum.CancelledRsv,
		"attendees":  out,
	})
}

// writeWorkbook streams an XLSX file as a download.
func writeWorkbook(c *gin.Context, file *xlsx.File, prefix string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+export.Filename(prefix))
	// headers are committed once Write starts, so a write error cannot
	// change the status; it truncates the download
	if err := file.Write(c.Writer); err != nil {
		log.Printf("httpapi: write %s workbook: %v", prefix, err)
	}
}

func (s *Server) handleExportRanking(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	file, err := export.Ranking(s.db, cy.ID, c.Param("phase"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeWorkbook(c, file, "ranking")
}

func (s *Server) handleExportApplicants(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	file, err := export.Applicants(s.db, cy.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	writeWorkbook(c, file, "applicants")
}

func (s *Server) handleExportDecisions(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	file, err := export.Decisions(s.db, cy.ID, c.Param("phase"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeWorkbook(c, file, "decisions")
}
