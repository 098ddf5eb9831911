package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gatehouse/gatehouse/internal/models"
	"github.com/gatehouse/gatehouse/internal/review"
)

// handleReviewQueue lists the applications reviewable in a phase: those
// whose stage matches the phase's eligible stages.
func (s *Server) handleReviewQueue(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	phase := c.DefaultQuery("phase", models.PhaseApplication)
	stages := review.EligibleStages(phase)
	if len(stages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown phase", "field": "phase"})
		return
	}

	var apps []models.Application
	if err := s.db.Where("cycle_id = ? AND stage IN ?", cy.ID, stages).
		Order("submitted_at ASC, email ASC").Find(&apps).Error; err != nil {
		writeError(c, err)
		return
	}

	out := make([]gin.H, 0, len(apps))
	for i := range apps {
		out = append(out, gin.H{
			"id":           apps[i].ID,
			"email":        apps[i].Email,
			"track":        apps[i].Track,
			"stage":        apps[i].Stage,
			"submitted_at": apps[i].SubmittedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"phase": phase, "applications": out})
}

// handleReviewApplication returns one application with its existing
// reviews for the phase.
func (s *Server) handleReviewApplication(c *gin.Context) {
	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid application id"})
		return
	}
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	phase := c.DefaultQuery("phase", models.PhaseApplication)

	var app models.Application
	if err := s.db.Where("id = ? AND cycle_id = ?", appID, cy.ID).First(&app).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "application not found"})
		return
	}
	reviews, err := review.ForApplicant(s.db, cy.ID, phase, appID)
	if err != nil {
		writeError(c, err)
		return
	}

	rout := make([]gin.H, 0, len(reviews))
	for _, r := range reviews {
		rout = append(rout, gin.H{
			"reviewer": r.ReviewerEmail,
			"score":    r.Score,
			"category": r.Category,
			"notes":    r.Notes,
		})
	}
	resp := applicationJSON(&app)
	resp["reviews"] = rout
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRecordReview(c *gin.Context) {
	var req struct {
		ApplicationID string  `json:"application_id" binding:"required"`
		Phase         string  `json:"phase" binding:"required"`
		Score         float64 `json:"score"`
		Category      string  `json:"category"`
		Notes         string  `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	appID, err := uuid.Parse(req.ApplicationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid application id"})
		return
	}
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}

	r, err := review.Record(s.db, review.RecordOpts{
		CycleID:       cy.ID,
		Phase:         req.Phase,
		ApplicationID: appID,
		ReviewerEmail: callerEmail(c),
		Score:         req.Score,
		Category:      req.Category,
		Notes:         req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"application_id": r.ApplicationID,
		"phase":          r.Phase,
		"score":          r.Score,
	})
}

func (s *Server) handleCompleteness(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	phase := c.DefaultQuery("phase", models.PhaseApplication)
	comp, err := review.GetCompleteness(s.db, cy.ID, phase)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"phase":              comp.Phase,
		"required_reviewers": comp.RequiredReviewers,
		"total_applicants":   comp.TotalApplicants,
		"fully_reviewed":     comp.FullyReviewed,
	})
}
