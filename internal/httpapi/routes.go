package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all API routes on the gin router.
func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	api := s.router.Group("/api")
	api.Use(authMiddleware(s.secret))

	// Applicant surface. Write endpoints sit behind the rate limiter.
	rl := s.cfg.HTTP.RateLimit
	window := time.Duration(rl.WindowSeconds) * time.Second
	me := api.Group("/me", requireRole(RoleApplicant))
	{
		me.GET("/application", s.handleGetMyApplication)
		me.GET("/slots", s.handleListSlots)
		me.GET("/bookings", s.handleListBookings)
		me.GET("/events", s.handleListEvents)

		write := me.Group("", rateLimit(s.limiter, rl.PerWindow, window))
		{
			write.POST("/application", s.handleStartDraft)
			write.PUT("/application", s.handleSaveDraft)
			write.POST("/application/submit", s.handleSubmit)
			write.POST("/application/withdraw", s.handleWithdraw)
			write.POST("/slots/:id/book", s.handleBook)
			write.POST("/bookings/:id/cancel", s.handleCancelBooking)
			write.POST("/events/:id/rsvp", s.handleRsvp)
			write.POST("/events/:id/rsvp/cancel", s.handleCancelRsvp)
			write.POST("/events/:id/checkin", s.handleCheckIn)
		}
	}

	// Reviewer surface.
	rev := api.Group("/review", requireRole(RoleReviewer))
	{
		rev.GET("/queue", s.handleReviewQueue)
		rev.GET("/applications/:id", s.handleReviewApplication)
		rev.POST("/scores", s.handleRecordReview)
		rev.GET("/completeness", s.handleCompleteness)
	}

	// Admin surface.
	admin := api.Group("/admin", requireRole(RoleAdmin))
	{
		admin.GET("/cycles", s.handleListCycles)
		admin.POST("/cycles", s.handleCreateCycle)
		admin.PUT("/cycles/:id", s.handleUpdateCycle)
		admin.POST("/cycles/:id/activate", s.handleActivateCycle)
		admin.DELETE("/cycles/:id", s.handleDeleteCycle)

		admin.PUT("/phases/:phase/reviewers", s.handleSetRequiredReviewers)
		admin.POST("/phases/:phase/reopen", s.handleReopenPhase)
		admin.POST("/phases/:phase/rankings", s.handleGenerateRanking)
		admin.GET("/phases/:phase/rankings", s.handleGetRanking)
		admin.POST("/phases/:phase/cutoff", s.handleApplyCutoff)
		admin.GET("/phases/:phase/decisions", s.handleListDecisions)

		admin.POST("/slots", s.handleCreateSlot)
		admin.POST("/slots/bulk", s.handleBulkCreateSlots)
		admin.POST("/events", s.handleCreateEvent)
		admin.GET("/events/:id/attendance", s.handleAttendance)

		admin.GET("/export/rankings/:phase", s.handleExportRanking)
		admin.GET("/export/applicants", s.handleExportApplicants)
		admin.GET("/export/decisions/:phase", s.handleExportDecisions)
	}
}
