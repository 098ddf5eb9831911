package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gatehouse/gatehouse/internal/apperr"
	"github.com/gatehouse/gatehouse/internal/application"
	"github.com/gatehouse/gatehouse/internal/booking"
	"github.com/gatehouse/gatehouse/internal/cycle"
	"github.com/gatehouse/gatehouse/internal/event"
	"github.com/gatehouse/gatehouse/internal/models"
	"github.com/gatehouse/gatehouse/internal/notify/calendar"
	"github.com/gatehouse/gatehouse/internal/storage"
)

// activeCycle resolves the active cycle or writes the error response.
func (s *Server) activeCycle(c *gin.Context) (*models.RecruitmentCycle, bool) {
	cy, err := cycle.Active(s.db)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return cy, true
}

// myApplication resolves the caller's application in the active cycle.
func (s *Server) myApplication(c *gin.Context) (*models.Application, bool) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return nil, false
	}
	app, err := application.Get(s.db, cy.ID, callerEmail(c))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return app, true
}

func applicationJSON(app *models.Application) gin.H {
	answers, _ := application.Answers(app)
	files, _ := application.Files(app)
	return gin.H{
		"id":           app.ID,
		"email":        app.Email,
		"track":        app.Track,
		"stage":        app.Stage,
		"answers":      answers,
		"files":        files,
		"submitted_at": app.SubmittedAt,
	}
}

func (s *Server) handleGetMyApplication(c *gin.Context) {
	app, ok := s.myApplication(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, applicationJSON(app))
}

func (s *Server) handleStartDraft(c *gin.Context) {
	var req struct {
		Track string `json:"track" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	app, err := application.StartDraft(s.db, cy.ID, callerEmail(c), req.Track)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, applicationJSON(app))
}

func (s *Server) handleSaveDraft(c *gin.Context) {
	var req struct {
		Answers map[string]string `json:"answers"`
		Files   map[string]string `json:"files"` // field key -> base64 data URL
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}

	// Uploads are persisted first; the draft stores only references.
	fileRefs := make(map[string]string, len(req.Files))
	for field, dataURL := range req.Files {
		if s.store == nil {
			writeError(c, apperr.Validation("files", "file uploads are not enabled"))
			return
		}
		ref, err := s.store.SaveDataURL(dataURL, storage.Meta{Kind: "resume", Filename: field})
		if err != nil {
			writeError(c, err)
			return
		}
		fileRefs[field] = ref
	}

	app, err := application.SaveDraft(s.db, cy.ID, callerEmail(c), req.Answers, fileRefs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, applicationJSON(app))
}

func (s *Server) handleSubmit(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	app, err := application.Submit(s.db, cy.ID, callerEmail(c), s.questions)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, applicationJSON(app))
}

func (s *Server) handleWithdraw(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	app, err := application.Withdraw(s.db, cy.ID, callerEmail(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, applicationJSON(app))
}

func slotJSON(sl models.RecruitmentSlot) gin.H {
	return gin.H{
		"id":           sl.ID,
		"kind":         sl.Kind,
		"start_time":   sl.StartTime,
		"duration_min": sl.DurationMinutes,
		"location":     sl.Location,
		"meeting_url":  sl.MeetingURL,
		"for_track":    sl.ForTrack,
		"seats_left":   sl.MaxBookings - sl.BookedCount,
	}
}

func (s *Server) handleListSlots(c *gin.Context) {
	app, ok := s.myApplication(c)
	if !ok {
		return
	}
	slots, err := booking.ListAvailable(s.db, app.CycleID, app)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(slots))
	for _, sl := range slots {
		out = append(out, slotJSON(sl))
	}
	c.JSON(http.StatusOK, gin.H{"slots": out})
}

func bookingJSON(b *models.SlotBooking) gin.H {
	h := gin.H{
		"id":           b.ID,
		"slot_id":      b.SlotID,
		"kind":         b.SlotKind,
		"status":       b.Status,
		"booked_at":    b.BookedAt,
		"cancelled_at": b.CancelledAt,
	}
	if b.Slot.ID != uuid.Nil {
		h["start_time"] = b.Slot.StartTime
		h["location"] = b.Slot.Location
		h["meeting_url"] = b.Slot.MeetingURL
	}
	return h
}

func (s *Server) handleBook(c *gin.Context) {
	slotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot id"})
		return
	}
	app, ok := s.myApplication(c)
	if !ok {
		return
	}
	b, err := booking.Book(s.db, slotID, app)
	if err != nil {
		writeError(c, err)
		return
	}
	side := s.createInvite(c, b, app.Email)
	writeOK(c, http.StatusCreated, bookingJSON(b), side)
}

// createInvite sends the calendar invite for a fresh booking and records
// the event ID for later cancellation. The booking stands even when the
// invite fails; the caller gets a warning instead.
func (s *Server) createInvite(c *gin.Context, b *models.SlotBooking, email string) error {
	if s.calendar == nil {
		return nil
	}
	full, err := booking.GetBooking(s.db, b.ID)
	if err != nil {
		return &apperr.SideEffectFailure{Effect: "calendar invite", Err: err}
	}
	slot := full.Slot
	eventID, err := s.calendar.CreateInvite(c.Request.Context(), calendar.Invite{
		Summary:       "Gatehouse " + strings.ReplaceAll(slot.Kind, "_", " "),
		Location:      slot.Location,
		Start:         slot.StartTime,
		End:           slot.StartTime.Add(time.Duration(slot.DurationMinutes) * time.Minute),
		AttendeeEmail: email,
		HostEmail:     slot.HostEmail,
	})
	if err != nil {
		return &apperr.SideEffectFailure{Effect: "calendar invite", Err: err}
	}
	if err := s.db.Model(b).Update("calendar_event_id", eventID).Error; err != nil {
		return &apperr.SideEffectFailure{Effect: "calendar invite", Err: err}
	}
	b.CalendarEventID = eventID
	return nil
}

func (s *Server) handleListBookings(c *gin.Context) {
	app, ok := s.myApplication(c)
	if !ok {
		return
	}
	bookings, err := booking.ListForApplicant(s.db, app.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(bookings))
	for i := range bookings {
		out = append(out, bookingJSON(&bookings[i]))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

func (s *Server) handleCancelBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}
	app, ok := s.myApplication(c)
	if !ok {
		return
	}
	b, err := booking.GetBooking(s.db, bookingID)
	if err != nil {
		writeError(c, err)
		return
	}
	// Applicants may only touch their own bookings.
	if b.ApplicationID != app.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		return
	}
	cancelled, err := booking.Cancel(s.db, bookingID, s.cancelWindow())
	if err != nil {
		writeError(c, err)
		return
	}
	var side error
	if s.calendar != nil && cancelled.CalendarEventID != "" {
		if err := s.calendar.CancelInvite(c.Request.Context(), cancelled.CalendarEventID); err != nil {
			side = &apperr.SideEffectFailure{Effect: "calendar invite", Err: err}
		}
	}
	writeOK(c, http.StatusOK, bookingJSON(cancelled), side)
}

func (s *Server) handleListEvents(c *gin.Context) {
	cy, ok := s.activeCycle(c)
	if !ok {
		return
	}
	events, err := event.List(s.db, cy.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(events))
	for _, ev := range events {
		out = append(out, gin.H{
			"id":               ev.ID,
			"name":             ev.Name,
			"description":      ev.Description,
			"location":         ev.Location,
			"start_at":         ev.StartAt,
			"end_at":           ev.EndAt,
			"rsvp_enabled":     ev.RsvpEnabled,
			"check_in_enabled": ev.CheckInEnabled,
			"capacity":         ev.Capacity,
			"rsvp_count":       ev.RsvpCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func rsvpJSON(r *models.EventRsvp) gin.H {
	return gin.H{
		"id":            r.ID,
		"event_id":      r.EventID,
		"rsvp_at":       r.RsvpAt,
		"cancelled_at":  r.CancelledAt,
		"checked_in_at": r.CheckedInAt,
	}
}

func (s *Server) handleRsvp(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	app, ok := s.myApplication(c)
	if !ok {
		return
	}
	r, err := event.Rsvp(s.db, eventID, app)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rsvpJSON(r))
}

func (s *Server) handleCancelRsvp(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	app, ok := s.myApplication(c)
	if !ok {
		return
	}
	r, err := event.ActiveRsvp(s.db, eventID, app.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	cancelled, err := event.CancelRsvp(s.db, r.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rsvpJSON(cancelled))
}

func (s *Server) handleCheckIn(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	var req struct {
		Photo string   `json:"photo"` // base64 data URL, optional
		Lat   *float64 `json:"lat"`
		Lng   *float64 `json:"lng"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	app, ok := s.myApplication(c)
	if !ok {
		return
	}

	proof := event.Proof{Lat: req.Lat, Lng: req.Lng}
	if req.Photo != "" && s.store != nil {
		ref, err := s.store.SaveDataURL(req.Photo, storage.Meta{Kind: "checkin_photo", Filename: "photo.jpg"})
		if err != nil {
			writeError(c, err)
			return
		}
		proof.PhotoRef = ref
	}

	r, err := event.CheckIn(s.db, eventID, app, proof)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rsvpJSON(r))
}
