package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler runs the outbox flush and the slot reminder sweep on cron
// schedules.
type Scheduler struct {
	c       *cron.Cron
	flusher *Flusher
	db      *gorm.DB
	lead    time.Duration
}

// NewScheduler builds a Scheduler. flushSchedule is a 5-field cron
// expression for the outbox flush; reminders sweep hourly with the given
// lead window.
func NewScheduler(db *gorm.DB, flusher *Flusher, flushSchedule string, lead time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		c:       cron.New(cron.WithParser(cronParser)),
		flusher: flusher,
		db:      db,
		lead:    lead,
	}

	if _, err := s.c.AddFunc(flushSchedule, s.runFlush); err != nil {
		return nil, fmt.Errorf("notify: bad flush schedule %q: %w", flushSchedule, err)
	}
	if _, err := s.c.AddFunc("0 * * * *", s.runReminders); err != nil {
		return nil, fmt.Errorf("notify: add reminder job: %w", err)
	}
	return s, nil
}

// Start begins running the scheduled jobs in their own goroutines.
func (s *Scheduler) Start() { s.c.Start() }

// Stop stops the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.c.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	res, err := s.flusher.Flush(ctx)
	if err != nil {
		log.Printf("notify: flush: %v", err)
		return
	}
	if res.Sent > 0 || res.Failed > 0 {
		log.Printf("notify: flushed outbox: %d sent, %d failed", res.Sent, res.Failed)
	}
}

func (s *Scheduler) runReminders() {
	n, err := EnqueueSlotReminders(s.db, s.lead)
	if err != nil {
		log.Printf("notify: reminders: %v", err)
		return
	}
	if n > 0 {
		log.Printf("notify: enqueued %d slot reminders", n)
	}
}
