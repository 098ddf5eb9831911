// Package notify delivers outbox notifications. Core operations enqueue
// Notification rows inside their own transactions; a cron-driven flusher
// renders each row into a message and hands it to the configured senders.
// Delivery is best effort: a failed attempt is recorded on the row and
// retried on the next flush, and nothing here ever touches core state.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/gatehouse/gatehouse/internal/models"
)

const (
	// defaultBatchSize bounds how many rows one flush drains.
	defaultBatchSize = 100
	// defaultMaxAttempts is how many times a row is retried before it is
	// parked as failed.
	defaultMaxAttempts = 5
)

// Message is a rendered notification, platform-agnostic.
type Message struct {
	Recipient string
	Title     string
	Body      string
	Severity  string // "info", "success", "warning"
}

// Sender delivers a rendered message to one platform.
type Sender interface {
	// Name identifies the sender in logs and error records.
	Name() string

	// Send delivers the message. A non-nil error marks the outbox row for
	// retry.
	Send(ctx context.Context, msg Message) error
}

// Enqueue writes a pending outbox row. Callers inside a transaction should
// pass the transaction handle so the row commits or rolls back with the
// operation that produced it.
func Enqueue(db *gorm.DB, recipient, kind, context string) error {
	n := models.Notification{
		Recipient: recipient,
		Kind:      kind,
		Context:   context,
		Status:    models.NotifyPending,
	}
	if err := db.Create(&n).Error; err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", kind, err)
	}
	return nil
}

// Flusher drains pending outbox rows through a set of senders.
type Flusher struct {
	db          *gorm.DB
	senders     []Sender
	batchSize   int
	maxAttempts int
}

// NewFlusher creates a Flusher. With no senders it still drains the outbox,
// marking rows sent; that keeps a sender-less deployment from accumulating
// rows forever.
func NewFlusher(db *gorm.DB, senders ...Sender) *Flusher {
	return &Flusher{
		db:          db,
		senders:     senders,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
	}
}

// FlushResult summarizes one flush pass.
type FlushResult struct {
	Sent   int
	Failed int
}

// Flush processes up to batchSize pending rows, oldest first. A row is
// marked sent when every sender accepts it; otherwise its attempt count
// and last error are recorded, and once attempts reach the cap the row is
// parked as failed.
func (f *Flusher) Flush(ctx context.Context) (FlushResult, error) {
	var res FlushResult
	var rows []models.Notification
	err := f.db.Where("status = ?", models.NotifyPending).
		Order("created_at ASC").Limit(f.batchSize).Find(&rows).Error
	if err != nil {
		return res, fmt.Errorf("notify: load pending: %w", err)
	}

	for i := range rows {
		n := &rows[i]
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if sendErr := f.deliver(ctx, n); sendErr != nil {
			res.Failed++
			n.Attempts++
			n.LastError = sendErr.Error()
			status := models.NotifyPending
			if n.Attempts >= f.maxAttempts {
				status = models.NotifyFailed
				log.Printf("notify: giving up on %s notification for %s after %d attempts: %v",
					n.Kind, n.Recipient, n.Attempts, sendErr)
			}
			f.db.Model(n).Updates(map[string]interface{}{
				"attempts":   n.Attempts,
				"last_error": n.LastError,
				"status":     status,
			})
			continue
		}
		res.Sent++
		now := time.Now()
		f.db.Model(n).Updates(map[string]interface{}{
			"status":  models.NotifySent,
			"sent_at": now,
		})
	}
	return res, nil
}

// deliver renders the row and sends it to every sender. The first sender
// error aborts the row; the whole row is retried next flush.
func (f *Flusher) deliver(ctx context.Context, n *models.Notification) error {
	msg, err := Render(*n)
	if err != nil {
		return err
	}
	for _, s := range f.senders {
		if err := s.Send(ctx, msg); err != nil {
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
	}
	return nil
}
