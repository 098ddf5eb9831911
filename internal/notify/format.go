package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gatehouse/gatehouse/internal/models"
)

// Render turns an outbox row into a platform-agnostic message. The row's
// Context is a small JSON object written by the enqueuing operation; any
// field it lacks is simply omitted from the body.
func Render(n models.Notification) (Message, error) {
	var payload map[string]string
	if n.Context != "" {
		if err := json.Unmarshal([]byte(n.Context), &payload); err != nil {
			return Message{}, fmt.Errorf("notify: bad context on row %d: %w", n.ID, err)
		}
	}

	msg := Message{Recipient: n.Recipient, Severity: "info"}
	switch n.Kind {
	case models.NotifyCutoffAdvance:
		msg.Severity = "success"
		msg.Title = "You're moving forward"
		msg.Body = fmt.Sprintf("You have advanced to the %s stage.", humanStage(payload["to_stage"]))
	case models.NotifyCutoffReject:
		msg.Title = "Application update"
		msg.Body = "We are unable to move your application forward this cycle."
	case models.NotifyBookingConfirmed:
		msg.Severity = "success"
		msg.Title = "Booking confirmed"
		msg.Body = fmt.Sprintf("Your %s on %s is confirmed.",
			humanKind(payload["kind"]), humanTime(payload["start_time"]))
		if loc := payload["location"]; loc != "" {
			msg.Body += " Location: " + loc + "."
		}
	case models.NotifyBookingCancelled:
		msg.Title = "Booking cancelled"
		msg.Body = fmt.Sprintf("Your %s on %s has been cancelled.",
			humanKind(payload["kind"]), humanTime(payload["start_time"]))
	case models.NotifyRsvpConfirmed:
		msg.Severity = "success"
		msg.Title = "RSVP confirmed"
		msg.Body = fmt.Sprintf("You're on the list for %s on %s.",
			payload["event"], humanTime(payload["start_at"]))
	case models.NotifySlotReminder:
		msg.Title = "Upcoming appointment"
		msg.Body = fmt.Sprintf("Reminder: your %s starts %s.",
			humanKind(payload["kind"]), humanTime(payload["start_time"]))
	default:
		return Message{}, fmt.Errorf("notify: unknown kind %q on row %d", n.Kind, n.ID)
	}
	return msg, nil
}

func humanKind(kind string) string {
	switch kind {
	case models.SlotCoffeeChat:
		return "coffee chat"
	case models.SlotInterviewRound1:
		return "first-round interview"
	case models.SlotInterviewRound2:
		return "second-round interview"
	default:
		return "appointment"
	}
}

func humanStage(stage string) string {
	switch stage {
	case models.StageInterviewRound1:
		return "first interview"
	case models.StageInterviewRound2:
		return "second interview"
	case models.StageAccepted:
		return "accepted"
	default:
		return stage
	}
}

// humanTime reformats an RFC3339 timestamp for display. The raw string is
// passed through when it does not parse.
func humanTime(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Format("Mon Jan 2 at 3:04 PM")
}
