// Package calendar creates and cancels Google Calendar invites for slot
// bookings. It talks to the Calendar v3 REST API with an oauth2 client
// refreshed from a stored refresh token.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"
	tokenURL       = "https://oauth2.googleapis.com/token"
)

// Client is a minimal Google Calendar API client.
type Client struct {
	http       *http.Client
	baseURL    string
	calendarID string
}

// Opts holds parameters for creating a calendar Client.
type Opts struct {
	CalendarID   string
	ClientID     string
	ClientSecret string
	RefreshToken string
	// For testing: override the API base URL and inject an HTTP client
	// that skips oauth.
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a calendar Client. The oauth2 transport refreshes the access
// token transparently from the refresh token.
func New(opts Opts) (*Client, error) {
	if opts.CalendarID == "" {
		return nil, fmt.Errorf("calendar: calendar ID is required")
	}
	c := &Client{
		baseURL:    opts.BaseURL,
		calendarID: opts.CalendarID,
		http:       opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.http == nil {
		if opts.ClientID == "" || opts.ClientSecret == "" || opts.RefreshToken == "" {
			return nil, fmt.Errorf("calendar: client credentials and refresh token are required")
		}
		conf := &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		}
		ts := conf.TokenSource(context.Background(), &oauth2.Token{RefreshToken: opts.RefreshToken})
		c.http = oauth2.NewClient(context.Background(), ts)
		c.http.Timeout = 30 * time.Second
	}
	return c, nil
}

// Invite describes one calendar event to create.
type Invite struct {
	Summary       string
	Description   string
	Location      string
	Start         time.Time
	End           time.Time
	AttendeeEmail string
	HostEmail     string
}

type eventTime struct {
	DateTime string `json:"dateTime"`
}

type attendee struct {
	Email string `json:"email"`
}

type eventResource struct {
	ID          string     `json:"id,omitempty"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       eventTime  `json:"start"`
	End         eventTime  `json:"end"`
	Attendees   []attendee `json:"attendees,omitempty"`
}

// CreateInvite creates a calendar event with the applicant (and host, if
// known) as attendees. It returns the provider's event ID, which the caller
// stores for later cancellation.
func (c *Client) CreateInvite(ctx context.Context, inv Invite) (string, error) {
	res := eventResource{
		Summary:     inv.Summary,
		Description: inv.Description,
		Location:    inv.Location,
		Start:       eventTime{DateTime: inv.Start.Format(time.RFC3339)},
		End:         eventTime{DateTime: inv.End.Format(time.RFC3339)},
	}
	if inv.AttendeeEmail != "" {
		res.Attendees = append(res.Attendees, attendee{Email: inv.AttendeeEmail})
	}
	if inv.HostEmail != "" {
		res.Attendees = append(res.Attendees, attendee{Email: inv.HostEmail})
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("calendar: encode event: %w", err)
	}

	u := fmt.Sprintf("%s/calendars/%s/events?sendUpdates=all", c.baseURL, c.calendarID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("calendar: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendar: create event: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("calendar: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("calendar: create event failed with status %d: %s", resp.StatusCode, body)
	}

	var created eventResource
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("calendar: decode response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("calendar: no event ID in response")
	}
	return created.ID, nil
}

// CancelInvite deletes a calendar event. An already-deleted event is not
// an error.
func (c *Client) CancelInvite(ctx context.Context, eventID string) error {
	u := fmt.Sprintf("%s/calendars/%s/events/%s?sendUpdates=all", c.baseURL, c.calendarID, eventID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("calendar: create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calendar: delete event: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusGone, http.StatusNotFound:
		return nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("calendar: delete event failed with status %d: %s", resp.StatusCode, body)
	}
}
