// Package calendar mirrors booked appointments into therapists' Google Calendars.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wolfman30/therapymatch-ai/internal/therapists"
)

// ErrNoCredentials is returned when the therapist never connected a calendar.
var ErrNoCredentials = errors.New("calendar: no Google refresh token found for therapist")

// Event is the calendar-agnostic description of a session.
type Event struct {
	PatientName string
	InquiryID   string
	Concern     string
	Start       time.Time
	End         time.Time
	TimeZone    string
}

// Syncer mirrors appointments into an external calendar.
type Syncer interface {
	CreateEvent(ctx context.Context, therapist therapists.Therapist, ev Event) (string, error)
	UpdateEvent(ctx context.Context, therapist therapists.Therapist, eventID string, ev Event) error
	DeleteEvent(ctx context.Context, therapist therapists.Therapist, eventID string) error
}

// GoogleCalendar implements Syncer with the Google Calendar v3 API using each
// therapist's stored refresh token.
type GoogleCalendar struct {
	oauth    *oauth2.Config
	endpoint string
	client   *http.Client
}

// GoogleOption customizes GoogleCalendar.
type GoogleOption func(*GoogleCalendar)

// WithEndpoint points the API client at a different base URL.
func WithEndpoint(url string) GoogleOption {
	return func(g *GoogleCalendar) { g.endpoint = url }
}

// WithHTTPClient sets the transport used for token refresh and API calls.
func WithHTTPClient(c *http.Client) GoogleOption {
	return func(g *GoogleCalendar) { g.client = c }
}

// OAuthConfig builds the OAuth2 client configuration for calendar access.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarEventsScope},
	}
}

// NewGoogleCalendar returns a Syncer backed by Google Calendar.
func NewGoogleCalendar(cfg *oauth2.Config, opts ...GoogleOption) *GoogleCalendar {
	if cfg == nil {
		panic("calendar: oauth config required")
	}
	g := &GoogleCalendar{oauth: cfg}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CreateEvent inserts the session and notifies attendees.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, therapist therapists.Therapist, ev Event) (string, error) {
	svc, err := g.service(ctx, therapist)
	if err != nil {
		return "", err
	}
	created, err := svc.Events.Insert(therapist.CalendarID(), buildEvent(ev)).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	return created.Id, nil
}

// UpdateEvent moves an existing event to the new time.
func (g *GoogleCalendar) UpdateEvent(ctx context.Context, therapist therapists.Therapist, eventID string, ev Event) error {
	if strings.TrimSpace(eventID) == "" {
		return errors.New("calendar: event id required")
	}
	svc, err := g.service(ctx, therapist)
	if err != nil {
		return err
	}
	if _, err := svc.Events.Patch(therapist.CalendarID(), eventID, buildEvent(ev)).
		SendUpdates("all").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("calendar: patch event: %w", err)
	}
	return nil
}

// DeleteEvent removes the event from the therapist's calendar.
func (g *GoogleCalendar) DeleteEvent(ctx context.Context, therapist therapists.Therapist, eventID string) error {
	if strings.TrimSpace(eventID) == "" {
		return nil
	}
	svc, err := g.service(ctx, therapist)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(therapist.CalendarID(), eventID).
		SendUpdates("all").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("calendar: delete event: %w", err)
	}
	return nil
}

func (g *GoogleCalendar) service(ctx context.Context, therapist therapists.Therapist) (*gcal.Service, error) {
	if !therapist.HasCalendar() {
		return nil, ErrNoCredentials
	}
	if g.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	}
	ts := g.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: therapist.GoogleRefreshToken})
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create service: %w", err)
	}
	return svc, nil
}

func buildEvent(ev Event) *gcal.Event {
	name := strings.TrimSpace(ev.PatientName)
	if name == "" {
		name = "Patient"
	}
	tz := strings.TrimSpace(ev.TimeZone)
	if tz == "" {
		tz = "Asia/Kolkata"
	}
	description := "Inquiry ID: " + ev.InquiryID
	if ev.Concern != "" {
		description += "\nConcern: " + ev.Concern
	}
	return &gcal.Event{
		Summary:     "Therapy Session with " + name,
		Description: description,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: tz},
		End:         &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: tz},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}
