package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/therapymatch-ai/internal/bookings"
	"github.com/wolfman30/therapymatch-ai/internal/conversation"
	"github.com/wolfman30/therapymatch-ai/internal/inquiries"
	"github.com/wolfman30/therapymatch-ai/internal/schedule"
	"github.com/wolfman30/therapymatch-ai/internal/therapists"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

const (
	maxOptions = 3
	// maxHistory bounds the transcript replayed to the orchestrator.
	maxHistory = 20
)

// Orchestrator runs one conversation turn.
type Orchestrator interface {
	HandleMessage(ctx context.Context, req conversation.MessageRequest) *conversation.Response
}

// Searcher finds therapists for a complete inquiry.
type Searcher interface {
	Search(ctx context.Context, params therapists.SearchParams) ([]therapists.Therapist, error)
}

// InquiryReader loads the inquiry a session is working on.
type InquiryReader interface {
	GetByID(ctx context.Context, id string) (*inquiries.Inquiry, error)
}

// Deps are the collaborators a web chat session drives.
type Deps struct {
	Orchestrator Orchestrator
	Matcher      Searcher
	Bookings     bookings.Engine
	Inquiries    InquiryReader
	TimeZone     string
}

// Handler manages web chat connections. Each connection is the caller that
// holds session state between turns.
type Handler struct {
	deps   Deps
	logger *logging.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session // sessionID -> state, kept for reconnects
}

// Session is the caller-held state for one chat.
type Session struct {
	mu sync.Mutex

	ID                 string
	PatientID          string
	TimeZone           string
	InquiryID          string
	MatchedTherapistID string
	Pending            []therapists.Summary
	History            []conversation.ChatMessage
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type        string                    `json:"type"` // "session", "typing", "message", "options", "booking", "error", "pong"
	Text        string                    `json:"text,omitempty"`
	Role        string                    `json:"role,omitempty"`
	SessionID   string                    `json:"session_id,omitempty"`
	Timestamp   string                    `json:"timestamp,omitempty"`
	Crisis      bool                      `json:"crisis,omitempty"`
	Options     []therapists.Summary      `json:"options,omitempty"`
	Appointment *bookings.AppointmentView `json:"appointment,omitempty"`
	Warning     string                    `json:"warning,omitempty"`
}

// NewHandler creates a web chat handler.
func NewHandler(deps Deps, logger *logging.Logger) *Handler {
	if deps.Orchestrator == nil {
		panic("webchat: orchestrator is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if deps.TimeZone == "" {
		deps.TimeZone = schedule.DefaultTimeZone
	}
	return &Handler{
		deps:     deps,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// session returns the state for id, creating it on first use.
func (h *Handler) session(id, timeZone string) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[id]; ok {
		return s
	}
	if timeZone == "" {
		timeZone = h.deps.TimeZone
	}
	s := &Session{ID: id, PatientID: "webchat-" + id, TimeZone: timeZone}
	h.sessions[id] = s
	return s
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
// GET /chat/ws?session=&timeZone=
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	sess := h.session(sessionID, r.URL.Query().Get("timeZone"))

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sessionID})
	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})
		for _, out := range h.Turn(r.Context(), sess, msg.Text) {
			if err := websocket.JSON.Send(conn, out); err != nil {
				h.logger.Warn("webchat: send failed", "session_id", sessionID, "error", err)
				return
			}
		}
	}
}

// Turn forwards text to the orchestrator and acts on the returned next action.
func (h *Handler) Turn(ctx context.Context, sess *Session, text string) []OutboundMessage {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	resp := h.deps.Orchestrator.HandleMessage(ctx, conversation.MessageRequest{
		UserMessage:             text,
		PatientID:               sess.PatientID,
		ConversationHistory:     append([]conversation.ChatMessage(nil), sess.History...),
		MatchedTherapistID:      sess.MatchedTherapistID,
		PendingTherapistMatches: sess.Pending,
		TimeZone:                sess.TimeZone,
	})
	sess.remember(conversation.ChatRoleUser, text)

	if !resp.Success {
		sess.remember(conversation.ChatRoleAssistant, resp.Message)
		return []OutboundMessage{h.reply("error", resp.Message)}
	}
	sess.apply(resp)

	first := h.reply("message", resp.Message)
	first.Crisis = resp.Crisis
	if len(resp.PendingTherapistMatches) > 0 {
		first.Options = resp.PendingTherapistMatches
	}
	out := []OutboundMessage{first}
	sess.remember(conversation.ChatRoleAssistant, resp.Message)

	var follow *OutboundMessage
	switch resp.NextAction {
	case conversation.ActionFindTherapist:
		follow = h.presentMatches(ctx, sess)
	case conversation.ActionBookAppointment:
		follow = h.book(ctx, sess, resp)
	case conversation.ActionBooked:
		if resp.Appointment != nil {
			msg := h.reply("booking", "")
			msg.Appointment = resp.Appointment
			msg.Warning = resp.CalendarSyncWarning
			follow = &msg
		}
	}
	if follow != nil {
		if follow.Text != "" {
			sess.remember(conversation.ChatRoleAssistant, follow.Text)
		}
		out = append(out, *follow)
	}
	return out
}

// presentMatches runs the matcher for the session's inquiry and offers numbered options.
func (h *Handler) presentMatches(ctx context.Context, sess *Session) *OutboundMessage {
	if h.deps.Matcher == nil || h.deps.Inquiries == nil || sess.InquiryID == "" {
		return nil
	}
	inq, err := h.deps.Inquiries.GetByID(ctx, sess.InquiryID)
	if err != nil {
		h.logger.Error("webchat: failed to load inquiry", "inquiry_id", sess.InquiryID, "error", err)
		msg := h.reply("error", "Sorry, I couldn't look up therapists just now. Please try again.")
		return &msg
	}
	found, err := h.deps.Matcher.Search(ctx, therapists.SearchParams{
		Specialty: inq.ExtractedSpecialty,
		Insurance: inq.InsuranceInfo,
	})
	if err != nil {
		h.logger.Error("webchat: therapist search failed", "inquiry_id", inq.ID, "error", err)
		msg := h.reply("error", "Sorry, I couldn't look up therapists just now. Please try again.")
		return &msg
	}
	if len(found) == 0 {
		msg := h.reply("message", "I couldn't find a therapist who matches that right now. You can tell me a different concern or insurance and I'll look again.")
		return &msg
	}
	if len(found) > maxOptions {
		found = found[:maxOptions]
	}
	sess.Pending = therapists.Summaries(found)

	msg := h.reply("options", "Here are therapists who may be a good fit:\n"+conversation.FormatOptions(sess.Pending)+"\nWhich one would you like?")
	msg.Options = sess.Pending
	return &msg
}

// book asks the booking engine to commit the proposed slot.
func (h *Handler) book(ctx context.Context, sess *Session, resp *conversation.Response) *OutboundMessage {
	if h.deps.Bookings == nil {
		return nil
	}
	tz := resp.TimeZone
	if tz == "" {
		tz = sess.TimeZone
	}
	res, err := h.deps.Bookings.Book(ctx, bookings.BookRequest{
		InquiryID:   resp.InquiryID,
		TherapistID: resp.TherapistID,
		StartTime:   resp.StartTime,
		EndTime:     resp.EndTime,
		TimeZone:    tz,
	})
	if err != nil {
		h.logger.Warn("webchat: booking failed", "inquiry_id", resp.InquiryID, "therapist_id", resp.TherapistID, "error", err)
		msg := h.reply("error", bookings.UserMessage(err))
		return &msg
	}

	view := bookings.NewAppointmentView(res.Appointment, tz)
	when := res.Appointment.StartTime.In(schedule.Location(tz)).Format("Monday, January 2 at 3:04 PM")
	msg := h.reply("booking", fmt.Sprintf("You're booked! Your session is on %s.", when))
	msg.Appointment = &view
	msg.Warning = res.CalendarSyncWarning
	sess.Pending = nil

	h.logger.Info("webchat: appointment booked", "session_id", sess.ID, "appointment_id", res.Appointment.ID)
	return &msg
}

func (h *Handler) reply(kind, text string) OutboundMessage {
	return OutboundMessage{
		Type:      kind,
		Role:      conversation.ChatRoleAssistant,
		Text:      text,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
}

// apply folds the orchestrator's response into the session.
func (s *Session) apply(resp *conversation.Response) {
	if resp.InquiryID != "" {
		s.InquiryID = resp.InquiryID
	}
	if resp.ClearPendingMatches {
		s.Pending = nil
	}
	if len(resp.PendingTherapistMatches) > 0 {
		s.Pending = resp.PendingTherapistMatches
	}
	if resp.TherapistID != "" {
		s.MatchedTherapistID = resp.TherapistID
	}
}

func (s *Session) remember(role, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	s.History = append(s.History, conversation.ChatMessage{Role: role, Content: content})
	if len(s.History) > maxHistory {
		s.History = s.History[len(s.History)-maxHistory:]
	}
}
