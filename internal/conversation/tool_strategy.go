package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/therapymatch-ai/internal/appointments"
	"github.com/wolfman30/therapymatch-ai/internal/bookings"
	"github.com/wolfman30/therapymatch-ai/internal/inquiries"
	"github.com/wolfman30/therapymatch-ai/internal/observability/metrics"
	"github.com/wolfman30/therapymatch-ai/internal/schedule"
	"github.com/wolfman30/therapymatch-ai/internal/therapists"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

const (
	// maxToolRounds caps collaborator round-trips per message.
	maxToolRounds = 2
	// maxPresentedMatches is how many search results are offered as options.
	maxPresentedMatches = 3
)

var errToolsUnavailable = errors.New("conversation: tool collaborator unavailable")

// Tool names exposed to the model.
const (
	toolRecordIntake  = "record_intake_details"
	toolSearch        = "search_therapists"
	toolAvailability  = "check_availability"
	toolSelect        = "select_therapist"
	toolBook          = "book_appointment"
	toolView          = "view_appointments"
	toolCancel        = "cancel_appointment"
	toolReschedule    = "reschedule_appointment"
	localDateLayout   = "2006-01-02"
	unknownToolResult = "unknown tool"
)

var toolDefinitions = []ToolDefinition{
	{
		Name:        toolRecordIntake,
		Description: "Save intake details the user just gave. Only pass values the user stated.",
		Params: []ToolParam{
			{Name: "problem", Type: "string", Description: "Concern or condition, e.g. anxiety"},
			{Name: "schedule", Type: "string", Description: "Scheduling preference in the user's words"},
			{Name: "insurance", Type: "string", Description: "Insurance provider or self-pay"},
		},
	},
	{
		Name:        toolSearch,
		Description: "Find active therapists. Defaults to the recorded concern and insurance.",
		Params: []ToolParam{
			{Name: "specialty", Type: "string", Description: "Specialty to match"},
			{Name: "insurance", Type: "string", Description: "Insurance to match"},
			{Name: "query", Type: "string", Description: "Free text matched against name and bio"},
		},
	},
	{
		Name:        toolAvailability,
		Description: "List open one-hour slots for a therapist on a date.",
		Params: []ToolParam{
			{Name: "therapist_id", Type: "string", Description: "Therapist id; defaults to the matched therapist"},
			{Name: "date", Type: "string", Description: "Date as YYYY-MM-DD; defaults to today", Required: true},
		},
	},
	{
		Name:        toolSelect,
		Description: "Record the user's chosen therapist from the presented options.",
		Params: []ToolParam{
			{Name: "option", Type: "integer", Description: "1-based option number"},
			{Name: "therapist_id", Type: "string", Description: "Therapist id when known"},
		},
	},
	{
		Name:        toolBook,
		Description: "Book a session once the user confirmed a day and time.",
		Params: []ToolParam{
			{Name: "therapist_id", Type: "string", Description: "Therapist id; defaults to the matched therapist"},
			{Name: "start_time", Type: "string", Description: "Local start time 2006-01-02T15:04:05", Required: true},
			{Name: "end_time", Type: "string", Description: "Local end time; defaults to one hour later"},
		},
	},
	{
		Name:        toolView,
		Description: "List the user's appointments.",
	},
	{
		Name:        toolCancel,
		Description: "Cancel one of the user's appointments.",
		Params: []ToolParam{
			{Name: "appointment_id", Type: "string", Description: "Appointment id", Required: true},
		},
	},
	{
		Name:        toolReschedule,
		Description: "Move one of the user's appointments to a new time.",
		Params: []ToolParam{
			{Name: "appointment_id", Type: "string", Description: "Appointment id", Required: true},
			{Name: "start_time", Type: "string", Description: "New local start time 2006-01-02T15:04:05", Required: true},
			{Name: "end_time", Type: "string", Description: "New local end time; defaults to one hour later"},
		},
	},
}

// TherapistSearcher finds therapists for the search tool.
type TherapistSearcher interface {
	Search(ctx context.Context, params therapists.SearchParams) ([]therapists.Therapist, error)
}

// SlotFinder lists open slots for the availability tool.
type SlotFinder interface {
	AvailableSlots(ctx context.Context, therapistID string, date time.Time) ([]appointments.Slot, error)
}

// TherapistLookup resolves therapist ids.
type TherapistLookup interface {
	GetByID(ctx context.Context, id string) (*therapists.Therapist, error)
}

// InquiryReader reloads an inquiry after the booking engine changed it.
type InquiryReader interface {
	GetByID(ctx context.Context, id string) (*inquiries.Inquiry, error)
}

// ToolDeps are the deterministic components the tools call.
type ToolDeps struct {
	Client     ToolCallingClient
	Model      string
	Matcher    TherapistSearcher
	Slots      SlotFinder
	Therapists TherapistLookup
	Bookings   bookings.Engine
	Inquiries  InquiryReader
}

// ToolStrategy lets the model drive the turn through function calls.
type ToolStrategy struct {
	deps    ToolDeps
	metrics *metrics.ConversationMetrics
	logger  *logging.Logger
}

func NewToolStrategy(deps ToolDeps, m *metrics.ConversationMetrics, logger *logging.Logger) *ToolStrategy {
	if deps.Client == nil || deps.Matcher == nil || deps.Slots == nil || deps.Therapists == nil || deps.Bookings == nil || deps.Inquiries == nil {
		panic("conversation: tool strategy dependencies required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ToolStrategy{deps: deps, metrics: m, logger: logger}
}

func (s *ToolStrategy) Name() string { return "tools" }

// toolTurn is the mutable state of one tool-driven turn.
type toolTurn struct {
	turn      *Turn
	working   *inquiries.Inquiry
	pending   []therapists.Summary
	extracted ExtractedData
	resp      Response
	summary   string
}

func (s *ToolStrategy) Run(ctx context.Context, turn *Turn) (*Outcome, error) {
	if turn.Guard.Blocked {
		return nil, errToolsUnavailable
	}
	state := &toolTurn{
		turn:      turn,
		working:   startingInquiry(turn),
		pending:   turn.Request.PendingTherapistMatches,
		extracted: Unspecified(),
		resp:      Response{Success: true, NextAction: ActionAwaitingInfo, TimeZone: turn.TimeZone},
	}
	if state.working.MatchedTherapistID != "" {
		state.resp.TherapistID = state.working.MatchedTherapistID
	}

	messages := append(append([]ChatMessage(nil), trimHistory(turn.Request.ConversationHistory, maxPromptHistory)...),
		ChatMessage{Role: ChatRoleUser, Content: turn.modelText()})
	req := ToolRequest{
		Model:    s.deps.Model,
		System:   []string{toolSystemPrompt, s.stateNote(state)},
		Messages: messages,
		Tools:    toolDefinitions,
	}

	ran := false
	reply := ""
	for round := 0; round < maxToolRounds; round++ {
		resp, err := s.deps.Client.CompleteWithTools(ctx, req)
		if err != nil {
			if !ran {
				return nil, fmt.Errorf("%w: %v", errToolsUnavailable, err)
			}
			s.logger.Warn("tool collaborator failed after tools ran", "error", err)
			break
		}
		if len(resp.Calls) == 0 {
			reply = strings.TrimSpace(resp.Text)
			break
		}
		results := make([]ToolResult, 0, len(resp.Calls))
		for _, call := range resp.Calls {
			results = append(results, s.execute(ctx, state, call))
		}
		ran = true
		req.Exchanges = append(req.Exchanges, ToolExchange{Calls: resp.Calls, Results: results})
	}

	if reply == "" {
		reply = state.summary
	}
	if reply == "" {
		reply = emptyMessageReply
	}
	state.resp.Message = reply
	state.resp.ExtractedData = &state.extracted
	if state.resp.NextAction == ActionAwaitingInfo && state.working.Complete() && state.working.MatchedTherapistID == "" && len(state.resp.PendingTherapistMatches) == 0 {
		state.resp.NextAction = ActionFindTherapist
	}
	return &Outcome{Response: &state.resp, Inquiry: state.working}, nil
}

func (s *ToolStrategy) stateNote(state *toolTurn) string {
	inq := state.working
	var b strings.Builder
	fmt.Fprintf(&b, "Now: %s (%s).\n", state.turn.Now.Format("Monday 2006-01-02 15:04"), state.turn.TimeZone)
	fmt.Fprintf(&b, "Recorded: concern=%s; schedule=%s; insurance=%s.\n",
		knownValue(inq.ExtractedSpecialty), knownValue(inq.RequestedSchedule), knownValue(inq.InsuranceInfo))
	if inq.MatchedTherapistID != "" {
		fmt.Fprintf(&b, "Matched therapist id: %s.\n", inq.MatchedTherapistID)
	}
	if len(state.pending) > 0 {
		b.WriteString("Options shown to the user:\n")
		for i, t := range state.pending {
			fmt.Fprintf(&b, "%d. %s (id %s)\n", i+1, t.Name, t.ID)
		}
	}
	return b.String()
}

func (s *ToolStrategy) execute(ctx context.Context, state *toolTurn, call ToolCall) ToolResult {
	var (
		out map[string]any
		err error
	)
	switch call.Name {
	case toolRecordIntake:
		out = s.recordIntake(state, call.Args)
	case toolSearch:
		out, err = s.search(ctx, state, call.Args)
	case toolAvailability:
		out, err = s.availability(ctx, state, call.Args)
	case toolSelect:
		out, err = s.selectTherapist(state, call.Args)
	case toolBook:
		out, err = s.book(ctx, state, call.Args)
	case toolView:
		out, err = s.view(ctx, state)
	case toolCancel:
		out, err = s.cancel(ctx, state, call.Args)
	case toolReschedule:
		out, err = s.reschedule(ctx, state, call.Args)
	default:
		err = errors.New(unknownToolResult)
	}

	status := "ok"
	if err != nil {
		status = "error"
		s.logger.Warn("tool call failed", "tool", call.Name, "error", err)
		out = map[string]any{"error": toolErrorMessage(err)}
	}
	s.metrics.ObserveToolCall(call.Name, status)
	return ToolResult{Name: call.Name, Response: out}
}

func toolErrorMessage(err error) string {
	switch {
	case errors.Is(err, bookings.ErrMissingField), errors.Is(err, bookings.ErrInvalidTime),
		errors.Is(err, bookings.ErrPastTime), errors.Is(err, bookings.ErrSlotConflict),
		errors.Is(err, bookings.ErrNotFound), errors.Is(err, bookings.ErrCancelled):
		return bookings.UserMessage(err)
	case errors.Is(err, therapists.ErrTherapistNotFound):
		return "I couldn't find that therapist."
	}
	return err.Error()
}

func (s *ToolStrategy) recordIntake(state *toolTurn, args map[string]any) map[string]any {
	fields := inquiries.Fields{
		Problem:    Some(argString(args, "problem")).Value(),
		Schedule:   Some(argString(args, "schedule")).Value(),
		Insurance:  Some(argString(args, "insurance")).Value(),
		RawMessage: strings.TrimSpace(state.turn.Request.UserMessage),
	}
	state.working.Merge(fields)
	if fields.Problem != "" {
		state.extracted.Problem = Some(fields.Problem)
	}
	if fields.Schedule != "" {
		state.extracted.Schedule = Some(fields.Schedule)
	}
	if fields.Insurance != "" {
		state.extracted.Insurance = Some(fields.Insurance)
	}
	missing := firstMissing(state.working)
	if missing == "" {
		missing = "none"
	}
	return map[string]any{"recorded": true, "missing": missing}
}

func (s *ToolStrategy) search(ctx context.Context, state *toolTurn, args map[string]any) (map[string]any, error) {
	params := therapists.SearchParams{
		Specialty: argString(args, "specialty"),
		Insurance: argString(args, "insurance"),
		Query:     argString(args, "query"),
	}
	if params.Specialty == "" {
		params.Specialty = state.working.ExtractedSpecialty
	}
	if params.Insurance == "" {
		params.Insurance = state.working.InsuranceInfo
	}
	found, err := s.deps.Matcher.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(found) > maxPresentedMatches {
		found = found[:maxPresentedMatches]
	}
	options := therapists.Summaries(found)
	state.pending = options
	state.resp.PendingTherapistMatches = options
	state.resp.ClearPendingMatches = false

	list := make([]map[string]any, 0, len(options))
	for i, t := range options {
		list = append(list, map[string]any{
			"option":            i + 1,
			"id":                t.ID,
			"name":              t.Name,
			"specialties":       t.Specialties,
			"acceptedInsurance": t.AcceptedInsurance,
		})
	}
	if len(options) == 0 {
		state.summary = "I couldn't find an available therapist right now. Could you try a different preference?"
	} else {
		state.summary = "Here are therapists who may be a good fit:\n" + FormatOptions(options) + "\nWhich one would you like?"
	}
	return map[string]any{"options": list}, nil
}

func (s *ToolStrategy) availability(ctx context.Context, state *toolTurn, args map[string]any) (map[string]any, error) {
	therapistID := argString(args, "therapist_id")
	if therapistID == "" {
		therapistID = state.working.MatchedTherapistID
	}
	if therapistID == "" {
		return nil, bookings.ErrMissingField
	}
	day := state.turn.Now
	if raw := argString(args, "date"); raw != "" {
		parsed, err := time.ParseInLocation(localDateLayout, raw, state.turn.Location)
		if err != nil {
			return nil, bookings.ErrInvalidTime
		}
		day = parsed
	}
	slots, err := s.deps.Slots.AvailableSlots(ctx, therapistID, day)
	if err != nil {
		return nil, err
	}
	list := make([]map[string]any, 0, len(slots))
	displays := make([]string, 0, len(slots))
	for _, slot := range slots {
		list = append(list, map[string]any{
			"startTime": schedule.Format(slot.Start.In(state.turn.Location)),
			"endTime":   schedule.Format(slot.End.In(state.turn.Location)),
			"display":   slot.Display,
		})
		displays = append(displays, slot.Display)
	}
	if len(displays) == 0 {
		state.summary = fmt.Sprintf("There are no open times on %s. Would another day work?", day.Format("Monday, January 2"))
	} else {
		state.summary = fmt.Sprintf("Open times on %s: %s. Which works for you?", day.Format("Monday, January 2"), strings.Join(displays, ", "))
	}
	return map[string]any{"date": day.Format(localDateLayout), "slots": list}, nil
}

func (s *ToolStrategy) selectTherapist(state *toolTurn, args map[string]any) (map[string]any, error) {
	var choice *therapists.Summary
	if n := argInt(args, "option"); n >= 1 && n <= len(state.pending) {
		choice = &state.pending[n-1]
	}
	if id := argString(args, "therapist_id"); choice == nil && id != "" {
		for i := range state.pending {
			if state.pending[i].ID == id {
				choice = &state.pending[i]
				break
			}
		}
	}
	if choice == nil {
		return nil, errors.New("that option is not in the presented list")
	}
	selected := *choice
	state.working.MatchTherapist(selected.ID)
	sel := 0
	for i := range state.pending {
		if state.pending[i].ID == selected.ID {
			sel = i + 1
		}
	}
	state.extracted.TherapistSelection = &sel
	state.pending = nil
	state.resp.NextAction = ActionTherapistSelected
	state.resp.TherapistID = selected.ID
	state.resp.PendingTherapistMatches = nil
	state.resp.ClearPendingMatches = true
	state.summary = selectedMessage(selected.Name, state.working)
	return map[string]any{"selected": selected.Name, "therapistId": selected.ID}, nil
}

func (s *ToolStrategy) book(ctx context.Context, state *toolTurn, args map[string]any) (map[string]any, error) {
	therapistID := argString(args, "therapist_id")
	if therapistID == "" {
		therapistID = state.working.MatchedTherapistID
	}
	if err := state.turn.Flush(ctx, state.working); err != nil {
		return nil, err
	}
	res, err := s.deps.Bookings.Book(ctx, bookings.BookRequest{
		InquiryID:   state.working.ID,
		TherapistID: therapistID,
		StartTime:   argString(args, "start_time"),
		EndTime:     argString(args, "end_time"),
		TimeZone:    state.turn.TimeZone,
		Problem:     state.working.ExtractedSpecialty,
	})
	if err != nil {
		return nil, err
	}
	if err := s.reload(ctx, state); err != nil {
		return nil, err
	}
	return s.committed(ctx, state, res, "booked"), nil
}

func (s *ToolStrategy) reschedule(ctx context.Context, state *toolTurn, args map[string]any) (map[string]any, error) {
	id := argString(args, "appointment_id")
	if err := s.ownAppointment(ctx, state, id); err != nil {
		return nil, err
	}
	res, err := s.deps.Bookings.Reschedule(ctx, bookings.RescheduleRequest{
		AppointmentID: id,
		StartTime:     argString(args, "start_time"),
		EndTime:       argString(args, "end_time"),
		TimeZone:      state.turn.TimeZone,
	})
	if err != nil {
		return nil, err
	}
	if err := s.reload(ctx, state); err != nil {
		return nil, err
	}
	return s.committed(ctx, state, res, "rescheduled"), nil
}

func (s *ToolStrategy) cancel(ctx context.Context, state *toolTurn, args map[string]any) (map[string]any, error) {
	id := argString(args, "appointment_id")
	if err := s.ownAppointment(ctx, state, id); err != nil {
		return nil, err
	}
	res, err := s.deps.Bookings.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.reload(ctx, state); err != nil {
		return nil, err
	}
	view := bookings.NewAppointmentView(res.Appointment, state.turn.TimeZone)
	state.resp.Appointment = &view
	state.resp.CalendarSyncWarning = res.CalendarSyncWarning
	state.summary = "Your appointment has been cancelled. Would you like to book a different time?"
	return map[string]any{"cancelled": true, "appointment": view}, nil
}

func (s *ToolStrategy) view(ctx context.Context, state *toolTurn) (map[string]any, error) {
	if state.working.ID == "" {
		state.summary = "You don't have any appointments yet."
		return map[string]any{"appointments": []bookings.AppointmentView{}}, nil
	}
	list, err := s.deps.Bookings.ListForInquiry(ctx, state.working.ID)
	if err != nil {
		return nil, err
	}
	views := make([]bookings.AppointmentView, 0, len(list))
	lines := make([]string, 0, len(list))
	for _, apt := range list {
		v := bookings.NewAppointmentView(apt, state.turn.TimeZone)
		views = append(views, v)
		lines = append(lines, fmt.Sprintf("%s (%s)", apt.StartTime.In(state.turn.Location).Format("Mon, Jan 2 at 3:04 PM"), apt.Status))
	}
	if len(lines) == 0 {
		state.summary = "You don't have any appointments yet."
	} else {
		state.summary = "Your appointments: " + strings.Join(lines, "; ") + "."
	}
	return map[string]any{"appointments": views}, nil
}

// ownAppointment rejects appointment ids that belong to another inquiry.
func (s *ToolStrategy) ownAppointment(ctx context.Context, state *toolTurn, id string) error {
	if strings.TrimSpace(id) == "" {
		return bookings.ErrMissingField
	}
	apt, err := s.deps.Bookings.Get(ctx, id)
	if err != nil {
		return err
	}
	if state.working.ID == "" || apt.InquiryID != state.working.ID {
		return bookings.ErrNotFound
	}
	return nil
}

// reload picks up the booking engine's inquiry changes.
func (s *ToolStrategy) reload(ctx context.Context, state *toolTurn) error {
	fresh, err := s.deps.Inquiries.GetByID(ctx, state.working.ID)
	if err != nil {
		return fmt.Errorf("conversation: reload inquiry: %w", err)
	}
	state.working = fresh
	return state.turn.Flush(ctx, fresh)
}

func (s *ToolStrategy) committed(ctx context.Context, state *toolTurn, res *bookings.Result, verb string) map[string]any {
	view := bookings.NewAppointmentView(res.Appointment, state.turn.TimeZone)
	state.pending = nil
	state.resp.NextAction = ActionBooked
	state.resp.TherapistID = res.Appointment.TherapistID
	state.resp.StartTime = view.StartTime
	state.resp.EndTime = view.EndTime
	state.resp.Appointment = &view
	state.resp.CalendarSyncWarning = res.CalendarSyncWarning
	state.resp.PendingTherapistMatches = nil
	state.resp.ClearPendingMatches = true

	name := "your therapist"
	if t, err := s.deps.Therapists.GetByID(ctx, res.Appointment.TherapistID); err == nil && t.Name != "" {
		name = t.Name
	}
	state.summary = fmt.Sprintf("You're %s with %s on %s.", verb, name,
		res.Appointment.StartTime.In(state.turn.Location).Format("Monday, January 2 at 3:04 PM"))
	if res.CalendarSyncWarning != "" {
		state.summary += " " + res.CalendarSyncWarning
	}
	out := map[string]any{verb: true, "appointment": view, "therapist": name}
	if res.CalendarSyncWarning != "" {
		out["calendarSyncWarning"] = res.CalendarSyncWarning
	}
	return out
}

func argString(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

func argInt(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}
