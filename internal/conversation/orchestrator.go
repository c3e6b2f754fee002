package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/therapymatch-ai/internal/config"
	"github.com/wolfman30/therapymatch-ai/internal/inquiries"
	"github.com/wolfman30/therapymatch-ai/internal/observability/metrics"
	"github.com/wolfman30/therapymatch-ai/internal/schedule"
	"github.com/wolfman30/therapymatch-ai/internal/therapists"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

var conversationTracer = otel.Tracer("therapymatch.internal.conversation")

// Turn is one message plus the state it runs against.
type Turn struct {
	Request  MessageRequest
	Patient  string
	Stored   *inquiries.Inquiry
	TimeZone string
	Location *time.Location
	Now      time.Time
	Guard    GuardResult

	persist func(ctx context.Context, inq *inquiries.Inquiry) error
}

// Flush writes inq now. Strategies call it before handing the inquiry to
// components that read it from the store.
func (t *Turn) Flush(ctx context.Context, inq *inquiries.Inquiry) error {
	if t.persist == nil {
		return nil
	}
	return t.persist(ctx, inq)
}

func (t *Turn) clock() time.Time { return t.Now }

// modelText is the message as it may be shown to a model.
func (t *Turn) modelText() string {
	if s := strings.TrimSpace(t.Guard.Sanitized); s != "" {
		return s
	}
	return strings.TrimSpace(t.Request.UserMessage)
}

// Outcome is a strategy's answer and the inquiry state to persist.
type Outcome struct {
	Response *Response
	Inquiry  *inquiries.Inquiry
}

// Strategy handles one turn.
type Strategy interface {
	Name() string
	Run(ctx context.Context, turn *Turn) (*Outcome, error)
}

// InquiryStore is the inquiry storage the orchestrator needs.
type InquiryStore interface {
	Create(ctx context.Context, inq *inquiries.Inquiry) error
	Update(ctx context.Context, inq *inquiries.Inquiry) error
	GetLatestByPatient(ctx context.Context, patientIdentifier string) (*inquiries.Inquiry, error)
}

// Orchestrator is the single entry point for chat messages.
type Orchestrator struct {
	inquiries InquiryStore
	roster    TherapistLookup
	pipeline  Strategy
	tools     Strategy
	mode      string
	locker    SessionLocker
	metrics   *metrics.ConversationMetrics
	logger    *logging.Logger
	now       func() time.Time
	defaultTZ string
}

// OrchestratorOption configures the Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithToolStrategy enables the tool-calling strategy.
func WithToolStrategy(s Strategy) OrchestratorOption {
	return func(o *Orchestrator) { o.tools = s }
}

// WithMode selects pipeline, tools or auto.
func WithMode(mode string) OrchestratorOption {
	return func(o *Orchestrator) {
		if mode != "" {
			o.mode = mode
		}
	}
}

// WithTherapistLookup validates caller-supplied matches against the roster.
func WithTherapistLookup(l TherapistLookup) OrchestratorOption {
	return func(o *Orchestrator) { o.roster = l }
}

func WithSessionLocker(l SessionLocker) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.locker = l
		}
	}
}

func WithConversationMetrics(m *metrics.ConversationMetrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithDefaultTimeZone(tz string) OrchestratorOption {
	return func(o *Orchestrator) {
		if strings.TrimSpace(tz) != "" {
			o.defaultTZ = tz
		}
	}
}

func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func NewOrchestrator(store InquiryStore, pipeline Strategy, logger *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	if store == nil || pipeline == nil {
		panic("conversation: inquiry store and pipeline strategy required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	o := &Orchestrator{
		inquiries: store,
		pipeline:  pipeline,
		mode:      config.OrchestrationAuto,
		locker:    NewLocalSessionLocker(),
		logger:    logger,
		now:       time.Now,
		defaultTZ: schedule.DefaultTimeZone,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleMessage processes one message. It never returns an error: failures
// become a polite reply with nextAction "error" and leave the inquiry as it was.
func (o *Orchestrator) HandleMessage(ctx context.Context, req MessageRequest) *Response {
	started := time.Now()
	ctx, span := conversationTracer.Start(ctx, "conversation.handle_message")
	defer span.End()

	text := strings.TrimSpace(req.UserMessage)
	if text == "" {
		return &Response{Success: false, NextAction: ActionError, Message: emptyMessageReply, Error: "userMessage is required"}
	}

	patient := strings.TrimSpace(req.PatientID)
	if patient == "" {
		patient = "anon-" + uuid.NewString()
	}
	req.PatientID = patient

	tzName := strings.TrimSpace(req.TimeZone)
	if tzName == "" {
		tzName = o.defaultTZ
	}
	loc := schedule.Location(tzName)
	span.SetAttributes(attribute.String("patient_id", patient), attribute.String("time_zone", loc.String()))

	if DetectCrisis(text) {
		o.metrics.ObserveCrisis()
		o.logger.Warn("crisis language detected", "patient_id", patient)
		resp := &Response{
			Success:    true,
			Message:    CrisisMessage,
			NextAction: ActionAwaitingInfo,
			Crisis:     true,
			TimeZone:   loc.String(),
		}
		if current, err := o.inquiries.GetLatestByPatient(ctx, patient); err == nil {
			resp.InquiryID = current.ID
		}
		o.metrics.ObserveTurn("crisis", string(resp.NextAction), time.Since(started).Seconds())
		return resp
	}

	unlock, err := o.locker.Lock(ctx, patient)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrSessionBusy) {
			outcome = "busy"
		}
		o.metrics.ObserveSessionLock(outcome)
		return o.fail(span, "", fmt.Errorf("conversation: lock session: %w", err), patient)
	}
	defer unlock()
	o.metrics.ObserveSessionLock("acquired")

	stored, err := o.inquiries.GetLatestByPatient(ctx, patient)
	if err != nil && !errors.Is(err, inquiries.ErrInquiryNotFound) {
		return o.fail(span, "", fmt.Errorf("conversation: load inquiry: %w", err), patient)
	}
	if err != nil {
		stored = nil
	}

	dropped, err := o.checkCallerMatch(ctx, &req, stored)
	if err != nil {
		return o.fail(span, inquiryID(stored), err, patient)
	}

	turn := &Turn{
		Request:  req,
		Patient:  patient,
		Stored:   stored,
		TimeZone: loc.String(),
		Location: loc,
		Now:      o.now().In(loc),
		Guard:    ScanMessage(text),
	}
	if turn.Guard.Blocked {
		o.logger.Warn("message flagged by prompt guard", "patient_id", patient, "reasons", turn.Guard.Reasons)
	}
	saved := stored.Clone()
	turn.persist = func(ctx context.Context, inq *inquiries.Inquiry) error {
		if err := o.save(ctx, saved, inq); err != nil {
			return err
		}
		saved = inq.Clone()
		return nil
	}

	strategy := o.strategyFor(turn)
	outcome, err := strategy.Run(ctx, turn)
	if err != nil && errors.Is(err, errToolsUnavailable) && strategy != o.pipeline {
		o.metrics.ObserveFallback("tools")
		o.logger.Warn("tool strategy unavailable, using pipeline", "error", err)
		strategy = o.pipeline
		outcome, err = strategy.Run(ctx, turn)
	}
	if err != nil {
		return o.fail(span, inquiryID(saved), err, patient)
	}

	if outcome.Inquiry != nil {
		if err := turn.Flush(ctx, outcome.Inquiry); err != nil {
			return o.fail(span, inquiryID(stored), fmt.Errorf("conversation: persist inquiry: %w", err), patient)
		}
	}

	resp := outcome.Response
	resp.InquiryID = inquiryID(saved)
	if dropped && resp.NextAction != ActionTherapistSelected {
		resp.Message = joinSentences(unknownTherapistMessage, resp.Message)
	}
	if resp.TimeZone == "" {
		resp.TimeZone = loc.String()
	}
	span.SetAttributes(attribute.String("next_action", string(resp.NextAction)), attribute.String("strategy", strategy.Name()))
	o.metrics.ObserveTurn(strategy.Name(), string(resp.NextAction), time.Since(started).Seconds())
	return resp
}

// checkCallerMatch drops a caller-supplied therapist id that is not an active
// therapist, so a stale id cannot wedge the session. It reports whether the
// id was dropped.
func (o *Orchestrator) checkCallerMatch(ctx context.Context, req *MessageRequest, stored *inquiries.Inquiry) (bool, error) {
	id := strings.TrimSpace(req.MatchedTherapistID)
	if id == "" || o.roster == nil || (stored != nil && stored.MatchedTherapistID == id) {
		return false, nil
	}
	t, err := o.roster.GetByID(ctx, id)
	if err != nil && !errors.Is(err, therapists.ErrTherapistNotFound) {
		return false, fmt.Errorf("conversation: look up matched therapist: %w", err)
	}
	if err == nil && t.IsActive {
		return false, nil
	}
	o.logger.Warn("ignoring unknown matched therapist", "patient_id", req.PatientID, "therapist_id", id)
	req.MatchedTherapistID = ""
	return true, nil
}

func (o *Orchestrator) strategyFor(turn *Turn) Strategy {
	if o.tools == nil || turn.Guard.Blocked {
		return o.pipeline
	}
	switch o.mode {
	case config.OrchestrationTools, config.OrchestrationAuto:
		return o.tools
	}
	return o.pipeline
}

// save creates inq when it has no id yet and otherwise updates it if it
// differs from the last written state.
func (o *Orchestrator) save(ctx context.Context, last, inq *inquiries.Inquiry) error {
	if inq.ID == "" {
		return o.inquiries.Create(ctx, inq)
	}
	if last != nil && sameInquiry(last, inq) {
		return nil
	}
	return o.inquiries.Update(ctx, inq)
}

func sameInquiry(a, b *inquiries.Inquiry) bool {
	return a.ID == b.ID &&
		a.ProblemDescription == b.ProblemDescription &&
		a.ExtractedSpecialty == b.ExtractedSpecialty &&
		a.RequestedSchedule == b.RequestedSchedule &&
		a.InsuranceInfo == b.InsuranceInfo &&
		a.MatchedTherapistID == b.MatchedTherapistID &&
		a.Status == b.Status
}

func (o *Orchestrator) fail(span trace.Span, inquiryID string, err error, patient string) *Response {
	span.RecordError(err)
	o.logger.Error("conversation turn failed", "patient_id", patient, "error", err)
	o.metrics.ObserveTurn("failed", string(ActionError), 0)
	return &Response{
		Success:    false,
		Message:    failureMessage,
		NextAction: ActionError,
		InquiryID:  inquiryID,
		Error:      "internal_error",
	}
}

func inquiryID(inq *inquiries.Inquiry) string {
	if inq == nil {
		return ""
	}
	return inq.ID
}
