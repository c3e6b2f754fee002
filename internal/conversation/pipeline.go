package conversation

import (
	"context"
	"strings"

	"github.com/wolfman30/therapymatch-ai/internal/inquiries"
	"github.com/wolfman30/therapymatch-ai/internal/schedule"
	"github.com/wolfman30/therapymatch-ai/internal/therapists"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

// PipelineStrategy runs extract, decide and reply in a fixed order.
type PipelineStrategy struct {
	extractor Extractor
	replies   ReplyGenerator
	logger    *logging.Logger
}

func NewPipelineStrategy(extractor Extractor, replies ReplyGenerator, logger *logging.Logger) *PipelineStrategy {
	if extractor == nil || replies == nil {
		panic("conversation: extractor and reply generator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PipelineStrategy{extractor: extractor, replies: replies, logger: logger}
}

func (p *PipelineStrategy) Name() string { return "pipeline" }

func (p *PipelineStrategy) Run(ctx context.Context, turn *Turn) (*Outcome, error) {
	working := startingInquiry(turn)
	text := turn.modelText()

	extracted := p.extractor.Extract(ctx, ExtractionInput{
		UserText: text,
		History:  turn.Request.ConversationHistory,
		Known:    working,
		Pending:  turn.Request.PendingTherapistMatches,
		Blocked:  turn.Guard.Blocked,
	})

	parser := &schedule.Parser{Now: turn.clock, Location: turn.Location}
	out := decide(turnInput{
		Inquiry:   working,
		UserText:  strings.TrimSpace(turn.Request.UserMessage),
		Extracted: extracted,
		Pending:   turn.Request.PendingTherapistMatches,
		Parse:     func(phrase string) schedule.Window { return parser.Parse(phrase, 0) },
		TimeZone:  turn.TimeZone,
	})

	if out.NeedsReply {
		out.Response.Message = p.replies.Generate(ctx, ReplyInput{
			UserText:  text,
			History:   turn.Request.ConversationHistory,
			Known:     out.Inquiry,
			Extracted: extracted,
			Blocked:   turn.Guard.Blocked,
		})
	}
	return &Outcome{Response: &out.Response, Inquiry: out.Inquiry}, nil
}

// startingInquiry is the stored inquiry, or a new one, with the caller's match applied.
func startingInquiry(turn *Turn) *inquiries.Inquiry {
	working := turn.Stored.Clone()
	if working == nil {
		working = inquiries.New(turn.Patient)
	}
	working.MatchTherapist(turn.Request.MatchedTherapistID)
	return working
}

type turnInput struct {
	Inquiry   *inquiries.Inquiry
	UserText  string
	Extracted ExtractedData
	Pending   []therapists.Summary
	Parse     func(phrase string) schedule.Window
	TimeZone  string
}

type turnOutcome struct {
	Inquiry    *inquiries.Inquiry
	Response   Response
	NeedsReply bool
}

// decide merges the extraction into a copy of the inquiry and picks the next
// action. It performs no I/O.
func decide(in turnInput) turnOutcome {
	inq := in.Inquiry.Clone()
	ex := in.Extracted
	inq.Merge(inquiries.Fields{
		Problem:    ex.Problem.Value(),
		Schedule:   ex.Schedule.Value(),
		Insurance:  ex.Insurance.Value(),
		RawMessage: in.UserText,
	})

	out := turnOutcome{
		Inquiry: inq,
		Response: Response{
			Success:       true,
			NextAction:    ActionAwaitingInfo,
			TimeZone:      in.TimeZone,
			ExtractedData: &ex,
		},
	}
	resp := &out.Response

	if sel := ex.Selection(); sel >= 1 && sel <= len(in.Pending) {
		choice := in.Pending[sel-1]
		inq.MatchTherapist(choice.ID)
		resp.NextAction = ActionTherapistSelected
		resp.TherapistID = choice.ID
		resp.ClearPendingMatches = true
		resp.Message = selectedMessage(choice.Name, inq)
		return out
	}

	if inq.MatchedTherapistID != "" {
		resp.TherapistID = inq.MatchedTherapistID
		switch ex.BookingIntent {
		case IntentYes:
			phrase := ex.Schedule.Value()
			if phrase == "" {
				phrase = inq.RequestedSchedule
			}
			if phrase == "" || in.Parse == nil {
				resp.Message = askDayAndTimeMessage
				return out
			}
			window := in.Parse(phrase)
			resp.NextAction = ActionBookAppointment
			resp.StartTime = schedule.Format(window.Start)
			resp.EndTime = schedule.Format(window.End)
			resp.Message = bookingMessage(window.Start)
			return out
		case IntentNo:
			resp.Message = declinedBookingMessage
			return out
		case IntentClarification:
			resp.Message = clarifyBookingMessage
			return out
		}
	}

	if inq.Complete() {
		if inq.MatchedTherapistID != "" {
			resp.Message = confirmBookingMessage
			return out
		}
		resp.NextAction = ActionFindTherapist
	}
	out.NeedsReply = true
	return out
}
