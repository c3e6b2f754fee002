package conversation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/therapymatch-ai/internal/inquiries"
)

// Emotional categories used to pick an empathetic opener.
const (
	moodDepression = "depression"
	moodAnxiety    = "anxiety"
	moodStress     = "stress"
	moodGrief      = "grief"
	moodLoneliness = "loneliness"
	moodGeneric    = "generic"
)

var moodRules = []labelRule{
	wordRule(moodDepression, `depress(ed|ion|ing)?`, `sad`, `hopeless`, `empty`, `down`, `low`, `unmotivated`),
	wordRule(moodAnxiety, `anx(ious|iety)`, `panic(king)?`, `worried`, `worry(ing)?`, `nervous`, `on edge`),
	wordRule(moodStress, `stress(ed|ful)?`, `overwhelm(ed|ing)?`, `pressure`, `burn(ed|t)\s?out`, `exhausted`),
	wordRule(moodGrief, `grie(f|ving)`, `loss`, `lost`, `passed away`, `died`, `mourning`),
	wordRule(moodLoneliness, `lonel(y|iness)`, `alone`, `isolated`, `no friends`),
}

var openers = map[string][]string{
	moodDepression: {
		"I'm sorry you've been feeling so low. Reaching out is a real step.",
		"That sounds really heavy, and I'm glad you're looking for support.",
		"Feeling down like that is hard. Thank you for sharing it with me.",
	},
	moodAnxiety: {
		"Anxiety can be exhausting, and it makes sense to want support.",
		"I'm sorry things have felt so unsettled. You don't have to handle it alone.",
		"That constant worry sounds draining. Let's find someone who can help.",
	},
	moodStress: {
		"It sounds like you've been carrying a lot lately.",
		"Being stretched that thin is hard. Let's get you some support.",
		"That much pressure would wear anyone down. I'm glad you reached out.",
	},
	moodGrief: {
		"I'm so sorry for your loss. Grief can be incredibly heavy.",
		"Losing someone is painful, and there's no right way to feel it.",
		"I'm sorry you're going through this loss. Support can really help.",
	},
	moodLoneliness: {
		"Feeling alone is really hard, and I'm glad you reached out.",
		"I'm sorry you've been feeling so isolated. You deserve support.",
		"Loneliness can weigh a lot. Let's find someone you can talk to.",
	},
	moodGeneric: {
		"Thanks for reaching out.",
		"I'm glad you're here.",
		"Thank you for sharing that with me.",
	},
}

var questions = map[string][]string{
	fieldProblem: {
		"Could you tell me a little about what you'd like help with? For example anxiety, depression, stress, or relationship issues.",
		"What's been on your mind that you'd like support with?",
		"What would you like to work on with a therapist?",
	},
	fieldSchedule: {
		"What days and times usually work best for you for sessions?",
		"When would you prefer to have sessions? Any days or time of day that suit you?",
		"Which days and times fit your schedule best?",
	},
	fieldInsurance: {
		"Do you have health insurance? If so, which provider? You can also say self-pay.",
		"Which insurance provider do you have, or will you be paying yourself?",
		"Could you tell me your insurance provider, or let me know if you'd prefer self-pay?",
	},
	"": {
		"Thank you! I have everything I need. Let me find the best therapist matches for you.",
		"Perfect, that's all I need. I'm looking for therapists who fit your needs now.",
		"Great, thanks for sharing all of that. Let me search for therapists who are a good fit.",
	},
}

func moodOf(texts ...string) string {
	for _, text := range texts {
		for _, rule := range moodRules {
			if rule.re.MatchString(text) {
				return rule.label
			}
		}
	}
	return moodGeneric
}

// acknowledge restates what is already known, e.g. "I understand you're dealing with anxiety, and you prefer weekday mornings."
func acknowledge(inq *inquiries.Inquiry) string {
	if inq == nil {
		return ""
	}
	var parts []string
	if inq.HasProblem() {
		parts = append(parts, "I understand you're dealing with "+inq.ExtractedSpecialty)
	}
	if inq.HasSchedule() {
		parts = append(parts, "you prefer "+inq.RequestedSchedule)
	}
	if inq.HasInsurance() {
		parts = append(parts, "you have "+inq.InsuranceInfo)
	}
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0] + "."
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1] + "."
}

var sentenceStart = regexp.MustCompile(`^\s*[a-z]`)

func joinSentences(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	out := strings.Join(kept, " ")
	if sentenceStart.MatchString(out) {
		out = strings.ToUpper(out[:1]) + out[1:]
	}
	return out
}

func selectedMessage(name string, inq *inquiries.Inquiry) string {
	if name == "" {
		name = "your therapist"
	}
	if inq.HasSchedule() {
		return fmt.Sprintf("Great choice! You've selected %s. Would you like me to book a session? Just say yes with a day and time, like \"Dec 10 at 10am\".", name)
	}
	return fmt.Sprintf("Great choice! You've selected %s. What day and time would you like your first session?", name)
}

func bookingMessage(start time.Time) string {
	return fmt.Sprintf("Wonderful! I'm booking your session for %s.", start.Format("Monday, January 2 at 3:04 PM"))
}

const (
	askDayAndTimeMessage   = "I'd be happy to book that. What day and time would you like? For example, \"Dec 10 at 10am\"."
	confirmBookingMessage  = "You're matched with a therapist. Would you like me to book a session? Say yes with a day and time that works for you."
	declinedBookingMessage = "No problem, I'll keep your match on hold. Whenever you're ready, tell me a day and time and I'll book it."
	clarifyBookingMessage  = "Of course. Sessions are one hour with your matched therapist. When you're ready, say yes with a day and time and I'll book it for you."
	failureMessage         = "I'm sorry, something went wrong on my side. Could you send that again in a moment?"
	emptyMessageReply      = "I didn't catch that. Could you tell me a bit about what's going on?"

	unknownTherapistMessage = "I couldn't find the therapist you picked, so let's choose again."
)
