package conversation

import (
	"regexp"
	"strings"
)

var crisisPattern = regexp.MustCompile(`(?i)\b(` + strings.Join([]string{
	`suicid(e|al)`,
	`kill(ing)?\s+my\s*self`,
	`end(ing)?\s+(my|it)\s+(life|all)`,
	`take\s+my\s+(own\s+)?life`,
	`(want|wanna|going)\s+to\s+die`,
	`wanna\s+die`,
	`better\s+off\s+dead`,
	`self[\s-]?harm(ing)?`,
	`(hurt|hurting|cut|cutting|harm|harming)\s+my\s*self`,
	`no\s+reason\s+to\s+live`,
	`(don'?t|do\s+not)\s+want\s+to\s+(live|be\s+alive|wake\s+up)`,
	`overdos(e|ing)`,
}, "|") + `)\b`)

// CrisisMessage is the fixed reply for messages that mention self-harm.
const CrisisMessage = "I'm really sorry you're going through this, and I'm glad you reached out. " +
	"Your safety matters most right now. Please contact a crisis line immediately: " +
	"in India call Tele-MANAS at 14416 or KIRAN at 1800-599-0019; in the US call or text 988. " +
	"If you are in immediate danger, call 112 (India) or 911 (US) or go to the nearest emergency room. " +
	"When you feel safe, I'm here to help you find a therapist."

// DetectCrisis reports whether text contains self-harm or suicide language.
func DetectCrisis(text string) bool {
	return crisisPattern.MatchString(text)
}
