package conversation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wolfman30/therapymatch-ai/internal/therapists"
)

type labelRule struct {
	label string
	re    *regexp.Regexp
}

func wordRule(label string, words ...string) labelRule {
	return labelRule{label: label, re: regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`)}
}

// conditionNames win over symptom keywords when both appear.
var conditionNames = []labelRule{
	wordRule("depression", `depression`),
	wordRule("anxiety", `anxiety`, `panic attacks?`, `panic disorder`),
	wordRule("ptsd", `ptsd`, `post[\s-]traumatic stress`),
	wordRule("ocd", `ocd`, `obsessive[\s-]compulsive`),
	wordRule("adhd", `adhd`, `attention deficit`),
	wordRule("bipolar disorder", `bipolar`),
	wordRule("eating disorder", `eating disorder`, `anorexia`, `bulimia`, `binge eating`),
	wordRule("insomnia", `insomnia`),
	wordRule("addiction", `addiction`, `substance abuse`),
	wordRule("grief", `grief`, `bereavement`),
	wordRule("trauma", `trauma`),
	wordRule("stress", `stress`),
	wordRule("loneliness", `loneliness`),
	wordRule("burnout", `burnout`),
}

var conditionKeywords = []labelRule{
	wordRule("anxiety", `anxious`, `worried`, `worrying`, `nervous`, `panic(king|ky)?`, `on edge`, `restless`),
	wordRule("depression", `depressed`, `sad`, `down`, `hopeless`, `empty`, `unmotivated`, `low mood`, `feeling low`),
	wordRule("stress", `stressed`, `overwhelmed`, `pressure`, `tense`),
	wordRule("grief", `grieving`, `mourning`, `passed away`, `died`, `lost my`, `loss of`),
	wordRule("loneliness", `lonely`, `alone`, `isolated`),
	wordRule("insomnia", `can'?t sleep`, `cannot sleep`, `sleepless`, `trouble sleeping`),
	wordRule("trauma", `nightmares`, `flashbacks`, `abused`, `assaulted`),
	wordRule("burnout", `burned out`, `burnt out`, `exhausted`),
	wordRule("relationship issues", `breakup`, `break[\s-]up`, `divorce`, `marriage`, `my partner`, `relationship`),
	wordRule("anger management", `angry`, `anger`, `rage`),
	wordRule("addiction", `drinking`, `alcohol`, `drugs`, `gambling`),
}

var (
	weekdayPattern   = regexp.MustCompile(`(?i)\b(mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)(day)?s?\b|\bweek(day|end)s?\b`)
	monthNamePattern = regexp.MustCompile(`(?i)\b(january|february|march|april|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\b|\bmay\s+\d`)
	dayPartPattern   = regexp.MustCompile(`(?i)\b(mornings?|afternoons?|evenings?|tonight|noon|lunch\s*time|after work|before work)\b`)
	relativePattern  = regexp.MustCompile(`(?i)\b(today|tomorrow|next week|this week|next month|asap|anytime|any time|flexible)\b`)
	clockPattern     = regexp.MustCompile(`(?i)\b\d{1,2}(:\d{2})?\s*(a\.?m|p\.?m)\b\.?|\b\d{1,2}:\d{2}\b`)
	dateNumberRegex  = regexp.MustCompile(`\b(\d{1,2})(st|nd|rd|th)?\b`)
	wordPattern      = regexp.MustCompile(`[a-z]+`)
)

type insurer struct {
	name string
	re   *regexp.Regexp
}

func insurerRule(name string, aliases ...string) insurer {
	return insurer{name: name, re: regexp.MustCompile(`(?i)\b(` + strings.Join(aliases, "|") + `)\b`)}
}

var insurers = []insurer{
	insurerRule("Aetna", `aetna`),
	insurerRule("Blue Cross Blue Shield", `blue\s*cross(\s+blue\s*shield)?`, `bcbs`, `blue\s*shield`),
	insurerRule("Cigna", `cigna`),
	insurerRule("UnitedHealthcare", `united\s*health\s*care`, `united\s*healthcare`, `uhc`),
	insurerRule("Humana", `humana`),
	insurerRule("Kaiser Permanente", `kaiser(\s+permanente)?`),
	insurerRule("Medicare", `medicare`),
	insurerRule("Medicaid", `medicaid`),
	insurerRule("Anthem", `anthem`),
	insurerRule("Optum", `optum`),
	insurerRule("Tricare", `tricare`),
	insurerRule("Star Health", `star\s+health`),
	insurerRule("HDFC ERGO", `hdfc(\s+ergo)?`),
	insurerRule("ICICI Lombard", `icici(\s+lombard)?`),
	insurerRule("Niva Bupa", `niva\s+bupa`, `bupa`),
	insurerRule("self-pay", `self[\s-]?pay(ing)?`, `out of pocket`, `no insurance`, `don'?t have insurance`, `uninsured`, `pay cash`),
}

var (
	affirmativePattern = regexp.MustCompile(`(?i)\b(yes|yeah|yep|yup|sure|ok|okay|book it|book me|sounds good|please do|confirm|let'?s do it|go ahead|absolutely|definitely|perfect)\b`)
	negativePattern    = regexp.MustCompile(`(?i)\b(no|nope|nah|not now|not yet|don'?t|do not|never\s?mind|maybe later|later)\b`)

	ordinalPattern       = regexp.MustCompile(`(?i)\b(first|second|third)\b|\b(1st|2nd|3rd)\s+(one|option|choice|therapist)\b`)
	optionNumberPattern  = regexp.MustCompile(`(?i)(?:\b(?:option|number|no\.?|choice)\s*|#\s*)([1-3])\b`)
	bareSelectionPattern = regexp.MustCompile(`^\s*#?([1-3])\s*[.!)]?\s*$`)
	honorificPattern     = regexp.MustCompile(`(?i)^(dr|mr|mrs|ms|mx|prof)\.?$`)
)

var ordinals = map[string]int{"first": 1, "1st": 1, "second": 2, "2nd": 2, "third": 3, "3rd": 3}

// FallbackExtract reads a message with keyword and pattern rules only.
func FallbackExtract(in ExtractionInput) ExtractedData {
	text := strings.TrimSpace(in.UserText)
	data := Unspecified()
	if text == "" || IsGreeting(text) {
		return data
	}

	if sel := detectSelection(text, in.Pending); sel > 0 {
		data.TherapistSelection = &sel
	}
	if problem := detectCondition(text); problem != "" {
		data.Problem = Some(problem)
	}
	if mentionsSchedule(text, data.TherapistSelection != nil) {
		data.Schedule = Some(text)
	}
	if ins := detectInsurance(text); ins != "" {
		data.Insurance = Some(ins)
	}
	if in.Known != nil && in.Known.MatchedTherapistID != "" {
		data.BookingIntent = detectIntent(text)
	}
	return data
}

func detectCondition(text string) string {
	for _, rule := range conditionNames {
		if rule.re.MatchString(text) {
			return rule.label
		}
	}
	for _, rule := range conditionKeywords {
		if rule.re.MatchString(text) {
			return rule.label
		}
	}
	return ""
}

// mentionsSchedule flags scheduling language. Bare numbers count only when
// the message is not picking an option.
func mentionsSchedule(text string, selected bool) bool {
	if weekdayPattern.MatchString(text) || monthNamePattern.MatchString(text) ||
		dayPartPattern.MatchString(text) || relativePattern.MatchString(text) ||
		clockPattern.MatchString(text) {
		return true
	}
	if selected {
		return false
	}
	for _, m := range dateNumberRegex.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 31 {
			return true
		}
	}
	return false
}

func detectInsurance(text string) string {
	for _, ins := range insurers {
		if ins.re.MatchString(text) {
			return ins.name
		}
	}
	return ""
}

func detectIntent(text string) BookingIntent {
	switch {
	case affirmativePattern.MatchString(text):
		return IntentYes
	case negativePattern.MatchString(text):
		return IntentNo
	case strings.Contains(text, "?"):
		return IntentClarification
	}
	return IntentUnspecified
}

// detectSelection returns a 1-based option index within pending, or 0.
func detectSelection(text string, pending []therapists.Summary) int {
	if len(pending) == 0 {
		return 0
	}
	inRange := func(n int) int {
		if n >= 1 && n <= len(pending) {
			return n
		}
		return 0
	}

	if m := ordinalPattern.FindStringSubmatch(text); m != nil {
		word := m[1]
		if word == "" {
			word = m[2]
		}
		return inRange(ordinals[strings.ToLower(word)])
	}
	if m := bareSelectionPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return inRange(n)
	}
	if m := optionNumberPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return inRange(n)
	}

	words := make(map[string]struct{})
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		words[w] = struct{}{}
	}
	for i, t := range pending {
		for _, part := range nameParts(t.Name) {
			if _, ok := words[part]; ok {
				return i + 1
			}
		}
	}
	return 0
}

// nameParts returns the lower-cased first and last name, skipping titles.
func nameParts(name string) []string {
	var words []string
	for _, w := range strings.Fields(name) {
		w = strings.Trim(w, ",.")
		if w == "" || honorificPattern.MatchString(w) {
			continue
		}
		words = append(words, strings.ToLower(w))
	}
	if len(words) == 0 {
		return nil
	}
	parts := []string{words[0]}
	if len(words) > 1 {
		parts = append(parts, words[len(words)-1])
	}
	out := parts[:0]
	for _, p := range parts {
		if len(p) >= 3 {
			out = append(out, p)
		}
	}
	return out
}
