// Package schedule turns free-text scheduling phrases into concrete session windows.
package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// LocalLayout is the zone-less ISO-8601 layout used on the wire together with a timeZone field.
const LocalLayout = "2006-01-02T15:04:05"

const (
	defaultHour  = 9
	earliestHour = 6
	latestHour   = 22
	sessionSpan  = time.Hour
)

var (
	meridiemPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(a\.?m|p\.?m)\b\.?`)
	atHourPattern   = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::(\d{2}))?\b`)
	numberPattern   = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\b`)
	monthPattern    = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\b`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// Window is a one-hour session interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Parser resolves phrases relative to Now in Location.
type Parser struct {
	Now      func() time.Time
	Location *time.Location
}

// NewParser returns a parser for the location using the wall clock.
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{Now: time.Now, Location: loc}
}

// Parse resolves text to a window. It never fails: anything it cannot read
// degrades to today at 09:00. A zero referenceYear means the current year.
func (p *Parser) Parse(text string, referenceYear int) Window {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	nowFn := p.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn().In(loc)
	if referenceYear <= 0 {
		referenceYear = now.Year()
	}

	hour, minute, remainder := extractClock(text)
	if hour < earliestHour || hour > latestHour {
		hour, minute = defaultHour, 0
	}

	month, monthSpan := extractMonth(remainder)
	if month == 0 {
		month = now.Month()
	}
	day := extractDay(remainder, monthSpan)
	if day == 0 {
		day = now.Day()
	}
	if last := daysIn(month, referenceYear); day > last {
		day = last
	}

	start := time.Date(referenceYear, month, day, hour, minute, 0, 0, loc)
	return Window{Start: start, End: start.Add(sessionSpan)}
}

// extractClock returns the hour and minute of the first time expression and the
// text with that expression removed, so its digits are not reused as a day.
func extractClock(text string) (int, int, string) {
	if loc := meridiemPattern.FindStringSubmatchIndex(text); loc != nil {
		hour := atoi(text[loc[2]:loc[3]])
		minute := 0
		if loc[4] >= 0 {
			minute = atoi(text[loc[4]:loc[5]])
		}
		pm := strings.HasPrefix(strings.ToLower(text[loc[6]:loc[7]]), "p")
		switch {
		case hour == 12 && !pm:
			hour = 0
		case hour < 12 && pm:
			hour += 12
		}
		return hour, clampMinute(minute), text[:loc[0]] + " " + text[loc[1]:]
	}
	if loc := atHourPattern.FindStringSubmatchIndex(text); loc != nil {
		hour := atoi(text[loc[2]:loc[3]])
		minute := 0
		if loc[4] >= 0 {
			minute = atoi(text[loc[4]:loc[5]])
		}
		if hour >= 1 && hour <= 7 {
			hour += 12
		}
		return hour, clampMinute(minute), text[:loc[0]] + " " + text[loc[1]:]
	}
	return defaultHour, 0, text
}

// extractMonth returns the first named month and the byte span it occupies.
func extractMonth(text string) (time.Month, []int) {
	loc := monthPattern.FindStringIndex(text)
	if loc == nil {
		return 0, nil
	}
	name := strings.ToLower(text[loc[0]:loc[1]])
	return monthsByPrefix[name[:3]], loc
}

// extractDay prefers a number directly adjacent to the month name, then the
// first remaining 1-31 number in the phrase.
func extractDay(text string, monthSpan []int) int {
	matches := numberPattern.FindAllStringSubmatchIndex(text, -1)
	if monthSpan != nil {
		for _, m := range matches {
			between := ""
			switch {
			case m[0] >= monthSpan[1]:
				between = text[monthSpan[1]:m[0]]
			case m[1] <= monthSpan[0]:
				between = text[m[1]:monthSpan[0]]
			}
			if gap := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(between), "of")); gap == "" || gap == "," {
				if d := atoi(text[m[2]:m[3]]); d >= 1 && d <= 31 {
					return d
				}
			}
		}
	}
	for _, m := range matches {
		if d := atoi(text[m[2]:m[3]]); d >= 1 && d <= 31 {
			return d
		}
	}
	return 0
}

// Format renders t as a zone-less local timestamp.
func Format(t time.Time) string {
	return t.Format(LocalLayout)
}

func daysIn(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func clampMinute(m int) int {
	if m < 0 || m > 59 {
		return 0
	}
	return m
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
