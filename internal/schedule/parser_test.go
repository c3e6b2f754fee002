package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedParser(t *testing.T) *Parser {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return &Parser{
		Now:      func() time.Time { return time.Date(2025, time.November, 20, 14, 30, 0, 0, loc) },
		Location: loc,
	}
}

func TestParseExplicitDateAndTime(t *testing.T) {
	p := fixedParser(t)

	w := p.Parse("December 15th at 3pm", 2025)
	assert.Equal(t, 15, w.Start.Hour())
	assert.Equal(t, 0, w.Start.Minute())
	assert.Equal(t, time.December, w.Start.Month())
	assert.Equal(t, 15, w.Start.Day())
	assert.Equal(t, time.Hour, w.End.Sub(w.Start))
}

func TestParseDaySharingDigitsWithTime(t *testing.T) {
	p := fixedParser(t)

	w := p.Parse("yes, book it for Dec 10 at 10am", 2025)
	assert.Equal(t, "2025-12-10T10:00:00", Format(w.Start))
	assert.Equal(t, "2025-12-10T11:00:00", Format(w.End))
}

func TestParseDefaults(t *testing.T) {
	p := fixedParser(t)

	w := p.Parse("tomorrow morning", 2025)
	assert.Equal(t, "2025-11-20T09:00:00", Format(w.Start), "no month or day found keeps today at 09:00")

	w = p.Parse("", 0)
	assert.Equal(t, "2025-11-20T09:00:00", Format(w.Start))
}

func TestParseClockVariants(t *testing.T) {
	p := fixedParser(t)
	tests := []struct {
		phrase string
		want   string
	}{
		{"Jan 5 at 4:30 p.m.", "2025-01-05T16:30:00"},
		{"next friday at 3", "2025-11-20T15:00:00"},
		{"at 10 on the 22nd", "2025-11-22T10:00:00"},
		{"the 3rd of march at 11 AM", "2025-03-03T11:00:00"},
		{"sept 30, 8am", "2025-09-30T08:00:00"},
		{"dec 1 at 12am", "2025-12-01T09:00:00"},
		{"dec 1 at 11pm", "2025-12-01T09:00:00"},
		{"february 31 at 2pm", "2025-02-28T14:00:00"},
		{"around 45 minutes after lunch", "2025-11-20T09:00:00"},
		{"Dec 3 amazing", "2025-12-03T09:00:00"},
		{"Dec 3 at 5 pmish", "2025-12-03T17:00:00"},
		{"Dec 9", "2025-12-09T09:00:00"},
		{"the 9th at 9am", "2025-11-09T09:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(p.Parse(tt.phrase, 2025).Start))
		})
	}
}

func TestParseUsesParserLocation(t *testing.T) {
	p := fixedParser(t)
	w := p.Parse("Dec 10 at 10am", 2025)
	assert.Equal(t, "Asia/Kolkata", w.Start.Location().String())
	assert.Equal(t, time.Date(2025, 12, 10, 4, 30, 0, 0, time.UTC), w.Start.UTC())
}

func TestNewParserDefaultsToUTC(t *testing.T) {
	p := NewParser(nil)
	w := p.Parse("Dec 10 at 10am", 2030)
	assert.Equal(t, time.UTC, w.Start.Location())
	assert.Equal(t, 2030, w.Start.Year())
}
