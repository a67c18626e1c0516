package timeutil

import (
	"time"
)

// Local is the campaign's timezone (Africa/Cairo, UTC+2 without DST fallback data)
var Local *time.Location

func init() {
	var err error
	Local, err = time.LoadLocation("Africa/Cairo")
	if err != nil {
		// Fallback: create fixed zone if tzdata is not available
		Local = time.FixedZone("EET", 2*60*60)
	}
}

// Now returns the current time in the campaign timezone
func Now() time.Time {
	return time.Now().In(Local)
}

// ISO formats t as the RFC3339 timestamp stored on records
func ISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// DisplayDate formats the date part shown on forms and in the spreadsheet
func DisplayDate(t time.Time) string {
	return t.In(Local).Format(DateLayout)
}

// DisplayTime formats the time part shown on forms and in the spreadsheet
func DisplayTime(t time.Time) string {
	return t.In(Local).Format(TimeLayout)
}

// MinuteBucket truncates t to the start of its window, in UTC
func MinuteBucket(t time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = time.Minute
	}
	return t.UTC().Truncate(window)
}

const (
	DateLayout = "02/01/2006"
	TimeLayout = "15:04:05"
)
