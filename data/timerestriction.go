package data

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimeRestriction is returned when a restriction window cannot be
// parsed
var ErrInvalidTimeRestriction = errors.New("invalid time restriction")

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// TimeRestriction is a weekly recurring window in the owning contact's
// timezone. A rule with restrictions is active only while at least one
// window covers the notification timestamp.
type TimeRestriction struct {
	// Days are lowercase weekday names; empty means every day
	Days []string `json:"days,omitempty"`
	// StartTime and EndTime are clock times in "15:04" form; the window
	// is half open [StartTime, EndTime)
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Validate checks the window's fields without reference to a timestamp
func (tr *TimeRestriction) Validate() error {
	for _, d := range tr.Days {
		if _, ok := weekdayNames[strings.ToLower(d)]; !ok {
			return fmt.Errorf("%w: unknown day %q", ErrInvalidTimeRestriction, d)
		}
	}
	if _, err := minuteOfDay(tr.StartTime); err != nil {
		return err
	}
	_, err := minuteOfDay(tr.EndTime)
	return err
}

// ActiveAt reports whether t, viewed in loc, falls inside the window
func (tr *TimeRestriction) ActiveAt(t time.Time, loc *time.Location) bool {
	if loc != nil {
		t = t.In(loc)
	}
	if len(tr.Days) != 0 {
		var match bool
		for _, d := range tr.Days {
			if wd, ok := weekdayNames[strings.ToLower(d)]; ok && wd == t.Weekday() {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	start, err := minuteOfDay(tr.StartTime)
	if err != nil {
		return false
	}
	end, err := minuteOfDay(tr.EndTime)
	if err != nil {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	return start <= now && now < end
}

func minuteOfDay(clock string) (int, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeRestriction, clock)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
