// Package recurrence expands schedule definitions into concrete occurrence
// due times over a bounded horizon. Occurrence dates are computed in the
// schedule's location so that a "due at 8" item stays at 8 local across DST
// transitions; instants are returned in UTC.
package recurrence

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Frequency names accepted for week-stepped schedules.
const (
	OnceAWeek   = "Once a week"
	Every2Weeks = "Every 2 weeks"
	Every4Weeks = "Every 4 weeks"
)

var frequencyWeeks = map[string]int{
	OnceAWeek:   1,
	Every2Weeks: 2,
	Every4Weeks: 4,
}

var weekdays = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

// Params describes one schedule to expand.
//
// Exactly one repetition mode applies: RepeatDayFlags when HasRepetition is
// set (weekly day-flag mode), Frequency+DayOfWeek when Frequency is non-empty
// (week-stepped mode), otherwise a single occurrence on the start date.
type Params struct {
	// Start is the first eligible calendar date, interpreted in Location.
	Start time.Time
	// Effective is the maintenance instant. Occurrences due before it are
	// not produced, and the horizon is measured from the later of Start
	// and Effective.
	Effective time.Time

	HasRepetition  bool
	RepeatDayFlags map[string]bool

	Frequency string
	DayOfWeek string

	// TimeOfDay is the due hour in Location, 0 through 23.
	TimeOfDay int

	Reminder          bool
	ReminderTimeOfDay int

	Location *time.Location
	// Months bounds the expansion horizon.
	Months int
}

// Item is one concrete occurrence.
type Item struct {
	DueDate           time.Time // local midnight in the schedule's location
	DueDateTime       time.Time // UTC
	DueTimeOfDay      int
	ReminderDateTime  time.Time // zero unless a reminder was requested
	ReminderTimeOfDay int
}

// Expand computes every occurrence of the schedule that is due at or after
// the effective instant, through the horizon.
func (p Params) Expand() ([]Item, error) {
	if p.Location == nil {
		return nil, fmt.Errorf("location is required")
	}
	if p.TimeOfDay < 0 || p.TimeOfDay > 23 {
		return nil, fmt.Errorf("time of day %d out of range", p.TimeOfDay)
	}
	if p.Months <= 0 {
		return nil, fmt.Errorf("horizon months must be positive")
	}

	start := dateIn(p.Start, p.Location)
	effectiveDate := dateIn(p.Effective, p.Location)
	horizonFrom := start
	if effectiveDate.After(horizonFrom) {
		horizonFrom = effectiveDate
	}
	until := horizonFrom.AddDate(0, p.Months, 0)

	dates, err := p.occurrenceDates(start, until)
	if err != nil {
		return nil, err
	}

	var items []Item
	for _, date := range dates {
		item := Item{
			DueDate:      date,
			DueDateTime:  at(date, p.TimeOfDay).UTC(),
			DueTimeOfDay: p.TimeOfDay,
		}
		if item.DueDateTime.Before(p.Effective) {
			continue
		}
		if p.Reminder {
			item.ReminderDateTime = at(date, p.ReminderTimeOfDay).UTC()
			item.ReminderTimeOfDay = p.ReminderTimeOfDay
		}
		items = append(items, item)
	}
	return items, nil
}

func (p Params) occurrenceDates(start, until time.Time) ([]time.Time, error) {
	switch {
	case p.HasRepetition && p.RepeatDayFlags != nil:
		var dates []time.Time
		for d := start; !d.After(until); d = d.AddDate(0, 0, 1) {
			if p.RepeatDayFlags[d.Weekday().String()] {
				dates = append(dates, d)
			}
		}
		return dates, nil

	case p.Frequency != "":
		weeks, ok := frequencyWeeks[p.Frequency]
		if !ok {
			return nil, fmt.Errorf("unknown frequency %q", p.Frequency)
		}
		weekday, ok := weekdays[p.DayOfWeek]
		if !ok {
			return nil, fmt.Errorf("unknown day of week %q", p.DayOfWeek)
		}
		first := start
		for first.Weekday() != weekday {
			first = first.AddDate(0, 0, 1)
		}
		var dates []time.Time
		for d := first; !d.After(until); d = d.AddDate(0, 0, 7*weeks) {
			dates = append(dates, d)
		}
		return dates, nil

	default:
		return []time.Time{start}, nil
	}
}

// dateIn truncates an instant to its calendar date in loc.
func dateIn(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// at places an hour on a local date, letting the location resolve DST.
func at(date time.Time, hour int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, date.Location())
}

// ParseDate parses a wire-format calendar date in the given location.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a calendar date in wire format.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateTime parses a wire-format UTC instant.
func ParseDateTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse datetime %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatDateTime renders an instant in wire format, UTC.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
