package recurrence

import (
	"testing"
	"time"
)

func losAngeles(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestExpandWeeklyDayFlags(t *testing.T) {
	loc := losAngeles(t)
	start, err := ParseDate("2022-03-12", loc)
	if err != nil {
		t.Fatal(err)
	}
	effective := time.Date(2022, 3, 14, 10, 0, 0, 0, time.UTC)

	items, err := Params{
		Start:         start,
		Effective:     effective,
		HasRepetition: true,
		RepeatDayFlags: map[string]bool{
			"Monday":  true,
			"Tuesday": true,
		},
		TimeOfDay: 8,
		Location:  loc,
		Months:    9,
	}.Expand()
	if err != nil {
		t.Fatalf("expand: %v", err)
	}

	// Mondays and Tuesdays from the week after the Saturday start through
	// the nine month horizon.
	if len(items) != 80 {
		t.Fatalf("expanded %d items, want 80", len(items))
	}

	wantFirst := []string{
		"2022-03-14", "2022-03-15",
		"2022-03-21", "2022-03-22",
		"2022-03-28", "2022-03-29",
		"2022-04-04", "2022-04-05",
	}
	for i, want := range wantFirst {
		if got := FormatDate(items[i].DueDate); got != want {
			t.Errorf("item %d due date = %s, want %s", i, got, want)
		}
	}
	if got := FormatDate(items[len(items)-1].DueDate); got != "2022-12-13" {
		t.Errorf("last due date = %s, want 2022-12-13", got)
	}

	// 8am Pacific is 15:00 UTC under daylight saving and 16:00 after the
	// fall back on November 6.
	for _, item := range items {
		want := "15:00"
		if !item.DueDate.Before(time.Date(2022, 11, 7, 0, 0, 0, 0, loc)) {
			want = "16:00"
		}
		if got := item.DueDateTime.Format("15:04"); got != want {
			t.Errorf("due %s at %s UTC, want %s", FormatDate(item.DueDate), got, want)
		}
		if item.DueTimeOfDay != 8 {
			t.Errorf("due time of day = %d, want 8", item.DueTimeOfDay)
		}
	}
}

func TestExpandFiltersOccurrencesBeforeEffective(t *testing.T) {
	loc := losAngeles(t)
	start, err := ParseDate("2022-03-12", loc)
	if err != nil {
		t.Fatal(err)
	}
	// Saturday 8am Pacific is 16:00 UTC; maintain later the same day.
	effective := time.Date(2022, 3, 12, 20, 0, 0, 0, time.UTC)

	items, err := Params{
		Start:          start,
		Effective:      effective,
		HasRepetition:  true,
		RepeatDayFlags: map[string]bool{"Saturday": true},
		TimeOfDay:      8,
		Location:       loc,
		Months:         1,
	}.Expand()
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected items")
	}
	if got := FormatDate(items[0].DueDate); got != "2022-03-19" {
		t.Fatalf("first due date = %s, want 2022-03-19 (start date already past due)", got)
	}
}

func TestExpandSingleOccurrence(t *testing.T) {
	loc := losAngeles(t)
	start, err := ParseDate("2022-03-12", loc)
	if err != nil {
		t.Fatal(err)
	}

	items, err := Params{
		Start:     start,
		Effective: time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC),
		TimeOfDay: 8,
		Location:  loc,
		Months:    9,
	}.Expand()
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expanded %d items, want 1", len(items))
	}
	if got := FormatDate(items[0].DueDate); got != "2022-03-12" {
		t.Fatalf("due date = %s, want 2022-03-12", got)
	}
	if got := FormatDateTime(items[0].DueDateTime); got != "2022-03-12T16:00:00Z" {
		t.Fatalf("due datetime = %s", got)
	}
}

func TestExpandWeekStepped(t *testing.T) {
	loc := losAngeles(t)
	start, err := ParseDate("2022-03-12", loc)
	if err != nil {
		t.Fatal(err)
	}
	effective := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)

	items, err := Params{
		Start:             start,
		Effective:         effective,
		Frequency:         Every2Weeks,
		DayOfWeek:         "Monday",
		TimeOfDay:         8,
		Reminder:          true,
		ReminderTimeOfDay: 8,
		Location:          loc,
		Months:            2,
	}.Expand()
	if err != nil {
		t.Fatalf("expand: %v", err)
	}

	want := []string{"2022-03-14", "2022-03-28", "2022-04-11", "2022-04-25", "2022-05-09"}
	if len(items) != len(want) {
		t.Fatalf("expanded %d items, want %d", len(items), len(want))
	}
	for i, w := range want {
		if got := FormatDate(items[i].DueDate); got != w {
			t.Errorf("item %d due date = %s, want %s", i, got, w)
		}
		if items[i].ReminderDateTime.IsZero() {
			t.Errorf("item %d missing reminder", i)
		}
		if !items[i].ReminderDateTime.Equal(items[i].DueDateTime) {
			t.Errorf("item %d reminder differs from due time", i)
		}
	}
}

func TestExpandErrors(t *testing.T) {
	loc := losAngeles(t)
	start, _ := ParseDate("2022-03-12", loc)
	base := Params{
		Start:     start,
		Effective: time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC),
		TimeOfDay: 8,
		Location:  loc,
		Months:    1,
	}

	noLocation := base
	noLocation.Location = nil
	if _, err := noLocation.Expand(); err == nil {
		t.Error("expected error for missing location")
	}

	badHour := base
	badHour.TimeOfDay = 24
	if _, err := badHour.Expand(); err == nil {
		t.Error("expected error for out of range hour")
	}

	badFrequency := base
	badFrequency.Frequency = "Twice a fortnight"
	badFrequency.DayOfWeek = "Monday"
	if _, err := badFrequency.Expand(); err == nil {
		t.Error("expected error for unknown frequency")
	}

	badDay := base
	badDay.Frequency = OnceAWeek
	badDay.DayOfWeek = "Caturday"
	if _, err := badDay.Expand(); err == nil {
		t.Error("expected error for unknown day of week")
	}
}
