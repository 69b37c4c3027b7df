package registry

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carehub/carehub/internal/domain/activity"
	"github.com/carehub/carehub/internal/domain/assessment"
	"github.com/carehub/carehub/internal/platform/docstore"
	"github.com/carehub/carehub/internal/platform/recurrence"
)

func TestExtendSchedules(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	actSvc := activity.NewService(loc, 3, zerolog.Nop())
	asmtSvc := assessment.NewService(loc, 3, zerolog.Nop())

	identity, err := reg.CreatePatient(ctx, "Persephone", "MRN-1")
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	patientID := identity[PatientID].(string)
	store := reg.PatientStore(patientID)

	start := time.Now().In(loc).AddDate(0, -1, 0)
	schedule := docstore.Document{
		"date":          recurrence.FormatDate(start),
		"timeOfDay":     8,
		"hasRepetition": true,
		"repeatDayFlags": map[string]any{
			"Monday": true,
		},
	}
	if _, err := actSvc.PostActivitySchedule(ctx, store, schedule); err != nil {
		t.Fatalf("post schedule: %v", err)
	}

	// A one-time schedule in the past. Extension must not regrow it.
	once := docstore.Document{
		"date":      recurrence.FormatDate(start),
		"timeOfDay": 8,
	}
	if _, err := actSvc.PostActivitySchedule(ctx, store, once); err != nil {
		t.Fatalf("post one-time schedule: %v", err)
	}

	if err := reg.ExtendSchedules(ctx, actSvc, asmtSvc); err != nil {
		t.Fatalf("extend schedules: %v", err)
	}

	scheduled, err := actSvc.ScheduledActivities(ctx, store)
	if err != nil {
		t.Fatalf("get scheduled activities: %v", err)
	}
	pending, err := activity.Pending(scheduled, time.Now().UTC())
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) == 0 {
		t.Fatal("no pending occurrences after extension")
	}
	for _, doc := range pending {
		dueStr, _ := doc[activity.FieldDueDate].(string)
		due, err := recurrence.ParseDate(dueStr, loc)
		if err != nil {
			t.Fatalf("parse due date %q: %v", dueStr, err)
		}
		if due.Weekday() != time.Monday {
			t.Fatalf("pending occurrence on %v, want Monday", due.Weekday())
		}
	}
}
