package activity

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carehub/carehub/internal/domain/records"
	"github.com/carehub/carehub/internal/platform/docstore"
	"github.com/carehub/carehub/internal/platform/recurrence"
)

var maintenanceInstant = time.Date(2022, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *docstore.Store) {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	svc := NewService(loc, 9, zerolog.Nop())
	svc.now = func() time.Time { return maintenanceInstant }

	db := docstore.NewMemDatabase()
	coll, err := db.CreateCollection(context.Background(), "patient_test")
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	return svc, docstore.NewStore(coll)
}

func weeklySchedule(activityID string) docstore.Document {
	return docstore.Document{
		ActivityID:      activityID,
		"date":          "2022-03-12",
		"timeOfDay":     8,
		"hasRepetition": true,
		"hasReminder":   false,
		"repeatDayFlags": map[string]any{
			"Monday":    true,
			"Tuesday":   true,
			"Wednesday": false,
			"Thursday":  false,
			"Friday":    false,
			"Saturday":  false,
			"Sunday":    false,
		},
	}
}

// postFixture creates a value, an activity referencing it, and a weekly
// Monday/Tuesday schedule referencing the activity.
func postFixture(t *testing.T, svc *Service, store *docstore.Store) (value, act, schedule docstore.Document) {
	t.Helper()
	ctx := context.Background()

	value, err := records.PostValue(ctx, store, docstore.Document{"name": "health"})
	if err != nil {
		t.Fatalf("post value: %v", err)
	}
	act, err = svc.PostActivity(ctx, store, docstore.Document{
		"name":          "Walk",
		records.ValueID: value.SetID(),
	})
	if err != nil {
		t.Fatalf("post activity: %v", err)
	}
	schedule, err = svc.PostActivitySchedule(ctx, store, weeklySchedule(act.SetID()))
	if err != nil {
		t.Fatalf("post schedule: %v", err)
	}
	return value, act, schedule
}

func TestPostActivityScheduleExpandsOccurrences(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	_, _, schedule := postFixture(t, svc, store)

	scheduled, err := svc.ScheduledActivities(ctx, store)
	if err != nil {
		t.Fatalf("get scheduled: %v", err)
	}
	if len(scheduled) != 80 {
		t.Fatalf("scheduled %d occurrences, want 80", len(scheduled))
	}

	byDueDate := make(map[string]docstore.Document)
	for _, doc := range scheduled {
		if doc[ActivityScheduleID] != schedule.SetID() {
			t.Fatalf("occurrence bound to %v, want %q", doc[ActivityScheduleID], schedule.SetID())
		}
		if completed, _ := doc[FieldCompleted].(bool); completed {
			t.Fatal("new occurrence marked completed")
		}
		byDueDate[doc[FieldDueDate].(string)] = doc
	}

	for _, want := range []string{"2022-03-14", "2022-03-15", "2022-03-21", "2022-03-22", "2022-12-12", "2022-12-13"} {
		if _, ok := byDueDate[want]; !ok {
			t.Errorf("missing occurrence on %s", want)
		}
	}
	if _, ok := byDueDate["2022-03-12"]; ok {
		t.Error("unexpected occurrence on the Saturday start date")
	}

	// 8am Pacific: 15:00 UTC in daylight saving, 16:00 after the fall back.
	if got := byDueDate["2022-03-14"][FieldDueDateTime]; got != "2022-03-14T15:00:00Z" {
		t.Errorf("due datetime = %v", got)
	}
	if got := byDueDate["2022-12-12"][FieldDueDateTime]; got != "2022-12-12T16:00:00Z" {
		t.Errorf("december due datetime = %v", got)
	}
}

func TestScheduledActivitySnapshot(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	value, act, schedule := postFixture(t, svc, store)

	scheduled, err := svc.ScheduledActivities(ctx, store)
	if err != nil {
		t.Fatalf("get scheduled: %v", err)
	}
	snapshot, ok := scheduled[0][FieldDataSnapshot].(docstore.Document)
	if !ok {
		t.Fatalf("snapshot has type %T", scheduled[0][FieldDataSnapshot])
	}
	snapSchedule := snapshot[TypeActivitySchedule].(docstore.Document)
	if snapSchedule.SetID() != schedule.SetID() {
		t.Errorf("snapshot schedule = %q", snapSchedule.SetID())
	}
	snapActivity := snapshot[TypeActivity].(docstore.Document)
	if snapActivity.SetID() != act.SetID() {
		t.Errorf("snapshot activity = %q, want %q", snapActivity.SetID(), act.SetID())
	}
	if snapActivity["name"] != "Walk" {
		t.Errorf("snapshot activity name = %v", snapActivity["name"])
	}
	snapValue := snapshot[records.TypeValue].(docstore.Document)
	if snapValue.SetID() != value.SetID() {
		t.Errorf("snapshot value = %q", snapValue.SetID())
	}
}

func TestPutActivityScheduleReplacesPending(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	_, _, schedule := postFixture(t, svc, store)

	// Complete one occurrence; maintenance must leave it alone.
	scheduled, err := svc.ScheduledActivities(ctx, store)
	if err != nil {
		t.Fatalf("get scheduled: %v", err)
	}
	first := scheduled[0]
	completed := first.Clone()
	delete(completed, docstore.FieldID)
	completed[FieldCompleted] = true
	completed, err = svc.PutScheduledActivity(ctx, store, first.SetID(), completed)
	if err != nil {
		t.Fatalf("complete occurrence: %v", err)
	}

	// Move the schedule to Wednesdays only.
	updated := schedule.Clone()
	delete(updated, docstore.FieldID)
	updated["repeatDayFlags"] = map[string]any{
		"Monday": false, "Tuesday": false, "Wednesday": true,
		"Thursday": false, "Friday": false, "Saturday": false, "Sunday": false,
	}
	if _, err := svc.PutActivitySchedule(ctx, store, schedule.SetID(), updated); err != nil {
		t.Fatalf("put schedule: %v", err)
	}

	scheduled, err = svc.ScheduledActivities(ctx, store)
	if err != nil {
		t.Fatalf("get scheduled: %v", err)
	}

	var wednesdays, kept int
	for _, doc := range scheduled {
		if doc.SetID() == completed.SetID() {
			kept++
			continue
		}
		due, err := time.Parse("2006-01-02", doc[FieldDueDate].(string))
		if err != nil {
			t.Fatalf("parse due date: %v", err)
		}
		if due.Weekday() != time.Wednesday {
			t.Errorf("leftover occurrence on %s", doc[FieldDueDate])
		}
		wednesdays++
	}
	if kept != 1 {
		t.Fatalf("completed occurrence survived %d times, want 1", kept)
	}
	if wednesdays == 0 {
		t.Fatal("no wednesday occurrences created")
	}
}

func TestDeleteActivityScheduleRemovesPending(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	_, _, schedule := postFixture(t, svc, store)

	if _, err := svc.DeleteActivitySchedule(ctx, store, schedule.SetID(), schedule.Rev()); err != nil {
		t.Fatalf("delete schedule: %v", err)
	}

	scheduled, err := svc.ScheduledActivities(ctx, store)
	if err != nil {
		t.Fatalf("get scheduled: %v", err)
	}
	if len(scheduled) != 0 {
		t.Fatalf("%d occurrences survive schedule deletion", len(scheduled))
	}
	if _, err := svc.ActivitySchedule(ctx, store, schedule.SetID()); !docstore.IsNotFound(err) {
		t.Fatalf("expected schedule to be gone, got %v", err)
	}
}

func TestDeleteActivityCascades(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	_, act, schedule := postFixture(t, svc, store)

	if _, err := svc.DeleteActivity(ctx, store, act.SetID(), act.Rev()); err != nil {
		t.Fatalf("delete activity: %v", err)
	}

	if _, err := svc.Activity(ctx, store, act.SetID()); !docstore.IsNotFound(err) {
		t.Fatalf("activity still present: %v", err)
	}
	if _, err := svc.ActivitySchedule(ctx, store, schedule.SetID()); !docstore.IsNotFound(err) {
		t.Fatalf("schedule still present: %v", err)
	}
	scheduled, err := svc.ScheduledActivities(ctx, store)
	if err != nil {
		t.Fatalf("get scheduled: %v", err)
	}
	if len(scheduled) != 0 {
		t.Fatalf("%d occurrences survive activity deletion", len(scheduled))
	}
}

func TestPutActivityRefreshesSnapshots(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	_, act, _ := postFixture(t, svc, store)

	renamed := act.Clone()
	delete(renamed, docstore.FieldID)
	renamed["name"] = "Walk the dog"
	if _, err := svc.PutActivity(ctx, store, act.SetID(), renamed); err != nil {
		t.Fatalf("put activity: %v", err)
	}

	scheduled, err := svc.ScheduledActivities(ctx, store)
	if err != nil {
		t.Fatalf("get scheduled: %v", err)
	}
	for _, doc := range scheduled {
		snapshot := doc[FieldDataSnapshot].(docstore.Document)
		snapActivity := snapshot[TypeActivity].(docstore.Document)
		if snapActivity["name"] != "Walk the dog" {
			t.Fatalf("snapshot activity name = %v, want refreshed", snapActivity["name"])
		}
		if doc.Rev() != 2 {
			t.Fatalf("occurrence rev = %d, want 2 after refresh", doc.Rev())
		}
	}
}

func TestPendingSelection(t *testing.T) {
	after := maintenanceInstant
	docs := []docstore.Document{
		{FieldDueDateTime: "2022-03-14T15:00:00Z", FieldCompleted: false}, // due later
		{FieldDueDateTime: "2022-03-14T15:00:00Z", FieldCompleted: true},  // completed
		{FieldDueDateTime: "2022-03-07T15:00:00Z", FieldCompleted: false}, // already past
		{FieldDueDateTime: "2022-03-14T10:00:00Z", FieldCompleted: false}, // due exactly now
	}
	pending, err := Pending(docs, after)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
}

func TestPendingRejectsMalformedDueDateTime(t *testing.T) {
	docs := []docstore.Document{
		{docstore.FieldSetID: "ok1", FieldDueDateTime: "2022-03-14T15:00:00Z", FieldCompleted: false},
		{docstore.FieldSetID: "bad1", FieldDueDateTime: "not-a-datetime", FieldCompleted: false},
	}
	if _, err := Pending(docs, maintenanceInstant); err == nil {
		t.Fatal("expected error for malformed dueDateTime")
	}

	// Completed occurrences are never due again, malformed or not.
	docs[1][FieldCompleted] = true
	pending, err := Pending(docs, maintenanceInstant)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
}

func TestExtendSchedulesUnchangedWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	postFixture(t, svc, store)

	before, err := svc.ScheduledActivities(ctx, store)
	if err != nil {
		t.Fatalf("get scheduled: %v", err)
	}
	revs := make(map[string]int, len(before))
	for _, doc := range before {
		revs[doc.SetID()] = doc.Rev()
	}

	extended, err := svc.ExtendSchedules(ctx, store)
	if err != nil {
		t.Fatalf("extend schedules: %v", err)
	}
	if extended != 1 {
		t.Fatalf("extended %d schedules, want 1", extended)
	}

	after, err := svc.ScheduledActivities(ctx, store)
	if err != nil {
		t.Fatalf("get scheduled: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("occurrences %d -> %d across an unchanged run", len(before), len(after))
	}
	for _, doc := range after {
		rev, ok := revs[doc.SetID()]
		if !ok {
			t.Fatalf("occurrence %q replaced with a fresh set id", doc.SetID())
		}
		if doc.Rev() != rev {
			t.Errorf("occurrence %q rewritten to rev %d", doc.SetID(), doc.Rev())
		}
	}

	history, err := store.History(ctx, TypeScheduledActivity, after[0].SetID())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("occurrence history = %d revisions, want 1", len(history))
	}
}

func TestExtendSchedulesGrowsHorizon(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	postFixture(t, svc, store)

	before, err := svc.ScheduledActivities(ctx, store)
	if err != nil {
		t.Fatalf("get scheduled: %v", err)
	}
	revs := make(map[string]int, len(before))
	for _, doc := range before {
		revs[doc.SetID()] = doc.Rev()
	}

	svc.now = func() time.Time { return maintenanceInstant.AddDate(0, 2, 0) }
	if _, err := svc.ExtendSchedules(ctx, store); err != nil {
		t.Fatalf("extend schedules: %v", err)
	}

	after, err := svc.ScheduledActivities(ctx, store)
	if err != nil {
		t.Fatalf("get scheduled: %v", err)
	}
	if len(after) <= len(before) {
		t.Fatalf("horizon did not grow: %d -> %d occurrences", len(before), len(after))
	}
	for _, doc := range after {
		if rev, ok := revs[doc.SetID()]; ok && doc.Rev() != rev {
			t.Errorf("existing occurrence %q rewritten to rev %d", doc.SetID(), doc.Rev())
		}
	}
}

func TestDropMatchedDueDates(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2022, 3, d, 0, 0, 0, 0, time.UTC) }
	toDelete := []docstore.Document{
		{docstore.FieldSetID: "a", FieldDueDate: "2022-03-14"},
		{docstore.FieldSetID: "b", FieldDueDate: "2022-03-15"},
	}
	items := []recurrence.Item{
		{DueDate: day(15)},
		{DueDate: day(16)},
	}

	keptDocs, keptItems := DropMatchedDueDates(toDelete, items)
	if len(keptDocs) != 1 || keptDocs[0].SetID() != "a" {
		t.Fatalf("kept deletes = %v, want only the unmatched occurrence", keptDocs)
	}
	if len(keptItems) != 1 || !keptItems[0].DueDate.Equal(day(16)) {
		t.Fatalf("kept items = %v, want only the unmatched date", keptItems)
	}
}
