// Package activity manages activities, their schedules, and the scheduled
// activity occurrences derived from them. Writes to activities and schedules
// cascade: schedules expand into future occurrences, activity updates refresh
// the data snapshots embedded in pending occurrences, and deletions tear the
// chain down.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/carehub/carehub/internal/domain/records"
	"github.com/carehub/carehub/internal/platform/docstore"
	"github.com/carehub/carehub/internal/platform/recurrence"
)

// Document types and semantic id fields.
const (
	TypeActivity          = "activity"
	ActivityID            = "activityId"
	TypeActivitySchedule  = "activitySchedule"
	ActivityScheduleID    = "activityScheduleId"
	TypeScheduledActivity = "scheduledActivity"
	ScheduledActivityID   = "scheduledActivityId"
)

// Schedule document fields.
const (
	fieldDate              = "date"
	fieldTimeOfDay         = "timeOfDay"
	fieldHasRepetition     = "hasRepetition"
	fieldRepeatDayFlags    = "repeatDayFlags"
	fieldHasReminder       = "hasReminder"
	fieldReminderTimeOfDay = "reminderTimeOfDay"
)

// Scheduled occurrence fields.
const (
	FieldCompleted    = "completed"
	FieldDueDate      = "dueDate"
	FieldDueDateTime  = "dueDateTime"
	FieldDueTimeOfDay = "dueTimeOfDay"
	FieldDataSnapshot = "dataSnapshot"

	fieldReminderDateTime = "reminderDateTime"
)

// Service implements the activity cascade. Occurrence expansion uses the
// configured location and horizon.
type Service struct {
	loc    *time.Location
	months int
	log    zerolog.Logger
	now    func() time.Time
}

// NewService returns a Service expanding schedules in loc over a horizon of
// the given number of months.
func NewService(loc *time.Location, months int, log zerolog.Logger) *Service {
	return &Service{loc: loc, months: months, log: log, now: time.Now}
}

func (s *Service) Activities(ctx context.Context, store *docstore.Store) ([]docstore.Document, error) {
	return store.GetSet(ctx, TypeActivity)
}

func (s *Service) Activity(ctx context.Context, store *docstore.Store, setID string) (docstore.Document, error) {
	return store.GetSetElement(ctx, TypeActivity, setID)
}

func (s *Service) PostActivity(ctx context.Context, store *docstore.Store, doc docstore.Document) (docstore.Document, error) {
	return store.PostSetElement(ctx, TypeActivity, ActivityID, doc)
}

// PutActivity writes a new activity revision and refreshes the data snapshots
// embedded in pending scheduled activities that reference it.
func (s *Service) PutActivity(ctx context.Context, store *docstore.Store, setID string, doc docstore.Document) (docstore.Document, error) {
	out, err := store.PutSetElement(ctx, TypeActivity, ActivityID, setID, doc)
	if err != nil {
		return nil, err
	}
	if err := s.RefreshSnapshots(ctx, store); err != nil {
		return nil, fmt.Errorf("refresh snapshots: %w", err)
	}
	return out, nil
}

// DeleteActivity tombstones the activity, then cascades to its schedules,
// which in turn cascade to their pending scheduled activities.
func (s *Service) DeleteActivity(ctx context.Context, store *docstore.Store, setID string, rev int) (docstore.Document, error) {
	out, err := store.DeleteSetElement(ctx, TypeActivity, setID, rev)
	if err != nil {
		return nil, err
	}

	schedules, err := s.ActivitySchedules(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("get schedules: %w", err)
	}
	for _, schedule := range schedules {
		if schedule[ActivityID] != setID {
			continue
		}
		if _, err := s.DeleteActivitySchedule(ctx, store, schedule.SetID(), schedule.Rev()); err != nil {
			return nil, fmt.Errorf("cascade schedule %q: %w", schedule.SetID(), err)
		}
	}
	return out, nil
}

func (s *Service) ActivitySchedules(ctx context.Context, store *docstore.Store) ([]docstore.Document, error) {
	return store.GetSet(ctx, TypeActivitySchedule)
}

func (s *Service) ActivitySchedule(ctx context.Context, store *docstore.Store, setID string) (docstore.Document, error) {
	return store.GetSetElement(ctx, TypeActivitySchedule, setID)
}

// PostActivitySchedule creates a schedule and expands its future occurrences.
// A fresh schedule has nothing live to delete, so only the create side of
// maintenance runs.
func (s *Service) PostActivitySchedule(ctx context.Context, store *docstore.Store, doc docstore.Document) (docstore.Document, error) {
	out, err := store.PostSetElement(ctx, TypeActivitySchedule, ActivityScheduleID, doc)
	if err != nil {
		return nil, err
	}
	if err := s.maintainPending(ctx, store, out.SetID(), out, false, false); err != nil {
		return nil, fmt.Errorf("maintain scheduled activities: %w", err)
	}
	return out, nil
}

// PutActivitySchedule writes a new schedule revision, deletes the pending
// occurrences of the previous revision, and expands the new ones.
func (s *Service) PutActivitySchedule(ctx context.Context, store *docstore.Store, setID string, doc docstore.Document) (docstore.Document, error) {
	out, err := store.PutSetElement(ctx, TypeActivitySchedule, ActivityScheduleID, setID, doc)
	if err != nil {
		return nil, err
	}
	if err := s.maintainPending(ctx, store, setID, out, true, false); err != nil {
		return nil, fmt.Errorf("maintain scheduled activities: %w", err)
	}
	return out, nil
}

// DeleteActivitySchedule tombstones the schedule and its pending occurrences.
func (s *Service) DeleteActivitySchedule(ctx context.Context, store *docstore.Store, setID string, rev int) (docstore.Document, error) {
	out, err := store.DeleteSetElement(ctx, TypeActivitySchedule, setID, rev)
	if err != nil {
		return nil, err
	}
	if err := s.deletePending(ctx, store, setID, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("delete pending scheduled activities: %w", err)
	}
	return out, nil
}

func (s *Service) ScheduledActivities(ctx context.Context, store *docstore.Store) ([]docstore.Document, error) {
	return store.GetSet(ctx, TypeScheduledActivity)
}

func (s *Service) ScheduledActivity(ctx context.Context, store *docstore.Store, setID string) (docstore.Document, error) {
	return store.GetSetElement(ctx, TypeScheduledActivity, setID)
}

// PutScheduledActivity writes a new occurrence revision, typically marking it
// completed. No cascade.
func (s *Service) PutScheduledActivity(ctx context.Context, store *docstore.Store, setID string, doc docstore.Document) (docstore.Document, error) {
	return store.PutSetElement(ctx, TypeScheduledActivity, ScheduledActivityID, setID, doc)
}

// maintainPending converges the scheduled activities of one schedule: the
// pending occurrences of earlier revisions are tombstoned (unless the
// schedule is brand new) and the occurrences of the given revision are
// created with a current data snapshot. With keepMatching set, delete and
// create entries sharing a due date are dropped in pairs first, so an
// unchanged schedule produces no writes and its occurrence ids stay stable.
func (s *Service) maintainPending(ctx context.Context, store *docstore.Store, scheduleID string, schedule docstore.Document, deleteExisting, keepMatching bool) error {
	maintenance := s.now().UTC()

	var toDelete []docstore.Document
	if deleteExisting {
		existing, err := s.ScheduledActivities(ctx, store)
		if err != nil {
			return fmt.Errorf("get scheduled activities: %w", err)
		}
		pending, err := Pending(existing, maintenance)
		if err != nil {
			return err
		}
		for _, doc := range pending {
			if doc[ActivityScheduleID] == scheduleID {
				toDelete = append(toDelete, doc)
			}
		}
	}

	items, err := s.expand(schedule, maintenance)
	if err != nil {
		return err
	}
	if keepMatching {
		toDelete, items = DropMatchedDueDates(toDelete, items)
	}

	for _, doc := range toDelete {
		if _, err := store.DeleteSetElement(ctx, TypeScheduledActivity, doc.SetID(), doc.Rev()); err != nil {
			return fmt.Errorf("delete scheduled activity %q: %w", doc.SetID(), err)
		}
	}
	if len(items) == 0 {
		return nil
	}

	snapshot, err := s.buildSnapshot(ctx, store, schedule)
	if err != nil {
		return err
	}

	for _, item := range items {
		doc := scheduledItemDocument(item)
		doc[ActivityScheduleID] = scheduleID
		doc[FieldDataSnapshot] = snapshot
		if _, err := store.PostSetElement(ctx, TypeScheduledActivity, ScheduledActivityID, doc); err != nil {
			return fmt.Errorf("post scheduled activity: %w", err)
		}
	}

	s.log.Debug().
		Str("activity_schedule_id", scheduleID).
		Int("deleted", len(toDelete)).
		Int("created", len(items)).
		Msg("maintained scheduled activities")
	return nil
}

// deletePending tombstones the pending occurrences of one schedule.
func (s *Service) deletePending(ctx context.Context, store *docstore.Store, scheduleID string, maintenance time.Time) error {
	existing, err := s.ScheduledActivities(ctx, store)
	if err != nil {
		return fmt.Errorf("get scheduled activities: %w", err)
	}
	pending, err := Pending(existing, maintenance)
	if err != nil {
		return err
	}
	for _, doc := range pending {
		if doc[ActivityScheduleID] != scheduleID {
			continue
		}
		if _, err := store.DeleteSetElement(ctx, TypeScheduledActivity, doc.SetID(), doc.Rev()); err != nil {
			return fmt.Errorf("delete scheduled activity %q: %w", doc.SetID(), err)
		}
	}
	return nil
}

// expand computes the occurrence items for one schedule revision.
func (s *Service) expand(schedule docstore.Document, maintenance time.Time) ([]recurrence.Item, error) {
	dateStr, _ := schedule[fieldDate].(string)
	start, err := recurrence.ParseDate(dateStr, s.loc)
	if err != nil {
		return nil, err
	}
	timeOfDay, ok := intField(schedule, fieldTimeOfDay)
	if !ok {
		return nil, fmt.Errorf("schedule %q is not an integer", fieldTimeOfDay)
	}

	params := recurrence.Params{
		Start:     start,
		Effective: maintenance,
		TimeOfDay: timeOfDay,
		Location:  s.loc,
		Months:    s.months,
	}
	if hasRepetition, _ := schedule[fieldHasRepetition].(bool); hasRepetition {
		params.HasRepetition = true
		params.RepeatDayFlags = dayFlags(schedule[fieldRepeatDayFlags])
	}
	if hasReminder, _ := schedule[fieldHasReminder].(bool); hasReminder {
		reminder, ok := intField(schedule, fieldReminderTimeOfDay)
		if !ok {
			return nil, fmt.Errorf("schedule %q is not an integer", fieldReminderTimeOfDay)
		}
		params.Reminder = true
		params.ReminderTimeOfDay = reminder
	}
	return params.Expand()
}

// buildSnapshot captures the schedule, its activity, and the activity's value
// as they are right now.
func (s *Service) buildSnapshot(ctx context.Context, store *docstore.Store, schedule docstore.Document) (docstore.Document, error) {
	snapshot := docstore.Document{TypeActivitySchedule: schedule.Clone()}

	activityID, _ := schedule[ActivityID].(string)
	if activityID == "" {
		return snapshot, nil
	}
	act, err := s.Activity(ctx, store, activityID)
	if docstore.IsNotFound(err) {
		return snapshot, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot activity %q: %w", activityID, err)
	}
	snapshot[TypeActivity] = act

	valueID, _ := act[records.ValueID].(string)
	if valueID == "" {
		return snapshot, nil
	}
	val, err := records.Value(ctx, store, valueID)
	if docstore.IsNotFound(err) {
		return snapshot, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot value %q: %w", valueID, err)
	}
	snapshot[records.TypeValue] = val
	return snapshot, nil
}

// ExtendSchedules re-runs maintenance on every repeating schedule, expanding
// its occurrences over a fresh horizon. Pending occurrences whose due date
// survives the re-expansion are left in place, so a run over unchanged
// schedules writes nothing. Intended for periodic batch runs; one-time
// schedules never regrow.
func (s *Service) ExtendSchedules(ctx context.Context, store *docstore.Store) (int, error) {
	schedules, err := s.ActivitySchedules(ctx, store)
	if err != nil {
		return 0, fmt.Errorf("get schedules: %w", err)
	}

	extended := 0
	for _, schedule := range schedules {
		if hasRepetition, _ := schedule[fieldHasRepetition].(bool); !hasRepetition {
			continue
		}
		if err := s.maintainPending(ctx, store, schedule.SetID(), schedule, true, true); err != nil {
			return extended, fmt.Errorf("extend schedule %q: %w", schedule.SetID(), err)
		}
		extended++
	}
	return extended, nil
}

// RefreshSnapshots rebuilds the data snapshot of every pending scheduled
// activity from the current schedule, activity, and value documents.
func (s *Service) RefreshSnapshots(ctx context.Context, store *docstore.Store) error {
	existing, err := s.ScheduledActivities(ctx, store)
	if err != nil {
		return fmt.Errorf("get scheduled activities: %w", err)
	}

	pending, err := Pending(existing, s.now().UTC())
	if err != nil {
		return err
	}

	refreshed := 0
	for _, doc := range pending {
		scheduleID, _ := doc[ActivityScheduleID].(string)
		if scheduleID == "" {
			continue
		}
		schedule, err := s.ActivitySchedule(ctx, store, scheduleID)
		if docstore.IsNotFound(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("get schedule %q: %w", scheduleID, err)
		}
		snapshot, err := s.buildSnapshot(ctx, store, schedule)
		if err != nil {
			return err
		}

		updated := doc.Clone()
		delete(updated, docstore.FieldID)
		updated[FieldDataSnapshot] = snapshot
		if _, err := s.PutScheduledActivity(ctx, store, doc.SetID(), updated); err != nil {
			return fmt.Errorf("refresh scheduled activity %q: %w", doc.SetID(), err)
		}
		refreshed++
	}

	if refreshed > 0 {
		s.log.Debug().Int("refreshed", refreshed).Msg("refreshed scheduled activity snapshots")
	}
	return nil
}

// Pending filters occurrences that are incomplete and due at or after the
// given instant. An incomplete occurrence whose due datetime does not parse
// is an error: skipping it would leave the document immune to maintenance.
func Pending(docs []docstore.Document, after time.Time) ([]docstore.Document, error) {
	var out []docstore.Document
	for _, doc := range docs {
		if completed, _ := doc[FieldCompleted].(bool); completed {
			continue
		}
		dueStr, _ := doc[FieldDueDateTime].(string)
		due, err := recurrence.ParseDateTime(dueStr)
		if err != nil {
			return nil, fmt.Errorf("occurrence %q has invalid %s %q: %w", doc.SetID(), FieldDueDateTime, dueStr, err)
		}
		if due.Before(after) {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// DropMatchedDueDates pairs pending occurrences slated for deletion with
// expanded items sharing the same due date and drops both sides of each
// pair. Each occurrence cancels at most one item.
func DropMatchedDueDates(toDelete []docstore.Document, items []recurrence.Item) ([]docstore.Document, []recurrence.Item) {
	available := make(map[string]int, len(items))
	for _, item := range items {
		available[recurrence.FormatDate(item.DueDate)]++
	}

	matched := make(map[string]int, len(available))
	var keptDocs []docstore.Document
	for _, doc := range toDelete {
		due, _ := doc[FieldDueDate].(string)
		if matched[due] < available[due] {
			matched[due]++
			continue
		}
		keptDocs = append(keptDocs, doc)
	}

	var keptItems []recurrence.Item
	for _, item := range items {
		due := recurrence.FormatDate(item.DueDate)
		if matched[due] > 0 {
			matched[due]--
			continue
		}
		keptItems = append(keptItems, item)
	}
	return keptDocs, keptItems
}

// scheduledItemDocument maps one occurrence to its document fields.
func scheduledItemDocument(item recurrence.Item) docstore.Document {
	doc := docstore.Document{
		FieldCompleted:    false,
		FieldDueDate:      recurrence.FormatDate(item.DueDate),
		FieldDueDateTime:  recurrence.FormatDateTime(item.DueDateTime),
		FieldDueTimeOfDay: item.DueTimeOfDay,
	}
	if !item.ReminderDateTime.IsZero() {
		doc[fieldReminderDateTime] = recurrence.FormatDateTime(item.ReminderDateTime)
		doc[fieldReminderTimeOfDay] = item.ReminderTimeOfDay
	}
	return doc
}

func intField(doc docstore.Document, key string) (int, bool) {
	switch v := doc[key].(type) {
	case int:
		return v, true
	case float64:
		n := int(v)
		if float64(n) == v {
			return n, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func dayFlags(v any) map[string]bool {
	flags := make(map[string]bool)
	m, _ := v.(map[string]any)
	for day, raw := range m {
		if b, ok := raw.(bool); ok {
			flags[day] = b
		}
	}
	return flags
}
