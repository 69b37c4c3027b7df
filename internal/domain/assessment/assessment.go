// Package assessment manages assigned assessments and the scheduled
// assessment occurrences derived from them. Assessments are a fixed set
// seeded per patient; writing one converges its pending occurrences to the
// assigned cadence.
package assessment

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/carehub/carehub/internal/domain/activity"
	"github.com/carehub/carehub/internal/platform/docstore"
	"github.com/carehub/carehub/internal/platform/recurrence"
)

// Document types and semantic id fields.
const (
	TypeAssessment          = "assessment"
	AssessmentID            = "assessmentId"
	TypeScheduledAssessment = "scheduledAssessment"
	ScheduledAssessmentID   = "scheduledAssessmentId"
)

// Assessment document fields.
const (
	fieldAssigned         = "assigned"
	fieldAssignedDateTime = "assignedDateTime"
	fieldFrequency        = "frequency"
	fieldDayOfWeek        = "dayOfWeek"
)

// Assigned assessments are due at 8am with an 8am reminder.
const assessmentTimeOfDay = 8

// Service maintains scheduled assessments.
type Service struct {
	loc    *time.Location
	months int
	log    zerolog.Logger
	now    func() time.Time
}

// NewService returns a Service expanding assessment cadences in loc over a
// horizon of the given number of months.
func NewService(loc *time.Location, months int, log zerolog.Logger) *Service {
	return &Service{loc: loc, months: months, log: log, now: time.Now}
}

func (s *Service) Assessments(ctx context.Context, store *docstore.Store) ([]docstore.Document, error) {
	return store.GetSet(ctx, TypeAssessment)
}

func (s *Service) Assessment(ctx context.Context, store *docstore.Store, setID string) (docstore.Document, error) {
	return store.GetSetElement(ctx, TypeAssessment, setID)
}

// PutAssessment writes a new assessment revision and converges its pending
// scheduled assessments: pending occurrences are tombstoned, and new ones are
// expanded when the assessment is assigned.
func (s *Service) PutAssessment(ctx context.Context, store *docstore.Store, setID string, doc docstore.Document) (docstore.Document, error) {
	out, err := store.PutSetElement(ctx, TypeAssessment, AssessmentID, setID, doc)
	if err != nil {
		return nil, err
	}
	if err := s.maintainPending(ctx, store, setID, out, false); err != nil {
		return nil, fmt.Errorf("maintain scheduled assessments: %w", err)
	}
	return out, nil
}

func (s *Service) ScheduledAssessments(ctx context.Context, store *docstore.Store) ([]docstore.Document, error) {
	return store.GetSet(ctx, TypeScheduledAssessment)
}

func (s *Service) ScheduledAssessment(ctx context.Context, store *docstore.Store, setID string) (docstore.Document, error) {
	return store.GetSetElement(ctx, TypeScheduledAssessment, setID)
}

// PutScheduledAssessment writes a new occurrence revision, typically
// recording submitted scores or completion. No cascade.
func (s *Service) PutScheduledAssessment(ctx context.Context, store *docstore.Store, setID string, doc docstore.Document) (docstore.Document, error) {
	return store.PutSetElement(ctx, TypeScheduledAssessment, ScheduledAssessmentID, setID, doc)
}

// maintainPending converges the scheduled assessments of one assessment.
// With keepMatching set, delete and create entries sharing a due date are
// dropped in pairs, so an unchanged assessment produces no writes.
func (s *Service) maintainPending(ctx context.Context, store *docstore.Store, assessmentID string, assessment docstore.Document, keepMatching bool) error {
	maintenance := s.now().UTC()

	existing, err := s.ScheduledAssessments(ctx, store)
	if err != nil {
		return fmt.Errorf("get scheduled assessments: %w", err)
	}
	pending, err := activity.Pending(existing, maintenance)
	if err != nil {
		return err
	}
	var toDelete []docstore.Document
	for _, doc := range pending {
		if doc[AssessmentID] == assessmentID {
			toDelete = append(toDelete, doc)
		}
	}

	items, err := s.expand(assessment, maintenance)
	if err != nil {
		return err
	}
	if keepMatching {
		toDelete, items = activity.DropMatchedDueDates(toDelete, items)
	}

	for _, doc := range toDelete {
		if _, err := store.DeleteSetElement(ctx, TypeScheduledAssessment, doc.SetID(), doc.Rev()); err != nil {
			return fmt.Errorf("delete scheduled assessment %q: %w", doc.SetID(), err)
		}
	}
	for _, item := range items {
		doc := docstore.Document{
			activity.FieldCompleted:    false,
			activity.FieldDueDate:      recurrence.FormatDate(item.DueDate),
			activity.FieldDueDateTime:  recurrence.FormatDateTime(item.DueDateTime),
			activity.FieldDueTimeOfDay: item.DueTimeOfDay,
			"reminderDateTime":         recurrence.FormatDateTime(item.ReminderDateTime),
			"reminderTimeOfDay":        item.ReminderTimeOfDay,
			AssessmentID:               assessmentID,
		}
		if _, err := store.PostSetElement(ctx, TypeScheduledAssessment, ScheduledAssessmentID, doc); err != nil {
			return fmt.Errorf("post scheduled assessment: %w", err)
		}
	}

	s.log.Debug().
		Str("assessment_id", assessmentID).
		Int("deleted", len(toDelete)).
		Int("created", len(items)).
		Msg("maintained scheduled assessments")
	return nil
}

// ExtendSchedules re-runs maintenance on every assigned assessment, expanding
// its occurrences over a fresh horizon. Pending occurrences whose due date
// survives the re-expansion are left in place, so a run over unchanged
// assessments writes nothing.
func (s *Service) ExtendSchedules(ctx context.Context, store *docstore.Store) (int, error) {
	assessments, err := s.Assessments(ctx, store)
	if err != nil {
		return 0, fmt.Errorf("get assessments: %w", err)
	}

	extended := 0
	for _, assessment := range assessments {
		if assigned, _ := assessment[fieldAssigned].(bool); !assigned {
			continue
		}
		if err := s.maintainPending(ctx, store, assessment.SetID(), assessment, true); err != nil {
			return extended, fmt.Errorf("extend assessment %q: %w", assessment.SetID(), err)
		}
		extended++
	}
	return extended, nil
}

// expand computes occurrences for an assigned assessment. An unassigned
// assessment expands to nothing.
func (s *Service) expand(assessment docstore.Document, maintenance time.Time) ([]recurrence.Item, error) {
	if assigned, _ := assessment[fieldAssigned].(bool); !assigned {
		return nil, nil
	}

	assignedStr, _ := assessment[fieldAssignedDateTime].(string)
	assignedAt, err := recurrence.ParseDateTime(assignedStr)
	if err != nil {
		return nil, err
	}
	frequency, _ := assessment[fieldFrequency].(string)
	dayOfWeek, _ := assessment[fieldDayOfWeek].(string)

	return recurrence.Params{
		Start:             assignedAt,
		Effective:         maintenance,
		Frequency:         frequency,
		DayOfWeek:         dayOfWeek,
		TimeOfDay:         assessmentTimeOfDay,
		Reminder:          true,
		ReminderTimeOfDay: assessmentTimeOfDay,
		Location:          s.loc,
		Months:            s.months,
	}.Expand()
}
