// Package records provides typed access to the plain patient record
// documents: profile singletons and the simple document sets that carry no
// cascade behavior.
package records

import (
	"context"

	"github.com/carehub/carehub/internal/platform/docstore"
)

// Singleton document types.
const (
	TypePatientProfile  = "patientProfile"
	TypeClinicalHistory = "clinicalHistory"
	TypeSafetyPlan      = "safetyPlan"
	TypeValuesInventory = "valuesInventory"
)

// Set document types and their semantic id fields.
const (
	TypeValue         = "value"
	ValueID           = "valueId"
	TypeCaseReview    = "caseReview"
	CaseReviewID      = "caseReviewId"
	TypeSession       = "session"
	SessionID         = "sessionId"
	TypeMoodLog       = "moodLog"
	MoodLogID         = "moodLogId"
	TypeActivityLog   = "activityLog"
	ActivityLogID     = "activityLogId"
	TypeAssessmentLog = "assessmentLog"
	AssessmentLogID   = "assessmentLogId"
)

// SingletonTypes lists every singleton document type in this package.
func SingletonTypes() []string {
	return []string{TypePatientProfile, TypeClinicalHistory, TypeSafetyPlan, TypeValuesInventory}
}

// SetTypes lists every set document type in this package.
func SetTypes() []string {
	return []string{TypeValue, TypeCaseReview, TypeSession, TypeMoodLog, TypeActivityLog, TypeAssessmentLog}
}

func Profile(ctx context.Context, s *docstore.Store) (docstore.Document, error) {
	return s.GetSingleton(ctx, TypePatientProfile)
}

func PutProfile(ctx context.Context, s *docstore.Store, doc docstore.Document) (docstore.Document, error) {
	return s.PutSingleton(ctx, TypePatientProfile, doc)
}

func ClinicalHistory(ctx context.Context, s *docstore.Store) (docstore.Document, error) {
	return s.GetSingleton(ctx, TypeClinicalHistory)
}

func PutClinicalHistory(ctx context.Context, s *docstore.Store, doc docstore.Document) (docstore.Document, error) {
	return s.PutSingleton(ctx, TypeClinicalHistory, doc)
}

func SafetyPlan(ctx context.Context, s *docstore.Store) (docstore.Document, error) {
	return s.GetSingleton(ctx, TypeSafetyPlan)
}

func PutSafetyPlan(ctx context.Context, s *docstore.Store, doc docstore.Document) (docstore.Document, error) {
	return s.PutSingleton(ctx, TypeSafetyPlan, doc)
}

func ValuesInventory(ctx context.Context, s *docstore.Store) (docstore.Document, error) {
	return s.GetSingleton(ctx, TypeValuesInventory)
}

func PutValuesInventory(ctx context.Context, s *docstore.Store, doc docstore.Document) (docstore.Document, error) {
	return s.PutSingleton(ctx, TypeValuesInventory, doc)
}

func Values(ctx context.Context, s *docstore.Store) ([]docstore.Document, error) {
	return s.GetSet(ctx, TypeValue)
}

func Value(ctx context.Context, s *docstore.Store, setID string) (docstore.Document, error) {
	return s.GetSetElement(ctx, TypeValue, setID)
}

func PostValue(ctx context.Context, s *docstore.Store, doc docstore.Document) (docstore.Document, error) {
	return s.PostSetElement(ctx, TypeValue, ValueID, doc)
}

func PutValue(ctx context.Context, s *docstore.Store, setID string, doc docstore.Document) (docstore.Document, error) {
	return s.PutSetElement(ctx, TypeValue, ValueID, setID, doc)
}

func DeleteValue(ctx context.Context, s *docstore.Store, setID string, rev int) (docstore.Document, error) {
	return s.DeleteSetElement(ctx, TypeValue, setID, rev)
}

func CaseReviews(ctx context.Context, s *docstore.Store) ([]docstore.Document, error) {
	return s.GetSet(ctx, TypeCaseReview)
}

func CaseReview(ctx context.Context, s *docstore.Store, setID string) (docstore.Document, error) {
	return s.GetSetElement(ctx, TypeCaseReview, setID)
}

func PostCaseReview(ctx context.Context, s *docstore.Store, doc docstore.Document) (docstore.Document, error) {
	return s.PostSetElement(ctx, TypeCaseReview, CaseReviewID, doc)
}

func PutCaseReview(ctx context.Context, s *docstore.Store, setID string, doc docstore.Document) (docstore.Document, error) {
	return s.PutSetElement(ctx, TypeCaseReview, CaseReviewID, setID, doc)
}

func Sessions(ctx context.Context, s *docstore.Store) ([]docstore.Document, error) {
	return s.GetSet(ctx, TypeSession)
}

func Session(ctx context.Context, s *docstore.Store, setID string) (docstore.Document, error) {
	return s.GetSetElement(ctx, TypeSession, setID)
}

func PostSession(ctx context.Context, s *docstore.Store, doc docstore.Document) (docstore.Document, error) {
	return s.PostSetElement(ctx, TypeSession, SessionID, doc)
}

func PutSession(ctx context.Context, s *docstore.Store, setID string, doc docstore.Document) (docstore.Document, error) {
	return s.PutSetElement(ctx, TypeSession, SessionID, setID, doc)
}

func MoodLogs(ctx context.Context, s *docstore.Store) ([]docstore.Document, error) {
	return s.GetSet(ctx, TypeMoodLog)
}

func PostMoodLog(ctx context.Context, s *docstore.Store, doc docstore.Document) (docstore.Document, error) {
	return s.PostSetElement(ctx, TypeMoodLog, MoodLogID, doc)
}

func ActivityLogs(ctx context.Context, s *docstore.Store) ([]docstore.Document, error) {
	return s.GetSet(ctx, TypeActivityLog)
}

func PostActivityLog(ctx context.Context, s *docstore.Store, doc docstore.Document) (docstore.Document, error) {
	return s.PostSetElement(ctx, TypeActivityLog, ActivityLogID, doc)
}

func AssessmentLogs(ctx context.Context, s *docstore.Store) ([]docstore.Document, error) {
	return s.GetSet(ctx, TypeAssessmentLog)
}

func PostAssessmentLog(ctx context.Context, s *docstore.Store, doc docstore.Document) (docstore.Document, error) {
	return s.PostSetElement(ctx, TypeAssessmentLog, AssessmentLogID, doc)
}
