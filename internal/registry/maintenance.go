package registry

import (
	"context"
	"fmt"

	"github.com/carehub/carehub/internal/domain/activity"
	"github.com/carehub/carehub/internal/domain/assessment"
)

// ExtendSchedules walks every patient and re-expands the pending occurrences
// of repeating activity schedules and assigned assessments over a fresh
// horizon. Run periodically so schedules never silently run out.
func (r *Registry) ExtendSchedules(ctx context.Context, actSvc *activity.Service, asmtSvc *assessment.Service) error {
	identities, err := r.PatientIdentities(ctx)
	if err != nil {
		return fmt.Errorf("list patients: %w", err)
	}

	for _, identity := range identities {
		patientID, _ := identity[PatientID].(string)
		if patientID == "" {
			continue
		}
		store := r.PatientStore(patientID)

		schedules, err := actSvc.ExtendSchedules(ctx, store)
		if err != nil {
			return fmt.Errorf("patient %q: %w", patientID, err)
		}
		assessments, err := asmtSvc.ExtendSchedules(ctx, store)
		if err != nil {
			return fmt.Errorf("patient %q: %w", patientID, err)
		}

		r.log.Info().
			Str("patient_id", patientID).
			Int("activity_schedules", schedules).
			Int("assessments", assessments).
			Msg("extended schedules")
	}
	return nil
}
