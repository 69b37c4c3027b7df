// Package registry manages patient and provider identities. Identity
// documents live in shared collections; each patient additionally owns a
// dedicated collection holding every document of their record.
package registry

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/carehub/carehub/internal/domain/activity"
	"github.com/carehub/carehub/internal/domain/assessment"
	"github.com/carehub/carehub/internal/domain/records"
	"github.com/carehub/carehub/internal/platform/docstore"
)

// Identity collections and document types.
const (
	PatientsCollection   = "patients"
	ProvidersCollection  = "providers"
	TypePatientIdentity  = "patientIdentity"
	PatientID            = "patientId"
	TypeProviderIdentity = "providerIdentity"
	ProviderID           = "providerId"

	// TypeSentinel marks a patient collection as initialized.
	TypeSentinel = "sentinel"

	// FieldCollection on an identity names the patient's collection.
	FieldCollection = "collection"

	patientCollectionPrefix = "patient_"
)

// Registry wires identity collections to per-patient collections.
type Registry struct {
	db        docstore.Database
	log       zerolog.Logger
	storeOpts []docstore.StoreOption
}

// New returns a Registry over db. Store options (such as metrics) are applied
// to every store the registry opens.
func New(db docstore.Database, log zerolog.Logger, opts ...docstore.StoreOption) *Registry {
	return &Registry{db: db, log: log, storeOpts: opts}
}

// Init creates the identity collections and ensures their indexes. Idempotent.
func (r *Registry) Init(ctx context.Context) error {
	for _, name := range []string{PatientsCollection, ProvidersCollection} {
		coll, err := r.db.CreateCollection(ctx, name)
		if err != nil {
			return fmt.Errorf("create %q: %w", name, err)
		}
		if err := coll.EnsureIndex(ctx); err != nil {
			return fmt.Errorf("ensure index on %q: %w", name, err)
		}
	}
	return nil
}

// PatientCollectionName returns the name of a patient's collection.
func PatientCollectionName(patientID string) string {
	return patientCollectionPrefix + patientID
}

// PatientStore opens the store for one patient's collection.
func (r *Registry) PatientStore(patientID string) *docstore.Store {
	return docstore.NewStore(r.db.Collection(PatientCollectionName(patientID)), r.storeOpts...)
}

func (r *Registry) patientsStore() *docstore.Store {
	return docstore.NewStore(r.db.Collection(PatientsCollection), r.storeOpts...)
}

func (r *Registry) providersStore() *docstore.Store {
	return docstore.NewStore(r.db.Collection(ProvidersCollection), r.storeOpts...)
}

// CreatePatient provisions a patient: a fresh id, a dedicated collection
// seeded with the sentinel, an ensured index, an initial profile and clinical
// history, and finally the identity document. The identity is written last so
// a partial failure never yields a referenced but unusable collection.
func (r *Registry) CreatePatient(ctx context.Context, name, mrn string) (docstore.Document, error) {
	patientID, err := docstore.GenerateSetID()
	if err != nil {
		return nil, fmt.Errorf("generate patient id: %w", err)
	}
	collName := PatientCollectionName(patientID)

	if _, err := r.PatientIdentity(ctx, patientID); err == nil {
		return nil, fmt.Errorf("patient identity %q already exists", patientID)
	} else if !docstore.IsNotFound(err) {
		return nil, fmt.Errorf("check identity: %w", err)
	}
	exists, err := r.db.CollectionExists(ctx, collName)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("collection %q already exists", collName)
	}

	coll, err := r.db.CreateCollection(ctx, collName)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	store := docstore.NewStore(coll, r.storeOpts...)

	if _, err := store.PutSingleton(ctx, TypeSentinel, docstore.Document{}); err != nil {
		return nil, fmt.Errorf("put sentinel: %w", err)
	}
	if err := coll.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}
	if _, err := records.PutProfile(ctx, store, docstore.Document{"name": name, "MRN": mrn}); err != nil {
		return nil, fmt.Errorf("put profile: %w", err)
	}
	if _, err := records.PutClinicalHistory(ctx, store, docstore.Document{}); err != nil {
		return nil, fmt.Errorf("put clinical history: %w", err)
	}

	identity := docstore.Document{
		"name":          name,
		"MRN":           mrn,
		FieldCollection: collName,
	}
	identity, err = r.patientsStore().PutSetElement(ctx, TypePatientIdentity, PatientID, patientID, identity)
	if err != nil {
		return nil, fmt.Errorf("put identity: %w", err)
	}

	r.log.Info().Str("patient_id", patientID).Str("collection", collName).Msg("created patient")
	return identity, nil
}

// PatientIdentities returns the current identity of every patient.
func (r *Registry) PatientIdentities(ctx context.Context) ([]docstore.Document, error) {
	return r.patientsStore().GetSet(ctx, TypePatientIdentity)
}

// PatientIdentity returns one patient's current identity document.
func (r *Registry) PatientIdentity(ctx context.Context, patientID string) (docstore.Document, error) {
	return r.patientsStore().GetSetElement(ctx, TypePatientIdentity, patientID)
}

// PutPatientIdentity writes a new revision of a patient's identity.
func (r *Registry) PutPatientIdentity(ctx context.Context, patientID string, doc docstore.Document) (docstore.Document, error) {
	return r.patientsStore().PutSetElement(ctx, TypePatientIdentity, PatientID, patientID, doc)
}

// DeletePatient destroys a patient: every identity revision is removed, then
// the patient's collection is dropped. Destructive and racy by nature; a
// concurrent writer can lose documents.
func (r *Registry) DeletePatient(ctx context.Context, patientID string) error {
	identity, err := r.PatientIdentity(ctx, patientID)
	if err != nil {
		return err
	}
	collName, _ := identity[FieldCollection].(string)
	if collName == "" {
		collName = PatientCollectionName(patientID)
	}

	if _, err := r.patientsStore().UnsafeDeleteSetElement(ctx, TypePatientIdentity, patientID); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if err := r.db.DropCollection(ctx, collName); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}

	r.log.Info().Str("patient_id", patientID).Str("collection", collName).Msg("deleted patient")
	return nil
}

// CreateProvider registers a provider identity. Providers own no collection.
func (r *Registry) CreateProvider(ctx context.Context, name, role string) (docstore.Document, error) {
	providerID, err := docstore.GenerateSetID()
	if err != nil {
		return nil, fmt.Errorf("generate provider id: %w", err)
	}
	identity := docstore.Document{"name": name, "role": role}
	identity, err = r.providersStore().PutSetElement(ctx, TypeProviderIdentity, ProviderID, providerID, identity)
	if err != nil {
		return nil, fmt.Errorf("put identity: %w", err)
	}
	r.log.Info().Str("provider_id", providerID).Msg("created provider")
	return identity, nil
}

// ProviderIdentities returns the current identity of every provider.
func (r *Registry) ProviderIdentities(ctx context.Context) ([]docstore.Document, error) {
	return r.providersStore().GetSet(ctx, TypeProviderIdentity)
}

// ProviderIdentity returns one provider's current identity document.
func (r *Registry) ProviderIdentity(ctx context.Context, providerID string) (docstore.Document, error) {
	return r.providersStore().GetSetElement(ctx, TypeProviderIdentity, providerID)
}

// DeleteProvider removes every revision of a provider identity.
func (r *Registry) DeleteProvider(ctx context.Context, providerID string) error {
	if _, err := r.ProviderIdentity(ctx, providerID); err != nil {
		return err
	}
	if _, err := r.providersStore().UnsafeDeleteSetElement(ctx, TypeProviderIdentity, providerID); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

// EnsureIndexes converges the indexes of the identity collections and every
// patient collection.
func (r *Registry) EnsureIndexes(ctx context.Context) error {
	names, err := r.db.ListCollections(ctx, patientCollectionPrefix)
	if err != nil {
		return fmt.Errorf("list patient collections: %w", err)
	}
	names = append([]string{PatientsCollection, ProvidersCollection}, names...)
	for _, name := range names {
		if err := r.db.Collection(name).EnsureIndex(ctx); err != nil {
			return fmt.Errorf("ensure index on %q: %w", name, err)
		}
		r.log.Debug().Str("collection", name).Msg("ensured index")
	}
	return nil
}

// PatientDocument assembles the full patient record: the identity plus the
// current revision of every document in the patient's collection, fetched in
// a single grouped query.
func (r *Registry) PatientDocument(ctx context.Context, identity docstore.Document) (docstore.Document, error) {
	patientID, _ := identity[PatientID].(string)
	if patientID == "" {
		return nil, fmt.Errorf("identity has no %s", PatientID)
	}
	store := r.PatientStore(patientID)

	singletonTypes := records.SingletonTypes()
	setTypes := append(records.SetTypes(),
		activity.TypeActivity,
		activity.TypeActivitySchedule,
		activity.TypeScheduledActivity,
		assessment.TypeAssessment,
		assessment.TypeScheduledAssessment,
	)
	result, err := store.GetMultipleTypes(ctx, singletonTypes, setTypes)
	if err != nil {
		return nil, fmt.Errorf("get multiple types: %w", err)
	}

	doc := docstore.Document{
		docstore.FieldType: "patient",
		"identity":         identity,
	}
	singletonKeys := map[string]string{
		records.TypePatientProfile:  "profile",
		records.TypeClinicalHistory: "clinicalHistory",
		records.TypeSafetyPlan:      "safetyPlan",
		records.TypeValuesInventory: "valuesInventory",
	}
	for docType, key := range singletonKeys {
		if singleton, ok := result.Singletons[docType]; ok {
			doc[key] = singleton
		}
	}
	setKeys := map[string]string{
		records.TypeValue:                  "values",
		records.TypeCaseReview:             "caseReviews",
		records.TypeSession:                "sessions",
		records.TypeMoodLog:                "moodLogs",
		records.TypeActivityLog:            "activityLogs",
		records.TypeAssessmentLog:          "assessmentLogs",
		activity.TypeActivity:              "activities",
		activity.TypeActivitySchedule:      "activitySchedules",
		activity.TypeScheduledActivity:     "scheduledActivities",
		assessment.TypeAssessment:          "assessments",
		assessment.TypeScheduledAssessment: "scheduledAssessments",
	}
	for docType, key := range setKeys {
		doc[key] = result.Sets[docType]
	}
	return doc, nil
}
