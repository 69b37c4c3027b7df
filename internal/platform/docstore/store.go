package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Store implements the revision protocol over a Collection: every write is a
// new revision, the current version of a document is its highest non-deleted
// revision, and concurrent writers are arbitrated by the collection's unique
// compound index.
type Store struct {
	coll    Collection
	metrics *Metrics
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMetrics records an operation counter per store call.
func WithMetrics(m *Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// NewStore returns a Store over the given collection.
func NewStore(coll Collection, opts ...StoreOption) *Store {
	s := &Store{coll: coll}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collection returns the underlying collection.
func (s *Store) Collection() Collection {
	return s.coll
}

// GetSingleton returns the current revision of the singleton document of the
// given type. A missing document or a tombstone yields NotFoundError.
func (s *Store) GetSingleton(ctx context.Context, docType string) (Document, error) {
	doc, err := s.getCurrent(ctx, docType, "")
	s.observe("get_singleton", err)
	return doc, err
}

// GetSetElement returns the current revision of one set member.
func (s *Store) GetSetElement(ctx context.Context, docType, setID string) (Document, error) {
	doc, err := s.getCurrent(ctx, docType, setID)
	s.observe("get_set_element", err)
	return doc, err
}

func (s *Store) getCurrent(ctx context.Context, docType, setID string) (Document, error) {
	doc, ok, err := s.coll.FindCurrentOne(ctx, docType, setID)
	if err != nil {
		return nil, fmt.Errorf("find current: %w", err)
	}
	if !ok || doc.Deleted() {
		return nil, &NotFoundError{DocType: docType, SetID: setID}
	}
	return Normalize(doc), nil
}

// GetSet returns the current revision of every non-deleted member of the set,
// sorted by set id. An empty set yields a nil slice, not an error.
func (s *Store) GetSet(ctx context.Context, docType string) ([]Document, error) {
	docs, err := s.coll.FindCurrent(ctx, []string{docType})
	s.observe("get_set", err)
	if err != nil {
		return nil, fmt.Errorf("find current: %w", err)
	}
	return currentMembers(docs), nil
}

func currentMembers(docs []Document) []Document {
	var out []Document
	for _, doc := range docs {
		if doc.Deleted() {
			continue
		}
		out = append(out, Normalize(doc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SetID() < out[j].SetID() })
	return out
}

// MultipleTypesResult is the outcome of GetMultipleTypes. Singletons holds an
// entry per singleton type that has a current non-deleted document. Sets holds
// an entry per requested set type, possibly empty.
type MultipleTypesResult struct {
	Singletons map[string]Document
	Sets       map[string][]Document
}

// GetMultipleTypes fetches the current revisions of several document types in
// one collection query. More than one document group for a singleton type is
// an invariant violation.
func (s *Store) GetMultipleTypes(ctx context.Context, singletonTypes, setTypes []string) (*MultipleTypesResult, error) {
	all := make([]string, 0, len(singletonTypes)+len(setTypes))
	all = append(all, singletonTypes...)
	all = append(all, setTypes...)

	docs, err := s.coll.FindCurrent(ctx, all)
	s.observe("get_multiple_types", err)
	if err != nil {
		return nil, fmt.Errorf("find current: %w", err)
	}

	byType := make(map[string][]Document)
	for _, doc := range docs {
		byType[doc.Type()] = append(byType[doc.Type()], doc)
	}

	result := &MultipleTypesResult{
		Singletons: make(map[string]Document),
		Sets:       make(map[string][]Document),
	}
	for _, docType := range singletonTypes {
		group := byType[docType]
		if len(group) > 1 {
			return nil, fmt.Errorf("%w: %d document groups for singleton type %q", ErrInvariant, len(group), docType)
		}
		if len(group) == 1 && !group[0].Deleted() {
			result.Singletons[docType] = Normalize(group[0])
		}
	}
	for _, docType := range setTypes {
		result.Sets[docType] = currentMembers(byType[docType])
	}
	return result, nil
}

// PutSingleton writes a new revision of the singleton document of the given
// type. The document must not carry an _id; a _type, if present, must match.
// The revision is incremented from the document's _rev (1 when absent). Losing
// the insert race yields DocumentModifiedError carrying the winning revision.
func (s *Store) PutSingleton(ctx context.Context, docType string, doc Document) (Document, error) {
	out, err := s.put(ctx, docType, "", "", true, doc)
	s.observe("put_singleton", err)
	return out, err
}

// PutSetElement writes a new revision of one set member. The document must
// not carry an _id; _type, _set_id, and the semantic id field, when present,
// must match. Losing the insert race yields DocumentModifiedError.
func (s *Store) PutSetElement(ctx context.Context, docType, semanticID, setID string, doc Document) (Document, error) {
	if setID == "" {
		return nil, validationf("set id is required")
	}
	out, err := s.put(ctx, docType, semanticID, setID, false, doc)
	s.observe("put_set_element", err)
	return out, err
}

// PostSetElement creates a new set member under a freshly generated set id,
// at revision 1. The document must not already carry an _id, _set_id, _rev,
// or semantic id value.
func (s *Store) PostSetElement(ctx context.Context, docType, semanticID string, doc Document) (Document, error) {
	out, err := s.postSetElement(ctx, docType, semanticID, doc)
	s.observe("post_set_element", err)
	return out, err
}

func (s *Store) postSetElement(ctx context.Context, docType, semanticID string, doc Document) (Document, error) {
	if _, ok := doc[FieldID]; ok {
		return nil, validationf("document may not contain %q", FieldID)
	}
	if _, ok := doc[FieldSetID]; ok {
		return nil, validationf("document may not contain %q", FieldSetID)
	}
	if _, ok := doc[FieldRev]; ok {
		return nil, validationf("document may not contain %q", FieldRev)
	}
	if semanticID != "" {
		if _, ok := doc[semanticID]; ok {
			return nil, validationf("document may not contain %q", semanticID)
		}
	}
	if t, ok := doc[FieldType]; ok && t != docType {
		return nil, validationf("document type %v does not match %q", t, docType)
	}

	setID, err := GenerateSetID()
	if err != nil {
		return nil, fmt.Errorf("generate set id: %w", err)
	}

	out := doc.Clone()
	if out == nil {
		out = Document{}
	}
	out[FieldType] = docType
	out[FieldSetID] = setID
	out[FieldRev] = 1
	out[FieldID] = newDocumentID()
	if semanticID != "" {
		out[semanticID] = setID
	}

	if err := s.coll.InsertOne(ctx, out); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: generated set id %q collided in collection %q", ErrInvariant, setID, s.coll.Name())
		}
		return nil, fmt.Errorf("insert: %w", err)
	}
	return out, nil
}

func (s *Store) put(ctx context.Context, docType, semanticID, setID string, singleton bool, doc Document) (Document, error) {
	if _, ok := doc[FieldID]; ok {
		return nil, validationf("document may not contain %q", FieldID)
	}
	if t, ok := doc[FieldType]; ok && t != docType {
		return nil, validationf("document type %v does not match %q", t, docType)
	}
	if singleton {
		if _, ok := doc[FieldSetID]; ok {
			return nil, validationf("singleton document may not contain %q", FieldSetID)
		}
	} else {
		if sid, ok := doc[FieldSetID]; ok && sid != setID {
			return nil, validationf("document set id %v does not match %q", sid, setID)
		}
		if semanticID != "" {
			if sid, ok := doc[semanticID]; ok && sid != setID {
				return nil, validationf("document %s %v does not match %q", semanticID, sid, setID)
			}
		}
	}

	rev := 1
	if v, ok := doc[FieldRev]; ok {
		n, valid := asInt(v)
		if !valid {
			return nil, validationf("document %q must be an integer", FieldRev)
		}
		rev = n + 1
	}

	out := doc.Clone()
	if out == nil {
		out = Document{}
	}
	out[FieldType] = docType
	if !singleton {
		out[FieldSetID] = setID
		if semanticID != "" {
			out[semanticID] = setID
		}
	}
	out[FieldRev] = rev
	out[FieldID] = newDocumentID()

	if err := s.coll.InsertOne(ctx, out); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, s.modifiedError(ctx, docType, setID)
		}
		return nil, fmt.Errorf("insert: %w", err)
	}
	return out, nil
}

// modifiedError fetches the revision that won the race so the caller can
// inspect it.
func (s *Store) modifiedError(ctx context.Context, docType, setID string) error {
	current, ok, err := s.coll.FindCurrentOne(ctx, docType, setID)
	if err != nil {
		return fmt.Errorf("find winning revision: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: duplicate key but no revision found for type %q set id %q", ErrInvariant, docType, setID)
	}
	return &DocumentModifiedError{Current: Normalize(current)}
}

// DeleteSetElement marks one set member deleted by writing a tombstone
// revision. The caller supplies the revision it believes is current; a
// mismatch, or losing the tombstone insert race, yields
// DocumentModifiedError. A member that does not exist yields NotFoundError.
func (s *Store) DeleteSetElement(ctx context.Context, docType, setID string, rev int) (Document, error) {
	out, err := s.deleteSetElement(ctx, docType, setID, rev)
	s.observe("delete_set_element", err)
	return out, err
}

func (s *Store) deleteSetElement(ctx context.Context, docType, setID string, rev int) (Document, error) {
	current, err := s.getCurrent(ctx, docType, setID)
	if err != nil {
		return nil, err
	}
	if current.Rev() != rev {
		return nil, &DocumentModifiedError{Current: current}
	}

	tombstone := Document{
		FieldType:    docType,
		FieldSetID:   setID,
		FieldRev:     rev,
		FieldDeleted: true,
	}
	return s.put(ctx, docType, "", setID, false, tombstone)
}

// UnsafeDeleteSetElement physically removes every revision of one set member.
// There is no concurrency control: a writer racing this call can recreate the
// member. Reserved for destructive teardown paths.
func (s *Store) UnsafeDeleteSetElement(ctx context.Context, docType, setID string) (int64, error) {
	n, err := s.coll.DeleteMany(ctx, docType, setID)
	s.observe("unsafe_delete_set_element", err)
	if err != nil {
		return 0, fmt.Errorf("delete revisions: %w", err)
	}
	return n, nil
}

// History returns every revision of one document in ascending revision order,
// tombstones included.
func (s *Store) History(ctx context.Context, docType, setID string) ([]Document, error) {
	docs, err := s.coll.FindRevisions(ctx, docType, setID)
	s.observe("history", err)
	if err != nil {
		return nil, fmt.Errorf("find revisions: %w", err)
	}
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		out = append(out, Normalize(doc))
	}
	return out, nil
}

func (s *Store) observe(op string, err error) {
	if s.metrics != nil {
		s.metrics.observe(op, err)
	}
}
