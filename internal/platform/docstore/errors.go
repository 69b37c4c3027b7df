package docstore

import (
	"errors"
	"fmt"
)

// ErrDuplicateKey is returned by Collection.InsertOne when the primary index
// already holds a document with the same (type, set id, revision).
var ErrDuplicateKey = errors.New("docstore: duplicate key")

// ErrInvariant marks conditions that should be impossible when the store is
// used correctly, such as a freshly generated set id colliding with an
// existing document. Callers should treat these as fatal.
var ErrInvariant = errors.New("docstore: invariant violation")

// ValidationError reports a document that violates the store's input rules,
// such as carrying an _id on write or a mismatched _type.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("docstore: invalid document: %s", e.Reason)
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports that no current (non-deleted) revision exists for the
// requested document.
type NotFoundError struct {
	DocType string
	SetID   string
}

func (e *NotFoundError) Error() string {
	if e.SetID == "" {
		return fmt.Sprintf("docstore: document not found: type %q", e.DocType)
	}
	return fmt.Sprintf("docstore: document not found: type %q set id %q", e.DocType, e.SetID)
}

// DocumentModifiedError reports that a write lost an optimistic concurrency
// race. Current holds the revision that won, so callers can re-read, merge,
// and retry.
type DocumentModifiedError struct {
	Current Document
}

func (e *DocumentModifiedError) Error() string {
	return fmt.Sprintf("docstore: document modified: current revision %d", e.Current.Rev())
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsModified reports whether err is a DocumentModifiedError.
func IsModified(err error) bool {
	var dm *DocumentModifiedError
	return errors.As(err, &dm)
}
