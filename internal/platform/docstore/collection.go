package docstore

import "context"

// Collection is the storage primitive the Store builds on. Implementations
// must enforce uniqueness of (type, set id, revision): InsertOne returns
// ErrDuplicateKey when a revision with the same key already exists, and that
// guarantee is what makes the Store's optimistic concurrency sound.
//
// Singletons are stored without a _set_id field; implementations key them
// under the empty set id.
type Collection interface {
	Name() string

	// InsertOne atomically inserts one revision, failing with
	// ErrDuplicateKey if (type, set id, revision) is already present.
	InsertOne(ctx context.Context, doc Document) error

	// FindCurrent returns the highest revision of every (type, set id)
	// group among the given types. Tombstones are included; the Store
	// filters them.
	FindCurrent(ctx context.Context, docTypes []string) ([]Document, error)

	// FindCurrentOne returns the highest revision for one (type, set id)
	// group, or ok=false when no revision exists at all.
	FindCurrentOne(ctx context.Context, docType, setID string) (doc Document, ok bool, err error)

	// FindRevisions returns every revision for one (type, set id) group in
	// ascending revision order.
	FindRevisions(ctx context.Context, docType, setID string) ([]Document, error)

	// DeleteMany physically removes every revision for one (type, set id)
	// group and returns the number of removed documents.
	DeleteMany(ctx context.Context, docType, setID string) (int64, error)

	// EnsureIndex converges the collection's physical indexes to exactly
	// the primary key plus the unique compound index on
	// (type asc, set id asc, revision desc).
	EnsureIndex(ctx context.Context) error
}

// Database groups named collections.
type Database interface {
	// Collection returns a handle for the named collection. The collection
	// need not exist yet; operations on a missing collection fail.
	Collection(name string) Collection

	// CreateCollection creates the named collection if absent and returns
	// a handle to it.
	CreateCollection(ctx context.Context, name string) (Collection, error)

	// DropCollection removes the named collection and all its documents.
	DropCollection(ctx context.Context, name string) error

	// CollectionExists reports whether the named collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// ListCollections returns names of existing collections with the given
	// prefix, sorted.
	ListCollections(ctx context.Context, prefix string) ([]string, error)
}
