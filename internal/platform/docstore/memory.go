package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemDatabase is an in-memory Database with the same contract as the Postgres
// backend, including uniqueness of (type, set id, revision). Used in tests and
// for local development without a database.
type MemDatabase struct {
	mu    sync.RWMutex
	colls map[string]*MemCollection
}

// NewMemDatabase returns an empty in-memory database.
func NewMemDatabase() *MemDatabase {
	return &MemDatabase{colls: make(map[string]*MemCollection)}
}

func (d *MemDatabase) Collection(name string) Collection {
	d.mu.RLock()
	coll, ok := d.colls[name]
	d.mu.RUnlock()
	if ok {
		return coll
	}
	return &missingCollection{name: name}
}

func (d *MemDatabase) CreateCollection(_ context.Context, name string) (Collection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if coll, ok := d.colls[name]; ok {
		return coll, nil
	}
	coll := &MemCollection{name: name}
	d.colls[name] = coll
	return coll, nil
}

func (d *MemDatabase) DropCollection(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.colls, name)
	return nil
}

func (d *MemDatabase) CollectionExists(_ context.Context, name string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.colls[name]
	return ok, nil
}

func (d *MemDatabase) ListCollections(_ context.Context, prefix string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var names []string
	for name := range d.colls {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// MemCollection stores revisions in insertion order behind a mutex.
type MemCollection struct {
	mu   sync.Mutex
	name string
	docs []Document
}

func (c *MemCollection) Name() string { return c.name }

func (c *MemCollection) InsertOne(_ context.Context, doc Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.docs {
		if existing.Type() == doc.Type() && existing.SetID() == doc.SetID() && existing.Rev() == doc.Rev() {
			return ErrDuplicateKey
		}
	}
	c.docs = append(c.docs, doc.Clone())
	return nil
}

func (c *MemCollection) FindCurrent(_ context.Context, docTypes []string) ([]Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wanted := make(map[string]bool, len(docTypes))
	for _, t := range docTypes {
		wanted[t] = true
	}

	type groupKey struct{ docType, setID string }
	latest := make(map[groupKey]Document)
	for _, doc := range c.docs {
		if !wanted[doc.Type()] {
			continue
		}
		key := groupKey{doc.Type(), doc.SetID()}
		if cur, ok := latest[key]; !ok || doc.Rev() > cur.Rev() {
			latest[key] = doc
		}
	}

	out := make([]Document, 0, len(latest))
	for _, doc := range latest {
		out = append(out, doc.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type() != out[j].Type() {
			return out[i].Type() < out[j].Type()
		}
		return out[i].SetID() < out[j].SetID()
	})
	return out, nil
}

func (c *MemCollection) FindCurrentOne(_ context.Context, docType, setID string) (Document, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var current Document
	for _, doc := range c.docs {
		if doc.Type() != docType || doc.SetID() != setID {
			continue
		}
		if current == nil || doc.Rev() > current.Rev() {
			current = doc
		}
	}
	if current == nil {
		return nil, false, nil
	}
	return current.Clone(), true, nil
}

func (c *MemCollection) FindRevisions(_ context.Context, docType, setID string) ([]Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Document
	for _, doc := range c.docs {
		if doc.Type() == docType && doc.SetID() == setID {
			out = append(out, doc.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rev() < out[j].Rev() })
	return out, nil
}

func (c *MemCollection) DeleteMany(_ context.Context, docType, setID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var kept []Document
	var removed int64
	for _, doc := range c.docs {
		if doc.Type() == docType && doc.SetID() == setID {
			removed++
			continue
		}
		kept = append(kept, doc)
	}
	c.docs = kept
	return removed, nil
}

// EnsureIndex is a no-op: the in-memory backend always enforces uniqueness.
func (c *MemCollection) EnsureIndex(context.Context) error { return nil }

// missingCollection fails every operation, mirroring queries against a
// dropped or never-created table.
type missingCollection struct {
	name string
}

func (c *missingCollection) Name() string { return c.name }

func (c *missingCollection) err() error {
	return fmt.Errorf("collection %q does not exist", c.name)
}

func (c *missingCollection) InsertOne(context.Context, Document) error { return c.err() }
func (c *missingCollection) FindCurrent(context.Context, []string) ([]Document, error) {
	return nil, c.err()
}
func (c *missingCollection) FindCurrentOne(context.Context, string, string) (Document, bool, error) {
	return nil, false, c.err()
}
func (c *missingCollection) FindRevisions(context.Context, string, string) ([]Document, error) {
	return nil, c.err()
}
func (c *missingCollection) DeleteMany(context.Context, string, string) (int64, error) {
	return 0, c.err()
}
func (c *missingCollection) EnsureIndex(context.Context) error { return c.err() }
