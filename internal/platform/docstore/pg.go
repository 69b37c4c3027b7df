package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Collection names become table names, so the alphabet is restricted to what
// both sides accept without quoting tricks.
var collectionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

const pgUniqueViolation = "23505"

// PGDatabase implements Database on Postgres. Each collection is a table with
// bookkeeping columns extracted from the document plus the document itself as
// JSONB. The unique compound index on (doc_type, set_id, rev) provides the
// atomic insert-if-absent the revision protocol requires.
type PGDatabase struct {
	pool *pgxpool.Pool
}

// NewPGDatabase returns a Database backed by the given pool.
func NewPGDatabase(pool *pgxpool.Pool) *PGDatabase {
	return &PGDatabase{pool: pool}
}

func (d *PGDatabase) Collection(name string) Collection {
	return &PGCollection{pool: d.pool, name: name, ident: pgx.Identifier{name}.Sanitize()}
}

func (d *PGDatabase) CreateCollection(ctx context.Context, name string) (Collection, error) {
	if !collectionNamePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}
	coll := d.Collection(name).(*PGCollection)
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id UUID PRIMARY KEY,
		doc_type TEXT NOT NULL,
		set_id TEXT NOT NULL DEFAULT '',
		rev BIGINT NOT NULL,
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		document JSONB NOT NULL
	)`, coll.ident)
	if _, err := d.pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}
	return coll, nil
}

func (d *PGDatabase) DropCollection(ctx context.Context, name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	ident := pgx.Identifier{name}.Sanitize()
	if _, err := d.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", ident)); err != nil {
		return fmt.Errorf("drop collection %q: %w", name, err)
	}
	return nil
}

func (d *PGDatabase) CollectionExists(ctx context.Context, name string) (bool, error) {
	var reg *string
	err := d.pool.QueryRow(ctx, "SELECT to_regclass($1)::text", name).Scan(&reg)
	if err != nil {
		return false, fmt.Errorf("check collection %q: %w", name, err)
	}
	return reg != nil, nil
}

func (d *PGDatabase) ListCollections(ctx context.Context, prefix string) ([]string, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name LIKE $1 || '%'
		ORDER BY table_name`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// PGCollection is a handle on one collection table.
type PGCollection struct {
	pool  *pgxpool.Pool
	name  string
	ident string
}

func (c *PGCollection) Name() string { return c.name }

func (c *PGCollection) InsertOne(ctx context.Context, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (id, doc_type, set_id, rev, deleted, document) VALUES ($1, $2, $3, $4, $5, $6)",
		c.ident)
	_, err = c.pool.Exec(ctx, query, doc.ID(), doc.Type(), doc.SetID(), doc.Rev(), doc.Deleted(), raw)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert into %q: %w", c.name, err)
	}
	return nil
}

func (c *PGCollection) FindCurrent(ctx context.Context, docTypes []string) ([]Document, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT ON (doc_type, set_id) document FROM %s
		WHERE doc_type = ANY($1)
		ORDER BY doc_type, set_id, rev DESC`, c.ident)
	rows, err := c.pool.Query(ctx, query, docTypes)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", c.name, err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (c *PGCollection) FindCurrentOne(ctx context.Context, docType, setID string) (Document, bool, error) {
	query := fmt.Sprintf(
		"SELECT document FROM %s WHERE doc_type = $1 AND set_id = $2 ORDER BY rev DESC LIMIT 1",
		c.ident)
	var raw []byte
	err := c.pool.QueryRow(ctx, query, docType, setID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query %q: %w", c.name, err)
	}
	doc, err := unmarshalDocument(raw)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (c *PGCollection) FindRevisions(ctx context.Context, docType, setID string) ([]Document, error) {
	query := fmt.Sprintf(
		"SELECT document FROM %s WHERE doc_type = $1 AND set_id = $2 ORDER BY rev ASC",
		c.ident)
	rows, err := c.pool.Query(ctx, query, docType, setID)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", c.name, err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (c *PGCollection) DeleteMany(ctx context.Context, docType, setID string) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE doc_type = $1 AND set_id = $2", c.ident)
	tag, err := c.pool.Exec(ctx, query, docType, setID)
	if err != nil {
		return 0, fmt.Errorf("delete from %q: %w", c.name, err)
	}
	return tag.RowsAffected(), nil
}

func scanDocuments(rows pgx.Rows) ([]Document, error) {
	var out []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := unmarshalDocument(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func unmarshalDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}
