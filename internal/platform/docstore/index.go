package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// The unique compound index arbitrating the revision protocol. Revision is
// indexed descending so current-version scans read the first row per group.
const primaryIndexColumns = "(doc_type, set_id, rev DESC)"

func (c *PGCollection) primaryIndexName() string {
	return c.name + "__primary"
}

// EnsureIndex converges the table's index set to exactly the primary key plus
// the unique compound index on (doc_type, set_id, rev DESC). Indexes left
// behind by earlier deployments are dropped; a primary index whose definition
// has drifted is dropped and recreated.
func (c *PGCollection) EnsureIndex(ctx context.Context) error {
	rows, err := c.pool.Query(ctx, `
		SELECT indexname, indexdef FROM pg_indexes
		WHERE schemaname = current_schema() AND tablename = $1`, c.name)
	if err != nil {
		return fmt.Errorf("inspect indexes for %q: %w", c.name, err)
	}

	type index struct{ name, def string }
	var indexes []index
	for rows.Next() {
		var ix index
		if err := rows.Scan(&ix.name, &ix.def); err != nil {
			rows.Close()
			return fmt.Errorf("scan index: %w", err)
		}
		indexes = append(indexes, ix)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect indexes for %q: %w", c.name, err)
	}

	present := false
	for _, ix := range indexes {
		if strings.HasSuffix(ix.name, "_pkey") {
			continue
		}
		if !present && ix.name == c.primaryIndexName() && primaryIndexMatches(ix.def) {
			present = true
			continue
		}
		drop := fmt.Sprintf("DROP INDEX %s", pgx.Identifier{ix.name}.Sanitize())
		if _, err := c.pool.Exec(ctx, drop); err != nil {
			return fmt.Errorf("drop index %q: %w", ix.name, err)
		}
	}

	if !present {
		create := fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s %s",
			pgx.Identifier{c.primaryIndexName()}.Sanitize(), c.ident, primaryIndexColumns)
		if _, err := c.pool.Exec(ctx, create); err != nil {
			return fmt.Errorf("create primary index on %q: %w", c.name, err)
		}
	}
	return nil
}

// primaryIndexMatches checks a pg_indexes definition against the expected
// shape, ignoring the schema-qualified table name in the middle.
func primaryIndexMatches(def string) bool {
	return strings.HasPrefix(def, "CREATE UNIQUE INDEX ") &&
		strings.HasSuffix(def, "USING btree "+primaryIndexColumns)
}
