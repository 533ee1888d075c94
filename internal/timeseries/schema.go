package timeseries

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the samples table and its indexes if they do not exist.
// A failure here is fatal: a store that cannot guarantee its schema must not
// start.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS samples (
			variable  TEXT        NOT NULL,
			entity_id BIGINT      NOT NULL,
			ts        TIMESTAMPTZ NOT NULL,
			value     BIGINT      NOT NULL,
			PRIMARY KEY (variable, entity_id, ts)
		)`,
		// Supports "all samples for variable prefix since T".
		`CREATE INDEX IF NOT EXISTS samples_variable_ts_idx
			ON samples (variable text_pattern_ops, ts)`,
		// Supports "latest sample per entity for variable".
		`CREATE INDEX IF NOT EXISTS samples_latest_idx
			ON samples (variable, entity_id, ts DESC)`,
		// Supports the age-based retention sweep.
		`CREATE INDEX IF NOT EXISTS samples_ts_idx
			ON samples (ts)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate samples schema: %w", err)
		}
	}
	return nil
}
