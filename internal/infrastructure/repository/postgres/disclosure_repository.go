package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
)

// DisclosureRepository is the live-run state store: one row per
// disclosure id, the source of truth for dedup across poll cycles and
// restarts.
type DisclosureRepository struct {
	db *sql.DB
}

func NewDisclosureRepository(db *sql.DB) *DisclosureRepository {
	return &DisclosureRepository{db: db}
}

func (r *DisclosureRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across scanner/backfill startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS disclosures (
	id TEXT PRIMARY KEY,
	scrip_code TEXT NOT NULL,
	company_name TEXT NOT NULL,
	ingested_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	payload JSONB
);

CREATE INDEX IF NOT EXISTS idx_disclosures_status ON disclosures(status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DisclosureRepository) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM disclosures WHERE id = $1`, id).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, domain.WrapError(domain.ErrStorage, "exists", err)
	}
	return true, nil
}

func (r *DisclosureRepository) NeedsWork(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
SELECT 1 FROM disclosures
WHERE id = $1 AND status NOT IN ($2, $3)
`, id, string(domain.StatusSummarized), string(domain.StatusFailed)).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, domain.WrapError(domain.ErrStorage, "needs work", err)
	}
	return true, nil
}

// InsertPending relies on the primary-key constraint to serialize
// racing inserts: exactly one insert wins, the rest are no-ops.
func (r *DisclosureRepository) InsertPending(ctx context.Context, cand domain.Candidate) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO disclosures (id, scrip_code, company_name, ingested_at, status)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING
`, cand.ID, cand.ScripCode, cand.Company, time.Now().UTC(), string(domain.StatusPending))
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "insert pending", err)
	}
	return nil
}

func (r *DisclosureRepository) MarkFetched(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE disclosures SET status = $2
WHERE id = $1 AND status = $3
`, id, string(domain.StatusFetched), string(domain.StatusPending))
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "mark fetched", err)
	}
	return nil
}

// RecordResult is an idempotent terminal write. A record that already
// reached SUMMARIZED is never regressed.
func (r *DisclosureRepository) RecordResult(ctx context.Context, id string, payload *domain.Payload, status domain.DisclosureStatus) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "marshal payload", err)
	}
	_, err = r.db.ExecContext(ctx, `
UPDATE disclosures SET payload = $2, status = $3
WHERE id = $1 AND status != $4
`, id, raw, string(status), string(domain.StatusSummarized))
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "record result", err)
	}
	return nil
}
