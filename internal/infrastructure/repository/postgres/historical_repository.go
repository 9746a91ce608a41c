package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
)

// HistoricalRepository backs the comparison engine. Rows are appended
// by backfill runs; the only post-creation mutation is the one-shot
// payload write performed by the just-in-time summarization path.
type HistoricalRepository struct {
	db *sql.DB
}

func NewHistoricalRepository(db *sql.DB) *HistoricalRepository {
	return &HistoricalRepository{db: db}
}

func (r *HistoricalRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082402)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	// seq captures ingestion order, the tie-break for records sharing
	// an occurred_at date.
	const query = `
CREATE TABLE IF NOT EXISTS historical_disclosures (
	id TEXT PRIMARY KEY,
	seq BIGSERIAL,
	scrip_code TEXT NOT NULL,
	company_name TEXT NOT NULL,
	occurred_at DATE NOT NULL,
	attachment_url TEXT NOT NULL UNIQUE,
	ingested_at TIMESTAMPTZ NOT NULL,
	payload JSONB
);

CREATE INDEX IF NOT EXISTS idx_historical_scrip_occurred
	ON historical_disclosures(scrip_code, occurred_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// LatestBefore compares at day granularity: occurred_at is a DATE, so
// the cutoff is cast down too. A same-day row (including the item's
// own backfilled pointer) is never a valid prior.
func (r *HistoricalRepository) LatestBefore(ctx context.Context, scripCode string, before time.Time) (*domain.HistoricalRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, scrip_code, company_name, occurred_at, attachment_url, payload
FROM historical_disclosures
WHERE scrip_code = $1 AND occurred_at < $2::date
ORDER BY occurred_at DESC, seq DESC
LIMIT 1
`, scripCode, before)

	var rec domain.HistoricalRecord
	var payloadRaw []byte

	err := row.Scan(&rec.ID, &rec.ScripCode, &rec.Company, &rec.OccurredAt, &rec.AttachmentURL, &payloadRaw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, domain.WrapError(domain.ErrStorage, "latest before", err)
	}

	if len(payloadRaw) > 0 {
		var payload domain.Payload
		if err := json.Unmarshal(payloadRaw, &payload); err != nil {
			return nil, domain.WrapError(domain.ErrStorage, "unmarshal cached payload", err)
		}
		rec.Payload = &payload
	}
	return &rec, nil
}

func (r *HistoricalRepository) Insert(ctx context.Context, rec domain.HistoricalRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO historical_disclosures (id, scrip_code, company_name, occurred_at, attachment_url, ingested_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT DO NOTHING
`, rec.ID, rec.ScripCode, rec.Company, rec.OccurredAt, rec.AttachmentURL, time.Now().UTC())
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "insert historical", err)
	}
	return nil
}

// SetPayloadOnce performs the single legal post-creation mutation.
// The payload IS NULL guard makes concurrent JIT summarizers race
// safely: one write lands, the others observe false.
func (r *HistoricalRepository) SetPayloadOnce(ctx context.Context, id string, payload *domain.Payload) (bool, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, domain.WrapError(domain.ErrStorage, "marshal payload", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE historical_disclosures SET payload = $2
WHERE id = $1 AND payload IS NULL
`, id, raw)
	if err != nil {
		return false, domain.WrapError(domain.ErrStorage, "set payload once", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, domain.WrapError(domain.ErrStorage, "set payload once rows", err)
	}
	return affected == 1, nil
}
