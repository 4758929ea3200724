// Package store is the audit ledger: one row per processo holding the
// discovery context, the gazette outcome and the conformity verdict, plus
// the full record as JSON for the report exporters.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"conforme/conformity"
	"conforme/extract"
	"conforme/gazette"
	"conforme/portal"
)

// ErrPersistence wraps ledger failures. A persistence failure aborts the
// batch: continuing would silently lose verdicts.
var ErrPersistence = errors.New("store: persistence failed")

const schema = `
CREATE TABLE IF NOT EXISTS results (
	processo          TEXT PRIMARY KEY,
	run_id            TEXT NOT NULL,
	company_id        TEXT NOT NULL,
	company_name      TEXT NOT NULL,
	organ             TEXT NOT NULL DEFAULT '',
	unit              TEXT NOT NULL DEFAULT '',
	object            TEXT NOT NULL DEFAULT '',
	overall_status    TEXT NOT NULL,
	conformity_score  INTEGER NOT NULL,
	timely            INTEGER,
	days_difference   INTEGER,
	publication_found INTEGER NOT NULL,
	publication_date  TEXT NOT NULL DEFAULT '',
	publication_url   TEXT NOT NULL DEFAULT '',
	doc               TEXT NOT NULL,
	audited_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_company ON results(company_id);
CREATE INDEX IF NOT EXISTS idx_results_status  ON results(overall_status);
CREATE INDEX IF NOT EXISTS idx_results_run     ON results(run_id);
`

// Record is one complete audited unit.
type Record struct {
	RunID       string                   `json:"run_id"`
	Link        portal.ProcessoLink      `json:"link"`
	Contract    extract.ContractRecord   `json:"contract"`
	Publication gazette.PublicationResult `json:"publication"`
	Conformity  conformity.Result        `json:"conformity"`
	AuditedAt   time.Time                `json:"audited_at"`
}

// Store persists Records to SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the ledger at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save upserts one audited unit. Re-running a processo replaces its verdict;
// the processo is the natural key.
func (s *Store) Save(ctx context.Context, rec Record) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: marshal record: %v", ErrPersistence, err)
	}

	var timely, days any
	if rec.Conformity.Timely != nil {
		timely = boolToInt(*rec.Conformity.Timely)
	}
	if rec.Conformity.DaysDifference != nil {
		days = *rec.Conformity.DaysDifference
	}

	err = runTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO results (
				processo, run_id, company_id, company_name, organ, unit, object,
				overall_status, conformity_score, timely, days_difference,
				publication_found, publication_date, publication_url, doc, audited_at
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(processo) DO UPDATE SET
				run_id = excluded.run_id,
				overall_status = excluded.overall_status,
				conformity_score = excluded.conformity_score,
				timely = excluded.timely,
				days_difference = excluded.days_difference,
				publication_found = excluded.publication_found,
				publication_date = excluded.publication_date,
				publication_url = excluded.publication_url,
				doc = excluded.doc,
				audited_at = excluded.audited_at`,
			rec.Conformity.Processo, rec.RunID,
			rec.Link.CompanyID, rec.Link.CompanyName,
			rec.Link.Path.Organ, rec.Link.Path.Unit, rec.Link.Path.Object,
			string(rec.Conformity.OverallStatus), rec.Conformity.ConformityScore,
			timely, days,
			boolToInt(rec.Publication.Found),
			rec.Publication.PublicationDate, rec.Publication.PublicationURL,
			string(doc), rec.AuditedAt.UTC().Format(time.RFC3339),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: save %s: %v", ErrPersistence, rec.Conformity.Processo, err)
	}
	return nil
}

// Get loads one audited unit by processo.
func (s *Store) Get(ctx context.Context, processo string) (*Record, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM results WHERE processo = ?`, processo).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrPersistence, processo, err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrPersistence, processo, err)
	}
	return &rec, nil
}

// List returns every audited unit ordered by company then processo.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM results ORDER BY company_id, processo`)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrPersistence, err)
		}
		var rec Record
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, fmt.Errorf("%w: decode: %v", ErrPersistence, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// StatusCounts aggregates verdicts for the run summary.
func (s *Store) StatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT overall_status, COUNT(*) FROM results GROUP BY overall_status`)
	if err != nil {
		return nil, fmt.Errorf("%w: counts: %v", ErrPersistence, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("%w: scan counts: %v", ErrPersistence, err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
