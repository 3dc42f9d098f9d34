package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/spatial"
)

// SQLiteStore implements Store on modernc.org/sqlite. The default driver for
// local runs; one file, no server.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database file, configures WAL mode, and
// bootstraps the schema.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	d, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := d.ExecContext(ctx, pragma); err != nil {
			d.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if _, err := d.ExecContext(ctx, sqliteSchema); err != nil {
		d.Close()
		return nil, eris.Wrap(err, "sqlite: bootstrap schema")
	}
	return &SQLiteStore{db: d}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS run_log (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	version     TEXT NOT NULL,
	state       TEXT NOT NULL,
	report      TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS canonical_records (
	run_id   TEXT NOT NULL REFERENCES run_log(id),
	source   TEXT NOT NULL,
	version  TEXT NOT NULL,
	row      INTEGER NOT NULL,
	doc      TEXT NOT NULL,
	geometry BLOB,
	PRIMARY KEY (run_id, source, version, row)
);

CREATE TABLE IF NOT EXISTS clusters (
	run_id          TEXT NOT NULL REFERENCES run_log(id),
	id              TEXT NOT NULL,
	name            TEXT NOT NULL,
	members         TEXT NOT NULL,
	merged_doc      TEXT,
	merged_geometry BLOB,
	needs_review    INTEGER NOT NULL DEFAULT 0,
	review_reason   TEXT,
	seq             INTEGER NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS coverage (
	run_id     TEXT NOT NULL REFERENCES run_log(id),
	cluster_id TEXT NOT NULL,
	cell       TEXT NOT NULL,
	ring       INTEGER NOT NULL,
	PRIMARY KEY (run_id, cluster_id, cell)
);

CREATE INDEX IF NOT EXISTS idx_run_log_started ON run_log(started_at);
CREATE INDEX IF NOT EXISTS idx_records_run ON canonical_records(run_id);
CREATE INDEX IF NOT EXISTS idx_clusters_run ON clusters(run_id);
`

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) StartRun(ctx context.Context, report *model.RunReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_log (id, source, version, state, report, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Source, report.SourceVersion, string(report.State), string(doc), report.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", report.RunID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, report *model.RunReport) error {
	return s.finishRun(ctx, report)
}

func (s *SQLiteStore) FailRun(ctx context.Context, report *model.RunReport) error {
	return s.finishRun(ctx, report)
}

func (s *SQLiteStore) finishRun(ctx context.Context, report *model.RunReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE run_log SET state = ?, report = ?, finished_at = ? WHERE id = ?`,
		string(report.State), string(doc), report.FinishedAt, report.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", report.RunID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", report.RunID)
	}
	return nil
}

func (s *SQLiteStore) SaveRecords(ctx context.Context, runID string, recs []*model.CanonicalRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO canonical_records (run_id, source, version, row, doc, geometry) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare record insert")
	}
	defer stmt.Close()

	for _, rec := range recs {
		doc, geomBytes, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		p := rec.Provenance
		if _, err := stmt.ExecContext(ctx, runID, p.Source, p.Version, p.Row, string(doc), geomBytes); err != nil {
			return eris.Wrapf(err, "sqlite: insert record %s", p.Key())
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit records")
}

func (s *SQLiteStore) SaveClusters(ctx context.Context, runID string, clusters []model.FacilityCluster) error {
	if len(clusters) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO clusters
		 (run_id, id, name, members, merged_doc, merged_geometry, needs_review, review_reason, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare cluster insert")
	}
	defer stmt.Close()

	for i := range clusters {
		c := &clusters[i]
		members, err := json.Marshal(c.Members)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal members")
		}
		var mergedDoc, mergedGeom []byte
		if c.Merged != nil {
			mergedDoc, mergedGeom, err = encodeRecord(c.Merged)
			if err != nil {
				return err
			}
		}
		if _, err := stmt.ExecContext(ctx,
			runID, c.ID, c.Name, string(members), nullableString(mergedDoc), mergedGeom,
			boolToInt(c.NeedsReview), c.ReviewReason, i,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert cluster %s", c.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit clusters")
}

func (s *SQLiteStore) SaveCoverage(ctx context.Context, runID string, rows []spatial.Coverage) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO coverage (run_id, cluster_id, cell, ring) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare coverage insert")
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, runID, row.ClusterID, model.CellID(row.Cell), row.Ring); err != nil {
			return eris.Wrapf(err, "sqlite: insert coverage for %s", row.ClusterID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit coverage")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.RunReport, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM run_log WHERE id = ?`, runID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	var report model.RunReport
	if err := json.Unmarshal([]byte(doc), &report); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal report")
	}
	return &report, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT report FROM run_log ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var reports []model.RunReport
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		var report model.RunReport
		if err := json.Unmarshal([]byte(doc), &report); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report")
		}
		reports = append(reports, report)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ExportClusters(ctx context.Context, runID string) ([]model.FacilityCluster, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, members, merged_doc, merged_geometry, needs_review, review_reason
		 FROM clusters WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: export clusters for %s", runID)
	}
	defer rows.Close()

	var clusters []model.FacilityCluster
	for rows.Next() {
		var c model.FacilityCluster
		var members string
		var mergedDoc sql.NullString
		var mergedGeom []byte
		var needsReview int
		var reason sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &members, &mergedDoc, &mergedGeom, &needsReview, &reason); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cluster")
		}
		if err := json.Unmarshal([]byte(members), &c.Members); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal members")
		}
		if mergedDoc.Valid {
			c.Merged, err = decodeRecord([]byte(mergedDoc.String), mergedGeom)
			if err != nil {
				return nil, err
			}
		}
		c.NeedsReview = needsReview != 0
		c.ReviewReason = reason.String
		clusters = append(clusters, c)
	}
	return clusters, eris.Wrap(rows.Err(), "sqlite: export clusters iterate")
}

// ParseCellID parses the hex cell form written by SaveCoverage.
func ParseCellID(s string) (uint64, error) {
	cell, err := strconv.ParseUint(s, 16, 64)
	return cell, eris.Wrapf(err, "store: parse cell id %q", s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
