package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pyxis-energy/pyxis-cli/internal/db"
	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/spatial"
)

// copyBatchSize bounds one COPY round trip during bulk record loads.
const copyBatchSize = 5000

// PostgresStore implements Store on a pgx pool. Geometry columns carry EWKB
// so a PostGIS deployment can cast them directly.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres wraps an open pool and bootstraps the schema.
func NewPostgres(ctx context.Context, pool db.Pool) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, eris.Wrap(err, "postgres: bootstrap schema")
	}
	return s, nil
}

const postgresSchema = `
CREATE SCHEMA IF NOT EXISTS pyxis;

CREATE TABLE IF NOT EXISTS pyxis.run_log (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	version     TEXT NOT NULL,
	state       TEXT NOT NULL,
	report      JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS pyxis.canonical_records (
	run_id   TEXT NOT NULL REFERENCES pyxis.run_log(id),
	source   TEXT NOT NULL,
	version  TEXT NOT NULL,
	row      INTEGER NOT NULL,
	doc      JSONB NOT NULL,
	geometry BYTEA,
	PRIMARY KEY (run_id, source, version, row)
);

CREATE TABLE IF NOT EXISTS pyxis.clusters (
	run_id          TEXT NOT NULL REFERENCES pyxis.run_log(id),
	id              TEXT NOT NULL,
	name            TEXT NOT NULL,
	members         JSONB NOT NULL,
	merged_doc      JSONB,
	merged_geometry BYTEA,
	needs_review    BOOLEAN NOT NULL DEFAULT FALSE,
	review_reason   TEXT,
	seq             INTEGER NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS pyxis.coverage (
	run_id     TEXT NOT NULL REFERENCES pyxis.run_log(id),
	cluster_id TEXT NOT NULL,
	cell       TEXT NOT NULL,
	ring       INTEGER NOT NULL,
	PRIMARY KEY (run_id, cluster_id, cell)
);

CREATE INDEX IF NOT EXISTS idx_run_log_started ON pyxis.run_log(started_at);
CREATE INDEX IF NOT EXISTS idx_records_run ON pyxis.canonical_records(run_id);
CREATE INDEX IF NOT EXISTS idx_clusters_run ON pyxis.clusters(run_id);
`

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) StartRun(ctx context.Context, report *model.RunReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO pyxis.run_log (id, source, version, state, report, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		report.RunID, report.Source, report.SourceVersion, string(report.State), doc, report.StartedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", report.RunID)
}

func (s *PostgresStore) CompleteRun(ctx context.Context, report *model.RunReport) error {
	return s.finishRun(ctx, report)
}

func (s *PostgresStore) FailRun(ctx context.Context, report *model.RunReport) error {
	return s.finishRun(ctx, report)
}

func (s *PostgresStore) finishRun(ctx context.Context, report *model.RunReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE pyxis.run_log SET state = $1, report = $2, finished_at = $3 WHERE id = $4`,
		string(report.State), doc, report.FinishedAt, report.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", report.RunID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", report.RunID)
	}
	return nil
}

// SaveRecords bulk-loads records over the COPY protocol in batches.
func (s *PostgresStore) SaveRecords(ctx context.Context, runID string, recs []*model.CanonicalRecord) error {
	columns := []string{"run_id", "source", "version", "row", "doc", "geometry"}

	for start := 0; start < len(recs); start += copyBatchSize {
		end := min(start+copyBatchSize, len(recs))
		rows := make([][]any, 0, end-start)
		for _, rec := range recs[start:end] {
			doc, geomBytes, err := encodeRecord(rec)
			if err != nil {
				return err
			}
			p := rec.Provenance
			rows = append(rows, []any{runID, p.Source, p.Version, p.Row, doc, geomBytes})
		}

		n, err := db.CopyFromSchema(ctx, s.pool, "pyxis", "canonical_records", columns, rows)
		if err != nil {
			return err
		}
		zap.L().Debug("postgres: records batch loaded",
			zap.String("run_id", runID),
			zap.Int64("rows", n),
		)
	}
	return nil
}

// SaveClusters upserts clusters so a re-run of the same run id replaces its
// output instead of duplicating it.
func (s *PostgresStore) SaveClusters(ctx context.Context, runID string, clusters []model.FacilityCluster) error {
	if len(clusters) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(clusters))
	for i := range clusters {
		c := &clusters[i]
		members, err := json.Marshal(c.Members)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal members")
		}
		var mergedDoc, mergedGeom []byte
		if c.Merged != nil {
			mergedDoc, mergedGeom, err = encodeRecord(c.Merged)
			if err != nil {
				return err
			}
		}
		rows = append(rows, []any{
			runID, c.ID, c.Name, members, nullableBytes(mergedDoc), mergedGeom,
			c.NeedsReview, c.ReviewReason, i,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "pyxis.clusters",
		Columns:      []string{"run_id", "id", "name", "members", "merged_doc", "merged_geometry", "needs_review", "review_reason", "seq"},
		ConflictKeys: []string{"run_id", "id"},
	}, rows)
	return err
}

func (s *PostgresStore) SaveCoverage(ctx context.Context, runID string, rows []spatial.Coverage) error {
	if len(rows) == 0 {
		return nil
	}

	data := make([][]any, 0, len(rows))
	for _, row := range rows {
		data = append(data, []any{runID, row.ClusterID, model.CellID(row.Cell), row.Ring})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "pyxis.coverage",
		Columns:      []string{"run_id", "cluster_id", "cell", "ring"},
		ConflictKeys: []string{"run_id", "cluster_id", "cell"},
	}, data)
	return err
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.RunReport, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT report FROM pyxis.run_log WHERE id = $1`, runID).Scan(&doc)
	if err == pgx.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	var report model.RunReport
	if err := json.Unmarshal(doc, &report); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal report")
	}
	return &report, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT report FROM pyxis.run_log ORDER BY started_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var reports []model.RunReport
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		var report model.RunReport
		if err := json.Unmarshal(doc, &report); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal report")
		}
		reports = append(reports, report)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ExportClusters(ctx context.Context, runID string) ([]model.FacilityCluster, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, members, merged_doc, merged_geometry, needs_review, review_reason
		 FROM pyxis.clusters WHERE run_id = $1 ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: export clusters for %s", runID)
	}
	defer rows.Close()

	var clusters []model.FacilityCluster
	for rows.Next() {
		var c model.FacilityCluster
		var members, mergedDoc, mergedGeom []byte
		var reason *string
		if err := rows.Scan(&c.ID, &c.Name, &members, &mergedDoc, &mergedGeom, &c.NeedsReview, &reason); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cluster")
		}
		if err := json.Unmarshal(members, &c.Members); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal members")
		}
		if len(mergedDoc) > 0 {
			c.Merged, err = decodeRecord(mergedDoc, mergedGeom)
			if err != nil {
				return nil, err
			}
		}
		if reason != nil {
			c.ReviewReason = *reason
		}
		clusters = append(clusters, c)
	}
	return clusters, eris.Wrap(rows.Err(), "postgres: export clusters iterate")
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
