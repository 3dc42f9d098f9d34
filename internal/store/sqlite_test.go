package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	geom "github.com/twpayne/go-geom"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/spatial"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testReport(runID string, started time.Time) *model.RunReport {
	r := model.NewRunReport(runID, "test_fields", "2024.1")
	r.StartedAt = started
	return r
}

func TestSQLiteRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	report := testReport("run-1", time.Now().UTC())
	report.RecordsRead = 42
	require.NoError(t, s.StartRun(ctx, report))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "test_fields", got.Source)
	assert.Equal(t, 42, got.RecordsRead)
	assert.Equal(t, model.RunIdle, got.State)

	report.Clusters = 7
	report.Finalize(model.RunCompleted)
	require.NoError(t, s.CompleteRun(ctx, report))

	got, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, got.State)
	assert.Equal(t, 7, got.Clusters)
}

func TestSQLiteGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLiteFailRunUnknownRun(t *testing.T) {
	s := newTestStore(t)
	report := testReport("never-started", time.Now().UTC())
	report.Finalize(model.RunFailed)

	err := s.FailRun(context.Background(), report)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLiteListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.StartRun(ctx, testReport(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0].RunID)
	assert.Equal(t, "old", runs[2].RunID)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].RunID)
}

func TestSQLiteSaveRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.StartRun(ctx, testReport("run-1", time.Now().UTC())))

	recs := []*model.CanonicalRecord{
		{
			Provenance: model.Provenance{Source: "test_fields", Version: "2024.1", Row: 0},
			Attrs:      map[string]model.Value{"field_name": model.StringValue("Safaniya")},
			Geometry:   geom.NewPointFlat(geom.XY, []float64{48.65, 28.05}),
			Cells:      map[int]uint64{5: spatial.CellAt(28.05, 48.65, 5)},
		},
		{
			Provenance: model.Provenance{Source: "test_fields", Version: "2024.1", Row: 1},
			Attrs:      map[string]model.Value{"field_name": model.StringValue("Nowhere")},
			Unlocated:  true,
		},
	}
	require.NoError(t, s.SaveRecords(ctx, "run-1", recs))

	// Idempotent: replacing the same rows is not an error.
	require.NoError(t, s.SaveRecords(ctx, "run-1", recs))
	require.NoError(t, s.SaveRecords(ctx, "run-1", nil))
}

func TestSQLiteClustersRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.StartRun(ctx, testReport("run-1", time.Now().UTC())))

	merged := &model.CanonicalRecord{
		Provenance: model.Provenance{Source: "test_fields", Version: "2024.1", Row: 0},
		Attrs: map[string]model.Value{
			"field_name":     model.StringValue("Safaniya"),
			"depth":          model.FloatValue(5250.5),
			"num_prod_wells": model.IntValue(32),
			"offshore":       model.BoolValue(true),
		},
		Geometry: geom.NewPointFlat(geom.XY, []float64{48.65, 28.05}),
		Cells:    map[int]uint64{5: spatial.CellAt(28.05, 48.65, 5), 9: spatial.CellAt(28.05, 48.65, 9)},
	}
	clusters := []model.FacilityCluster{
		{
			ID:   "cluster-b",
			Name: "Safaniya",
			Members: []model.Member{
				{Provenance: model.Provenance{Source: "test_fields", Version: "2024.1", Row: 0}, Score: 100},
				{Provenance: model.Provenance{Source: "other", Version: "1", Row: 3}, Score: 87.5},
			},
			Merged: merged,
		},
		{
			ID:           "cluster-a",
			Name:         "",
			Members:      []model.Member{{Provenance: model.Provenance{Source: "other", Version: "1", Row: 9}, Score: 100}},
			NeedsReview:  true,
			ReviewReason: "no location and no identifying attributes",
		},
	}
	require.NoError(t, s.SaveClusters(ctx, "run-1", clusters))

	got, err := s.ExportClusters(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Insert order survives, not lexical id order.
	assert.Equal(t, "cluster-b", got[0].ID)
	assert.Equal(t, "cluster-a", got[1].ID)

	first := got[0]
	assert.Equal(t, "Safaniya", first.Name)
	require.Len(t, first.Members, 2)
	assert.Equal(t, 87.5, first.Members[1].Score)
	assert.False(t, first.NeedsReview)

	require.NotNil(t, first.Merged)
	name, _ := first.Merged.Attr("field_name").AsString()
	assert.Equal(t, "Safaniya", name)
	depth, ok := first.Merged.Attr("depth").AsFloat()
	require.True(t, ok)
	assert.InDelta(t, 5250.5, depth, 1e-9)
	wells, ok := first.Merged.Attr("num_prod_wells").AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(32), wells)
	offshore, ok := first.Merged.Attr("offshore").AsBool()
	require.True(t, ok)
	assert.True(t, offshore)
	assert.Equal(t, merged.Cells, first.Merged.Cells)

	// Geometry survives the EWKB round trip.
	require.NotNil(t, first.Merged.Geometry)
	lon, lat, ok := spatial.RepresentativePoint(first.Merged.Geometry)
	require.True(t, ok)
	assert.InDelta(t, 48.65, lon, 1e-9)
	assert.InDelta(t, 28.05, lat, 1e-9)

	second := got[1]
	assert.True(t, second.NeedsReview)
	assert.Equal(t, "no location and no identifying attributes", second.ReviewReason)
	assert.Nil(t, second.Merged)
}

func TestSQLiteExportClustersEmptyRun(t *testing.T) {
	s := newTestStore(t)
	got, err := s.ExportClusters(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteSaveCoverage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.StartRun(ctx, testReport("run-1", time.Now().UTC())))

	cell := spatial.CellAt(28.05, 48.65, 9)
	rows := []spatial.Coverage{{ClusterID: "c1", Cell: cell, Ring: 0}}
	for _, n := range spatial.Neighborhood(cell, 1) {
		if n != cell {
			rows = append(rows, spatial.Coverage{ClusterID: "c1", Cell: n, Ring: 1})
		}
	}
	require.NoError(t, s.SaveCoverage(ctx, "run-1", rows))
	require.NoError(t, s.SaveCoverage(ctx, "run-1", rows)) // upsert
	require.NoError(t, s.SaveCoverage(ctx, "run-1", nil))
}

func TestParseCellID(t *testing.T) {
	cell := spatial.CellAt(28.05, 48.65, 9)
	got, err := ParseCellID(model.CellID(cell))
	require.NoError(t, err)
	assert.Equal(t, cell, got)

	_, err = ParseCellID("not-hex")
	require.Error(t, err)
}
