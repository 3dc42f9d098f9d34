package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyxis-energy/pyxis-cli/internal/config"
	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/source"
	"github.com/pyxis-energy/pyxis-cli/internal/vocab"
)

const testConfigDoc = `{
  "data_metadata": {
    "name": "test_fields",
    "type": "csv",
    "version": "2024.1",
    "attributes": [
      {"name": "NAME", "type": "string"},
      {"name": "OIL", "type": "number", "units": "bbl/d", "required": true},
      {"name": "DEPTH", "type": "number", "units": "ft"}
    ]
  },
  "spatial_configuration": {"enabled": true, "geometry_field": "GEOM"},
  "source_metadata": {"reliability": 8, "recency": 7, "coverage": 6},
  "mappings": [
    {"source_attribute": "NAME", "target_attribute": "field_name"},
    {"source_attribute": "OIL", "target_attribute": "oil_prod"},
    {"source_attribute": "DEPTH", "target_attribute": "depth"}
  ]
}`

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{Workers: 2, TimeoutSecs: 60, MaxRejectRatio: 0.5},
		Spatial: config.SpatialConfig{
			Resolutions:     []int{5, 9},
			MatchResolution: 5,
			NeighborhoodK:   1,
			SmoothK:         2,
		},
		Resolver: config.ResolverConfig{
			NameWeight:     0.7,
			GeoWeight:      0.3,
			Threshold:      60,
			DistanceCutoff: 50,
			MaxClusterSize: 8,
		},
	}
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunEndToEnd(t *testing.T) {
	path := writeCSV(t,
		"NAME,OIL,DEPTH,GEOM\n"+
			"Safaniya Field,1000,5200,\"48.65,28.05\"\n"+
			"Marlim,800,4100,\"-39.9,-22.4\"\n"+
			"Safaniya,1200,5300,\"48.65,28.05\"\n")

	p := New(testConfig(), vocab.Default(), nil)
	result, err := p.Run(context.Background(), []byte(testConfigDoc), path)
	require.NoError(t, err)
	require.NotNil(t, result)

	report := result.Report
	assert.Equal(t, model.RunCompleted, report.State)
	assert.Equal(t, "test_fields", report.Source)
	assert.Equal(t, "2024.1", report.SourceVersion)
	assert.Equal(t, 3, report.RecordsRead)
	assert.Equal(t, 0, report.Rejected)
	assert.Equal(t, 3, report.Indexed)
	assert.Equal(t, 0, report.Unlocated)
	assert.Equal(t, 2, report.Clusters)
	assert.Equal(t, 1, report.Singletons)
	assert.False(t, report.FinishedAt.IsZero())

	// Every stage completed.
	require.Len(t, report.Stages, 5)
	names := make([]string, len(report.Stages))
	for i, st := range report.Stages {
		names[i] = st.Name
		assert.Equal(t, "completed", st.Status, st.Name)
	}
	assert.Equal(t, []string{"validate", "read", "map", "index", "resolve"}, names)

	assert.Len(t, result.Records, 3)
	require.Len(t, result.Clusters, 2)
	assert.Equal(t, 2, result.Clusters[0].Size())

	// The merged record averages the pair's production.
	oil, ok := result.Clusters[0].Merged.Attr("oil_prod").AsFloat()
	require.True(t, ok)
	assert.InDelta(t, 1100.0, oil, 1e-9)
}

func TestRunDeterministic(t *testing.T) {
	path := writeCSV(t,
		"NAME,OIL,DEPTH,GEOM\n"+
			"Safaniya Field,1000,5200,\"48.65,28.05\"\n"+
			"Marlim,800,4100,\"-39.9,-22.4\"\n"+
			"Safaniya,1200,5300,\"48.65,28.05\"\n")

	p := New(testConfig(), vocab.Default(), nil)
	first, err := p.Run(context.Background(), []byte(testConfigDoc), path)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), []byte(testConfigDoc), path)
	require.NoError(t, err)

	require.Equal(t, len(first.Clusters), len(second.Clusters))
	for i := range first.Clusters {
		assert.Equal(t, first.Clusters[i].ID, second.Clusters[i].ID)
		assert.Equal(t, first.Clusters[i].Name, second.Clusters[i].Name)
	}
}

func TestRunCountsRejects(t *testing.T) {
	path := writeCSV(t,
		"NAME,OIL,DEPTH,GEOM\n"+
			"Safaniya,1000,5200,\"48.65,28.05\"\n"+
			"NoOil,,4100,\"-39.9,-22.4\"\n"+
			"Marlim,800,4100,\"-39.9,-22.4\"\n")

	p := New(testConfig(), vocab.Default(), nil)
	result, err := p.Run(context.Background(), []byte(testConfigDoc), path)
	require.NoError(t, err)

	report := result.Report
	assert.Equal(t, 3, report.RecordsRead)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 1, report.RejectReasons["required attribute oil_prod missing"])
	assert.Len(t, result.Records, 2)
}

func TestRunFailsOnRejectRatio(t *testing.T) {
	path := writeCSV(t,
		"NAME,OIL,DEPTH,GEOM\n"+
			"Safaniya,1000,5200,\"48.65,28.05\"\n"+
			"NoOil,,4100,\n"+
			"AlsoNoOil,,4100,\n")

	p := New(testConfig(), vocab.Default(), nil)
	result, err := p.Run(context.Background(), []byte(testConfigDoc), path)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRejectRatio))
	assert.Contains(t, err.Error(), "required attribute oil_prod missing")

	// The report comes back with the failure recorded.
	require.NotNil(t, result)
	assert.Equal(t, model.RunFailed, result.Report.State)
	assert.NotEmpty(t, result.Report.Error)
}

func TestRunFailsWhenAllRecordsRejected(t *testing.T) {
	path := writeCSV(t,
		"NAME,OIL,DEPTH,GEOM\n"+
			"NoOil,,4100,\n")

	p := New(testConfig(), vocab.Default(), nil)
	result, err := p.Run(context.Background(), []byte(testConfigDoc), path)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoRecords))
	assert.Equal(t, model.RunFailed, result.Report.State)
}

func TestRunFailsOnInvalidConfig(t *testing.T) {
	p := New(testConfig(), vocab.Default(), nil)
	result, err := p.Run(context.Background(), []byte(`{"mappings": []}`), "ignored.csv")
	require.Error(t, err)

	require.NotNil(t, result)
	report := result.Report
	assert.Equal(t, model.RunFailed, report.State)
	require.NotEmpty(t, report.Stages)
	assert.Equal(t, "validate", report.Stages[0].Name)
	assert.Equal(t, "failed", report.Stages[0].Status)
}

func TestRunFailsOnMissingFile(t *testing.T) {
	p := New(testConfig(), vocab.Default(), nil)
	result, err := p.Run(context.Background(), []byte(testConfigDoc),
		filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, source.ErrRead))
	assert.Equal(t, model.RunFailed, result.Report.State)
}

func TestRunKeepsUnlocatedRecords(t *testing.T) {
	path := writeCSV(t,
		"NAME,OIL,DEPTH,GEOM\n"+
			"Safaniya,1000,5200,\"48.65,28.05\"\n"+
			"Nowhere,900,4000,\n")

	p := New(testConfig(), vocab.Default(), nil)
	result, err := p.Run(context.Background(), []byte(testConfigDoc), path)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Report.Indexed)
	assert.Equal(t, 1, result.Report.Unlocated)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, 2, result.Report.Clusters)
}

func TestRejectReasonStripsSentinelTail(t *testing.T) {
	err := eris.Wrap(eris.New("mapper: record rejected"), "required attribute oil_prod missing")
	assert.Equal(t, "required attribute oil_prod missing", rejectReason(err))

	plain := eris.New("some other failure")
	assert.Equal(t, rejectReason(plain), plain.Error())
}
