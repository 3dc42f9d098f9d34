package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	geom "github.com/twpayne/go-geom"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/schema"
	"github.com/pyxis-energy/pyxis-cli/internal/vocab"
)

const csvConfig = `{
  "data_metadata": {
    "name": "test_fields",
    "type": "csv",
    "version": "1",
    "attributes": [
      {"name": "NAME", "type": "string"},
      {"name": "DEPTH", "type": "number", "units": "ft"}
    ]
  },
  "spatial_configuration": {"enabled": true, "geometry_field": "GEOM"},
  "mappings": [
    {"source_attribute": "NAME", "target_attribute": "field_name"},
    {"source_attribute": "DEPTH", "target_attribute": "depth"}
  ]
}`

func csvMapping(t *testing.T) *schema.MappingConfig {
	t.Helper()
	cfg, err := schema.Validate([]byte(csvConfig), vocab.Default())
	require.NoError(t, err)
	return cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func drain(t *testing.T, r Reader) ([]model.RawRecord, error) {
	t.Helper()
	recCh, errCh := r.Read(context.Background())
	var recs []model.RawRecord
	for rec := range recCh {
		recs = append(recs, rec)
	}
	return recs, <-errCh
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.csv"), csvMapping(t))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRead))
}

func TestCSVReadsRowsInOrder(t *testing.T) {
	path := writeFile(t, "fields.csv",
		"NAME,DEPTH,GEOM\n"+
			"Safaniya,5200,\"POINT (48.65 28.05)\"\n"+
			"Marlim,,\"-39.9,-22.4\"\n"+
			"Ghawar,6000,\n")

	r, err := Open(path, csvMapping(t))
	require.NoError(t, err)
	defer r.Close()

	recs, err := drain(t, r)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, 0, r.Skipped())

	for i, rec := range recs {
		assert.Equal(t, i, rec.Index)
		assert.Equal(t, []string{"NAME", "DEPTH", "GEOM"}, rec.Columns)
	}

	name, ok := recs[0].Values["NAME"].AsString()
	require.True(t, ok)
	assert.Equal(t, "Safaniya", name)

	// WKT geometry cell.
	require.NotNil(t, recs[0].Geometry)
	pt, ok := recs[0].Geometry.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, 48.65, pt.X(), 1e-9)
	assert.InDelta(t, 28.05, pt.Y(), 1e-9)

	// Bare lon,lat pair falls back to a point; empty cell is null.
	require.NotNil(t, recs[1].Geometry)
	assert.True(t, recs[1].Values["DEPTH"].IsNull())

	// Empty geometry cell leaves the record without geometry.
	assert.Nil(t, recs[2].Geometry)
}

func TestCSVSkipsColumnCountMismatch(t *testing.T) {
	path := writeFile(t, "fields.csv",
		"NAME,DEPTH,GEOM\n"+
			"Safaniya,5200,\n"+
			"short,row\n"+
			"Ghawar,6000,\n")

	r, err := Open(path, csvMapping(t))
	require.NoError(t, err)
	defer r.Close()

	recs, err := drain(t, r)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, 1, r.Skipped())

	// Index numbers yielded records, not file rows.
	assert.Equal(t, 0, recs[0].Index)
	assert.Equal(t, 1, recs[1].Index)
}

func TestCSVNoDataRows(t *testing.T) {
	path := writeFile(t, "fields.csv", "NAME,DEPTH,GEOM\n")

	r, err := Open(path, csvMapping(t))
	require.NoError(t, err)
	defer r.Close()

	_, err = drain(t, r)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRead))
}

func TestCSVHeaderRowOffsetAndDelimiter(t *testing.T) {
	doc := `{
	  "data_metadata": {"name": "x", "type": "csv", "version": "1", "attributes": []},
	  "file_specific": {"csv": {"delimiter": ";", "header_row": 1}},
	  "mappings": [{"source_attribute": "NAME", "target_attribute": "field_name"}]
	}`
	cfg, err := schema.Validate([]byte(doc), vocab.Default())
	require.NoError(t, err)

	path := writeFile(t, "fields.csv",
		"exported 2024-01-01\n"+
			"NAME;DEPTH\n"+
			"Safaniya;5200\n")

	r, err := Open(path, cfg)
	require.NoError(t, err)
	defer r.Close()

	recs, err := drain(t, r)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"NAME", "DEPTH"}, recs[0].Columns)
}

func TestCSVLatin1Encoding(t *testing.T) {
	doc := `{
	  "data_metadata": {"name": "x", "type": "csv", "version": "1", "attributes": []},
	  "file_specific": {"csv": {"encoding": "latin-1"}},
	  "mappings": [{"source_attribute": "NAME", "target_attribute": "field_name"}]
	}`
	cfg, err := schema.Validate([]byte(doc), vocab.Default())
	require.NoError(t, err)

	// "Campo São" with ã as the Latin-1 byte 0xE3.
	raw := []byte("NAME\nCampo S\xE3o\n")
	path := filepath.Join(t.TempDir(), "latin.csv")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	r, err := Open(path, cfg)
	require.NoError(t, err)
	defer r.Close()

	recs, err := drain(t, r)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	name, ok := recs[0].Values["NAME"].AsString()
	require.True(t, ok)
	assert.Equal(t, "Campo São", name)
}

func TestCSVUnsupportedEncoding(t *testing.T) {
	doc := `{
	  "data_metadata": {"name": "x", "type": "csv", "version": "1", "attributes": []},
	  "file_specific": {"csv": {"encoding": "ebcdic"}},
	  "mappings": [{"source_attribute": "NAME", "target_attribute": "field_name"}]
	}`
	cfg, err := schema.Validate([]byte(doc), vocab.Default())
	require.NoError(t, err)

	path := writeFile(t, "fields.csv", "NAME\nSafaniya\n")
	r, err := Open(path, cfg)
	require.NoError(t, err)
	defer r.Close()

	_, err = drain(t, r)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRead))
}

func TestGeoJSONReadsFeatures(t *testing.T) {
	doc := `{
	  "data_metadata": {"name": "x", "type": "geojson", "version": "1", "attributes": []},
	  "spatial_configuration": {"enabled": true},
	  "mappings": [{"source_attribute": "name", "target_attribute": "field_name"}]
	}`
	cfg, err := schema.Validate([]byte(doc), vocab.Default())
	require.NoError(t, err)

	path := writeFile(t, "fields.geojson", `{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [48.65, 28.05]},
	     "properties": {"name": "Safaniya", "depth": 5200, "offshore": true}},
	    {"type": "Feature", "geometry": null, "properties": {"name": "nowhere"}},
	    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-39.9, -22.4]},
	     "properties": {"name": "Marlim", "depth": null}}
	  ]
	}`)

	r, err := Open(path, cfg)
	require.NoError(t, err)
	defer r.Close()

	recs, err := drain(t, r)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 1, r.Skipped())

	name, _ := recs[0].Values["name"].AsString()
	assert.Equal(t, "Safaniya", name)

	// JSON numbers and booleans keep their type.
	depth, ok := recs[0].Values["depth"].AsFloat()
	require.True(t, ok)
	assert.Equal(t, 5200.0, depth)
	offshore, ok := recs[0].Values["offshore"].AsBool()
	require.True(t, ok)
	assert.True(t, offshore)

	require.NotNil(t, recs[0].Geometry)
	assert.True(t, recs[1].Values["depth"].IsNull())
}

func TestGeoJSONNoFeatures(t *testing.T) {
	doc := `{
	  "data_metadata": {"name": "x", "type": "geojson", "version": "1", "attributes": []},
	  "mappings": [{"source_attribute": "name", "target_attribute": "field_name"}]
	}`
	cfg, err := schema.Validate([]byte(doc), vocab.Default())
	require.NoError(t, err)

	path := writeFile(t, "empty.geojson", `{"type": "FeatureCollection", "features": []}`)
	r, err := Open(path, cfg)
	require.NoError(t, err)
	defer r.Close()

	_, err = drain(t, r)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRead))
}

func TestResolveShapefile(t *testing.T) {
	dir := t.TempDir()
	shpPath := filepath.Join(dir, "fields.shp")
	require.NoError(t, os.WriteFile(shpPath, []byte("stub"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fields.dbf"), []byte("stub"), 0o644))

	// A directory resolves to the .shp inside it.
	got, err := ResolveShapefile(dir)
	require.NoError(t, err)
	assert.Equal(t, shpPath, got)

	// A .shp path passes through.
	got, err = ResolveShapefile(shpPath)
	require.NoError(t, err)
	assert.Equal(t, shpPath, got)
}

func TestResolveShapefileMissing(t *testing.T) {
	_, err := ResolveShapefile(t.TempDir())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRead))

	_, err = ResolveShapefile(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRead))
}

func TestParseGeometryCell(t *testing.T) {
	g, err := parseGeometryCell("POINT (48.65 28.05)")
	require.NoError(t, err)
	pt, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, 48.65, pt.X(), 1e-9)

	g, err = parseGeometryCell(" -39.9 , -22.4 ")
	require.NoError(t, err)
	pt, ok = g.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, -39.9, pt.X(), 1e-9)
	assert.InDelta(t, -22.4, pt.Y(), 1e-9)

	_, err = parseGeometryCell("")
	require.Error(t, err)
	_, err = parseGeometryCell("not a geometry")
	require.Error(t, err)
}
