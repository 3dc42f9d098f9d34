package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
)

const srid = 4326

// recordDoc is the JSON shape a canonical record's non-geometry parts take
// in both drivers. Geometry travels separately as EWKB.
type recordDoc struct {
	Provenance model.Provenance       `json:"provenance"`
	Attrs      map[string]model.Value `json:"attrs"`
	Cells      map[int]uint64         `json:"cells,omitempty"`
	Unlocated  bool                   `json:"unlocated,omitempty"`
}

func encodeRecord(rec *model.CanonicalRecord) (doc []byte, geomBytes []byte, err error) {
	doc, err = json.Marshal(recordDoc{
		Provenance: rec.Provenance,
		Attrs:      rec.Attrs,
		Cells:      rec.Cells,
		Unlocated:  rec.Unlocated,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal record")
	}
	geomBytes, err = encodeGeometry(rec.Geometry)
	if err != nil {
		return nil, nil, err
	}
	return doc, geomBytes, nil
}

func decodeRecord(doc []byte, geomBytes []byte) (*model.CanonicalRecord, error) {
	var d recordDoc
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal record")
	}
	g, err := decodeGeometry(geomBytes)
	if err != nil {
		return nil, err
	}
	return &model.CanonicalRecord{
		Provenance: d.Provenance,
		Attrs:      d.Attrs,
		Cells:      d.Cells,
		Geometry:   g,
		Unlocated:  d.Unlocated,
	}, nil
}

// encodeGeometry renders a geometry as little-endian EWKB with SRID 4326,
// nil for an absent geometry.
func encodeGeometry(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	switch t := g.(type) {
	case *geom.Point:
		t.SetSRID(srid)
	case *geom.LineString:
		t.SetSRID(srid)
	case *geom.Polygon:
		t.SetSRID(srid)
	case *geom.MultiPoint:
		t.SetSRID(srid)
	case *geom.MultiLineString:
		t.SetSRID(srid)
	case *geom.MultiPolygon:
		t.SetSRID(srid)
	}
	data, err := ewkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode geometry")
	}
	return data, nil
}

func decodeGeometry(data []byte) (geom.T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "store: decode geometry")
	}
	return g, nil
}
