package source

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// parseGeometryCell parses a tabular geometry cell. WKT is tried first;
// a bare "lon,lat" pair falls back to a point.
func parseGeometryCell(s string) (geom.T, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, eris.New("source: empty geometry cell")
	}

	if g, err := wkt.Unmarshal(s); err == nil {
		return g, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) == 2 {
		lon, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lat, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errX == nil && errY == nil {
			return geom.NewPointFlat(geom.XY, []float64{lon, lat}), nil
		}
	}

	return nil, eris.Errorf("source: unparseable geometry %q", s)
}
