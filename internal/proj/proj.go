// Package proj normalizes geometries into EPSG:4326. Sources report either
// geographic coordinates already (passthrough) or web-mercator meters, which
// covers the harmonized source inventory; anything else is rejected at
// mapping time rather than silently passed through.
package proj

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
)

// CanonicalCRS is the CRS every CanonicalRecord geometry is normalized to.
const CanonicalCRS = "EPSG:4326"

const earthRadius = 6378137.0

// Supported reports whether the source CRS can be normalized.
func Supported(crs string) bool {
	switch normalizeCRS(crs) {
	case "EPSG:4326", "EPSG:3857", "EPSG:900913":
		return true
	}
	return false
}

// ToWGS84 reprojects g from the source CRS into EPSG:4326. The input
// geometry is not modified; passthrough returns it unchanged.
func ToWGS84(g geom.T, sourceCRS string) (geom.T, error) {
	if g == nil {
		return nil, eris.New("proj: nil geometry")
	}

	switch normalizeCRS(sourceCRS) {
	case "EPSG:4326":
		if err := checkLonLatBounds(g.FlatCoords(), g.Stride()); err != nil {
			return nil, err
		}
		return g, nil
	case "EPSG:3857", "EPSG:900913":
		return transform(g, webMercatorToLonLat)
	default:
		return nil, eris.Errorf("proj: unsupported source CRS %q", sourceCRS)
	}
}

func normalizeCRS(crs string) string {
	return strings.ToUpper(strings.TrimSpace(crs))
}

func checkLonLatBounds(flat []float64, stride int) error {
	if stride < 2 {
		return eris.New("proj: geometry stride < 2")
	}
	for i := 0; i+1 < len(flat); i += stride {
		lon, lat := flat[i], flat[i+1]
		if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
			return eris.Errorf("proj: coordinate (%g, %g) outside EPSG:4326 bounds", lon, lat)
		}
	}
	return nil
}

func webMercatorToLonLat(x, y float64) (float64, float64) {
	lon := x / earthRadius * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return lon, lat
}

// transform rebuilds g with fn applied to every vertex, preserving the
// geometry type and ring/part structure.
func transform(g geom.T, fn func(x, y float64) (float64, float64)) (geom.T, error) {
	flat := g.FlatCoords()
	stride := g.Stride()
	if stride < 2 {
		return nil, eris.New("proj: geometry stride < 2")
	}

	out := make([]float64, len(flat))
	copy(out, flat)
	for i := 0; i+1 < len(flat); i += stride {
		out[i], out[i+1] = fn(flat[i], flat[i+1])
	}

	switch t := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(t.Layout(), out), nil
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(t.Layout(), out), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(t.Layout(), out), nil
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(t.Layout(), out, t.Ends()), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(t.Layout(), out, t.Ends()), nil
	case *geom.MultiPolygon:
		return geom.NewMultiPolygonFlat(t.Layout(), out, t.Endss()), nil
	default:
		return nil, eris.Errorf("proj: unsupported geometry type %T", g)
	}
}
