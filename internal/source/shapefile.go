package source

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/schema"
)

// shpReader streams one shapefile: one RawRecord per feature, DBF
// attributes as values, the shape decoded into go-geom in the source CRS.
type shpReader struct {
	reader  *shp.Reader
	path    string
	cfg     *schema.MappingConfig
	opts    schema.ShapefileOptions
	skipped atomic.Int64
}

func openShapefile(path string, cfg *schema.MappingConfig) (*shpReader, error) {
	shpPath, err := ResolveShapefile(path)
	if err != nil {
		return nil, err
	}
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(ErrRead, "open shapefile %s: %v", shpPath, err)
	}
	r := &shpReader{reader: reader, path: shpPath, cfg: cfg}
	if cfg.FileSpecific.Shapefile != nil {
		r.opts = *cfg.FileSpecific.Shapefile
	}
	return r, nil
}

func (r *shpReader) Read(ctx context.Context) (<-chan model.RawRecord, <-chan error) {
	recCh := make(chan model.RawRecord, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		fields := r.reader.Fields()
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = strings.TrimRight(f.String(), "\x00")
		}

		keep := make(map[string]bool, len(r.opts.FilterAttributes))
		for _, a := range r.opts.FilterAttributes {
			keep[strings.ToLower(a)] = true
		}

		columns := make([]string, 0, len(names))
		colIdx := make([]int, 0, len(names))
		for i, n := range names {
			if len(keep) > 0 && !keep[strings.ToLower(n)] {
				continue
			}
			columns = append(columns, n)
			colIdx = append(colIdx, i)
		}

		yielded := 0
		feature := -1
		for r.reader.Next() {
			feature++
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "shapefile: read cancelled")
				return
			}

			_, shape := r.reader.Shape()

			rec := model.RawRecord{
				Index:   yielded,
				Columns: columns,
				Values:  make(map[string]model.Value, len(columns)),
			}
			for j, col := range columns {
				raw := strings.TrimRight(r.reader.Attribute(colIdx[j]), "\x00")
				rec.Values[col] = cellValue(raw)
			}

			g, err := decodeShape(shape)
			if err != nil || g == nil {
				r.skipped.Add(1)
				zap.L().Debug("shapefile: skipping feature with unparseable geometry",
					zap.Int("feature", feature),
				)
				continue
			}
			rec.Geometry = g

			select {
			case recCh <- rec:
				yielded++
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "shapefile: read cancelled")
				return
			}
		}

		if err := r.reader.Err(); err != nil {
			errCh <- eris.Wrapf(ErrRead, "read %s: %v", r.path, err)
			return
		}
		if yielded == 0 {
			errCh <- eris.Wrapf(ErrRead, "%s: no features", r.path)
		}
	}()

	return recCh, errCh
}

// decodeShape converts a go-shp shape into go-geom. Point, polyline, and
// polygon families are supported; other shape types yield nil.
func decodeShape(shape shp.Shape) (geom.T, error) {
	if shape == nil {
		return nil, nil
	}

	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}), nil

	case *shp.PointZ:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}), nil

	case *shp.PolyLine:
		return polyLineToMultiLineString(s), nil

	case *shp.Polygon:
		return polygonToMultiPolygon((*shp.PolyLine)(s)), nil

	default:
		return nil, eris.Errorf("source: unsupported shape type %T", shape)
	}
}

func polyLineToMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i := int32(0); i < pl.NumParts; i++ {
		flat := partCoords(pl.Points, pl.Parts, i, pl.NumParts)
		if len(flat) < 4 {
			continue
		}
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
			continue
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

func polygonToMultiPolygon(p *shp.PolyLine) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		flat := partCoords(p.Points, p.Parts, i, p.NumParts)
		if len(flat) < 8 {
			continue
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			continue
		}
		if err := mp.Push(poly); err != nil {
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func partCoords(points []shp.Point, parts []int32, i, numParts int32) []float64 {
	start := parts[i]
	end := int32(len(points))
	if i+1 < numParts {
		end = parts[i+1]
	}
	flat := make([]float64, 0, (end-start)*2)
	for j := start; j < end; j++ {
		flat = append(flat, points[j].X, points[j].Y)
	}
	return flat
}

func (r *shpReader) Skipped() int { return int(r.skipped.Load()) }

func (r *shpReader) Close() error { return r.reader.Close() }
