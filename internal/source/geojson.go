package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/schema"
)

// geojsonReader yields one RawRecord per feature of a FeatureCollection,
// feature properties as values.
type geojsonReader struct {
	path    string
	cfg     *schema.MappingConfig
	skipped atomic.Int64
}

func openGeoJSON(path string, cfg *schema.MappingConfig) (*geojsonReader, error) {
	return &geojsonReader{path: path, cfg: cfg}, nil
}

func (r *geojsonReader) Read(ctx context.Context) (<-chan model.RawRecord, <-chan error) {
	recCh := make(chan model.RawRecord, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		data, err := os.ReadFile(r.path)
		if err != nil {
			errCh <- eris.Wrapf(ErrRead, "open %s: %v", r.path, err)
			return
		}

		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			errCh <- eris.Wrapf(ErrRead, "parse %s: %v", r.path, err)
			return
		}
		if len(fc.Features) == 0 {
			errCh <- eris.Wrapf(ErrRead, "%s: no features", r.path)
			return
		}

		yielded := 0
		for i, feat := range fc.Features {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "geojson: read cancelled")
				return
			}
			if feat == nil || feat.Geometry == nil {
				r.skipped.Add(1)
				zap.L().Debug("geojson: skipping feature without geometry", zap.Int("feature", i))
				continue
			}

			columns := make([]string, 0, len(feat.Properties))
			for k := range feat.Properties {
				columns = append(columns, k)
			}
			sort.Strings(columns)
			values := make(map[string]model.Value, len(columns))
			for _, k := range columns {
				values[k] = propertyValue(feat.Properties[k])
			}

			rec := model.RawRecord{
				Index:    yielded,
				Columns:  columns,
				Values:   values,
				Geometry: feat.Geometry,
			}

			select {
			case recCh <- rec:
				yielded++
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "geojson: read cancelled")
				return
			}
		}

		if yielded == 0 {
			errCh <- eris.Wrapf(ErrRead, "%s: no usable features", r.path)
		}
	}()

	return recCh, errCh
}

// propertyValue types a GeoJSON property. JSON numbers and booleans keep
// their type; everything else is rendered to a string for the mapper.
func propertyValue(v any) model.Value {
	switch t := v.(type) {
	case nil:
		return model.NullValue()
	case string:
		return cellValue(t)
	case float64:
		return model.FloatValue(t)
	case bool:
		return model.BoolValue(t)
	default:
		return model.StringValue(fmt.Sprintf("%v", t))
	}
}

func (r *geojsonReader) Skipped() int { return int(r.skipped.Load()) }

func (r *geojsonReader) Close() error { return nil }
