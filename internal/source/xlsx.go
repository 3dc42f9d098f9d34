package source

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/schema"
)

// xlsxReader streams one worksheet of a workbook. An empty sheet name
// selects the first sheet.
type xlsxReader struct {
	path    string
	cfg     *schema.MappingConfig
	opts    schema.XLSXOptions
	skipped atomic.Int64
}

func openXLSX(path string, cfg *schema.MappingConfig) (*xlsxReader, error) {
	r := &xlsxReader{path: path, cfg: cfg}
	if cfg.FileSpecific.XLSX != nil {
		r.opts = *cfg.FileSpecific.XLSX
	}
	return r, nil
}

func (r *xlsxReader) Read(ctx context.Context) (<-chan model.RawRecord, <-chan error) {
	recCh := make(chan model.RawRecord, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		f, err := xlsx.OpenFile(r.path)
		if err != nil {
			errCh <- eris.Wrapf(ErrRead, "open %s: %v", r.path, err)
			return
		}

		sheet, err := r.sheet(f)
		if err != nil {
			errCh <- err
			return
		}

		var header []string
		yielded := 0
		spatial := r.cfg.Spatial()
		geomField := r.cfg.GeometryField()

		for i, row := range sheet.Rows {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: read cancelled")
				return
			}
			if i < r.opts.HeaderRow {
				continue
			}

			cells := make([]string, len(row.Cells))
			for j, cell := range row.Cells {
				cells[j] = cell.String()
			}

			if i == r.opts.HeaderRow {
				header = make([]string, len(cells))
				for j, h := range cells {
					header[j] = trimCell(h)
				}
				continue
			}

			// Trailing empty cells are dropped by the workbook format;
			// pad short rows, skip long ones.
			if len(cells) > len(header) {
				r.skipped.Add(1)
				zap.L().Debug("xlsx: skipping row with extra cells",
					zap.Int("row", i),
					zap.Int("got", len(cells)),
					zap.Int("want", len(header)),
				)
				continue
			}

			rec := model.RawRecord{
				Index:   yielded,
				Columns: header,
				Values:  make(map[string]model.Value, len(header)),
			}
			for j, col := range header {
				if j < len(cells) {
					rec.Values[col] = cellValue(cells[j])
				} else {
					rec.Values[col] = model.NullValue()
				}
			}
			if spatial {
				if raw, ok := rec.Values[geomField]; ok && !raw.IsNull() {
					s, _ := raw.AsString()
					if g, err := parseGeometryCell(s); err == nil {
						rec.Geometry = g
					}
				}
			}

			select {
			case recCh <- rec:
				yielded++
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: read cancelled")
				return
			}
		}

		if yielded == 0 {
			errCh <- eris.Wrapf(ErrRead, "%s: no data rows", r.path)
		}
	}()

	return recCh, errCh
}

func (r *xlsxReader) sheet(f *xlsx.File) (*xlsx.Sheet, error) {
	if r.opts.Sheet != "" {
		sheet, ok := f.Sheet[r.opts.Sheet]
		if !ok {
			return nil, eris.Wrapf(ErrRead, "sheet %q not found in %s", r.opts.Sheet, r.path)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Wrapf(ErrRead, "%s: workbook has no sheets", r.path)
	}
	return f.Sheets[0], nil
}

func (r *xlsxReader) Skipped() int { return int(r.skipped.Load()) }

func (r *xlsxReader) Close() error { return nil }
