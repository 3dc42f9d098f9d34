package source

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/schema"
)

// csvReader streams a delimited text file. The configured header row names
// the fields; rows above it are discarded, rows below it become RawRecords.
type csvReader struct {
	file    *os.File
	cfg     *schema.MappingConfig
	opts    *schema.CSVOptions
	skipped atomic.Int64
}

func openCSV(path string, cfg *schema.MappingConfig) (*csvReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(ErrRead, "open %s: %v", path, err)
	}
	return &csvReader{file: f, cfg: cfg, opts: cfg.FileSpecific.CSV}, nil
}

func (r *csvReader) Read(ctx context.Context) (<-chan model.RawRecord, <-chan error) {
	recCh := make(chan model.RawRecord, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		decoded, err := decodeReader(r.file, r.opts.Encoding)
		if err != nil {
			errCh <- err
			return
		}

		reader := csv.NewReader(decoded)
		reader.Comma = rune(r.opts.Delimiter[0])
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		var header []string
		rowNum := -1
		yielded := 0
		spatial := r.cfg.Spatial()
		geomField := r.cfg.GeometryField()

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: read cancelled")
				return
			}

			row, err := reader.Read()
			if err == io.EOF {
				if yielded == 0 {
					errCh <- eris.Wrapf(ErrRead, "%s: no data rows", r.file.Name())
				}
				return
			}
			if err != nil {
				// A row the csv parser itself refuses is a skip, not a
				// file failure.
				r.skipped.Add(1)
				continue
			}
			rowNum++

			if rowNum < r.opts.HeaderRow {
				continue
			}
			if rowNum == r.opts.HeaderRow {
				header = make([]string, len(row))
				for i, h := range row {
					header[i] = trimCell(h)
				}
				continue
			}

			if len(row) != len(header) {
				r.skipped.Add(1)
				zap.L().Debug("csv: skipping row with column count mismatch",
					zap.Int("row", rowNum),
					zap.Int("got", len(row)),
					zap.Int("want", len(header)),
				)
				continue
			}

			rec := model.RawRecord{
				Index:   yielded,
				Columns: header,
				Values:  make(map[string]model.Value, len(header)),
			}
			for i, col := range header {
				rec.Values[col] = cellValue(row[i])
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
				errCh <- eris.Wrap(ctx.Err(), "csv: read cancelled")
				return
			}
		}
	}()

	return recCh, errCh
}

func (r *csvReader) Skipped() int { return int(r.skipped.Load()) }

func (r *csvReader) Close() error { return r.file.Close() }

func trimCell(s string) string {
	// Strip a UTF-8 BOM that survived decoding plus surrounding space.
	if len(s) >= 3 && s[0] == 0xEF && s[1] == 0xBB && s[2] == 0xBF {
		s = s[3:]
	}
	return strings.TrimSpace(s)
}
