// Package source reads raw source files into ordered RawRecord streams.
// Readers are lazy and finite; a stream is not restartable mid-flight, a
// fresh Open re-reads the file. Malformed rows are skipped and counted,
// never fatal; only file-level failures abort a read.
package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/schema"
)

// ErrRead marks a file-level read failure: missing file, undecodable
// encoding, zero data rows. Fatal for the run.
var ErrRead = eris.New("source: read error")

// Reader yields RawRecords in original row/feature order. Skipped reports
// how many malformed rows were dropped; it is stable once the record
// channel is drained.
type Reader interface {
	// Read starts the stream. The record channel closes at end of input;
	// the error channel carries at most one file-level error.
	Read(ctx context.Context) (<-chan model.RawRecord, <-chan error)

	// Skipped returns the count of malformed rows dropped so far.
	Skipped() int

	Close() error
}

// Open opens the source file named by the config's data type. The returned
// reader owns the file handle until Close.
func Open(path string, cfg *schema.MappingConfig) (Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(ErrRead, "stat %s: %v", path, err)
	}

	switch cfg.DataMetadata.Type {
	case schema.TypeCSV:
		return openCSV(path, cfg)
	case schema.TypeXLSX:
		return openXLSX(path, cfg)
	case schema.TypeShapefile:
		return openShapefile(path, cfg)
	case schema.TypeGeoJSON:
		return openGeoJSON(path, cfg)
	default:
		return nil, eris.Wrapf(ErrRead, "unsupported source type %q", cfg.DataMetadata.Type)
	}
}

// ResolveShapefile locates the .shp inside a directory or returns the path
// unchanged when it already names a .shp file.
func ResolveShapefile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", eris.Wrapf(ErrRead, "stat %s: %v", path, err)
	}
	if !info.IsDir() {
		return path, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", eris.Wrapf(ErrRead, "read dir %s: %v", path, err)
	}
	for _, e := range entries {
		if strings.EqualFold(filepath.Ext(e.Name()), ".shp") {
			return filepath.Join(path, e.Name()), nil
		}
	}
	return "", eris.Wrapf(ErrRead, "no .shp file in %s", path)
}

// cellValue types a raw cell: empty means null, everything else stays a
// string for the attribute mapper to coerce.
func cellValue(raw string) model.Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return model.NullValue()
	}
	return model.StringValue(s)
}
