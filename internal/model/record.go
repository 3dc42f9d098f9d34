package model

import (
	"fmt"

	geom "github.com/twpayne/go-geom"
)

// Provenance identifies where a record came from: source name, config
// version, and the 0-based row or feature index within the file.
type Provenance struct {
	Source  string `json:"source"`
	Version string `json:"version"`
	Row     int    `json:"row"`
}

// Key returns a stable identifier used to key union-find and score maps.
func (p Provenance) Key() string {
	return fmt.Sprintf("%s@%s:%d", p.Source, p.Version, p.Row)
}

// RawRecord is one row or feature as read from a source file: source column
// names mapped to values, in original column order, plus the feature geometry
// in the source CRS when present. RawRecords are transient; they are consumed
// by the attribute mapper and never persisted.
type RawRecord struct {
	Index    int
	Columns  []string
	Values   map[string]Value
	Geometry geom.T
}

// Value returns the value for a source column.
func (r *RawRecord) Value(col string) (Value, bool) {
	v, ok := r.Values[col]
	return v, ok
}

// CanonicalRecord maps canonical attribute names to typed values in canonical
// units, with the geometry normalized to EPSG:4326 and H3 cells attached per
// configured resolution. Cells hold the raw 64-bit index; render with CellID
// for storage or export.
type CanonicalRecord struct {
	Provenance Provenance
	Attrs      map[string]Value
	Geometry   geom.T
	Cells      map[int]uint64
	Unlocated  bool
}

// Attr returns the value for a canonical attribute, NullValue when absent.
func (c *CanonicalRecord) Attr(name string) Value {
	if v, ok := c.Attrs[name]; ok {
		return v
	}
	return NullValue()
}

// SetAttr sets a canonical attribute value, dropping explicit nulls.
func (c *CanonicalRecord) SetAttr(name string, v Value) {
	if c.Attrs == nil {
		c.Attrs = make(map[string]Value)
	}
	if v.IsNull() {
		delete(c.Attrs, name)
		return
	}
	c.Attrs[name] = v
}

// Cell returns the H3 cell at the given resolution.
func (c *CanonicalRecord) Cell(res int) (uint64, bool) {
	v, ok := c.Cells[res]
	return v, ok
}

// CellID renders an H3 cell index in its canonical hex string form.
func CellID(cell uint64) string {
	return fmt.Sprintf("%x", cell)
}
