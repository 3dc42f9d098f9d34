// Package spatial assigns H3 index cells to canonical records. Cells are
// deterministic from a geometry's representative point, so records closer
// than a cell's width at a resolution share that resolution's cell, which
// is what makes resolver candidate generation cheap.
package spatial

import (
	"sort"

	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/uber/h3-go/v4"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
)

// ErrUnlocated marks a record without usable geometry. Record-level and
// recoverable: the record stays in the pipeline, flagged unlocated.
var ErrUnlocated = eris.New("spatial: record has no usable geometry")

// Indexer computes H3 cells at a fixed ordered set of resolutions.
type Indexer struct {
	resolutions []int
}

// NewIndexer builds an Indexer. Resolutions are sorted ascending so the
// coarsest is always first.
func NewIndexer(resolutions []int) (*Indexer, error) {
	if len(resolutions) == 0 {
		return nil, eris.New("spatial: no resolutions configured")
	}
	res := make([]int, len(resolutions))
	copy(res, resolutions)
	sort.Ints(res)
	for _, r := range res {
		if r < 0 || r > 15 {
			return nil, eris.Errorf("spatial: resolution %d out of range", r)
		}
	}
	return &Indexer{resolutions: res}, nil
}

// Resolutions returns the configured resolutions, coarsest first.
func (ix *Indexer) Resolutions() []int { return ix.resolutions }

// Index attaches one cell per resolution to rec. A record without usable
// geometry is flagged unlocated and returns ErrUnlocated; it keeps flowing
// through the pipeline.
func (ix *Indexer) Index(rec *model.CanonicalRecord) error {
	lon, lat, ok := RepresentativePoint(rec.Geometry)
	if !ok {
		rec.Unlocated = true
		return ErrUnlocated
	}

	cells := make(map[int]uint64, len(ix.resolutions))
	for _, res := range ix.resolutions {
		cells[res] = CellAt(lat, lon, res)
	}
	rec.Cells = cells
	rec.Unlocated = false
	return nil
}

// CellAt returns the H3 cell containing (lat, lon) at the resolution.
func CellAt(lat, lon float64, res int) uint64 {
	return uint64(h3.LatLngToCell(h3.NewLatLng(lat, lon), res))
}

// Neighborhood returns the grid disk of radius k around cell, the cell
// itself included.
func Neighborhood(cell uint64, k int) []uint64 {
	disk := h3.GridDisk(h3.Cell(cell), k)
	out := make([]uint64, len(disk))
	for i, c := range disk {
		out[i] = uint64(c)
	}
	return out
}

// GridDistance returns the H3 grid distance between two cells of the same
// resolution, or -1 when the distance cannot be computed (pentagon
// distortion, resolution mismatch).
func GridDistance(a, b uint64) int {
	return h3.GridDistance(h3.Cell(a), h3.Cell(b))
}

// RepresentativePoint returns the point used for cell assignment: the point
// itself for points, otherwise the geometry centroid, with a vertex mean as
// the last resort.
func RepresentativePoint(g geom.T) (lon, lat float64, ok bool) {
	if g == nil {
		return 0, 0, false
	}
	flat := g.FlatCoords()
	if len(flat) < 2 {
		return 0, 0, false
	}

	if p, isPoint := g.(*geom.Point); isPoint {
		return p.X(), p.Y(), true
	}

	if c, err := xy.Centroid(g); err == nil && len(c) >= 2 {
		return c[0], c[1], true
	}

	// Degenerate geometry (zero-area ring, zero-length line): vertex mean.
	stride := g.Stride()
	if stride < 2 {
		return 0, 0, false
	}
	var sx, sy float64
	n := 0
	for i := 0; i+1 < len(flat); i += stride {
		sx += flat[i]
		sy += flat[i+1]
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	return sx / float64(n), sy / float64(n), true
}
