package resolve

import (
	"math"
	"sort"
	"time"

	geom "github.com/twpayne/go-geom"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/spatial"
	"github.com/pyxis-energy/pyxis-cli/internal/vocab"
)

// Merger collapses a cluster's members into one canonical record, one
// attribute at a time, by the vocabulary's declared merge rules.
type Merger struct {
	reg *vocab.Registry
}

// NewMerger builds a Merger over the canonical vocabulary.
func NewMerger(reg *vocab.Registry) *Merger {
	return &Merger{reg: reg}
}

// Merge produces the representative record for a cluster. Members must
// already be in precedence order: first-present-wins rules take the first
// member that carries the attribute. Geometry dissolves to the centroid of
// member representative points.
func (m *Merger) Merge(members []*model.CanonicalRecord) *model.CanonicalRecord {
	if len(members) == 0 {
		return nil
	}

	merged := &model.CanonicalRecord{
		Provenance: members[0].Provenance,
		Attrs:      make(map[string]model.Value),
	}

	for _, name := range m.reg.Names() {
		attr := m.reg.ByName(name)
		if v := m.mergeAttr(attr, members); !v.IsNull() {
			merged.Attrs[name] = v
		}
	}

	merged.Geometry = dissolveGeometry(members)
	merged.Unlocated = merged.Geometry == nil
	return merged
}

func (m *Merger) mergeAttr(attr *vocab.Attribute, members []*model.CanonicalRecord) model.Value {
	present := make([]model.Value, 0, len(members))
	for _, rec := range members {
		if v := rec.Attr(attr.Name); !v.IsNull() {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return model.NullValue()
	}

	switch attr.Merge {
	case vocab.MergeAverage:
		return model.FloatValue(mean(floats(present)))

	case vocab.MergeMedian:
		return model.FloatValue(median(floats(present)))

	case vocab.MergeAverageInt, vocab.MergeMedianInt:
		return model.IntValue(int64(math.Trunc(median(floats(present)))))

	case vocab.MergeMostFrequent:
		return mostFrequent(present)

	case vocab.MergeAvgAge:
		// Members carry calendar years; the merged attribute is years
		// elapsed, singletons included.
		return model.FloatValue(float64(time.Now().UTC().Year()) - mean(floats(present)))

	case vocab.MergeVolumeWeighted:
		return model.FloatValue(m.volumeWeighted(attr, members, present))

	default: // vocab.MergeFirst
		return present[0]
	}
}

// volumeWeighted averages weighted by the declared weight attribute,
// falling back to the plain mean when no member carries a usable weight.
func (m *Merger) volumeWeighted(attr *vocab.Attribute, members []*model.CanonicalRecord, present []model.Value) float64 {
	var num, den float64
	for _, rec := range members {
		v, vok := rec.Attr(attr.Name).AsFloat()
		w, wok := rec.Attr(attr.WeightAttr).AsFloat()
		if !vok || !wok || w <= 0 {
			continue
		}
		num += v * w
		den += w
	}
	if den > 0 {
		return num / den
	}
	return mean(floats(present))
}

func floats(values []model.Value) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := v.AsFloat(); ok {
			out = append(out, f)
		}
	}
	return out
}

func mean(fs []float64) float64 {
	if len(fs) == 0 {
		return 0
	}
	var sum float64
	for _, f := range fs {
		sum += f
	}
	return sum / float64(len(fs))
}

func median(fs []float64) float64 {
	if len(fs) == 0 {
		return 0
	}
	sorted := make([]float64, len(fs))
	copy(sorted, fs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// mostFrequent returns the modal value; the first-seen value wins ties, so
// precedence order decides between equally common values.
func mostFrequent(values []model.Value) model.Value {
	best := values[0]
	bestCount := 0
	for i, v := range values {
		count := 0
		for _, o := range values {
			if v.Equal(o) {
				count++
			}
		}
		if count > bestCount {
			best = values[i]
			bestCount = count
		}
	}
	return best
}

// dissolveGeometry collapses member geometries to the centroid point of
// their representative points, in EPSG:4326.
func dissolveGeometry(members []*model.CanonicalRecord) geom.T {
	var sx, sy float64
	n := 0
	for _, rec := range members {
		lon, lat, ok := spatial.RepresentativePoint(rec.Geometry)
		if !ok {
			continue
		}
		sx += lon
		sy += lat
		n++
	}
	if n == 0 {
		return nil
	}
	return geom.NewPointFlat(geom.XY, []float64{sx / float64(n), sy / float64(n)})
}
