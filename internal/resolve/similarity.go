package resolve

import (
	"math"

	"github.com/agext/levenshtein"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/spatial"
)

// Weights configures the pairwise score. All three weights apply to
// component scores on a 0-100 scale; Threshold is the match cut on the
// combined score. None of these are hardcoded anywhere downstream.
type Weights struct {
	Name        float64
	Geo         float64
	Categorical float64
	// Threshold is the minimum combined score for a match.
	Threshold float64
	// DistanceCutoff is the grid distance (cells at the fine resolution)
	// beyond which the geo component turns into a penalty.
	DistanceCutoff int
}

// Scorer computes pairwise similarity between canonical records.
type Scorer struct {
	weights     Weights
	fineRes     int
	identity    []string
	categorical []string
}

// NewScorer builds a Scorer. identity and categorical name the vocabulary
// attributes compared as text and as categories; fineRes is the resolution
// whose cells measure geometric distance.
func NewScorer(w Weights, fineRes int, identity, categorical []string) *Scorer {
	return &Scorer{weights: w, fineRes: fineRes, identity: identity, categorical: categorical}
}

// Score returns the weighted pair score on a 0-100 scale.
func (s *Scorer) Score(a, b *model.CanonicalRecord) float64 {
	total := s.weights.Name * s.nameScore(a, b)
	total += s.weights.Geo * s.geoScore(a, b)
	if s.weights.Categorical > 0 {
		total += s.weights.Categorical * s.categoricalScore(a, b)
	}
	return total
}

// Match reports whether the pair scores at or above the threshold.
func (s *Scorer) Match(a, b *model.CanonicalRecord) (float64, bool) {
	score := s.Score(a, b)
	return score, score >= s.weights.Threshold
}

// nameScore is the best normalized edit-distance similarity across the
// identity attributes both records carry, 0-100.
func (s *Scorer) nameScore(a, b *model.CanonicalRecord) float64 {
	best := 0.0
	compared := false
	for _, attr := range s.identity {
		av, aok := a.Attr(attr).AsString()
		bv, bok := b.Attr(attr).AsString()
		if !aok || !bok {
			continue
		}
		na, nb := NormalizeName(av), NormalizeName(bv)
		if na == "" || nb == "" {
			continue
		}
		compared = true
		if sim := levenshtein.Similarity(na, nb, nil) * 100; sim > best {
			best = sim
		}
	}
	if !compared {
		return 0
	}
	return best
}

// geoScore decays with H3 grid distance at the fine resolution:
// 100·exp(-0.5·(d/10)²), a penalty of -40 past the cutoff, 0 when either
// record is unlocated.
func (s *Scorer) geoScore(a, b *model.CanonicalRecord) float64 {
	ca, aok := a.Cell(s.fineRes)
	cb, bok := b.Cell(s.fineRes)
	if !aok || !bok {
		return 0
	}

	d := spatial.GridDistance(ca, cb)
	if d < 0 || d > s.weights.DistanceCutoff {
		return -40
	}
	return 100 * math.Exp(-0.5*math.Pow(float64(d)*0.1, 2))
}

// categoricalScore is the agreeing fraction of the categorical attributes
// both records carry, 0-100.
func (s *Scorer) categoricalScore(a, b *model.CanonicalRecord) float64 {
	shared, agree := 0, 0
	for _, attr := range s.categorical {
		av, bv := a.Attr(attr), b.Attr(attr)
		if av.IsNull() || bv.IsNull() {
			continue
		}
		shared++
		if av.Equal(bv) {
			agree++
		}
	}
	if shared == 0 {
		return 0
	}
	return 100 * float64(agree) / float64(shared)
}

// Identifiable reports whether the record carries any identity text usable
// for matching. Records with neither cells nor identity text end up in
// singleton clusters.
func (s *Scorer) Identifiable(rec *model.CanonicalRecord) bool {
	for _, attr := range s.identity {
		if v, ok := rec.Attr(attr).AsString(); ok && NormalizeName(v) != "" {
			return true
		}
	}
	return false
}
