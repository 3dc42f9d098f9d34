package resolve

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/spatial"
	"github.com/pyxis-energy/pyxis-cli/internal/vocab"
)

// Options configures a Resolver. Nothing here has a hardcoded fallback
// except Workers; weights and thresholds always come from configuration.
type Options struct {
	Weights Weights
	// MatchResolution is the coarse H3 resolution for candidate grouping.
	MatchResolution int
	// FineResolution measures pair distance during scoring.
	FineResolution int
	// NeighborhoodK expands candidate groups by grid disk so near-boundary
	// points in adjacent cells still meet.
	NeighborhoodK int
	// MaxClusterSize flags larger clusters for manual review.
	MaxClusterSize int
	// Priority lists source names in merge precedence order.
	Priority []string
	// Workers bounds the scoring fan-out.
	Workers int
}

// Resolver groups canonical records into facility clusters.
type Resolver struct {
	opts    Options
	scorer  *Scorer
	merger  *Merger
	indexer *spatial.Indexer
}

// New builds a Resolver. The indexer re-indexes merged cluster geometry at
// the configured resolutions.
func New(reg *vocab.Registry, indexer *spatial.Indexer, merger *Merger, opts Options) *Resolver {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	return &Resolver{
		opts:    opts,
		scorer:  NewScorer(opts.Weights, opts.FineResolution, reg.Identity(), reg.Categorical()),
		merger:  merger,
		indexer: indexer,
	}
}

type pair struct {
	a, b int
}

type matchResult struct {
	pair
	score float64
}

// Resolve clusters the records. Deterministic for a fixed input order and
// configuration. Candidate comparison is restricted to spatial
// neighborhoods, with unlocated records compared only among themselves;
// the full cross product is never walked.
func (r *Resolver) Resolve(ctx context.Context, records []*model.CanonicalRecord) ([]model.FacilityCluster, error) {
	n := len(records)
	if n == 0 {
		return nil, nil
	}

	pairs := r.candidatePairs(records)
	zap.L().Debug("resolve: candidate pairs generated",
		zap.Int("records", n),
		zap.Int("pairs", len(pairs)),
	)

	uf := newUnionFind(n)
	memberScore := make([]float64, n)

	// Scoring fans out across workers; the union-find and score table have
	// a single writer.
	results := make(chan matchResult, 256)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		for m := range results {
			uf.union(m.a, m.b)
			if m.score > memberScore[m.a] {
				memberScore[m.a] = m.score
			}
			if m.score > memberScore[m.b] {
				memberScore[m.b] = m.score
			}
		}
	}()

	const chunkSize = 512
	for start := 0; start < len(pairs); start += chunkSize {
		chunk := pairs[start:min(start+chunkSize, len(pairs))]
		g.Go(func() error {
			for _, p := range chunk {
				if err := gctx.Err(); err != nil {
					return eris.Wrap(err, "resolve: scoring cancelled")
				}
				if score, ok := r.scorer.Match(records[p.a], records[p.b]); ok {
					select {
					case results <- matchResult{pair: p, score: score}:
					case <-gctx.Done():
						return eris.Wrap(gctx.Err(), "resolve: scoring cancelled")
					}
				}
			}
			return nil
		})
	}

	err := g.Wait()
	close(results)
	<-collectDone
	if err != nil {
		return nil, err
	}

	return r.buildClusters(records, uf, memberScore), nil
}

// candidatePairs generates comparison pairs: records sharing a coarse cell
// or sitting in each other's grid-disk neighborhood, plus the explicit
// unlocated fallback group.
func (r *Resolver) candidatePairs(records []*model.CanonicalRecord) []pair {
	byCell := make(map[uint64][]int)
	var unlocated []int
	for i, rec := range records {
		cell, ok := rec.Cell(r.opts.MatchResolution)
		if !ok {
			unlocated = append(unlocated, i)
			continue
		}
		byCell[cell] = append(byCell[cell], i)
	}

	seen := make(map[[2]int]bool)
	var pairs []pair
	add := func(a, b int) {
		if a > b {
			a, b = b, a
		}
		if a == b || seen[[2]int{a, b}] {
			return
		}
		seen[[2]int{a, b}] = true
		pairs = append(pairs, pair{a: a, b: b})
	}

	for i, rec := range records {
		cell, ok := rec.Cell(r.opts.MatchResolution)
		if !ok {
			continue
		}
		for _, nc := range spatial.Neighborhood(cell, r.opts.NeighborhoodK) {
			for _, j := range byCell[nc] {
				add(i, j)
			}
		}
	}

	// Unlocated records form one fallback group, compared only among
	// themselves and only when they carry identity text.
	for ai, a := range unlocated {
		if !r.scorer.Identifiable(records[a]) {
			continue
		}
		for _, b := range unlocated[ai+1:] {
			if r.scorer.Identifiable(records[b]) {
				add(a, b)
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})
	return pairs
}

func (r *Resolver) buildClusters(records []*model.CanonicalRecord, uf *unionFind, memberScore []float64) []model.FacilityCluster {
	priorityRank := make(map[string]int, len(r.opts.Priority))
	for i, name := range r.opts.Priority {
		priorityRank[name] = i
	}
	rank := func(idx int) int {
		if p, ok := priorityRank[records[idx].Provenance.Source]; ok {
			return p
		}
		return len(r.opts.Priority)
	}

	var clusters []model.FacilityCluster
	for _, comp := range uf.components() {
		// Precedence order: declared priority first, then input order.
		ordered := make([]int, len(comp))
		copy(ordered, comp)
		sort.SliceStable(ordered, func(i, j int) bool {
			return rank(ordered[i]) < rank(ordered[j])
		})

		members := make([]model.Member, len(ordered))
		recs := make([]*model.CanonicalRecord, len(ordered))
		for i, idx := range ordered {
			score := memberScore[idx]
			if len(comp) == 1 {
				score = 100
			}
			members[i] = model.Member{Provenance: records[idx].Provenance, Score: score}
			recs[i] = records[idx]
		}

		merged := r.merger.Merge(recs)
		if merged != nil && merged.Geometry != nil && r.indexer != nil {
			if err := r.indexer.Index(merged); err != nil {
				zap.L().Debug("resolve: merged geometry not indexable",
					zap.String("cluster_seed", merged.Provenance.Key()),
				)
			}
		}

		cluster := model.FacilityCluster{
			ID:      clusterID(records[comp[0]].Provenance),
			Name:    r.clusterName(recs, members),
			Members: members,
			Merged:  merged,
		}
		if r.opts.MaxClusterSize > 0 && len(members) > r.opts.MaxClusterSize {
			cluster.NeedsReview = true
			cluster.ReviewReason = fmt.Sprintf("cluster size %d exceeds limit %d", len(members), r.opts.MaxClusterSize)
		} else if len(members) == 1 && recs[0].Unlocated && !r.scorer.Identifiable(recs[0]) {
			cluster.NeedsReview = true
			cluster.ReviewReason = "no location and no identifying attributes"
		}

		clusters = append(clusters, cluster)
	}
	return clusters
}

// clusterName picks the identity text of the best-scoring member,
// precedence order breaking ties.
func (r *Resolver) clusterName(recs []*model.CanonicalRecord, members []model.Member) string {
	best := ""
	bestScore := -1.0
	for i, rec := range recs {
		for _, attr := range r.scorer.identity {
			if v, ok := rec.Attr(attr).AsString(); ok && v != "" {
				if members[i].Score > bestScore {
					best = v
					bestScore = members[i].Score
				}
				break
			}
		}
	}
	return best
}

// clusterID derives a stable id from the seed member's provenance, so
// re-running the same input yields the same cluster ids.
func clusterID(seed model.Provenance) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed.Key())).String()
}
