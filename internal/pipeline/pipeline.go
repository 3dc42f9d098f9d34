// Package pipeline orchestrates a full ingestion run: validate the mapping
// config, read the source, map attributes, index spatially, resolve entities,
// and persist. A run always produces a RunReport, failure included.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pyxis-energy/pyxis-cli/internal/config"
	"github.com/pyxis-energy/pyxis-cli/internal/mapper"
	"github.com/pyxis-energy/pyxis-cli/internal/model"
	"github.com/pyxis-energy/pyxis-cli/internal/resolve"
	"github.com/pyxis-energy/pyxis-cli/internal/schema"
	"github.com/pyxis-energy/pyxis-cli/internal/source"
	"github.com/pyxis-energy/pyxis-cli/internal/spatial"
	"github.com/pyxis-energy/pyxis-cli/internal/store"
	"github.com/pyxis-energy/pyxis-cli/internal/vocab"
)

// Pipeline runs ingestion end to end. A nil store disables persistence; the
// report and clusters still come back to the caller.
type Pipeline struct {
	cfg   *config.Config
	reg   *vocab.Registry
	store store.Store
}

// New assembles a Pipeline.
func New(cfg *config.Config, reg *vocab.Registry, st store.Store) *Pipeline {
	return &Pipeline{cfg: cfg, reg: reg, store: st}
}

// Result is everything a completed run produced.
type Result struct {
	Report   *model.RunReport
	Records  []*model.CanonicalRecord
	Clusters []model.FacilityCluster
}

// Run executes the full pipeline for one source file. The report in the
// returned Result is always populated, on failure alongside the error.
func (p *Pipeline) Run(ctx context.Context, configDoc []byte, filePath string) (*Result, error) {
	report := model.NewRunReport(uuid.New().String(), "", "")
	result := &Result{Report: report}

	if p.cfg.Pipeline.TimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.Pipeline.TimeoutSecs)*time.Second)
		defer cancel()
	}

	log := zap.L().With(zap.String("run_id", report.RunID))
	log.Info("pipeline: run starting", zap.String("file", filePath))

	// ===== Validating =====
	report.State = model.RunValidating
	var mapping *schema.MappingConfig
	err := p.trackStage(report, "validate", func() (string, error) {
		m, verr := schema.Validate(configDoc, p.reg)
		if verr != nil {
			return "", verr
		}
		mapping = m
		report.Source = m.DataMetadata.Name
		report.SourceVersion = m.DataMetadata.Version
		return m.DataMetadata.Name + "@" + m.DataMetadata.Version, nil
	})
	if err != nil {
		return p.fail(ctx, result, err)
	}

	if p.store != nil {
		if serr := p.store.StartRun(ctx, report); serr != nil {
			log.Warn("pipeline: run log write failed", zap.Error(serr))
		}
	}

	// ===== Reading =====
	report.State = model.RunReading
	var raws []model.RawRecord
	err = p.trackStage(report, "read", func() (string, error) {
		rs, rerr := p.readAll(ctx, filePath, mapping, report)
		if rerr != nil {
			return "", rerr
		}
		raws = rs
		return "", nil
	})
	if err != nil {
		return p.fail(ctx, result, err)
	}

	// ===== Mapping =====
	report.State = model.RunMapping
	var records []*model.CanonicalRecord
	err = p.trackStage(report, "map", func() (string, error) {
		rs, merr := p.mapAll(ctx, mapping, raws, report)
		if merr != nil {
			return "", merr
		}
		records = rs
		return "", nil
	})
	if err != nil {
		return p.fail(ctx, result, err)
	}

	if len(records) == 0 {
		return p.fail(ctx, result, ErrNoRecords)
	}
	if ratio := report.RejectRatio(); ratio > p.cfg.Pipeline.MaxRejectRatio {
		return p.fail(ctx, result, eris.Wrapf(ErrRejectRatio,
			"ratio %.2f over %.2f, top reasons %s",
			ratio, p.cfg.Pipeline.MaxRejectRatio,
			strings.Join(report.TopRejectReasons(3), "; ")))
	}

	// ===== Indexing =====
	report.State = model.RunIndexing
	indexer, err := spatial.NewIndexer(p.cfg.Spatial.Resolutions)
	if err != nil {
		return p.fail(ctx, result, err)
	}
	err = p.trackStage(report, "index", func() (string, error) {
		return "", p.indexAll(ctx, indexer, records, report)
	})
	if err != nil {
		return p.fail(ctx, result, err)
	}

	// ===== Resolving =====
	report.State = model.RunResolving
	var clusters []model.FacilityCluster
	err = p.trackStage(report, "resolve", func() (string, error) {
		resolver := p.newResolver(indexer)
		cs, rerr := resolver.Resolve(ctx, records)
		if rerr != nil {
			return "", rerr
		}
		clusters = cs
		report.Clusters = len(cs)
		for i := range cs {
			if cs[i].Singleton() {
				report.Singletons++
			}
			if cs[i].NeedsReview {
				report.ReviewFlagged++
			}
		}
		return "", nil
	})
	if err != nil {
		return p.fail(ctx, result, err)
	}

	result.Records = records
	result.Clusters = clusters

	if p.store != nil {
		if serr := p.persist(ctx, result); serr != nil {
			return p.fail(ctx, result, serr)
		}
	}

	report.Finalize(model.RunCompleted)
	if p.store != nil {
		if serr := p.store.CompleteRun(ctx, report); serr != nil {
			log.Warn("pipeline: run log write failed", zap.Error(serr))
		}
	}

	log.Info("pipeline: run complete",
		zap.String("source", report.Source),
		zap.Int("records", report.RecordsRead),
		zap.Int("rejected", report.Rejected),
		zap.Int("clusters", report.Clusters),
		zap.Int("review_flagged", report.ReviewFlagged),
	)
	return result, nil
}

// trackStage times one stage, records it on the report, and logs the outcome.
func (p *Pipeline) trackStage(report *model.RunReport, name string, fn func() (string, error)) error {
	start := time.Now()
	detail, err := fn()
	duration := time.Since(start)

	status := "completed"
	if err != nil {
		status = "failed"
		detail = err.Error()
	}
	report.AddStage(name, status, duration, detail)

	if err != nil {
		zap.L().Error("pipeline: stage failed",
			zap.String("run_id", report.RunID),
			zap.String("stage", name),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return err
	}
	zap.L().Info("pipeline: stage complete",
		zap.String("run_id", report.RunID),
		zap.String("stage", name),
		zap.Duration("duration", duration),
	)
	return nil
}

// readAll drains the source reader, preserving row order.
func (p *Pipeline) readAll(ctx context.Context, filePath string, mapping *schema.MappingConfig, report *model.RunReport) ([]model.RawRecord, error) {
	path := filePath
	if mapping.DataMetadata.Type == schema.TypeShapefile {
		resolved, err := source.ResolveShapefile(path)
		if err != nil {
			return nil, err
		}
		path = resolved
	}

	reader, err := source.Open(path, mapping)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	recCh, errCh := reader.Read(ctx)
	var raws []model.RawRecord
	for rec := range recCh {
		raws = append(raws, rec)
	}
	if err := <-errCh; err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ErrTimeout, "reading source")
		}
		return nil, err
	}

	report.RecordsRead = len(raws)
	report.RowsSkipped = reader.Skipped()
	return raws, nil
}

// mapAll fans mapping out over bounded workers and reassembles results in
// input order. Rejects accumulate on the report; they never abort the batch.
func (p *Pipeline) mapAll(ctx context.Context, mapping *schema.MappingConfig, raws []model.RawRecord, report *model.RunReport) ([]*model.CanonicalRecord, error) {
	m, err := mapper.New(mapping, p.reg)
	if err != nil {
		return nil, err
	}

	mapped := make([]*model.CanonicalRecord, len(raws))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.Workers)
	for i := range raws {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			rec, merr := m.Map(raws[i])
			if merr != nil {
				mu.Lock()
				report.Reject(rejectReason(merr))
				mu.Unlock()
				return nil
			}
			mapped[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ErrTimeout, "mapping records")
		}
		return nil, err
	}

	out := make([]*model.CanonicalRecord, 0, len(mapped))
	for _, rec := range mapped {
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

// indexAll attaches H3 cells. Unlocated records are counted and kept.
func (p *Pipeline) indexAll(ctx context.Context, indexer *spatial.Indexer, records []*model.CanonicalRecord, report *model.RunReport) error {
	var indexed, unlocated int64
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.Workers)
	for _, rec := range records {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			err := indexer.Index(rec)
			mu.Lock()
			if eris.Is(err, spatial.ErrUnlocated) {
				unlocated++
			} else {
				indexed++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return eris.Wrap(ErrTimeout, "indexing records")
		}
		return err
	}

	report.Indexed = int(indexed)
	report.Unlocated = int(unlocated)
	return nil
}

func (p *Pipeline) newResolver(indexer *spatial.Indexer) *resolve.Resolver {
	rc := p.cfg.Resolver
	fineRes := p.cfg.Spatial.Resolutions[0]
	for _, r := range p.cfg.Spatial.Resolutions {
		if r > fineRes {
			fineRes = r
		}
	}
	return resolve.New(p.reg, indexer, resolve.NewMerger(p.reg), resolve.Options{
		Weights: resolve.Weights{
			Name:           rc.NameWeight,
			Geo:            rc.GeoWeight,
			Categorical:    rc.CategoricalWeight,
			Threshold:      rc.Threshold,
			DistanceCutoff: rc.DistanceCutoff,
		},
		MatchResolution: p.cfg.Spatial.MatchResolution,
		FineResolution:  fineRes,
		NeighborhoodK:   p.cfg.Spatial.NeighborhoodK,
		MaxClusterSize:  rc.MaxClusterSize,
		Priority:        rc.Priority,
		Workers:         p.cfg.Pipeline.Workers,
	})
}

func (p *Pipeline) persist(ctx context.Context, result *Result) error {
	if err := p.store.SaveRecords(ctx, result.Report.RunID, result.Records); err != nil {
		return err
	}
	return p.store.SaveClusters(ctx, result.Report.RunID, result.Clusters)
}

// fail finalizes the report and, when a deadline was the cause, maps the
// error to the timeout sentinel. The accumulated report always returns.
func (p *Pipeline) fail(ctx context.Context, result *Result, err error) (*Result, error) {
	if ctx.Err() == context.DeadlineExceeded && !eris.Is(err, ErrTimeout) {
		err = eris.Wrap(ErrTimeout, err.Error())
	}

	report := result.Report
	report.Error = err.Error()
	report.Finalize(model.RunFailed)

	if p.store != nil {
		// Best effort with a fresh context so a dead deadline cannot block
		// the failure row.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if serr := p.store.FailRun(sctx, report); serr != nil && !eris.Is(serr, store.ErrNotFound) {
			zap.L().Warn("pipeline: failure row write failed",
				zap.String("run_id", report.RunID),
				zap.Error(serr),
			)
		}
	}

	zap.L().Error("pipeline: run failed",
		zap.String("run_id", report.RunID),
		zap.String("source", report.Source),
		zap.Error(err),
	)
	return result, err
}

// rejectReason strips the sentinel tail off a mapper rejection so equal
// causes aggregate under one reason.
func rejectReason(err error) string {
	msg := err.Error()
	if cut, ok := strings.CutSuffix(msg, ": "+mapper.ErrMapping.Error()); ok {
		return cut
	}
	return msg
}
