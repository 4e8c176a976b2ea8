// Package pipeline drives article generation: a pool of conditions, each
// walked through the ordered stages from outline to finalized article.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/medkb/kbgen/internal/article"
	"github.com/medkb/kbgen/internal/condition"
	"github.com/medkb/kbgen/internal/config"
	"github.com/medkb/kbgen/internal/llm"
	"github.com/medkb/kbgen/internal/local"
	"github.com/medkb/kbgen/internal/paper"
	"github.com/medkb/kbgen/internal/refs"
	"github.com/medkb/kbgen/internal/report"
	"github.com/medkb/kbgen/internal/search"
)

// Searcher is the bibliographic fan-out the pipeline feeds queries to.
type Searcher interface {
	Run(ctx context.Context, queries []paper.SearchQuery) ([]paper.Record, error)
}

// errStopped marks a condition abandoned at a stage boundary after a stop
// request. Never a condition failure.
var errStopped = errors.New("stop requested")

// Pipeline owns the per-run state shared across conditions. The model
// client and searcher carry their own concurrency caps; the pipeline adds
// the condition-level pool on top.
type Pipeline struct {
	cfg       *config.Config
	model     *llm.Client
	searcher  Searcher
	resolver  *refs.Resolver
	relevance local.Index
	logger    *zap.Logger
	stop      <-chan struct{}
	topDocs   int
	force     bool
	snapshots bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithForce regenerates articles even when a valid one already exists.
func WithForce(force bool) Option {
	return func(p *Pipeline) { p.force = force }
}

// WithRelevance supplies the local-knowledge relevance index.
func WithRelevance(idx local.Index) Option {
	return func(p *Pipeline) { p.relevance = idx }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithSnapshots toggles writing intermediate stage artifacts next to the
// final article. On by default.
func WithSnapshots(on bool) Option {
	return func(p *Pipeline) { p.snapshots = on }
}

// WithTopDocs caps how many local documents feed the refinement stage.
func WithTopDocs(n int) Option {
	return func(p *Pipeline) { p.topDocs = n }
}

// WithStopSignal installs a graceful-stop request channel. Once it closes,
// in-flight conditions finish their current stage, no further stages
// start, and pending conditions are not picked up. Cancelling the run
// context remains the hard abort that interrupts work mid-call.
func WithStopSignal(stop <-chan struct{}) Option {
	return func(p *Pipeline) { p.stop = stop }
}

// New creates a Pipeline.
func New(cfg *config.Config, model *llm.Client, searcher Searcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		model:     model,
		searcher:  searcher,
		logger:    zap.NewNop(),
		snapshots: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.resolver = refs.NewResolver(p.logger)
	return p
}

// Run processes every condition through the stage sequence, at most
// cfg.Concurrency at a time. Per-condition failures are recorded in the
// report rather than aborting the run. A stop request (WithStopSignal)
// lets in-flight conditions finish their current stage before halting;
// cancelling ctx aborts immediately, discarding mid-stage work.
func (p *Pipeline) Run(ctx context.Context, conditions []condition.Condition) *report.Report {
	rep := report.New()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for _, cond := range conditions {
		cond := cond
		g.Go(func() error {
			if p.stopErr(ctx) != nil {
				return nil
			}

			start := time.Now()
			log := p.logger.With(zap.String("condition", cond.Name))

			if !p.force && p.hasValidArticle(cond) {
				log.Info("valid article exists, skipping")
				rep.Skipped(cond.DisplayName())
				return nil
			}

			stage, err := p.process(ctx, cond, log)
			if err != nil {
				// A stop or cancellation mid-run is not a condition failure.
				if errors.Is(err, errStopped) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					log.Warn("stopped before completion", zap.String("stage", stage))
					return nil
				}
				log.Error("condition failed",
					zap.String("stage", stage),
					zap.Error(err))
				rep.Failed(cond.DisplayName(), stage, err, time.Since(start))
				return nil
			}

			log.Info("condition finished", zap.Duration("elapsed", time.Since(start)))
			rep.Succeeded(cond.DisplayName(), time.Since(start))
			return nil
		})
	}

	g.Wait()
	return rep
}

// process walks one condition through every stage and persists the final
// article. It returns the name of the stage that failed.
func (p *Pipeline) process(ctx context.Context, cond condition.Condition, log *zap.Logger) (string, error) {
	dir := p.cfg.ConditionDir(cond.Slug())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return StageOutlined, fmt.Errorf("creating condition directory: %w", err)
	}

	topic := cond.DisplayName()

	outline, err := p.generateOutline(ctx, topic)
	if err != nil {
		return StageOutlined, err
	}
	p.snapshot(dir, "outline.json", outline, log)

	if err := p.stopErr(ctx); err != nil {
		return StageLocal, err
	}
	outline, skipped, err := p.integrateLocal(ctx, cond, outline)
	if err != nil {
		return StageLocal, err
	}
	if !skipped {
		p.snapshot(dir, "outline_local.json", outline, log)
	}

	if err := p.stopErr(ctx); err != nil {
		return StageQueries, err
	}
	queries, err := p.generateQueries(ctx, outline)
	if err != nil {
		return StageQueries, err
	}
	p.snapshot(dir, "queries.json", queries, log)

	if err := p.stopErr(ctx); err != nil {
		return StagePapers, err
	}
	records, err := p.searcher.Run(ctx, queries)
	if err != nil {
		return StagePapers, err
	}
	p.snapshot(dir, "papers.json", records, log)
	log.Info("papers retrieved", zap.Int("count", len(records)))

	integrated, attached, err := p.integratePapers(ctx, topic, outline, records)
	if err != nil {
		return StagePapers, err
	}

	if err := p.stopErr(ctx); err != nil {
		return StageFinalized, err
	}
	final, err := p.resolver.Resolve(integrated, cond.Category, attached)
	if err != nil {
		return StageFinalized, err
	}

	if err := p.persist(cond, final); err != nil {
		return StageFinalized, err
	}
	return StageFinalized, nil
}

// stopErr reports whether the run should go no further: a hard context
// cancellation, or a graceful stop request. Checked only at stage
// boundaries so a stage in flight runs to completion.
func (p *Pipeline) stopErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.stop == nil {
		return nil
	}
	select {
	case <-p.stop:
		return errStopped
	default:
		return nil
	}
}

// hasValidArticle reports whether a structurally valid article already
// exists for the condition.
func (p *Pipeline) hasValidArticle(cond condition.Condition) bool {
	data, err := os.ReadFile(p.cfg.ArticlePath(cond.Slug()))
	if err != nil {
		return false
	}
	var a article.Article
	if err := json.Unmarshal(data, &a); err != nil {
		return false
	}
	return article.Validate(&a) == nil
}

// persist writes the article atomically: full marshal to a temp file in
// the destination directory, then rename. A crash mid-write never leaves
// a partial article behind.
func (p *Pipeline) persist(cond condition.Condition, a *article.Article) error {
	path := p.cfg.ArticlePath(cond.Slug())

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding article: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".article-*.json")
	if err != nil {
		return fmt.Errorf("creating temp article: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing article: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing article: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing article: %w", err)
	}
	return nil
}

// snapshot writes one intermediate stage artifact. Snapshot failures are
// logged, never fatal: they exist for debugging, not correctness.
func (p *Pipeline) snapshot(dir, name string, v any, log *zap.Logger) {
	if !p.snapshots {
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn("snapshot encode failed", zap.String("name", name), zap.Error(err))
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		log.Warn("snapshot write failed", zap.String("name", name), zap.Error(err))
	}
}

// compile-time check that the search adapter satisfies the pipeline's
// searcher contract.
var _ Searcher = (*search.Adapter)(nil)
