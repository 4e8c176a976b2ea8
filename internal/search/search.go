// Package search fans bibliographic queries out across the paper services
// and filters the combined results down to citable, well-cited records.
package search

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/medkb/kbgen/internal/cache"
	"github.com/medkb/kbgen/internal/paper"
	"github.com/medkb/kbgen/internal/retry"
)

const (
	// DefaultPerQueryLimit is how many results to request from each
	// service per query.
	DefaultPerQueryLimit = 5

	// DefaultTopPerQuery is how many records survive per query after
	// citation-count ranking.
	DefaultTopPerQuery = 3

	// DefaultMinCitations filters out barely-cited papers. Records from
	// services that do not report citation counts are kept.
	DefaultMinCitations = 10
)

// Searcher is one bibliographic service.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]paper.Record, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, query string, limit int) ([]paper.Record, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, query string, limit int) ([]paper.Record, error) {
	return f(ctx, query, limit)
}

type service struct {
	name     paper.Source
	searcher Searcher
}

// Adapter runs a set of section-tagged queries against every registered
// service and returns the merged, filtered records. Individual query
// failures are logged and skipped so one bad query cannot sink a whole
// article.
type Adapter struct {
	services      []service
	store         *cache.Store
	retrier       *retry.Retrier
	logger        *zap.Logger
	perQueryLimit int
	topPerQuery   int
	minCitations  int
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithService registers a bibliographic service under its source name.
func WithService(name paper.Source, s Searcher) Option {
	return func(a *Adapter) {
		a.services = append(a.services, service{name: name, searcher: s})
	}
}

// WithCache enables the search-result cache.
func WithCache(store *cache.Store) Option {
	return func(a *Adapter) { a.store = store }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithRetrier replaces the default retry policy for service calls.
func WithRetrier(r *retry.Retrier) Option {
	return func(a *Adapter) { a.retrier = r }
}

// WithPerQueryLimit sets how many results each service is asked for.
func WithPerQueryLimit(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.perQueryLimit = n
		}
	}
}

// WithTopPerQuery sets how many ranked records survive per query.
func WithTopPerQuery(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.topPerQuery = n
		}
	}
}

// WithMinCitations sets the citation-count floor. Zero disables the
// floor entirely.
func WithMinCitations(n int) Option {
	return func(a *Adapter) { a.minCitations = n }
}

// NewAdapter creates an Adapter. At least one service must be registered
// before Run is useful.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		retrier:       retry.New(retry.DefaultPolicy()),
		logger:        zap.NewNop(),
		perQueryLimit: DefaultPerQueryLimit,
		topPerQuery:   DefaultTopPerQuery,
		minCitations:  DefaultMinCitations,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes every query against every service and returns the merged
// records, each tagged with the section and query that produced it.
// Records missing a title or authors are dropped, duplicates within the
// result set are collapsed, and each query contributes at most the
// configured top-N records ranked by citation count.
func (a *Adapter) Run(ctx context.Context, queries []paper.SearchQuery) ([]paper.Record, error) {
	var merged []paper.Record

	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var found []paper.Record
		for _, svc := range a.services {
			records, err := a.searchOne(ctx, svc, q.Query)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil, err
				}
				a.logger.Warn("query failed, skipping",
					zap.String("service", string(svc.name)),
					zap.String("query", q.Query),
					zap.Error(err))
				continue
			}
			found = append(found, records...)
		}

		selected := a.selectTop(found)
		for i := range selected {
			selected[i].Section = q.Section
			selected[i].Query = q.Query
		}
		merged = append(merged, selected...)
	}

	return dedup(merged), nil
}

// searchOne runs one query against one service, through the cache when
// one is configured.
func (a *Adapter) searchOne(ctx context.Context, svc service, query string) ([]paper.Record, error) {
	var key string
	if a.store != nil {
		key = cache.Key(svc.name, query, a.perQueryLimit)
		if records, err := a.store.Get(key); err == nil {
			a.logger.Debug("cache hit",
				zap.String("service", string(svc.name)),
				zap.String("query", query))
			return records, nil
		}
	}

	var records []paper.Record
	err := a.retrier.Do(ctx, string(svc.name)+" search", func(ctx context.Context) error {
		var err error
		records, err = svc.searcher.Search(ctx, query, a.perQueryLimit)
		return err
	})
	if err != nil {
		return nil, err
	}

	if a.store != nil {
		if err := a.store.Put(key, svc.name, query, records); err != nil {
			a.logger.Warn("cache write failed", zap.Error(err))
		}
	}
	return records, nil
}

// selectTop filters out un-citable and under-cited records, then keeps
// the top-N by citation count.
func (a *Adapter) selectTop(records []paper.Record) []paper.Record {
	kept := make([]paper.Record, 0, len(records))
	for _, r := range records {
		if !r.Citable() {
			continue
		}
		// Services that report no citation count at all (count zero with
		// no venue signal from PubMed) are kept rather than rejected.
		if a.minCitations > 0 && r.Source == paper.SourceSemanticScholar && r.CitationCount < a.minCitations {
			continue
		}
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].CitationCount > kept[j].CitationCount
	})

	if len(kept) > a.topPerQuery {
		kept = kept[:a.topPerQuery]
	}
	return kept
}

// dedup collapses records describing the same paper, preferring the more
// complete record when two collide.
func dedup(records []paper.Record) []paper.Record {
	out := make([]paper.Record, 0, len(records))
	for _, r := range records {
		matched := false
		for i := range out {
			if paper.SameReference(out[i], r) {
				if r.Completeness() > out[i].Completeness() {
					// Keep the position of the first sighting.
					section, query := out[i].Section, out[i].Query
					out[i] = r
					out[i].Section, out[i].Query = section, query
				}
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, r)
		}
	}
	return out
}
