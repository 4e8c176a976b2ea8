package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/medkb/kbgen/internal/cache"
	"github.com/medkb/kbgen/internal/condition"
	"github.com/medkb/kbgen/internal/config"
	"github.com/medkb/kbgen/internal/llm"
	"github.com/medkb/kbgen/internal/local"
	"github.com/medkb/kbgen/internal/paper"
	"github.com/medkb/kbgen/internal/pipeline"
	"github.com/medkb/kbgen/internal/pubmed"
	"github.com/medkb/kbgen/internal/retry"
	"github.com/medkb/kbgen/internal/s2"
	"github.com/medkb/kbgen/internal/search"
)

var (
	runForce       bool
	runOnly        []string
	runNoSnapshots bool
)

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "Regenerate articles even when a valid one exists")
	runCmd.Flags().StringSliceVar(&runOnly, "only", nil, "Process only the named conditions (repeatable)")
	runCmd.Flags().BoolVar(&runNoSnapshots, "no-snapshots", false, "Do not write intermediate stage artifacts")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate articles for every condition in the catalog",
	Long: `Generate articles for every condition in the catalog.

Interrupting the run (Ctrl-C) stops gracefully: in-flight conditions
finish their current stage and nothing partial is persisted. A second
interrupt aborts immediately.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return failf(ExitConfigError, "%v", err)
	}

	keys, err := config.LoadKeys()
	if err != nil {
		return failf(ExitConfigError, "%v", err)
	}

	logger, err := buildLogger(cfg.OutputDir)
	if err != nil {
		return failf(ExitError, "%v", err)
	}
	defer logger.Sync()

	conditions, err := loadConditions(cfg)
	if err != nil {
		return failf(ExitDataError, "%v", err)
	}

	relevance, err := local.LoadIndex(cfg.RelevancePath)
	if err != nil {
		return failf(ExitDataError, "%v", err)
	}
	if relevance == nil && cfg.RelevancePath != "" {
		logger.Warn("relevance index not found, local integration disabled",
			zap.String("path", cfg.RelevancePath))
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// First interrupt requests a graceful stop: in-flight stages finish
	// and their snapshots are written. A second interrupt aborts hard.
	stopCh := make(chan struct{})
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Warn("stop requested, finishing in-flight stages (interrupt again to abort)")
		close(stopCh)
		<-sigCh
		logger.Warn("aborting")
		cancel()
	}()

	invoker, err := llm.NewGeminiInvoker(ctx, keys.Gemini, cfg.Model.Name)
	if err != nil {
		return failf(ExitConfigError, "creating model client: %v", err)
	}
	model := llm.NewClient(invoker,
		llm.WithRetrier(retry.New(retry.Policy{MaxAttempts: cfg.Model.MaxAttempts})),
		llm.WithRepairAttempts(cfg.Model.RepairAttempts),
		llm.WithMaxInFlight(cfg.Model.MaxInFlight),
		llm.WithLogger(logger))

	searchOpts := []search.Option{
		search.WithService(paper.SourcePubMed, pubmed.NewClient(pubmed.WithAPIKey(keys.PubMed))),
		search.WithService(paper.SourceSemanticScholar,
			search.SearcherFunc(s2.NewClient(s2.WithAPIKey(keys.SemanticScholar)).SearchRecords)),
		search.WithLogger(logger),
		search.WithRetrier(retry.New(retry.DefaultPolicy(), retry.WithLogger(logger))),
		search.WithPerQueryLimit(cfg.Search.PerQueryLimit),
		search.WithTopPerQuery(cfg.Search.TopPerQuery),
		search.WithMinCitations(cfg.Search.MinCitations),
	}
	if cfg.CachePath != "" {
		store, err := cache.Open(cfg.CachePath,
			cache.WithTTL(time.Duration(cfg.Search.CacheTTLDays)*24*time.Hour))
		if err != nil {
			return failf(ExitConfigError, "opening search cache: %v", err)
		}
		defer store.Close()
		searchOpts = append(searchOpts, search.WithCache(store))
	}

	p := pipeline.New(cfg, model, search.NewAdapter(searchOpts...),
		pipeline.WithForce(runForce),
		pipeline.WithRelevance(relevance),
		pipeline.WithLogger(logger),
		pipeline.WithStopSignal(stopCh),
		pipeline.WithSnapshots(!runNoSnapshots))

	logger.Info("starting run",
		zap.Int("conditions", len(conditions)),
		zap.Int("concurrency", cfg.Concurrency),
		zap.String("model", cfg.Model.Name))

	rep := p.Run(ctx, conditions)

	if err := rep.AppendLedger(filepath.Join(cfg.OutputDir, "runs.jsonl")); err != nil {
		logger.Warn("writing run ledger failed", zap.Error(err))
	}

	s := rep.Summarize()
	logger.Info("run finished",
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed),
		zap.Int("skipped", s.Skipped))
	for _, f := range s.Failures {
		fmt.Fprintf(os.Stderr, "failed: %s (%s): %s\n", f.Condition, f.Stage, f.Cause)
	}

	if s.Failed > 0 {
		return failf(ExitPartial, "%d of %d conditions failed", s.Failed, len(conditions))
	}
	return nil
}

// loadConditions loads the catalog and applies the --only filter.
func loadConditions(cfg *config.Config) ([]condition.Condition, error) {
	conditions, err := condition.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	if len(runOnly) == 0 {
		return conditions, nil
	}

	want := make(map[string]bool, len(runOnly))
	for _, name := range runOnly {
		want[name] = true
	}
	var filtered []condition.Condition
	for _, c := range conditions {
		if want[c.Name] || want[c.DisplayName()] {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no catalog conditions match --only %v", runOnly)
	}
	return filtered, nil
}
