// Package pipeline orchestrates the collection, headline, fetch and
// momentum steps as one run.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Ntexler/trendvest/internal/collect"
	"github.com/Ntexler/trendvest/internal/config"
	"github.com/Ntexler/trendvest/internal/database"
	"github.com/Ntexler/trendvest/internal/fetch"
	"github.com/Ntexler/trendvest/internal/momentum"
	"github.com/Ntexler/trendvest/internal/sources"
)

const fetchBatchLimit = 40

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	CycleID string
	Steps   []StepResult
}

// Pipeline wires the collection steps together.
type Pipeline struct {
	cfg       *config.Config
	db        *database.DB
	collector *collect.Collector
	headlines *collect.HeadlineCollector
	fetcher   *fetch.ContentFetcher
	calc      *momentum.Calculator
}

// New creates a pipeline from the configuration, building whichever
// source adapters are enabled.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	var srcs []sources.Source
	if cfg.Sources.Forum.Enabled {
		srcs = append(srcs, sources.NewForumSource(cfg.Sources.Forum.UserAgent, cfg.Sources.Forum.DefaultForums))
	}
	if cfg.Sources.News.Enabled {
		key := os.Getenv(cfg.Sources.News.APIKeyEnv)
		if key == "" {
			log.Printf("pipeline: %s not set, news source disabled", cfg.Sources.News.APIKeyEnv)
		} else {
			srcs = append(srcs, sources.NewNewsSource(key, cfg.Sources.News.DailyBudget))
		}
	}
	if cfg.Sources.Trends.Enabled {
		srcs = append(srcs, sources.NewTrendsSource())
	}
	if cfg.Sources.Microblog.Enabled {
		token := os.Getenv(cfg.Sources.Microblog.TokenEnv)
		if token == "" {
			log.Printf("pipeline: %s not set, microblog source disabled", cfg.Sources.Microblog.TokenEnv)
		} else {
			srcs = append(srcs, sources.NewMicroblogSource(token, cfg.Sources.Microblog.DailyBudget))
		}
	}

	feeds := make([]collect.FeedConfig, len(cfg.Feeds))
	for i, f := range cfg.Feeds {
		feeds[i] = collect.FeedConfig{URL: f.URL, Name: f.Name}
	}

	return &Pipeline{
		cfg:       cfg,
		db:        db,
		collector: collect.NewCollector(db, srcs),
		headlines: collect.NewHeadlineCollector(db, feeds),
		fetcher:   fetch.NewContentFetcher(db, 0),
		calc:      momentum.NewCalculator(db, cfg.Momentum.RisingThreshold, cfg.Momentum.FallingThreshold),
	}
}

// Run executes collect, headlines, fetch and momentum in order. only
// restricts collection to one source kind. A failed collect step aborts
// the run; the later steps degrade independently.
func (p *Pipeline) Run(ctx context.Context, only sources.Kind) *Result {
	r := &Result{}

	report, err := p.collector.RunCycle(ctx, only)
	if report != nil {
		r.CycleID = report.CycleID
	}
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Collect", Err: err})
		return r
	}
	inserted := 0
	for _, sr := range report.Sources {
		inserted += sr.Inserted
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("%d observations from %d sources, %d topics touched", inserted, len(report.Sources), len(report.Touched)),
	})

	stored, err := p.headlines.Run(1)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Headlines",
		Summary: fmt.Sprintf("%d new headlines", stored),
		Err:     err,
	})

	fetched := p.fetcher.FetchMissingContent(fetchBatchLimit)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("%d fetched, %d failed", fetched.Fetched, fetched.Failed),
	})

	n, err := p.calc.RecomputeTopics(report.Touched)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Momentum",
		Summary: fmt.Sprintf("%d topics recomputed", n),
		Err:     err,
	})

	return r
}

// RecomputeMomentum recalculates momentum for every active topic without
// collecting anything new.
func (p *Pipeline) RecomputeMomentum() *Result {
	r := &Result{}
	n, err := p.calc.RecomputeAll()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Momentum",
		Summary: fmt.Sprintf("%d topics recomputed", n),
		Err:     err,
	})
	return r
}

// DryRun reports what a run would do without touching anything.
func (p *Pipeline) DryRun() *Result {
	r := &Result{}

	topics, _ := p.db.GetActiveTopics()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("[dry-run] would poll %d active topics", len(topics)),
	})

	r.Steps = append(r.Steps, StepResult{
		Name:    "Headlines",
		Summary: fmt.Sprintf("[dry-run] would parse %d feeds", len(p.cfg.Feeds)),
	})

	needing, _ := p.db.GetHeadlinesNeedingFetch(fetchBatchLimit)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("[dry-run] %d headlines need content", len(needing)),
	})

	r.Steps = append(r.Steps, StepResult{
		Name:    "Momentum",
		Summary: fmt.Sprintf("[dry-run] would recompute %d topics", len(topics)),
	})
	return r
}
