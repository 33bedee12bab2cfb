// Package collect orchestrates mention collection across the source
// adapters and stores the results.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ntexler/trendvest/internal/database"
	"github.com/Ntexler/trendvest/internal/sources"
)

// SourceReport summarizes one source's run within a cycle.
type SourceReport struct {
	Kind     sources.Kind
	Topics   int
	Inserted int
	Skipped  int
	Failed   int
	Err      error
}

// Report summarizes one collection cycle.
type Report struct {
	CycleID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Sources    []SourceReport

	// Touched holds the IDs of topics with at least one new observation,
	// for targeted momentum recomputes.
	Touched []int64
}

// Succeeded reports whether at least one source completed without a
// source-level failure.
func (r *Report) Succeeded() bool {
	for _, s := range r.Sources {
		if s.Err == nil {
			return true
		}
	}
	return false
}

// Collector runs collection cycles over the active topics.
type Collector struct {
	db   *database.DB
	srcs []sources.Source

	now func() time.Time
}

// NewCollector creates a collector over the given sources.
func NewCollector(db *database.DB, srcs []sources.Source) *Collector {
	return &Collector{db: db, srcs: srcs, now: time.Now}
}

// RunCycle collects mention counts for every active topic from every
// source. only restricts the run to a single source kind; "" and "all"
// run every source.
// Sources run in parallel; within a source, topics run serially to
// respect each platform's rate limits. A failing source never aborts the
// others. The observation window is the current UTC calendar day, so
// re-running a cycle within the same day inserts nothing new.
func (c *Collector) RunCycle(ctx context.Context, only sources.Kind) (*Report, error) {
	topics, err := c.db.GetActiveTopics()
	if err != nil {
		return nil, fmt.Errorf("failed to load topics: %w", err)
	}
	if len(topics) == 0 {
		return nil, errors.New("no active topics; run seed first")
	}

	srcs := c.srcs
	if only != "" && only != "all" {
		srcs = nil
		for _, s := range c.srcs {
			if s.Kind() == only {
				srcs = append(srcs, s)
			}
		}
		if len(srcs) == 0 {
			return nil, fmt.Errorf("no source of kind %q", only)
		}
	}

	now := c.now().UTC()
	dayStart := database.DayStartUTC(now)
	window := sources.Window{Start: dayStart, End: dayStart.AddDate(0, 0, 1)}

	report := &Report{
		CycleID:   uuid.NewString(),
		StartedAt: now,
		Sources:   make([]SourceReport, len(srcs)),
	}
	log.Printf("collect: cycle %s starting with %d sources, %d topics",
		report.CycleID, len(srcs), len(topics))

	touched := make(map[int64]struct{})
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, src := range srcs {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			sr := c.runSource(ctx, src, topics, window, touched, &mu)
			report.Sources[i] = sr
		}(i, src)
	}
	wg.Wait()

	for id := range touched {
		report.Touched = append(report.Touched, id)
	}
	report.FinishedAt = c.now().UTC()

	for _, sr := range report.Sources {
		if sr.Err != nil {
			log.Printf("collect: source %s failed: %v", sr.Kind, sr.Err)
			continue
		}
		log.Printf("collect: source %s: %d inserted, %d skipped, %d failed of %d topics",
			sr.Kind, sr.Inserted, sr.Skipped, sr.Failed, sr.Topics)
	}
	if !report.Succeeded() {
		return report, errors.New("every source failed")
	}
	return report, nil
}

func (c *Collector) runSource(ctx context.Context, src sources.Source, topics []database.Topic, w sources.Window, touched map[int64]struct{}, mu *sync.Mutex) SourceReport {
	sr := SourceReport{Kind: src.Kind(), Topics: len(topics)}

	for _, topic := range topics {
		if ctx.Err() != nil {
			sr.Err = ctx.Err()
			return sr
		}

		q := sources.Query{Keywords: topic.Keywords, ForumHints: topic.ForumHints}
		count, err := src.FetchMentions(ctx, q, w)
		if err != nil {
			// A budget exhaustion stops the whole source; anything else
			// only skips this topic.
			if errors.Is(err, sources.ErrBudgetExhausted) {
				sr.Err = err
				return sr
			}
			log.Printf("collect: %s/%s: %v", src.Kind(), topic.Slug, err)
			sr.Failed++
			continue
		}

		inserted, err := c.db.UpsertMention(topic.ID, string(src.Kind()), count, c.now().UTC(), w.Start, w.End)
		if err != nil {
			log.Printf("collect: store %s/%s: %v", src.Kind(), topic.Slug, err)
			sr.Failed++
			continue
		}
		if inserted {
			sr.Inserted++
		} else {
			sr.Skipped++
		}
		mu.Lock()
		touched[topic.ID] = struct{}{}
		mu.Unlock()
	}
	return sr
}
