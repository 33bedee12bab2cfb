// Package momentum computes trend scores from stored mention counts.
package momentum

import (
	"fmt"
	"log"
	"time"

	"github.com/Ntexler/trendvest/internal/database"
)

// Direction labels for momentum scores.
const (
	DirectionRising  = "rising"
	DirectionStable  = "stable"
	DirectionFalling = "falling"
)

// Calculator recomputes momentum scores against the mention history.
type Calculator struct {
	db               *database.DB
	risingThreshold  float64
	fallingThreshold float64

	now func() time.Time
}

// NewCalculator creates a calculator using the configured direction
// thresholds.
func NewCalculator(db *database.DB, risingThreshold, fallingThreshold float64) *Calculator {
	return &Calculator{
		db:               db,
		risingThreshold:  risingThreshold,
		fallingThreshold: fallingThreshold,
		now:              time.Now,
	}
}

// Score computes the momentum score: today's mention total relative to the
// trailing average, scaled so 100 means "at baseline". The divisor is
// floored at 1 so topics with a near-zero baseline still score sanely.
func Score(today int, avg7d float64) float64 {
	base := avg7d
	if base < 1 {
		base = 1
	}
	return float64(today) / base * 100
}

// Direction classifies a score against the thresholds. Both boundaries
// are inclusive.
func (c *Calculator) Direction(score float64) string {
	switch {
	case score >= c.risingThreshold:
		return DirectionRising
	case score <= c.fallingThreshold:
		return DirectionFalling
	default:
		return DirectionStable
	}
}

// Recompute recalculates and stores the momentum score for one topic.
// Today is the current UTC calendar day; the baseline is the average of
// per-day totals over the seven prior days, counting only days that have
// data. A topic with no mention history at all scores zero.
func (c *Calculator) Recompute(topicID int64) (*database.MomentumScore, error) {
	now := c.now().UTC()
	dayStart := database.DayStartUTC(now)

	total, err := c.db.CountMentions(topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to count mentions: %w", err)
	}
	if total == 0 {
		if err := c.db.UpsertMomentumScore(topicID, 0, 0, 0, DirectionStable, now); err != nil {
			return nil, err
		}
		return c.db.GetMomentumScore(topicID)
	}

	today, err := c.db.TodayMentionTotal(topicID, dayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to total today's mentions: %w", err)
	}

	days, err := c.db.DailyMentionTotals(topicID, dayStart.AddDate(0, 0, -7), dayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily totals: %w", err)
	}
	var avg7d float64
	if len(days) > 0 {
		sum := 0
		for _, d := range days {
			sum += d.Total
		}
		avg7d = float64(sum) / float64(len(days))
	}

	score := Score(today, avg7d)
	direction := c.Direction(score)
	if err := c.db.UpsertMomentumScore(topicID, score, today, avg7d, direction, now); err != nil {
		return nil, fmt.Errorf("failed to store momentum: %w", err)
	}
	return c.db.GetMomentumScore(topicID)
}

// RecomputeTopics recomputes the given topics, logging and skipping any
// that fail. Returns the number recomputed successfully.
func (c *Calculator) RecomputeTopics(topicIDs []int64) (int, error) {
	done := 0
	var lastErr error
	for _, id := range topicIDs {
		if _, err := c.Recompute(id); err != nil {
			log.Printf("momentum: recompute topic %d failed: %v", id, err)
			lastErr = err
			continue
		}
		done++
	}
	if done == 0 && lastErr != nil {
		return 0, lastErr
	}
	return done, nil
}

// RecomputeAll recomputes every active topic.
func (c *Calculator) RecomputeAll() (int, error) {
	topics, err := c.db.GetActiveTopics()
	if err != nil {
		return 0, fmt.Errorf("failed to list topics: %w", err)
	}
	ids := make([]int64, len(topics))
	for i, t := range topics {
		ids[i] = t.ID
	}
	return c.RecomputeTopics(ids)
}
