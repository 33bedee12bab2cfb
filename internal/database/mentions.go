package database

import (
	"time"
)

// timeFormat is the storage format for timestamps. RFC3339 in UTC keeps
// lexicographic and chronological order identical, so range predicates
// work on the TEXT columns directly.
const timeFormat = time.RFC3339

// UpsertMention records one mention observation. The unique key
// (topic_id, source, period_start, period_end) makes collection runs
// idempotent: a duplicate insert is a no-op, not an error. Returns whether
// a new row was written.
func (db *DB) UpsertMention(topicID int64, source string, count int, collectedAt, periodStart, periodEnd time.Time) (bool, error) {
	res, err := db.conn.Exec(
		`INSERT INTO topic_mentions (topic_id, source, mention_count, collected_at, period_start, period_end)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (topic_id, source, period_start, period_end) DO NOTHING`,
		topicID, source, count,
		collectedAt.UTC().Format(timeFormat),
		periodStart.UTC().Format(timeFormat),
		periodEnd.UTC().Format(timeFormat),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TodayMentionTotal sums mention counts across all sources for rows
// collected at or after dayStart.
func (db *DB) TodayMentionTotal(topicID int64, dayStart time.Time) (int, error) {
	var total int
	err := db.conn.QueryRow(
		`SELECT COALESCE(SUM(mention_count), 0) FROM topic_mentions
		WHERE topic_id = ? AND collected_at >= ?`,
		topicID, dayStart.UTC().Format(timeFormat),
	).Scan(&total)
	return total, err
}

// DayTotal is the summed mention count for one calendar day.
type DayTotal struct {
	Day   string // YYYY-MM-DD
	Total int
}

// DailyMentionTotals returns per-day mention sums for rows collected in
// [from, to), grouped by UTC calendar day. Days without rows are absent.
func (db *DB) DailyMentionTotals(topicID int64, from, to time.Time) ([]DayTotal, error) {
	rows, err := db.conn.Query(
		`SELECT DATE(collected_at) AS day, SUM(mention_count) AS total
		FROM topic_mentions
		WHERE topic_id = ? AND collected_at >= ? AND collected_at < ?
		GROUP BY DATE(collected_at) ORDER BY day`,
		topicID, from.UTC().Format(timeFormat), to.UTC().Format(timeFormat),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []DayTotal
	for rows.Next() {
		var d DayTotal
		if err := rows.Scan(&d.Day, &d.Total); err != nil {
			return nil, err
		}
		totals = append(totals, d)
	}
	return totals, rows.Err()
}

// CountMentions returns the number of mention rows for a topic, or for
// all topics when topicID is 0. Used by idempotency checks and stats.
func (db *DB) CountMentions(topicID int64) (int, error) {
	var n int
	var err error
	if topicID == 0 {
		err = db.conn.QueryRow("SELECT COUNT(*) FROM topic_mentions").Scan(&n)
	} else {
		err = db.conn.QueryRow("SELECT COUNT(*) FROM topic_mentions WHERE topic_id = ?", topicID).Scan(&n)
	}
	return n, err
}

// DayStartUTC truncates t to the start of its UTC calendar day.
func DayStartUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
