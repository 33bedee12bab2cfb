package database

import (
	"database/sql"
	"time"
)

// UpsertMomentumScore replaces the single momentum row for a topic.
func (db *DB) UpsertMomentumScore(topicID int64, score float64, todayCount int, avg7d float64, direction string, updatedAt time.Time) error {
	_, err := db.conn.Exec(
		`INSERT INTO momentum_scores (topic_id, score, mention_count_today, mention_avg_7d, direction, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (topic_id) DO UPDATE SET
			score = excluded.score,
			mention_count_today = excluded.mention_count_today,
			mention_avg_7d = excluded.mention_avg_7d,
			direction = excluded.direction,
			updated_at = excluded.updated_at`,
		topicID, score, todayCount, avg7d, direction, updatedAt.UTC().Format(timeFormat),
	)
	return err
}

// InitMomentumScore lazily creates a zero-initialized momentum row for a
// topic at seed time. Existing rows are left untouched.
func (db *DB) InitMomentumScore(topicID int64) error {
	_, err := db.conn.Exec(
		`INSERT INTO momentum_scores (topic_id) VALUES (?)
		ON CONFLICT (topic_id) DO NOTHING`, topicID,
	)
	return err
}

// GetMomentumScore returns the momentum row for a topic, or nil if absent.
func (db *DB) GetMomentumScore(topicID int64) (*MomentumScore, error) {
	row := db.conn.QueryRow(
		`SELECT topic_id, score, mention_count_today, mention_avg_7d, direction, updated_at
		FROM momentum_scores WHERE topic_id = ?`, topicID,
	)
	var m MomentumScore
	err := row.Scan(&m.TopicID, &m.Score, &m.MentionCountToday, &m.MentionAvg7d, &m.Direction, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMomentumScores returns momentum rows for all active topics keyed by
// topic ID.
func (db *DB) GetMomentumScores() (map[int64]MomentumScore, error) {
	rows, err := db.conn.Query(
		`SELECT m.topic_id, m.score, m.mention_count_today, m.mention_avg_7d, m.direction, m.updated_at
		FROM momentum_scores m JOIN topics t ON m.topic_id = t.id
		WHERE t.is_active = 1`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make(map[int64]MomentumScore)
	for rows.Next() {
		var m MomentumScore
		if err := rows.Scan(&m.TopicID, &m.Score, &m.MentionCountToday, &m.MentionAvg7d, &m.Direction, &m.UpdatedAt); err != nil {
			return nil, err
		}
		scores[m.TopicID] = m
	}
	return scores, rows.Err()
}

// LastRecomputeTime returns the most recent momentum update timestamp, or
// empty string when no recompute has run yet.
func (db *DB) LastRecomputeTime() (string, error) {
	var last sql.NullString
	err := db.conn.QueryRow("SELECT MAX(updated_at) FROM momentum_scores").Scan(&last)
	if err != nil {
		return "", err
	}
	return last.String, nil
}
