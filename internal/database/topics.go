package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// UpsertTopic inserts a topic or updates its seed-controlled fields.
// The slug is the stable external identifier; it is never changed.
// Returns the topic ID.
func (db *DB) UpsertTopic(slug, nameEN, nameHE, sector, sectorEN string, keywords, forumHints []string) (int64, error) {
	kw, err := json.Marshal(keywords)
	if err != nil {
		return 0, fmt.Errorf("marshaling keywords: %w", err)
	}
	fh, err := json.Marshal(forumHints)
	if err != nil {
		return 0, fmt.Errorf("marshaling forum hints: %w", err)
	}

	var id int64
	err = db.conn.QueryRow(
		`INSERT INTO topics (slug, name_en, name_he, sector, sector_en, keywords, forum_hints)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET
			name_en = excluded.name_en,
			name_he = excluded.name_he,
			sector = excluded.sector,
			sector_en = excluded.sector_en,
			keywords = excluded.keywords,
			forum_hints = excluded.forum_hints
		RETURNING id`,
		slug, nameEN, nameHE, sector, sectorEN, string(kw), string(fh),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting topic %s: %w", slug, err)
	}
	return id, nil
}

// UpsertTopicStock inserts or updates a curated stock mapping.
func (db *DB) UpsertTopicStock(topicID int64, ticker, companyName, relevanceNote string, priority int) error {
	_, err := db.conn.Exec(
		`INSERT INTO topic_stocks (topic_id, ticker, company_name, relevance_note, priority)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (topic_id, ticker) DO UPDATE SET
			company_name = excluded.company_name,
			relevance_note = excluded.relevance_note,
			priority = excluded.priority`,
		topicID, ticker, companyName, relevanceNote, priority,
	)
	return err
}

// GetActiveTopics returns all active topics ordered by slug.
func (db *DB) GetActiveTopics() ([]Topic, error) {
	rows, err := db.conn.Query(
		`SELECT id, slug, name_en, name_he, sector, sector_en, keywords, forum_hints, is_active, created_at
		FROM topics WHERE is_active = 1 ORDER BY slug`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTopics(rows)
}

// GetTopicBySlug returns a topic by slug, or nil if not found.
func (db *DB) GetTopicBySlug(slug string) (*Topic, error) {
	row := db.conn.QueryRow(
		`SELECT id, slug, name_en, name_he, sector, sector_en, keywords, forum_hints, is_active, created_at
		FROM topics WHERE slug = ?`, slug,
	)
	t, err := scanTopic(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SetTopicActive flips a topic's active flag. Retired topics keep their
// mention history.
func (db *DB) SetTopicActive(slug string, active bool) error {
	val := 0
	if active {
		val = 1
	}
	res, err := db.conn.Exec("UPDATE topics SET is_active = ? WHERE slug = ?", val, slug)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("topic %s not found", slug)
	}
	return nil
}

// GetStocksForTopic returns the curated stocks for a topic, highest
// priority first.
func (db *DB) GetStocksForTopic(topicID int64) ([]TopicStock, error) {
	rows, err := db.conn.Query(
		`SELECT id, topic_id, ticker, company_name, relevance_note, priority
		FROM topic_stocks WHERE topic_id = ? ORDER BY priority DESC, ticker`, topicID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stocks []TopicStock
	for rows.Next() {
		var s TopicStock
		if err := rows.Scan(&s.ID, &s.TopicID, &s.Ticker, &s.CompanyName, &s.RelevanceNote, &s.Priority); err != nil {
			return nil, err
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}

// GetAllStocks returns every curated stock across active topics.
func (db *DB) GetAllStocks() ([]TopicStock, error) {
	rows, err := db.conn.Query(
		`SELECT s.id, s.topic_id, s.ticker, s.company_name, s.relevance_note, s.priority
		FROM topic_stocks s JOIN topics t ON s.topic_id = t.id
		WHERE t.is_active = 1 ORDER BY s.ticker`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stocks []TopicStock
	for rows.Next() {
		var s TopicStock
		if err := rows.Scan(&s.ID, &s.TopicID, &s.Ticker, &s.CompanyName, &s.RelevanceNote, &s.Priority); err != nil {
			return nil, err
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}

func scanTopics(rows *sql.Rows) ([]Topic, error) {
	var topics []Topic
	for rows.Next() {
		var t Topic
		var kw, fh string
		var active int
		if err := rows.Scan(&t.ID, &t.Slug, &t.NameEN, &t.NameHE, &t.Sector, &t.SectorEN,
			&kw, &fh, &active, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.IsActive = active != 0
		json.Unmarshal([]byte(kw), &t.Keywords)
		json.Unmarshal([]byte(fh), &t.ForumHints)
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func scanTopic(row *sql.Row) (*Topic, error) {
	var t Topic
	var kw, fh string
	var active int
	if err := row.Scan(&t.ID, &t.Slug, &t.NameEN, &t.NameHE, &t.Sector, &t.SectorEN,
		&kw, &fh, &active, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.IsActive = active != 0
	json.Unmarshal([]byte(kw), &t.Keywords)
	json.Unmarshal([]byte(fh), &t.ForumHints)
	return &t, nil
}
