package database

import "database/sql"

// InsertHeadline inserts a headline. Returns the ID on success, 0 if the
// URL was already stored.
func (db *DB) InsertHeadline(topicID int64, url, title string, source, publishedDate, summary *string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO headlines (topic_id, url, title, source, published_date, summary)
		VALUES (?, ?, ?, ?, ?, ?)`,
		topicID, url, title, source, publishedDate, summary,
	)
	if err != nil {
		// Duplicate URL constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetRecentHeadlines returns the newest headlines for a topic, or across
// all topics when topicID is 0.
func (db *DB) GetRecentHeadlines(topicID int64, limit int) ([]Headline, error) {
	query := `SELECT id, topic_id, url, title, source, published_date, summary, content_fetched, collected_at
		FROM headlines`
	var args []any
	if topicID != 0 {
		query += " WHERE topic_id = ?"
		args = append(args, topicID)
	}
	query += " ORDER BY collected_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHeadlines(rows)
}

// GetHeadlinesNeedingFetch returns headlines with no summary that haven't
// had a fetch attempt yet.
func (db *DB) GetHeadlinesNeedingFetch(limit int) ([]Headline, error) {
	rows, err := db.conn.Query(
		`SELECT id, topic_id, url, title, source, published_date, summary, content_fetched, collected_at
		FROM headlines
		WHERE (summary IS NULL OR summary = '') AND content_fetched = 0
		ORDER BY collected_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHeadlines(rows)
}

// UpdateHeadlineSummary stores extracted content for a headline.
func (db *DB) UpdateHeadlineSummary(headlineID int64, summary *string) error {
	_, err := db.conn.Exec(
		"UPDATE headlines SET summary = ?, content_fetched = 1 WHERE id = ?",
		summary, headlineID,
	)
	return err
}

// MarkHeadlineFetchAttempted marks that a fetch was tried and failed.
func (db *DB) MarkHeadlineFetchAttempted(headlineID int64) error {
	_, err := db.conn.Exec(
		"UPDATE headlines SET content_fetched = 1 WHERE id = ?", headlineID,
	)
	return err
}

func scanHeadlines(rows *sql.Rows) ([]Headline, error) {
	var headlines []Headline
	for rows.Next() {
		var h Headline
		var fetched int
		if err := rows.Scan(&h.ID, &h.TopicID, &h.URL, &h.Title, &h.Source,
			&h.PublishedDate, &h.Summary, &fetched, &h.CollectedAt); err != nil {
			return nil, err
		}
		h.ContentFetched = fetched != 0
		headlines = append(headlines, h)
	}
	return headlines, rows.Err()
}
