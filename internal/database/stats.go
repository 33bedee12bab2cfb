package database

// GetStats returns aggregate statistics for the status command.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM topics", &s.TotalTopics},
		{"SELECT COUNT(*) FROM topics WHERE is_active = 1", &s.ActiveTopics},
		{"SELECT COUNT(*) FROM topic_mentions", &s.TotalMentions},
		{"SELECT COUNT(DISTINCT DATE(collected_at)) FROM topic_mentions", &s.DaysWithData},
		{"SELECT COUNT(*) FROM headlines", &s.TotalHeadlines},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	last, err := db.LastRecomputeTime()
	if err != nil {
		return nil, err
	}
	s.LastRecompute = last

	return s, nil
}
