package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS topics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    slug TEXT UNIQUE NOT NULL,
    name_en TEXT NOT NULL,
    name_he TEXT NOT NULL,
    sector TEXT NOT NULL,
    sector_en TEXT DEFAULT '',
    keywords TEXT NOT NULL,
    forum_hints TEXT,
    is_active INTEGER DEFAULT 1,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS topic_stocks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    topic_id INTEGER NOT NULL REFERENCES topics(id),
    ticker TEXT NOT NULL,
    company_name TEXT NOT NULL,
    relevance_note TEXT DEFAULT '',
    priority INTEGER DEFAULT 0,
    UNIQUE (topic_id, ticker)
);

CREATE TABLE IF NOT EXISTS topic_mentions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    topic_id INTEGER NOT NULL REFERENCES topics(id),
    source TEXT NOT NULL,
    mention_count INTEGER NOT NULL CHECK(mention_count >= 0),
    collected_at TEXT NOT NULL,
    period_start TEXT NOT NULL,
    period_end TEXT NOT NULL,
    UNIQUE (topic_id, source, period_start, period_end)
);

CREATE TABLE IF NOT EXISTS momentum_scores (
    topic_id INTEGER PRIMARY KEY REFERENCES topics(id),
    score REAL NOT NULL DEFAULT 0,
    mention_count_today INTEGER NOT NULL DEFAULT 0,
    mention_avg_7d REAL NOT NULL DEFAULT 0,
    direction TEXT NOT NULL DEFAULT 'stable' CHECK(direction IN ('rising', 'stable', 'falling')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS headlines (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    topic_id INTEGER NOT NULL REFERENCES topics(id),
    url TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    source TEXT,
    published_date TEXT,
    summary TEXT,
    content_fetched INTEGER DEFAULT 0,
    collected_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_mentions_topic ON topic_mentions(topic_id, collected_at);
CREATE INDEX IF NOT EXISTS idx_mentions_source ON topic_mentions(source);
CREATE INDEX IF NOT EXISTS idx_stocks_topic ON topic_stocks(topic_id);
CREATE INDEX IF NOT EXISTS idx_headlines_topic ON headlines(topic_id, collected_at);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
