package database

import "time"

// Topic is a predefined unit of interest. Topics are seeded once at
// bootstrap and never created by runtime code; retired topics are
// deactivated, not deleted.
type Topic struct {
	ID         int64    `json:"id"`
	Slug       string   `json:"slug"`
	NameEN     string   `json:"name_en"`
	NameHE     string   `json:"name_he"`
	Sector     string   `json:"sector"`
	SectorEN   string   `json:"sector_en"`
	Keywords   []string `json:"keywords"`
	ForumHints []string `json:"forum_hints"`
	IsActive   bool     `json:"is_active"`
	CreatedAt  *string  `json:"created_at"`
}

// TopicStock is a manually curated stock mapped to a topic.
type TopicStock struct {
	ID            int64  `json:"id"`
	TopicID       int64  `json:"topic_id"`
	Ticker        string `json:"ticker"`
	CompanyName   string `json:"company_name"`
	RelevanceNote string `json:"relevance_note"`
	Priority      int    `json:"priority"`
}

// Mention is one observation of how many times a topic was mentioned by a
// source within a half-open time window [PeriodStart, PeriodEnd).
type Mention struct {
	ID           int64     `json:"id"`
	TopicID      int64     `json:"topic_id"`
	Source       string    `json:"source"`
	MentionCount int       `json:"mention_count"`
	CollectedAt  time.Time `json:"collected_at"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
}

// MomentumScore is the current derived signal for a topic. Exactly one row
// exists per topic; recomputation replaces it.
type MomentumScore struct {
	TopicID           int64   `json:"topic_id"`
	Score             float64 `json:"score"`
	MentionCountToday int     `json:"mention_count_today"`
	MentionAvg7d      float64 `json:"mention_avg_7d"`
	Direction         string  `json:"direction"` // "rising", "stable", or "falling"
	UpdatedAt         *string `json:"updated_at"`
}

// Headline is a representative news item collected for a topic's feed.
// It is a side payload: the scoring algorithm never reads it.
type Headline struct {
	ID             int64   `json:"id"`
	TopicID        int64   `json:"topic_id"`
	URL            string  `json:"url"`
	Title          string  `json:"title"`
	Source         *string `json:"source"`
	PublishedDate  *string `json:"published_date"`
	Summary        *string `json:"summary"`
	ContentFetched bool    `json:"content_fetched"`
	CollectedAt    *string `json:"collected_at"`
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalTopics    int    `json:"total_topics"`
	ActiveTopics   int    `json:"active_topics"`
	TotalMentions  int    `json:"total_mentions"`
	DaysWithData   int    `json:"days_with_data"`
	TotalHeadlines int    `json:"total_headlines"`
	LastRecompute  string `json:"last_recompute"`
}
