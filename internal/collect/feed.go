package collect

import (
	"log"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/Ntexler/trendvest/internal/database"
)

const maxPerFeed = 20

// FeedConfig represents a single feed configuration.
type FeedConfig struct {
	URL  string
	Name string
}

// FeedEntry represents a parsed feed entry.
type FeedEntry struct {
	URL           string
	Title         string
	PublishedDate string // YYYY-MM-DD or empty
	Summary       string
	Source        string
}

// HeadlineCollector parses RSS/Atom feeds and files matching entries as
// topic headlines.
type HeadlineCollector struct {
	db    *database.DB
	feeds []FeedConfig
}

// NewHeadlineCollector creates a headline collector over the configured
// feeds.
func NewHeadlineCollector(db *database.DB, feeds []FeedConfig) *HeadlineCollector {
	return &HeadlineCollector{db: db, feeds: feeds}
}

// Run parses all feeds and stores entries from the last daysBack days
// under every topic whose keywords match the title. Returns the number of
// headlines stored.
func (hc *HeadlineCollector) Run(daysBack int) (int, error) {
	topics, err := hc.db.GetActiveTopics()
	if err != nil {
		return 0, err
	}

	entries := hc.parseAll(daysBack)
	stored := 0
	for _, entry := range entries {
		for _, topic := range topics {
			if !matchesTopic(entry.Title, topic.Keywords) {
				continue
			}
			id, err := hc.storeEntry(topic.ID, entry)
			if err != nil {
				log.Printf("feed: store headline %s: %v", entry.URL, err)
				continue
			}
			if id != 0 {
				stored++
			}
			// A URL is unique, so only the first matching topic keeps it
			break
		}
	}
	log.Printf("feed: stored %d new headlines from %d entries", stored, len(entries))
	return stored, nil
}

func (hc *HeadlineCollector) storeEntry(topicID int64, entry FeedEntry) (int64, error) {
	var source, published, summary *string
	if entry.Source != "" {
		source = &entry.Source
	}
	if entry.PublishedDate != "" {
		published = &entry.PublishedDate
	}
	if entry.Summary != "" {
		summary = &entry.Summary
	}
	return hc.db.InsertHeadline(topicID, entry.URL, entry.Title, source, published, summary)
}

// parseAll parses all configured feeds and returns entries within daysBack.
func (hc *HeadlineCollector) parseAll(daysBack int) []FeedEntry {
	cutoff := time.Now().AddDate(0, 0, -daysBack)
	var all []FeedEntry

	parser := gofeed.NewParser()
	for _, fc := range hc.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		entries, err := parseFeed(parser, fc.URL, name, cutoff)
		if err != nil {
			log.Printf("feed: failed to parse %s: %v", fc.URL, err)
			continue
		}
		all = append(all, entries...)
	}
	return all
}

func parseFeed(parser *gofeed.Parser, feedURL, sourceName string, cutoff time.Time) ([]FeedEntry, error) {
	feed, err := parser.ParseURL(feedURL)
	if err != nil {
		return nil, err
	}

	var entries []FeedEntry
	for _, item := range feed.Items {
		if len(entries) >= maxPerFeed {
			break
		}
		entry := parseItem(item, sourceName)
		if entry == nil {
			continue
		}
		if isWithinWindow(entry.PublishedDate, cutoff) {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

func parseItem(item *gofeed.Item, source string) *FeedEntry {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	if itemURL == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var publishedDate string
	if item.PublishedParsed != nil {
		publishedDate = item.PublishedParsed.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		publishedDate = item.UpdatedParsed.Format("2006-01-02")
	}

	var summary string
	if item.Description != "" {
		summary = stripHTML(item.Description)
	} else if item.Content != "" {
		summary = stripHTML(item.Content)
	}

	return &FeedEntry{
		URL:           itemURL,
		Title:         title,
		PublishedDate: publishedDate,
		Summary:       summary,
		Source:        source,
	}
}

// matchesTopic reports whether the title mentions any of the keywords,
// case-insensitively.
func matchesTopic(title string, keywords []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// isWithinWindow checks whether publishedDate (YYYY-MM-DD) is on or after
// cutoff. Entries without a date are kept.
func isWithinWindow(publishedDate string, cutoff time.Time) bool {
	if publishedDate == "" {
		return true
	}
	d, err := time.Parse("2006-01-02", publishedDate)
	if err != nil {
		return true
	}
	return !d.Before(cutoff.Truncate(24 * time.Hour))
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return strings.Join(strings.Fields(s), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return feedURL
	}
	host := strings.TrimPrefix(u.Host, "www.")
	return strings.TrimPrefix(host, "feeds.")
}
