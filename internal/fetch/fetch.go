// Package fetch pulls full article text for stored headlines.
package fetch

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"github.com/Ntexler/trendvest/internal/database"
)

const maxSummaryLen = 2000

// Result holds the results of a content fetch run.
type Result struct {
	Fetched int
	Failed  int
}

// ContentFetcher fetches article text via HTTP + readability extraction
// for headlines that have no summary yet.
type ContentFetcher struct {
	db     *database.DB
	client *http.Client
}

// NewContentFetcher creates a new content fetcher.
func NewContentFetcher(db *database.DB, timeout time.Duration) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ContentFetcher{
		db: db,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// FetchMissingContent fetches summaries for up to limit headlines. A
// domain that fails once is skipped for the rest of the run.
func (f *ContentFetcher) FetchMissingContent(limit int) *Result {
	headlines, err := f.db.GetHeadlinesNeedingFetch(limit)
	if err != nil {
		log.Printf("fetch: listing headlines: %v", err)
		return &Result{}
	}
	if len(headlines) == 0 {
		log.Println("fetch: no headlines need content")
		return &Result{}
	}

	result := &Result{}
	failedDomains := make(map[string]struct{})

	for _, h := range headlines {
		u, _ := url.Parse(h.URL)
		domain := ""
		if u != nil {
			domain = strings.ToLower(u.Host)
		}

		if _, failed := failedDomains[domain]; failed {
			f.db.MarkHeadlineFetchAttempted(h.ID)
			result.Failed++
			continue
		}

		content, httpErr := f.fetchContent(h.URL)
		if httpErr != nil {
			f.db.MarkHeadlineFetchAttempted(h.ID)
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Printf("fetch: %s failed, skipping remaining from %s", h.URL, domain)
			continue
		}

		if content != "" {
			f.db.UpdateHeadlineSummary(h.ID, &content)
			result.Fetched++
		} else {
			f.db.MarkHeadlineFetchAttempted(h.ID)
			result.Failed++
			log.Printf("fetch: no extractable content from %s", h.URL)
		}
	}

	log.Printf("fetch: %d fetched, %d failed", result.Fetched, result.Failed)
	return result
}

func (f *ContentFetcher) fetchContent(pageURL string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; trendvest/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}

	parsedURL, _ := url.Parse(pageURL)
	parsed, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return "", nil
	}

	return truncate(strings.TrimSpace(parsed.TextContent), maxSummaryLen), nil
}

// truncate caps s at max bytes, backing up to a rune boundary so Hebrew
// and other multibyte text never ends in a torn character.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
