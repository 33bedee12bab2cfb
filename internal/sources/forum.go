package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultForumBaseURL = "https://www.reddit.com"

// ForumSource counts discussion posts matching a topic's keywords across
// its hinted communities. Uses the public JSON listing endpoints, which
// require a descriptive User-Agent and roughly one request per second.
type ForumSource struct {
	BaseURL       string
	UserAgent     string
	DefaultForums []string

	client  *http.Client
	limiter *rateLimiter
}

// NewForumSource creates a forum adapter. defaultForums is searched for
// topics that carry no community hints of their own.
func NewForumSource(userAgent string, defaultForums []string) *ForumSource {
	return &ForumSource{
		BaseURL:       defaultForumBaseURL,
		UserAgent:     userAgent,
		DefaultForums: defaultForums,
		client:        &http.Client{Timeout: 15 * time.Second},
		limiter:       newRateLimiter(time.Second),
	}
}

func (s *ForumSource) Kind() Kind { return KindForum }

type forumListing struct {
	Data struct {
		Children []struct {
			Data struct {
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// FetchMentions sums matching posts across the topic's communities. A
// community that fails is skipped; the count is only an error when every
// community failed.
func (s *ForumSource) FetchMentions(ctx context.Context, q Query, w Window) (int, error) {
	forums := q.ForumHints
	if len(forums) == 0 {
		forums = s.DefaultForums
	}
	if len(forums) == 0 || len(q.Keywords) == 0 {
		return 0, nil
	}

	total := 0
	failures := 0
	var lastErr error
	for _, forum := range forums {
		n, err := s.searchForum(ctx, forum, q.Keywords, w)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			log.Printf("forum: search in %s failed: %v", forum, err)
			failures++
			lastErr = err
			continue
		}
		total += n
	}
	if failures == len(forums) {
		return 0, fmt.Errorf("all %d communities failed: %w", failures, lastErr)
	}
	return total, nil
}

func (s *ForumSource) searchForum(ctx context.Context, forum string, keywords []string, w Window) (int, error) {
	if err := s.limiter.wait(ctx); err != nil {
		return 0, err
	}

	params := url.Values{}
	params.Set("q", strings.Join(keywords, " OR "))
	params.Set("restrict_sr", "1")
	params.Set("sort", "new")
	params.Set("t", "day")
	params.Set("limit", "100")
	endpoint := fmt.Sprintf("%s/r/%s/search.json?%s", s.BaseURL, url.PathEscape(forum), params.Encode())

	resp, err := doWithRetry(ctx, s.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", s.UserAgent)
		return req, nil
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var listing forumListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	// The listing is capped at 100 posts, so filter client-side to the
	// observation window.
	count := 0
	for _, child := range listing.Data.Children {
		created := time.Unix(int64(child.Data.CreatedUTC), 0).UTC()
		if !created.Before(w.Start) && created.Before(w.End) {
			count++
		}
	}
	return count, nil
}
