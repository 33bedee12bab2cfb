package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultMicroblogBaseURL = "https://api.twitter.com/2"

// MicroblogSource counts short-post mentions through the v2 API. The
// counts endpoint needs a paid tier; on 403 it falls back to the recent
// search endpoint, whose result count is capped at one page.
type MicroblogSource struct {
	BaseURL string

	token   string
	client  *http.Client
	limiter *rateLimiter
	budget  *dailyBudget
}

// NewMicroblogSource creates a microblog adapter authenticated with a
// bearer token.
func NewMicroblogSource(token string, dailyLimit int) *MicroblogSource {
	return &MicroblogSource{
		BaseURL: defaultMicroblogBaseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: newRateLimiter(time.Second),
		budget:  newDailyBudget(dailyLimit),
	}
}

func (s *MicroblogSource) Kind() Kind { return KindMicroblog }

// IsConfigured reports whether a bearer token is available.
func (s *MicroblogSource) IsConfigured() bool { return s.token != "" }

// buildQuery joins the keywords into an OR search, quoting phrases, and
// excludes reposts.
func buildQuery(keywords []string) string {
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}
	parts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			parts = append(parts, `"`+kw+`"`)
		} else {
			parts = append(parts, kw)
		}
	}
	return strings.Join(parts, " OR ") + " -is:retweet lang:en"
}

// FetchMentions counts posts matching the topic's keywords in the window.
func (s *MicroblogSource) FetchMentions(ctx context.Context, q Query, w Window) (int, error) {
	if s.token == "" {
		return 0, fmt.Errorf("%w: no bearer token", ErrUnavailable)
	}
	if len(q.Keywords) == 0 {
		return 0, nil
	}
	query := buildQuery(q.Keywords)

	total, status, err := s.countRecent(ctx, query, w)
	if err != nil {
		return 0, err
	}
	if status == http.StatusOK {
		return total, nil
	}
	if status != http.StatusForbidden {
		return 0, fmt.Errorf("%w: counts endpoint status %d", ErrUnavailable, status)
	}
	// Counts endpoint is gated behind a paid tier
	return s.searchCount(ctx, query)
}

func (s *MicroblogSource) countRecent(ctx context.Context, query string, w Window) (int, int, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("start_time", w.Start.UTC().Format("2006-01-02T15:04:05Z"))
	params.Set("granularity", "day")

	body, status, err := s.get(ctx, "/tweets/counts/recent?"+params.Encode())
	if err != nil {
		return 0, 0, err
	}
	if status != http.StatusOK {
		return 0, status, nil
	}

	var resp struct {
		Meta struct {
			TotalTweetCount int `json:"total_tweet_count"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return resp.Meta.TotalTweetCount, status, nil
}

func (s *MicroblogSource) searchCount(ctx context.Context, query string) (int, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", "100")

	body, status, err := s.get(ctx, "/tweets/search/recent?"+params.Encode())
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("%w: search endpoint status %d", ErrUnavailable, status)
	}

	var resp struct {
		Meta struct {
			ResultCount int `json:"result_count"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return resp.Meta.ResultCount, nil
}

func (s *MicroblogSource) get(ctx context.Context, path string) ([]byte, int, error) {
	if err := s.budget.take(); err != nil {
		return nil, 0, err
	}
	if err := s.limiter.wait(ctx); err != nil {
		return nil, 0, err
	}

	resp, err := doWithRetry(ctx, s.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, s.BaseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+s.token)
		req.Header.Set("User-Agent", "trendvest/1.0")
		return req, nil
	})
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var body []byte
	body, err = readBody(resp)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
