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

const defaultNewsBaseURL = "https://newsapi.org/v2"

// NewsSource counts article mentions through a news aggregation API. The
// total match count comes back in the response metadata, so each topic
// costs a single request with a one-article page.
type NewsSource struct {
	BaseURL string

	apiKey string
	client *http.Client
	budget *dailyBudget
}

// NewNewsSource creates a news adapter. dailyLimit caps requests per UTC
// day to stay under the free-tier quota.
func NewNewsSource(apiKey string, dailyLimit int) *NewsSource {
	return &NewsSource{
		BaseURL: defaultNewsBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		budget:  newDailyBudget(dailyLimit),
	}
}

func (s *NewsSource) Kind() Kind { return KindNews }

// IsConfigured reports whether an API key is available.
func (s *NewsSource) IsConfigured() bool { return s.apiKey != "" }

// Article is one news item returned alongside the mention count.
type Article struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
	Description string `json:"description"`
}

type newsResponse struct {
	Status       string    `json:"status"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
	Message      string    `json:"message"`
}

// FetchMentions returns the total number of articles matching the topic's
// keywords in the window.
func (s *NewsSource) FetchMentions(ctx context.Context, q Query, w Window) (int, error) {
	resp, err := s.search(ctx, q.Keywords, w, 1)
	if err != nil {
		return 0, err
	}
	return resp.TotalResults, nil
}

// Headlines returns the newest matching articles for the window, for
// storage alongside the count.
func (s *NewsSource) Headlines(ctx context.Context, q Query, w Window, limit int) ([]Article, error) {
	resp, err := s.search(ctx, q.Keywords, w, limit)
	if err != nil {
		return nil, err
	}
	return resp.Articles, nil
}

func (s *NewsSource) search(ctx context.Context, keywords []string, w Window, pageSize int) (*newsResponse, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("%w: no API key", ErrUnavailable)
	}
	if err := s.budget.take(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", strings.Join(keywords, " OR "))
	params.Set("from", w.Start.UTC().Format(time.RFC3339))
	params.Set("to", w.End.UTC().Format(time.RFC3339))
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", fmt.Sprint(pageSize))
	endpoint := s.BaseURL + "/everything?" + params.Encode()

	httpResp, err := doWithRetry(ctx, s.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Api-Key", s.apiKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var resp newsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, resp.Message)
	}
	return &resp, nil
}
