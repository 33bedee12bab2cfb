package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultTrendsBaseURL = "https://trends.google.com"

// TrendsSource reads search-interest scores from the unofficial trends
// endpoints. No API key, but aggressively rate-limited and the responses
// carry an anti-JSON prefix that has to be stripped. The 0-100 interest
// value stands in for a mention count.
type TrendsSource struct {
	BaseURL string

	client  *http.Client
	limiter *rateLimiter
}

func NewTrendsSource() *TrendsSource {
	return &TrendsSource{
		BaseURL: defaultTrendsBaseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
		limiter: newRateLimiter(2 * time.Second),
	}
}

func (s *TrendsSource) Kind() Kind { return KindTrends }

// FetchMentions returns the average interest across the topic's top
// keywords over the window, rounded to an integer. Interest is relative,
// so the window is widened to the trailing seven days the way the
// interest-over-time view expects.
func (s *TrendsSource) FetchMentions(ctx context.Context, q Query, w Window) (int, error) {
	if len(q.Keywords) == 0 {
		return 0, nil
	}
	keywords := q.Keywords
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}

	token, err := s.exploreToken(ctx, keywords)
	if err != nil {
		return 0, err
	}
	return s.interestOverTime(ctx, token, keywords)
}

type exploreWidget struct {
	ID      string          `json:"id"`
	Token   string          `json:"token"`
	Request json.RawMessage `json:"request"`
}

// exploreToken performs the explore handshake that issues a widget token
// for the subsequent timeseries request.
func (s *TrendsSource) exploreToken(ctx context.Context, keywords []string) (*exploreWidget, error) {
	type comparisonItem struct {
		Keyword string `json:"keyword"`
		Geo     string `json:"geo"`
		Time    string `json:"time"`
	}
	items := make([]comparisonItem, len(keywords))
	for i, kw := range keywords {
		items[i] = comparisonItem{Keyword: kw, Geo: "", Time: "now 7-d"}
	}
	reqJSON, err := json.Marshal(map[string]any{
		"comparisonItem": items,
		"category":       0,
		"property":       "",
	})
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("hl", "en-US")
	params.Set("tz", "0")
	params.Set("req", string(reqJSON))
	body, err := s.get(ctx, s.BaseURL+"/trends/api/explore?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Widgets []exploreWidget `json:"widgets"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	for i := range parsed.Widgets {
		if parsed.Widgets[i].ID == "TIMESERIES" {
			return &parsed.Widgets[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no timeseries widget", ErrMalformedResponse)
}

func (s *TrendsSource) interestOverTime(ctx context.Context, widget *exploreWidget, keywords []string) (int, error) {
	params := url.Values{}
	params.Set("hl", "en-US")
	params.Set("tz", "0")
	params.Set("req", string(widget.Request))
	params.Set("token", widget.Token)
	body, err := s.get(ctx, s.BaseURL+"/trends/api/widgetdata/multiline?"+params.Encode())
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Default struct {
			TimelineData []struct {
				Value []int `json:"value"`
			} `json:"timelineData"`
		} `json:"default"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	points := parsed.Default.TimelineData
	if len(points) == 0 {
		return 0, nil
	}

	sum, n := 0, 0
	for _, p := range points {
		for _, v := range p.Value {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return int(float64(sum)/float64(n) + 0.5), nil
}

// get fetches a trends endpoint and strips the ")]}'," prefix the API
// prepends to every JSON body.
func (s *TrendsSource) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := s.limiter.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := doWithRetry(ctx, s.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; trendvest/1.0)")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if idx := bytes.IndexByte(body, '\n'); idx >= 0 && bytes.Contains(body[:idx], []byte(")]}'")) {
		body = body[idx+1:]
	}
	return body, nil
}
