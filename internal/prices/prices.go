// Package prices fetches stock quotes with short-lived caching.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Ntexler/trendvest/internal/cache"
)

const defaultQuoteBaseURL = "https://query1.finance.yahoo.com"

// Quote is one stock price snapshot.
type Quote struct {
	Ticker        string  `json:"ticker"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePct     float64 `json:"change_pct"`
	PreviousClose float64 `json:"previous_close"`
}

// Service fetches quotes from a public quote endpoint, batching requests
// and caching results for a few minutes. Quotes are advisory, so a failed
// batch degrades to missing entries rather than an error.
type Service struct {
	BaseURL string

	client    *http.Client
	cache     *cache.Cache[string, Quote]
	batchSize int
}

// NewService creates a quote service. cacheCapacity and ttl bound the
// quote cache; batchSize caps tickers per upstream request.
func NewService(cacheCapacity int, ttl time.Duration, batchSize int) *Service {
	if batchSize < 1 {
		batchSize = 30
	}
	return &Service{
		BaseURL:   defaultQuoteBaseURL,
		client:    &http.Client{Timeout: 15 * time.Second},
		cache:     cache.New[string, Quote](cacheCapacity, ttl),
		batchSize: batchSize,
	}
}

// Get returns the quote for one ticker.
func (s *Service) Get(ctx context.Context, ticker string) (Quote, error) {
	return s.cache.GetOrFetch(ticker, func() (Quote, error) {
		quotes, err := s.fetchBatch(ctx, []string{ticker})
		if err != nil {
			return Quote{}, err
		}
		q, ok := quotes[ticker]
		if !ok {
			return Quote{}, fmt.Errorf("no quote for %s", ticker)
		}
		return q, nil
	})
}

// GetBatch returns quotes for the given tickers, keyed by ticker. Cached
// quotes are served directly; the rest are fetched in chunks. A chunk
// that fails is logged and its tickers are simply absent from the result.
func (s *Service) GetBatch(ctx context.Context, tickers []string) map[string]Quote {
	// Quotes expire fast; a batch call is the natural point to reclaim
	// entries for tickers nobody asks about anymore.
	s.cache.Sweep()

	results := make(map[string]Quote, len(tickers))
	var uncached []string
	seen := make(map[string]bool)
	for _, ticker := range tickers {
		if seen[ticker] {
			continue
		}
		seen[ticker] = true
		if q, ok := s.cache.Get(ticker); ok {
			results[ticker] = q
			continue
		}
		uncached = append(uncached, ticker)
	}

	for start := 0; start < len(uncached); start += s.batchSize {
		end := start + s.batchSize
		if end > len(uncached) {
			end = len(uncached)
		}
		chunk := uncached[start:end]

		quotes, err := s.fetchBatch(ctx, chunk)
		if err != nil {
			log.Printf("prices: batch of %d tickers failed: %v", len(chunk), err)
			continue
		}
		for ticker, q := range quotes {
			s.cache.Set(ticker, q)
			results[ticker] = q
		}
	}
	return results
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string  `json:"symbol"`
			RegularMarketPrice float64 `json:"regularMarketPrice"`
			PreviousClose      float64 `json:"regularMarketPreviousClose"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

func (s *Service) fetchBatch(ctx context.Context, tickers []string) (map[string]Quote, error) {
	params := url.Values{}
	params.Set("symbols", strings.Join(tickers, ","))
	endpoint := s.BaseURL + "/v7/finance/quote?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "trendvest/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote endpoint returned status %d", resp.StatusCode)
	}

	var parsed quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}
	if parsed.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("quote endpoint error: %s", parsed.QuoteResponse.Error.Description)
	}

	quotes := make(map[string]Quote, len(parsed.QuoteResponse.Result))
	for _, r := range parsed.QuoteResponse.Result {
		q := Quote{
			Ticker:        r.Symbol,
			Price:         round2(r.RegularMarketPrice),
			PreviousClose: round2(r.PreviousClose),
		}
		if r.PreviousClose != 0 {
			q.Change = round2(r.RegularMarketPrice - r.PreviousClose)
			q.ChangePct = round2(q.Change / r.PreviousClose * 100)
		}
		quotes[r.Symbol] = q
	}
	return quotes, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
