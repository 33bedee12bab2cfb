// Package sources implements the mention-count adapters for the external
// platforms the collector polls.
package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Kind identifies a source platform. The string values are stored in
// mention rows, so they must stay stable.
type Kind string

const (
	KindForum     Kind = "forum"
	KindNews      Kind = "news"
	KindTrends    Kind = "trends"
	KindMicroblog Kind = "microblog"
)

// ParseKind validates a user-supplied source name. "" and "all" mean
// no restriction and parse to the empty Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", Kind("all"):
		return "", nil
	case KindForum, KindNews, KindTrends, KindMicroblog:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown source %q (want forum, news, trends, microblog, or all)", s)
}

// ErrUnavailable means the platform could not be reached or kept refusing
// after retries. The collector records the failure and moves on.
var ErrUnavailable = errors.New("source unavailable")

// ErrMalformedResponse means the platform answered with a body the adapter
// could not interpret.
var ErrMalformedResponse = errors.New("malformed source response")

// ErrBudgetExhausted means the adapter's daily request budget is used up.
var ErrBudgetExhausted = errors.New("daily request budget exhausted")

// Query describes what to search for on behalf of one topic.
type Query struct {
	Keywords   []string
	ForumHints []string
}

// Window is the half-open observation period [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Source counts mentions of a topic on one platform over a window.
type Source interface {
	Kind() Kind
	FetchMentions(ctx context.Context, q Query, w Window) (int, error)
}

const (
	maxAttempts    = 3
	initialBackoff = 2 * time.Second
)

// doWithRetry issues req through client, retrying rate limits, server
// errors and transport failures with exponential backoff. A non-retryable
// status is returned to the caller as-is.
func doWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req.WithContext(ctx))
		if err == nil {
			if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
				return resp, nil
			}
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		} else {
			lastErr = err
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, nil
}

// rateLimiter enforces a minimum interval between requests to one platform.
type rateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

// wait blocks until the interval since the previous request has elapsed,
// or ctx is cancelled.
func (r *rateLimiter) wait(ctx context.Context) error {
	r.mu.Lock()
	wait := r.interval - time.Since(r.last)
	r.last = time.Now().Add(wait)
	if wait < 0 {
		r.last = time.Now()
	}
	r.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// dailyBudget caps requests per UTC calendar day.
type dailyBudget struct {
	mu    sync.Mutex
	limit int
	day   string
	used  int
}

func newDailyBudget(limit int) *dailyBudget {
	return &dailyBudget{limit: limit}
}

// take consumes one request from today's budget, resetting the counter
// when the UTC day rolls over.
func (b *dailyBudget) take() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	today := time.Now().UTC().Format("2006-01-02")
	if b.day != today {
		b.day = today
		b.used = 0
	}
	if b.used >= b.limit {
		return ErrBudgetExhausted
	}
	b.used++
	return nil
}
