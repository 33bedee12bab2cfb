package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ntexler/trendvest/internal/database"
	"github.com/Ntexler/trendvest/internal/explain"
	"github.com/Ntexler/trendvest/internal/llm"
	"github.com/Ntexler/trendvest/internal/prices"
)

type staticProvider struct{ text string }

func (p *staticProvider) Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	return p.text, nil
}

func (p *staticProvider) IsConfigured() bool { return true }

var _ llm.Provider = (*staticProvider)(nil)

func newTestServer(t *testing.T) (*Server, *database.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// Quote endpoint that prices every ticker at 100
	quoteServer := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var quotes []string
		for _, sym := range strings.Split(r.URL.Query().Get("symbols"), ",") {
			quotes = append(quotes, fmt.Sprintf(
				`{"symbol":%q,"regularMarketPrice":100,"regularMarketPreviousClose":90}`, sym))
		}
		fmt.Fprintf(rw, `{"quoteResponse":{"result":[%s]}}`, strings.Join(quotes, ","))
	}))
	t.Cleanup(quoteServer.Close)

	quotes := prices.NewService(100, time.Minute, 30)
	quotes.BaseURL = quoteServer.URL

	explainer := explain.New(db, &staticProvider{text: "## Why trending\n\nBecause of demand."}, 600, 3, 100, time.Hour)
	return New(db, explainer, quotes), db
}

func seedTopic(t *testing.T, db *database.DB, slug string, score float64, direction string) int64 {
	t.Helper()
	id, err := db.UpsertTopic(slug, "Topic "+slug, "נושא", "Tech", "Technology", []string{slug}, nil)
	if err != nil {
		t.Fatalf("failed to seed topic: %v", err)
	}
	if err := db.UpsertMomentumScore(id, score, 10, 5, direction, time.Now()); err != nil {
		t.Fatalf("failed to seed momentum: %v", err)
	}
	return id
}

func doJSON(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var parsed map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON response: %v\n%s", err, rec.Body.String())
	}
	return rec.Code, parsed
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	code, body := doJSON(t, s, http.MethodGet, "/api/health", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestTrendsSortedByScore(t *testing.T) {
	s, db := newTestServer(t)
	seedTopic(t, db, "low", 50, "falling")
	seedTopic(t, db, "high", 300, "rising")

	code, body := doJSON(t, s, http.MethodGet, "/api/trends", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	trends := body["trends"].([]any)
	if len(trends) != 2 {
		t.Fatalf("expected 2 trends, got %d", len(trends))
	}
	first := trends[0].(map[string]any)
	if first["slug"] != "high" {
		t.Errorf("expected highest score first, got %v", first["slug"])
	}
	if first["direction"] != "rising" {
		t.Errorf("expected rising, got %v", first["direction"])
	}
}

func TestTrendDetail(t *testing.T) {
	s, db := newTestServer(t)
	id := seedTopic(t, db, "ai", 200, "rising")
	if err := db.UpsertTopicStock(id, "NVDA", "Nvidia", "AI chips", 10); err != nil {
		t.Fatalf("failed to seed stock: %v", err)
	}

	code, body := doJSON(t, s, http.MethodGet, "/api/trends/ai", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	momentum := body["momentum"].(map[string]any)
	if momentum["score"].(float64) != 200 {
		t.Errorf("unexpected momentum %v", momentum)
	}
	stocks := body["stocks"].([]any)
	if len(stocks) != 1 {
		t.Fatalf("expected 1 stock, got %d", len(stocks))
	}
	stock := stocks[0].(map[string]any)
	quote := stock["quote"].(map[string]any)
	if quote["price"].(float64) != 100 {
		t.Errorf("unexpected quote %v", quote)
	}
}

func TestTrendDetailNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	code, _ := doJSON(t, s, http.MethodGet, "/api/trends/nope", "")
	if code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestTrendInsightRendersMarkdown(t *testing.T) {
	s, db := newTestServer(t)
	seedTopic(t, db, "ai", 200, "rising")

	code, body := doJSON(t, s, http.MethodGet, "/api/trends/ai/insight?lang=en", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.Contains(body["markdown"].(string), "## Why trending") {
		t.Errorf("unexpected markdown %v", body["markdown"])
	}
	if !strings.Contains(body["html"].(string), "<h2") {
		t.Errorf("expected rendered heading, got %v", body["html"])
	}
}

func TestNewsFilterByTopic(t *testing.T) {
	s, db := newTestServer(t)
	aiID := seedTopic(t, db, "ai", 100, "stable")
	evID := seedTopic(t, db, "ev", 100, "stable")
	db.InsertHeadline(aiID, "https://e.com/ai", "AI headline", nil, nil, nil)
	db.InsertHeadline(evID, "https://e.com/ev", "EV headline", nil, nil, nil)

	code, body := doJSON(t, s, http.MethodGet, "/api/news?topic=ai", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	headlines := body["headlines"].([]any)
	if len(headlines) != 1 {
		t.Fatalf("expected 1 headline, got %d", len(headlines))
	}
	h := headlines[0].(map[string]any)
	if h["title"] != "AI headline" {
		t.Errorf("unexpected headline %v", h)
	}

	code, body = doJSON(t, s, http.MethodGet, "/api/news", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(body["headlines"].([]any)) != 2 {
		t.Error("expected both headlines without filter")
	}

	code, _ = doJSON(t, s, http.MethodGet, "/api/news?topic=nope", "")
	if code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown topic, got %d", code)
	}
}

func TestScreener(t *testing.T) {
	s, db := newTestServer(t)
	id := seedTopic(t, db, "ai", 250, "rising")
	db.UpsertTopicStock(id, "NVDA", "Nvidia", "AI chips", 10)
	db.UpsertTopicStock(id, "MSFT", "Microsoft", "Copilot", 5)

	code, body := doJSON(t, s, http.MethodGet, "/api/stocks/screener", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	stocks := body["stocks"].([]any)
	if len(stocks) != 2 {
		t.Fatalf("expected 2 stocks, got %d", len(stocks))
	}
	first := stocks[0].(map[string]any)
	if first["topic_score"].(float64) != 250 || first["topic_direction"] != "rising" {
		t.Errorf("unexpected screener item %v", first)
	}
}

func TestChat(t *testing.T) {
	s, _ := newTestServer(t)

	code, body := doJSON(t, s, http.MethodPost, "/api/chat",
		`{"question":"מה זה ETF?","user_id":"u1"}`)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["answer"] == "" {
		t.Error("expected an answer")
	}
	if body["questions_remaining"].(float64) != 2 {
		t.Errorf("expected 2 remaining, got %v", body["questions_remaining"])
	}

	code, _ = doJSON(t, s, http.MethodPost, "/api/chat", `{}`)
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 without question, got %d", code)
	}
}
