// Package server exposes the JSON API.
package server

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"

	"github.com/Ntexler/trendvest/internal/database"
	"github.com/Ntexler/trendvest/internal/explain"
	"github.com/Ntexler/trendvest/internal/prices"
)

// Server serves the trend API.
type Server struct {
	db        *database.DB
	explainer *explain.Explainer
	quotes    *prices.Service
	markdown  goldmark.Markdown
	engine    *gin.Engine
}

// New creates the server and registers its routes.
func New(db *database.DB, explainer *explain.Explainer, quotes *prices.Service) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		db:        db,
		explainer: explainer,
		quotes:    quotes,
		markdown:  goldmark.New(),
		engine:    gin.New(),
	}
	s.engine.Use(gin.Recovery())

	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/trends", s.handleTrends)
	api.GET("/trends/:slug", s.handleTrendDetail)
	api.GET("/trends/:slug/insight", s.handleTrendInsight)
	api.GET("/news", s.handleNews)
	api.GET("/stocks/screener", s.handleScreener)
	api.POST("/chat", s.handleChat)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on the given port until the listener fails.
func (s *Server) Run(port int) error {
	addr := fmt.Sprintf(":%d", port)
	log.Printf("server: listening on %s", addr)
	return s.engine.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	stats, err := s.db.GetStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"stats":  stats,
	})
}

type trendItem struct {
	Slug              string  `json:"slug"`
	NameEN            string  `json:"name_en"`
	NameHE            string  `json:"name_he"`
	Sector            string  `json:"sector"`
	SectorEN          string  `json:"sector_en"`
	Score             float64 `json:"score"`
	Direction         string  `json:"direction"`
	MentionCountToday int     `json:"mention_count_today"`
	MentionAvg7d      float64 `json:"mention_avg_7d"`
	UpdatedAt         *string `json:"updated_at"`
}

// handleTrends returns every active topic with its momentum, highest
// score first.
func (s *Server) handleTrends(c *gin.Context) {
	topics, err := s.db.GetActiveTopics()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	scores, err := s.db.GetMomentumScores()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]trendItem, 0, len(topics))
	for _, t := range topics {
		item := trendItem{
			Slug:     t.Slug,
			NameEN:   t.NameEN,
			NameHE:   t.NameHE,
			Sector:   t.Sector,
			SectorEN: t.SectorEN,
		}
		if m, ok := scores[t.ID]; ok {
			item.Score = m.Score
			item.Direction = m.Direction
			item.MentionCountToday = m.MentionCountToday
			item.MentionAvg7d = m.MentionAvg7d
			item.UpdatedAt = m.UpdatedAt
		} else {
			item.Direction = "stable"
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Score > items[j].Score })

	c.JSON(http.StatusOK, gin.H{"trends": items})
}

// handleTrendDetail returns one topic with momentum, related stocks with
// quotes, and the last week of daily mention totals.
func (s *Server) handleTrendDetail(c *gin.Context) {
	topic, err := s.db.GetTopicBySlug(c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if topic == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "topic not found"})
		return
	}

	m, err := s.db.GetMomentumScore(topic.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	stocks, err := s.db.GetStocksForTopic(topic.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	tickers := make([]string, len(stocks))
	for i, st := range stocks {
		tickers[i] = st.Ticker
	}
	quotes := s.quotes.GetBatch(c.Request.Context(), tickers)

	type stockItem struct {
		database.TopicStock
		Quote *prices.Quote `json:"quote,omitempty"`
	}
	stockItems := make([]stockItem, len(stocks))
	for i, st := range stocks {
		stockItems[i] = stockItem{TopicStock: st}
		if q, ok := quotes[st.Ticker]; ok {
			quote := q
			stockItems[i].Quote = &quote
		}
	}

	now := time.Now().UTC()
	dayStart := database.DayStartUTC(now)
	history, err := s.db.DailyMentionTotals(topic.ID, dayStart.AddDate(0, 0, -7), dayStart.AddDate(0, 0, 1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"topic":    topic,
		"momentum": m,
		"stocks":   stockItems,
		"history":  history,
	})
}

// handleTrendInsight returns the generated insight for a topic as both
// markdown and rendered HTML. lang selects Hebrew with "he".
func (s *Server) handleTrendInsight(c *gin.Context) {
	slug := c.Param("slug")
	lang := c.DefaultQuery("lang", "en")

	text, err := s.explainer.TopicInsight(c.Request.Context(), slug, lang)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var html bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &html); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"slug":     slug,
		"language": lang,
		"markdown": text,
		"html":     html.String(),
	})
}

// handleNews returns recent headlines, optionally filtered to one topic.
func (s *Server) handleNews(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}

	var topicID int64
	if slug := c.Query("topic"); slug != "" {
		topic, err := s.db.GetTopicBySlug(slug)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if topic == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "topic not found"})
			return
		}
		topicID = topic.ID
	}

	headlines, err := s.db.GetRecentHeadlines(topicID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if headlines == nil {
		headlines = []database.Headline{}
	}
	c.JSON(http.StatusOK, gin.H{"headlines": headlines})
}

// handleScreener returns every tracked stock with its quote and the
// momentum of the topic it belongs to.
func (s *Server) handleScreener(c *gin.Context) {
	stocks, err := s.db.GetAllStocks()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	scores, err := s.db.GetMomentumScores()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	tickers := make([]string, len(stocks))
	for i, st := range stocks {
		tickers[i] = st.Ticker
	}
	quotes := s.quotes.GetBatch(c.Request.Context(), tickers)

	type screenerItem struct {
		database.TopicStock
		Quote          *prices.Quote `json:"quote,omitempty"`
		TopicScore     float64       `json:"topic_score"`
		TopicDirection string        `json:"topic_direction"`
	}
	items := make([]screenerItem, len(stocks))
	for i, st := range stocks {
		items[i] = screenerItem{TopicStock: st, TopicDirection: "stable"}
		if q, ok := quotes[st.Ticker]; ok {
			quote := q
			items[i].Quote = &quote
		}
		if m, ok := scores[st.TopicID]; ok {
			items[i].TopicScore = m.Score
			items[i].TopicDirection = m.Direction
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TopicScore > items[j].TopicScore })

	c.JSON(http.StatusOK, gin.H{"stocks": items})
}

type chatRequest struct {
	Question string `json:"question" binding:"required"`
	Topic    string `json:"topic"`
	UserID   string `json:"user_id"`
}

// handleChat answers one user question through the explainer.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	answer, err := s.explainer.Ask(c.Request.Context(), req.Question, req.Topic, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, answer)
}
