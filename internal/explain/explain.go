// Package explain produces plain-language answers and topic insights
// through an LLM provider, with caching and per-user daily limits.
package explain

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Ntexler/trendvest/internal/cache"
	"github.com/Ntexler/trendvest/internal/database"
	"github.com/Ntexler/trendvest/internal/llm"
)

// systemPrompt frames the assistant: simple-Hebrew financial education,
// never investment advice.
const systemPrompt = `אתה העוזר הדיגיטלי של TrendVest, פלטפורמה למעקב מגמות בשוק ההון.

התפקיד שלך:
- להסביר מושגים פיננסיים בעברית פשוטה וברורה
- לעזור למתחילים להבין את שוק ההון
- להסביר למה נושאים מסוימים טרנדיים כרגע

כללים קריטיים:
- לעולם לא לתת ייעוץ השקעות או תחזיות מחירים
- לעולם לא לומר "קנה" או "מכור" לגבי אף מניה
- תמיד להוסיף הסתייגות כשמדברים על מניות ספציפיות
- לענות רק בעברית
- לשמור על תשובות קצרות, עד 200 מילים
- להשתמש בשפה פשוטה ולהימנע מז'רגון מקצועי`

const limitReachedAnswer = "הגעת למגבלת השאלות היומית. נסה שוב מחר."

const providerDownAnswer = "מצטער, נתקלתי בבעיה טכנית. נסה שוב בעוד כמה שניות."

var generalQuestions = []string{
	"מה זה ETF?",
	"מה זה שווי שוק?",
	"איך שוק המניות עובד?",
	"מה זה דיבידנד?",
	"מה זה מדד S&P 500?",
	"מה ההבדל בין מניה לאגרת חוב?",
}

var topicQuestions = []string{
	"למה %s טרנדי עכשיו?",
	"אילו חברות קשורות ל%s?",
	"מה הסיכונים בסקטור %s?",
}

// Answer is the result of one chat question.
type Answer struct {
	Answer             string   `json:"answer"`
	SuggestedQuestions []string `json:"suggested_questions"`
	QuestionsRemaining int      `json:"questions_remaining"`
}

// Explainer answers chat questions and generates topic insights.
type Explainer struct {
	db        *database.DB
	provider  llm.Provider
	maxTokens int

	insights *cache.Cache[string, string]

	mu         sync.Mutex
	dailyLimit int
	usageDay   string
	usage      map[string]int

	now func() time.Time
}

// New creates an explainer. provider may be nil, in which case chat
// degrades to an apology and insights to a static fallback.
func New(db *database.DB, provider llm.Provider, maxTokens, dailyLimit, cacheCapacity int, cacheTTL time.Duration) *Explainer {
	return &Explainer{
		db:         db,
		provider:   provider,
		maxTokens:  maxTokens,
		insights:   cache.New[string, string](cacheCapacity, cacheTTL),
		dailyLimit: dailyLimit,
		usage:      make(map[string]int),
		now:        time.Now,
	}
}

// Remaining returns how many questions userID may still ask today.
func (e *Explainer) Remaining(userID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rollUsageDay()
	r := e.dailyLimit - e.usage[userID]
	if r < 0 {
		r = 0
	}
	return r
}

func (e *Explainer) recordUsage(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rollUsageDay()
	e.usage[userID]++
}

// rollUsageDay resets counters when the UTC day changes. Caller holds mu.
func (e *Explainer) rollUsageDay() {
	today := e.now().UTC().Format("2006-01-02")
	if e.usageDay != today {
		e.usageDay = today
		e.usage = make(map[string]int)
	}
}

// Ask answers a user question, optionally in the context of a topic slug.
// Rate-limited per user per UTC day; provider failures return an apology
// rather than an error so the chat surface stays up.
func (e *Explainer) Ask(ctx context.Context, question, topicSlug, userID string) (*Answer, error) {
	if userID == "" {
		userID = "anonymous"
	}
	if e.Remaining(userID) <= 0 {
		return &Answer{
			Answer:             limitReachedAnswer,
			SuggestedQuestions: []string{},
			QuestionsRemaining: 0,
		}, nil
	}

	prompt := question
	var topicName string
	if topicSlug != "" {
		topic, err := e.db.GetTopicBySlug(topicSlug)
		if err != nil {
			return nil, fmt.Errorf("failed to load topic: %w", err)
		}
		if topic != nil {
			topicName = topic.NameHE
			prompt = fmt.Sprintf("הקשר: המשתמש צופה כרגע בנושא %s (%s).\n\n%s",
				topic.NameHE, topic.NameEN, question)
		}
	}

	// A failed generation answers with an apology and costs nothing:
	// only delivered answers count against the daily limit.
	answer := providerDownAnswer
	if e.provider != nil {
		text, err := e.provider.Generate(ctx, systemPrompt, prompt, e.maxTokens)
		if err == nil {
			answer = text
			e.recordUsage(userID)
		}
	}
	return &Answer{
		Answer:             answer,
		SuggestedQuestions: suggestQuestions(topicName),
		QuestionsRemaining: e.Remaining(userID),
	}, nil
}

// suggestQuestions returns three follow-up questions, topic-flavored when
// a topic name is known.
func suggestQuestions(topicName string) []string {
	if topicName != "" {
		out := make([]string, len(topicQuestions))
		for i, q := range topicQuestions {
			out[i] = fmt.Sprintf(q, topicName)
		}
		return out
	}
	picks := rand.Perm(len(generalQuestions))[:3]
	out := make([]string, 0, 3)
	for _, i := range picks {
		out = append(out, generalQuestions[i])
	}
	return out
}

// TopicInsight explains why a topic is trending and how its stocks
// connect, in the requested language ("en" or "he"). Results are cached
// for a day per topic and language.
func (e *Explainer) TopicInsight(ctx context.Context, slug, language string) (string, error) {
	if language != "he" {
		language = "en"
	}
	key := slug + "|" + language

	return e.insights.GetOrFetch(key, func() (string, error) {
		topic, err := e.db.GetTopicBySlug(slug)
		if err != nil {
			return "", fmt.Errorf("failed to load topic: %w", err)
		}
		if topic == nil {
			return "", fmt.Errorf("unknown topic %q", slug)
		}
		if e.provider == nil {
			return fallbackInsight(topic, language), nil
		}

		prompt, err := e.insightPrompt(topic, language)
		if err != nil {
			return "", err
		}
		text, err := e.provider.Generate(ctx, systemPrompt, prompt, e.maxTokens)
		if err != nil {
			return "", fmt.Errorf("failed to generate insight: %w", err)
		}
		return text, nil
	})
}

func (e *Explainer) insightPrompt(topic *database.Topic, language string) (string, error) {
	stocks, err := e.db.GetStocksForTopic(topic.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load stocks: %w", err)
	}
	var tickers []string
	for _, s := range stocks {
		tickers = append(tickers, fmt.Sprintf("%s (%s): %s", s.Ticker, s.CompanyName, s.RelevanceNote))
	}

	var momentumLine string
	if m, err := e.db.GetMomentumScore(topic.ID); err == nil && m != nil {
		momentumLine = fmt.Sprintf("Momentum: score %.0f, direction %s, %d mentions today vs %.1f daily average.",
			m.Score, m.Direction, m.MentionCountToday, m.MentionAvg7d)
	}

	name := topic.NameEN
	instruction := "Write a short markdown insight in English: why this topic is trending now, and one line per related stock on how it connects. No investment advice."
	if language == "he" {
		name = topic.NameHE
		instruction = "כתוב תובנה קצרה בעברית בפורמט markdown: למה הנושא טרנדי עכשיו, ושורה אחת לכל מניה קשורה על הקשר שלה לנושא. בלי ייעוץ השקעות."
	}

	return fmt.Sprintf("%s\n\nTopic: %s\nSector: %s\n%s\nRelated stocks:\n%s",
		instruction, name, topic.SectorEN, momentumLine, strings.Join(tickers, "\n")), nil
}

// fallbackInsight is served when no LLM provider is configured.
func fallbackInsight(topic *database.Topic, language string) string {
	if language == "he" {
		return fmt.Sprintf("## %s\n\nהנושא נמצא במעקב בסקטור %s. הגדר מפתח API כדי לקבל תובנות מלאות.",
			topic.NameHE, topic.Sector)
	}
	return fmt.Sprintf("## %s\n\nThis topic is tracked in the %s sector. Configure an API key for full insights.",
		topic.NameEN, topic.SectorEN)
}
