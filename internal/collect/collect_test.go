package collect

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/Ntexler/trendvest/internal/database"
	"github.com/Ntexler/trendvest/internal/sources"
)

type fakeSource struct {
	kind  sources.Kind
	count int
	err   error
	calls int
}

func (f *fakeSource) Kind() sources.Kind { return f.kind }

func (f *fakeSource) FetchMentions(ctx context.Context, q sources.Query, w sources.Window) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedTopics(t *testing.T, db *database.DB, slugs ...string) []int64 {
	t.Helper()
	ids := make([]int64, len(slugs))
	for i, slug := range slugs {
		id, err := db.UpsertTopic(slug, "Topic "+slug, "נושא", "Tech", "Technology",
			[]string{slug}, nil)
		if err != nil {
			t.Fatalf("failed to seed topic: %v", err)
		}
		ids[i] = id
	}
	return ids
}

func TestRunCycleStoresMentions(t *testing.T) {
	db := openTestDB(t)
	ids := seedTopics(t, db, "ai", "ev")

	forum := &fakeSource{kind: sources.KindForum, count: 12}
	news := &fakeSource{kind: sources.KindNews, count: 7}
	c := NewCollector(db, []sources.Source{forum, news})

	report, err := c.RunCycle(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.CycleID == "" {
		t.Error("expected a cycle ID")
	}
	if forum.calls != 2 || news.calls != 2 {
		t.Errorf("expected each source called per topic, got %d/%d", forum.calls, news.calls)
	}

	total := 0
	for _, sr := range report.Sources {
		if sr.Err != nil {
			t.Errorf("source %s failed: %v", sr.Kind, sr.Err)
		}
		total += sr.Inserted
	}
	if total != 4 {
		t.Errorf("expected 4 inserts, got %d", total)
	}

	sort.Slice(report.Touched, func(i, j int) bool { return report.Touched[i] < report.Touched[j] })
	if len(report.Touched) != 2 || report.Touched[0] != ids[0] || report.Touched[1] != ids[1] {
		t.Errorf("unexpected touched topics %v", report.Touched)
	}
}

func TestRunCycleIdempotentWithinDay(t *testing.T) {
	db := openTestDB(t)
	seedTopics(t, db, "ai")

	c := NewCollector(db, []sources.Source{&fakeSource{kind: sources.KindForum, count: 5}})
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, err := c.RunCycle(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Second run later the same day inserts nothing new
	now = now.Add(6 * time.Hour)
	report, err := c.RunCycle(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Sources[0].Inserted != 0 || report.Sources[0].Skipped != 1 {
		t.Errorf("expected skip on rerun, got %+v", report.Sources[0])
	}

	n, _ := db.CountMentions(0)
	if n != 1 {
		t.Errorf("expected 1 mention row after two runs, got %d", n)
	}

	// A new day opens a new observation window
	now = now.AddDate(0, 0, 1)
	if _, err := c.RunCycle(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, _ = db.CountMentions(0)
	if n != 2 {
		t.Errorf("expected 2 mention rows after next-day run, got %d", n)
	}
}

func TestRunCyclePartialFailure(t *testing.T) {
	db := openTestDB(t)
	seedTopics(t, db, "ai")

	good := &fakeSource{kind: sources.KindForum, count: 3}
	bad := &fakeSource{kind: sources.KindNews, err: sources.ErrUnavailable}
	c := NewCollector(db, []sources.Source{good, bad})

	report, err := c.RunCycle(context.Background(), "")
	if err != nil {
		t.Fatalf("expected partial success, got error: %v", err)
	}
	if !report.Succeeded() {
		t.Error("expected cycle to count as succeeded")
	}

	var goodReport, badReport *SourceReport
	for i := range report.Sources {
		switch report.Sources[i].Kind {
		case sources.KindForum:
			goodReport = &report.Sources[i]
		case sources.KindNews:
			badReport = &report.Sources[i]
		}
	}
	if goodReport.Inserted != 1 {
		t.Errorf("expected healthy source to insert, got %+v", goodReport)
	}
	if badReport.Failed != 1 {
		t.Errorf("expected failing source to record failure, got %+v", badReport)
	}

	n, _ := db.CountMentions(0)
	if n != 1 {
		t.Errorf("expected 1 mention row, got %d", n)
	}
}

func TestRunCycleAllSourcesFailed(t *testing.T) {
	db := openTestDB(t)
	seedTopics(t, db, "ai")

	c := NewCollector(db, []sources.Source{
		&fakeSource{kind: sources.KindForum, err: sources.ErrBudgetExhausted},
	})
	report, err := c.RunCycle(context.Background(), "")
	if err == nil {
		t.Error("expected error when every source fails")
	}
	if report == nil || report.Succeeded() {
		t.Error("expected failed report")
	}
}

func TestRunCycleSourceFilter(t *testing.T) {
	db := openTestDB(t)
	seedTopics(t, db, "ai")

	forum := &fakeSource{kind: sources.KindForum, count: 1}
	news := &fakeSource{kind: sources.KindNews, count: 1}
	c := NewCollector(db, []sources.Source{forum, news})

	if _, err := c.RunCycle(context.Background(), sources.KindNews); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if forum.calls != 0 {
		t.Errorf("expected filtered-out source untouched, got %d calls", forum.calls)
	}
	if news.calls != 1 {
		t.Errorf("expected filtered source to run, got %d calls", news.calls)
	}

	if _, err := c.RunCycle(context.Background(), sources.Kind("bogus")); err == nil {
		t.Error("expected error for unknown source kind")
	}
}

func TestRunCycleAllKindRunsEverySource(t *testing.T) {
	db := openTestDB(t)
	seedTopics(t, db, "ai")

	forum := &fakeSource{kind: sources.KindForum, count: 1}
	news := &fakeSource{kind: sources.KindNews, count: 1}
	c := NewCollector(db, []sources.Source{forum, news})

	report, err := c.RunCycle(context.Background(), sources.Kind("all"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Sources) != 2 {
		t.Errorf("expected both sources to run, got %d", len(report.Sources))
	}
	if forum.calls != 1 || news.calls != 1 {
		t.Errorf("expected each source called once, got %d/%d", forum.calls, news.calls)
	}
}

func TestRunCycleNoTopics(t *testing.T) {
	db := openTestDB(t)
	c := NewCollector(db, []sources.Source{&fakeSource{kind: sources.KindForum}})
	if _, err := c.RunCycle(context.Background(), ""); err == nil {
		t.Error("expected error without seeded topics")
	}
}

func TestMatchesTopic(t *testing.T) {
	if !matchesTopic("Nvidia rides the AI wave", []string{"AI", "LLM"}) {
		t.Error("expected case-insensitive match")
	}
	if matchesTopic("Quiet market day", []string{"AI"}) {
		t.Error("expected no match")
	}
	if matchesTopic("anything", nil) {
		t.Error("expected no match without keywords")
	}
}

func TestStripHTML(t *testing.T) {
	got := stripHTML("<p>Rates &amp; bonds</p>  <b>rise</b>")
	if got != "Rates & bonds rise" {
		t.Errorf("unexpected %q", got)
	}
}

func TestExtractSourceName(t *testing.T) {
	if got := extractSourceName("https://feeds.marketwatch.com/rss/topstories"); got != "marketwatch.com" {
		t.Errorf("unexpected %q", got)
	}
}
