package seed

import (
	"path/filepath"
	"testing"

	"github.com/Ntexler/trendvest/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadCatalog(t *testing.T) {
	topics, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(topics) < 5 {
		t.Errorf("expected at least 5 topics, got %d", len(topics))
	}

	slugs := make(map[string]bool)
	for _, topic := range topics {
		if slugs[topic.Slug] {
			t.Errorf("duplicate slug %q", topic.Slug)
		}
		slugs[topic.Slug] = true
		if topic.NameHE == "" {
			t.Errorf("topic %q missing Hebrew name", topic.Slug)
		}
		if len(topic.Stocks) == 0 {
			t.Errorf("topic %q has no related stocks", topic.Slug)
		}
	}
	if !slugs["ai"] {
		t.Error("expected ai topic in catalog")
	}
}

func TestApply(t *testing.T) {
	db := openTestDB(t)

	n, err := Apply(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == 0 {
		t.Fatal("expected topics to be seeded")
	}

	active, err := db.GetActiveTopics()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != n {
		t.Errorf("expected %d active topics, got %d", n, len(active))
	}

	// Every seeded topic starts with a zero momentum row
	for _, topic := range active {
		m, err := db.GetMomentumScore(topic.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m == nil {
			t.Errorf("topic %q has no momentum row", topic.Slug)
			continue
		}
		if m.Score != 0 || m.Direction != "stable" {
			t.Errorf("topic %q momentum not zero-initialized: %v/%s", topic.Slug, m.Score, m.Direction)
		}
	}
}

func TestApplyIdempotent(t *testing.T) {
	db := openTestDB(t)

	n1, err := Apply(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n2, err := Apply(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n1 != n2 {
		t.Errorf("expected stable topic count, got %d then %d", n1, n2)
	}

	stats, _ := db.GetStats()
	if stats.TotalTopics != n1 {
		t.Errorf("expected %d topics after re-seed, got %d", n1, stats.TotalTopics)
	}
}
