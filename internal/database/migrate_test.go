package database

import (
	"path/filepath"
	"testing"
)

func TestMigrateFreshDB(t *testing.T) {
	db := openTestDB(t)

	version, err := getSchemaVersion(db.conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected schema version %d, got %d", latestVersion(), version)
	}

	// All tables should exist and be queryable
	for _, table := range []string{"topics", "topic_stocks", "topic_mentions", "momentum_scores", "headlines"} {
		var n int
		if err := db.conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Errorf("table %s not usable: %v", table, err)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	seedTopic(t, db, "ai")
	db.Close()

	// Reopen runs migrate again over an up-to-date schema
	db, err = Open(path)
	if err != nil {
		t.Fatalf("failed to reopen db: %v", err)
	}
	defer db.Close()

	topic, err := db.GetTopicBySlug("ai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if topic == nil {
		t.Error("expected data to survive reopen")
	}
}

func TestMentionCountCheck(t *testing.T) {
	db := openTestDB(t)
	id := seedTopic(t, db, "crypto")

	_, err := db.conn.Exec(
		`INSERT INTO topic_mentions (topic_id, source, mention_count, collected_at, period_start, period_end)
		VALUES (?, 'forum', -1, '2026-08-28T00:00:00Z', '2026-08-28T00:00:00Z', '2026-08-29T00:00:00Z')`, id,
	)
	if err == nil {
		t.Error("expected CHECK constraint to reject negative mention count")
	}
}

func TestDirectionCheck(t *testing.T) {
	db := openTestDB(t)
	id := seedTopic(t, db, "quantum")

	_, err := db.conn.Exec(
		`INSERT INTO momentum_scores (topic_id, score, direction) VALUES (?, 100, 'sideways')`, id,
	)
	if err == nil {
		t.Error("expected CHECK constraint to reject unknown direction")
	}
}
