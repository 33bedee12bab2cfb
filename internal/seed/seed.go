// Package seed loads the built-in topic catalog into the database.
package seed

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Ntexler/trendvest/internal/database"
)

//go:embed topics.yaml
var topicsYAML []byte

// Stock is one related ticker in the catalog.
type Stock struct {
	Ticker      string `yaml:"ticker"`
	CompanyName string `yaml:"company_name"`
	Reason      string `yaml:"reason"`
	Priority    int    `yaml:"priority"`
}

// Topic is one catalog entry.
type Topic struct {
	Slug       string   `yaml:"slug"`
	NameEN     string   `yaml:"name_en"`
	NameHE     string   `yaml:"name_he"`
	Sector     string   `yaml:"sector"`
	SectorEN   string   `yaml:"sector_en"`
	Keywords   []string `yaml:"keywords"`
	ForumHints []string `yaml:"forum_hints"`
	Stocks     []Stock  `yaml:"stocks"`
}

type catalog struct {
	Topics []Topic `yaml:"topics"`
}

// Load parses the embedded topic catalog.
func Load() ([]Topic, error) {
	var c catalog
	if err := yaml.Unmarshal(topicsYAML, &c); err != nil {
		return nil, fmt.Errorf("failed to parse topic catalog: %w", err)
	}
	if len(c.Topics) == 0 {
		return nil, fmt.Errorf("topic catalog is empty")
	}
	for _, t := range c.Topics {
		if t.Slug == "" || t.NameEN == "" {
			return nil, fmt.Errorf("topic catalog entry missing slug or name_en")
		}
		if len(t.Keywords) == 0 {
			return nil, fmt.Errorf("topic %q has no keywords", t.Slug)
		}
	}
	return c.Topics, nil
}

// Apply upserts the catalog into the database. Existing topics are updated
// in place, so re-seeding after a catalog change is safe. Returns the
// number of topics applied.
func Apply(db *database.DB) (int, error) {
	topics, err := Load()
	if err != nil {
		return 0, err
	}

	for _, t := range topics {
		id, err := db.UpsertTopic(t.Slug, t.NameEN, t.NameHE, t.Sector, t.SectorEN, t.Keywords, t.ForumHints)
		if err != nil {
			return 0, fmt.Errorf("failed to seed topic %q: %w", t.Slug, err)
		}
		for _, s := range t.Stocks {
			if err := db.UpsertTopicStock(id, s.Ticker, s.CompanyName, s.Reason, s.Priority); err != nil {
				return 0, fmt.Errorf("failed to seed stock %s for %q: %w", s.Ticker, t.Slug, err)
			}
		}
		if err := db.InitMomentumScore(id); err != nil {
			return 0, fmt.Errorf("failed to init momentum for %q: %w", t.Slug, err)
		}
	}
	return len(topics), nil
}
