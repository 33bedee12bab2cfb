package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Ntexler/trendvest/internal/config"
	"github.com/Ntexler/trendvest/internal/database"
	"github.com/Ntexler/trendvest/internal/explain"
	"github.com/Ntexler/trendvest/internal/llm"
	"github.com/Ntexler/trendvest/internal/pipeline"
	"github.com/Ntexler/trendvest/internal/prices"
	"github.com/Ntexler/trendvest/internal/seed"
	"github.com/Ntexler/trendvest/internal/server"
	"github.com/Ntexler/trendvest/internal/sources"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "trendvest",
	Short:   "Topic-mention trend tracking",
	Long:    "TrendVest polls public platforms for topic mentions, scores momentum, and serves trends with related stocks.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(momentumCmd)
	rootCmd.AddCommand(serveCmd)
}

func openDB() (*database.DB, error) {
	return database.Open(filepath.Join(cfg.GetDataDir(), "trendvest.db"))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("trendvest", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/trendvest/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources, feeds, and API keys.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Topics:")
		fmt.Printf("  Total: %d\n", stats.TotalTopics)
		fmt.Printf("  Active: %d\n", stats.ActiveTopics)
		fmt.Println("\nMentions:")
		fmt.Printf("  Observations: %d\n", stats.TotalMentions)
		fmt.Printf("  Days with data: %d\n", stats.DaysWithData)
		fmt.Println("\nHeadlines:")
		fmt.Printf("  Total: %d\n", stats.TotalHeadlines)
		if stats.LastRecompute != "" {
			fmt.Printf("\nLast momentum recompute: %s\n", stats.LastRecompute)
		} else {
			fmt.Println("\nMomentum never recomputed. Run 'trendvest collect'.")
		}
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the built-in topic catalog into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := seed.Apply(db)
		if err != nil {
			return fmt.Errorf("seeding topics: %w", err)
		}
		fmt.Printf("Seeded %d topics.\n", n)
		return nil
	},
}

// --- collect command ---

var (
	onlySource   string
	momentumOnly bool
	dryRun       bool
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run a collection cycle: collect -> headlines -> fetch -> momentum",
	RunE: func(cmd *cobra.Command, args []string) error {
		only, err := sources.ParseKind(onlySource)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db)

		var result *pipeline.Result
		switch {
		case dryRun:
			result = pipe.DryRun()
		case momentumOnly:
			result = pipe.RecomputeMomentum()
		default:
			result = pipe.Run(context.Background(), only)
		}

		if result.CycleID != "" {
			fmt.Printf("Cycle %s\n", result.CycleID)
		}
		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}
		return nil
	},
}

func init() {
	collectCmd.Flags().StringVar(&onlySource, "source", "all", "Collect from a single source (forum, news, trends, microblog, or all)")
	collectCmd.Flags().BoolVar(&momentumOnly, "momentum-only", false, "Skip collection and recompute momentum only")
	collectCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

var momentumCmd = &cobra.Command{
	Use:   "momentum",
	Short: "Recompute momentum scores for all active topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result := pipeline.New(cfg, db).RecomputeMomentum()
		for _, step := range result.Steps {
			if step.Err != nil {
				return step.Err
			}
			fmt.Println(step.Summary)
		}
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the trend API",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		provider := llm.CreateProvider(
			cfg.Explain.Provider,
			cfg.Explain.AnthropicModel,
			cfg.Explain.OpenAIModel,
			cfg.Explain.APIKeyEnv,
		)
		explainer := explain.New(db, provider,
			cfg.Explain.MaxTokens,
			cfg.Explain.DailyQuestions,
			cfg.Explain.CacheCapacity,
			cfg.Explain.CacheTTL.Std(),
		)
		quotes := prices.NewService(
			cfg.Prices.CacheCapacity,
			cfg.Prices.CacheTTL.Std(),
			cfg.Prices.BatchSize,
		)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		return server.New(db, explainer, quotes).Run(port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default from config)")
}
