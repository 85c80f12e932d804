// Package main provides the storyctl CLI for managing the story library:
// batch import, single-file draft upsert, publish, preview and listing.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hushlight/storyvault/internal/importer"
	"github.com/hushlight/storyvault/internal/ingest"
	"github.com/hushlight/storyvault/internal/library"
	"github.com/hushlight/storyvault/internal/source"
	"github.com/hushlight/storyvault/internal/storage"
)

type config struct {
	DBPath             string        `env:"STORYVAULT_DB" envDefault:"storyvault.db"`
	AccountID          string        `env:"STORYVAULT_ACCOUNT" envDefault:"default"`
	QueryTimeout       time.Duration `env:"STORYVAULT_QUERY_TIMEOUT" envDefault:"3s"`
	StrictContributors bool          `env:"STORYVAULT_STRICT_CONTRIBUTORS" envDefault:"false"`

	GitHubOwner string `env:"STORYVAULT_GITHUB_OWNER"`
	GitHubRepo  string `env:"STORYVAULT_GITHUB_REPO"`
	GitHubPath  string `env:"STORYVAULT_GITHUB_PATH" envDefault:"stories"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func openService(cfg config) (*storage.Store, *library.Service, error) {
	store, err := storage.Open(cfg.DBPath, storage.Options{
		QueryTimeout:       cfg.QueryTimeout,
		StrictContributors: cfg.StrictContributors,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return store, library.NewService(store, nil), nil
}

var rootCmd = &cobra.Command{
	Use:   "storyctl",
	Short: "Story library management tool",
	Long:  "CLI for importing, previewing and publishing bedtime stories",
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import all manuscripts from the configured GitHub repository",
	Long: `Fetches every markdown manuscript under the configured repository path
and upserts each one as a story draft. Re-importing unchanged manuscripts is
cheap: identical content resolves to the existing version.

Environment variables:
  STORYVAULT_DB            SQLite database path (default: storyvault.db)
  STORYVAULT_ACCOUNT       Owning account id (default: default)
  STORYVAULT_GITHUB_OWNER  Repository owner (required)
  STORYVAULT_GITHUB_REPO   Repository name (required)
  STORYVAULT_GITHUB_PATH   Directory of manuscripts (default: stories)
  GITHUB_TOKEN             Token for higher rate limits (optional)`,
	RunE: runImport,
}

var upsertCmd = &cobra.Command{
	Use:   "upsert <file>",
	Short: "Ingest one local markdown file as a story draft",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpsert,
}

var publishCmd = &cobra.Command{
	Use:   "publish <slug> <version-id>",
	Short: "Point a story's published pointer at a version",
	Args:  cobra.ExactArgs(2),
	RunE:  runPublish,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the account's stories",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Render a manuscript preview without writing anything",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

var (
	flagSlug     string
	flagTitle    string
	flagAuthor   string
	flagLanguage string
)

func init() {
	upsertCmd.Flags().StringVar(&flagSlug, "slug", "", "story slug (default: derived from file name)")
	upsertCmd.Flags().StringVar(&flagTitle, "title", "", "story title (default: frontmatter title)")
	upsertCmd.Flags().StringVar(&flagAuthor, "author", "", "story author")
	upsertCmd.Flags().StringVar(&flagLanguage, "language", "", "language tag")

	rootCmd.AddCommand(importCmd, upsertCmd, publishCmd, listCmd, previewCmd)
}

func main() {
	// Load .env if present (local development), ignore if missing.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.GitHubOwner == "" || cfg.GitHubRepo == "" {
		return fmt.Errorf("STORYVAULT_GITHUB_OWNER and STORYVAULT_GITHUB_REPO are required")
	}

	store, svc, err := openService(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := source.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create github client: %w", err)
	}
	fetcher := source.NewFetcher(client, cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubPath)

	pipeline := importer.NewPipeline(fetcher, svc, cfg.AccountID, nil)
	result, err := pipeline.ImportAll(ctx)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Import complete!")
	fmt.Printf("  Manuscripts: %d/%d\n", result.Imported, result.TotalFiles)
	fmt.Printf("  Unchanged:   %d\n", result.Reused)
	fmt.Printf("  Duration:    %s\n", result.Duration.Round(time.Second))

	if len(result.Failed) > 0 {
		fmt.Println()
		fmt.Println("Failed manuscripts:")
		for _, failed := range result.Failed {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}
	return nil
}

func runUpsert(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, svc, err := openService(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read manuscript: %w", err)
	}

	slug := flagSlug
	if slug == "" {
		slug = source.SlugFromPath(filepath.Base(args[0]))
	}

	res, err := svc.UpsertDraft(ctx, cfg.AccountID, ingest.Input{
		Slug:     slug,
		Title:    flagTitle,
		Author:   flagAuthor,
		Language: flagLanguage,
		Markdown: string(raw),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Draft %s v%d (%d segments", res.Slug, res.Version, res.SegmentCount)
	if res.Reused {
		fmt.Print(", unchanged content")
	}
	fmt.Println(")")
	fmt.Printf("Version id: %s\n", res.VersionID)
	return nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, svc, err := openService(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := svc.Publish(ctx, cfg.AccountID, args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Published %s -> %s\n", args[0], args[1])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, _, err := openService(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	items, err := store.ListStories(ctx, cfg.AccountID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No stories yet.")
		return nil
	}

	for _, it := range items {
		state := "draft"
		if it.IsPublished {
			state = "published"
		}
		author := ""
		if it.Author != nil {
			author = " by " + *it.Author
		}
		fmt.Printf("%-30s %q%s [%s] updated %s\n",
			it.Slug, it.Title, author, state, it.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, svc, err := openService(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read manuscript: %w", err)
	}

	preview, err := svc.Preview(string(raw))
	if err != nil {
		return err
	}

	fmt.Printf("Segments: %d\n", len(preview.Segments))
	if len(preview.Outline) > 0 {
		fmt.Println("Outline:")
		for _, item := range preview.Outline {
			fmt.Printf("  %s%s (#%s)\n", strings.Repeat("  ", item.Level-1), item.Title, item.ID)
		}
	}
	fmt.Println()
	fmt.Println(preview.RenderedHTML)
	return nil
}
