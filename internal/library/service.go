// Package library exposes the story lifecycle operations to the rest of the
// application: draft upsert, publish, and the persistence-free editor
// preview.
package library

import (
	"context"
	"log/slog"

	"github.com/hushlight/storyvault/internal/ingest"
	"github.com/hushlight/storyvault/internal/storage"
)

// Service ties the ingest normalizer to the version store.
type Service struct {
	norm   *ingest.Normalizer
	store  *storage.Store
	logger *slog.Logger
}

// NewService creates a Service around an open store.
func NewService(store *storage.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		norm:   ingest.New(),
		store:  store,
		logger: logger,
	}
}

// UpsertDraft normalizes in and persists it as the draft of the story
// identified by (accountID, in.Slug).
func (s *Service) UpsertDraft(ctx context.Context, accountID string, in ingest.Input) (storage.DraftResult, error) {
	man, err := s.norm.Ingest(in)
	if err != nil {
		return storage.DraftResult{}, err
	}

	res, err := s.store.UpsertDraft(ctx, storage.DraftInput{
		AccountID:  accountID,
		Manuscript: man,
	})
	if err != nil {
		return storage.DraftResult{}, err
	}

	s.logger.Info("draft upserted",
		"slug", res.Slug,
		"version", res.Version,
		"segments", res.SegmentCount,
		"reused", res.Reused,
	)
	return res, nil
}

// Publish points the story's published pointer at versionID.
func (s *Service) Publish(ctx context.Context, accountID, slug, versionID string) error {
	if err := s.store.Publish(ctx, accountID, slug, versionID); err != nil {
		return err
	}
	s.logger.Info("story published", "slug", slug, "version_id", versionID)
	return nil
}

// Preview is what the live editor shows for raw markdown.
type Preview struct {
	RenderedHTML string
	Segments     []ingest.Segment
	Outline      []ingest.OutlineItem
}

// Preview runs the normalizer under a throwaway identity with no
// persistence. The segment structure is identical to what UpsertDraft would
// persist for the same markdown, so the editor preview is trustworthy.
func (s *Service) Preview(markdown string) (Preview, error) {
	man, err := s.norm.Ingest(ingest.Input{
		Slug:     "preview",
		Title:    "Preview",
		Markdown: markdown,
	})
	if err != nil {
		return Preview{}, err
	}

	outline, err := s.norm.Outline(man.Markdown)
	if err != nil {
		return Preview{}, err
	}

	return Preview{
		RenderedHTML: man.RenderedHTML,
		Segments:     man.Segments,
		Outline:      outline,
	}, nil
}
