// Package importer batch-imports manuscripts from a source into the story
// library.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hushlight/storyvault/internal/ingest"
	"github.com/hushlight/storyvault/internal/source"
	"github.com/hushlight/storyvault/internal/storage"
)

// Source lists and fetches raw manuscripts.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, relativePath string) (*source.Manuscript, error)
}

// Library ingests manuscripts as story drafts.
type Library interface {
	UpsertDraft(ctx context.Context, accountID string, in ingest.Input) (storage.DraftResult, error)
}

// ImportResult contains statistics about an import run.
type ImportResult struct {
	TotalFiles int
	Imported   int
	Reused     int // content-hash hits that created no new version
	Failed     []FailedFile
	Duration   time.Duration
}

// FailedFile records one manuscript that could not be imported.
type FailedFile struct {
	Path   string
	Reason string
}

// Pipeline orchestrates the import from source listing to draft upsert.
type Pipeline struct {
	src       Source
	lib       Library
	accountID string
	logger    *slog.Logger
}

// NewPipeline creates an import pipeline for one account.
func NewPipeline(src Source, lib Library, accountID string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		src:       src,
		lib:       lib,
		accountID: accountID,
		logger:    logger,
	}
}

// ImportAll fetches every manuscript from the source and upserts each as a
// draft. Unparseable manuscripts are skipped and reported; they do not stop
// the run.
func (p *Pipeline) ImportAll(ctx context.Context) (*ImportResult, error) {
	start := time.Now()
	result := &ImportResult{}

	paths, err := p.src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list manuscripts: %w", err)
	}
	result.TotalFiles = len(paths)
	p.logger.Info("starting import", "files", len(paths))

	for _, path := range paths {
		res, err := p.importManuscript(ctx, path)
		if err != nil {
			p.logger.Warn("failed to import manuscript", "path", path, "error", err)
			result.Failed = append(result.Failed, FailedFile{Path: path, Reason: err.Error()})
			continue
		}
		result.Imported++
		if res.Reused {
			result.Reused++
		}
	}

	result.Duration = time.Since(start)
	p.logger.Info("import complete",
		"imported", result.Imported,
		"reused", result.Reused,
		"failed", len(result.Failed),
		"duration", result.Duration,
	)

	return result, nil
}

// importManuscript handles one file: fetch, ingest, upsert. A manuscript
// with no title of its own gets one derived from its file name.
func (p *Pipeline) importManuscript(ctx context.Context, path string) (storage.DraftResult, error) {
	man, err := p.src.Fetch(ctx, path)
	if err != nil {
		return storage.DraftResult{}, fmt.Errorf("fetch: %w", err)
	}

	in := ingest.Input{
		Slug:      man.Slug,
		Markdown:  man.Content,
		SourceURL: man.URL,
	}

	res, err := p.upsertWithRetry(ctx, in)
	var verr *ingest.ValidationError
	if errors.As(err, &verr) && verr.Field == "title" {
		in.Title = source.TitleFromSlug(man.Slug)
		res, err = p.upsertWithRetry(ctx, in)
	}
	if err != nil {
		return storage.DraftResult{}, err
	}

	p.logger.Info("imported manuscript",
		"path", path,
		"slug", res.Slug,
		"version", res.Version,
		"reused", res.Reused,
	)
	return res, nil
}

// upsertWithRetry redoes the whole ingest when a concurrent writer wins the
// version-numbering race; every other failure is permanent.
func (p *Pipeline) upsertWithRetry(ctx context.Context, in ingest.Input) (storage.DraftResult, error) {
	var res storage.DraftResult

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 10 * time.Second

	op := func() error {
		var err error
		res, err = p.lib.UpsertDraft(ctx, p.accountID, in)
		if err == nil {
			return nil
		}
		if errors.Is(err, storage.ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return storage.DraftResult{}, err
	}
	return res, nil
}
