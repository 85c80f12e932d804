package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hushlight/storyvault/internal/ingest"
)

// UpsertDraft persists one normalized manuscript as the story's draft inside
// a single transaction. Re-ingesting byte-identical content (after
// frontmatter stripping) repoints the draft at the existing version instead
// of writing a new one; a concurrent writer losing the (story, version) or
// (story, content_hash) race surfaces ErrConflict and is safe to redo.
func (s *Store) UpsertDraft(ctx context.Context, in DraftInput) (DraftResult, error) {
	accountID := strings.TrimSpace(in.AccountID)
	if accountID == "" {
		return DraftResult{}, fmt.Errorf("account is required")
	}
	man := in.Manuscript
	if man.Slug == "" || man.ContentHash == "" {
		return DraftResult{}, fmt.Errorf("manuscript is not normalized")
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DraftResult{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	storyID, err := upsertStory(ctx, tx, accountID, man)
	if err != nil {
		return DraftResult{}, err
	}

	// Idempotency: identical content resolves to the existing version.
	var (
		existingID       string
		existingVersion  int
		existingRendered string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, version, rendered_html
		FROM story_versions
		WHERE story_id = ? AND content_hash = ?
		LIMIT 1
	`, storyID, man.ContentHash).Scan(&existingID, &existingVersion, &existingRendered)
	switch {
	case err == nil:
		if err := setDraftPointer(ctx, tx, storyID, existingID); err != nil {
			return DraftResult{}, err
		}
		if err := s.linkContributor(ctx, tx, storyID, man.Author); err != nil {
			return DraftResult{}, err
		}
		if err := tx.Commit(); err != nil {
			return DraftResult{}, translateWrite("commit draft", err)
		}
		return DraftResult{
			StoryID:      storyID,
			VersionID:    existingID,
			Slug:         man.Slug,
			Version:      existingVersion,
			SegmentCount: len(man.Segments),
			RenderedHTML: existingRendered,
			Reused:       true,
		}, nil
	case errors.Is(err, sql.ErrNoRows):
		// new content, fall through
	default:
		return DraftResult{}, fmt.Errorf("look up content hash: %w", err)
	}

	var nextVersion int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1
		FROM story_versions
		WHERE story_id = ?
	`, storyID).Scan(&nextVersion); err != nil {
		return DraftResult{}, fmt.Errorf("next version: %w", err)
	}

	fmJSON, _ := json.Marshal(man.Frontmatter)
	versionID := uuid.New().String()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO story_versions (id, story_id, version, frontmatter, markdown, rendered_html, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, versionID, storyID, nextVersion, string(fmJSON), man.Markdown, man.RenderedHTML, man.ContentHash, toMillis(time.Now())); err != nil {
		return DraftResult{}, translateWrite("insert version", err)
	}

	plan := PlanSections(man.Segments)
	sectionIDs := make([]string, len(plan.Sections))
	for i, sec := range plan.Sections {
		sectionIDs[i] = uuid.New().String()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO story_sections (id, story_version_id, kind, title, ordinal)
			VALUES (?, ?, ?, ?, ?)
		`, sectionIDs[i], versionID, string(sec.Kind), nullIfEmpty(sec.Title), sec.Ordinal); err != nil {
			return DraftResult{}, translateWrite("insert section", err)
		}
	}

	for i, seg := range man.Segments {
		var sectionArg any
		if idx := plan.Assignment[i]; idx >= 0 {
			sectionArg = sectionIDs[idx]
		}
		locJSON, err := json.Marshal(seg.Locator)
		if err != nil {
			return DraftResult{}, fmt.Errorf("marshal locator: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO story_segments (id, story_version_id, section_id, ordinal, locator, markdown, rendered_html, word_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), versionID, sectionArg, seg.Ordinal, string(locJSON), seg.Markdown, seg.RenderedHTML, seg.WordCount); err != nil {
			return DraftResult{}, translateWrite("insert segment", err)
		}
	}

	if err := setDraftPointer(ctx, tx, storyID, versionID); err != nil {
		return DraftResult{}, err
	}
	if err := s.linkContributor(ctx, tx, storyID, man.Author); err != nil {
		return DraftResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return DraftResult{}, translateWrite("commit draft", err)
	}

	return DraftResult{
		StoryID:      storyID,
		VersionID:    versionID,
		Slug:         man.Slug,
		Version:      nextVersion,
		SegmentCount: len(man.Segments),
		RenderedHTML: man.RenderedHTML,
	}, nil
}

// upsertStory inserts or refreshes the story identity row. One row per
// (account, slug), always.
func upsertStory(ctx context.Context, tx *sql.Tx, accountID string, man ingest.Manuscript) (string, error) {
	sourceJSON, _ := json.Marshal(man.Source)
	rightsJSON, _ := json.Marshal(man.Rights)
	now := toMillis(time.Now())

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stories (id, account_id, slug, title, author, language, source, rights, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, slug) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			language = excluded.language,
			source = excluded.source,
			rights = excluded.rights,
			updated_at = excluded.updated_at
	`, uuid.New().String(), accountID, man.Slug, man.Title, nullIfEmpty(man.Author),
		man.Language, string(sourceJSON), string(rightsJSON), now, now); err != nil {
		return "", fmt.Errorf("upsert story: %w", err)
	}

	var storyID string
	if err := tx.QueryRowContext(ctx, `
		SELECT id FROM stories WHERE account_id = ? AND slug = ?
	`, accountID, man.Slug).Scan(&storyID); err != nil {
		return "", fmt.Errorf("load story id: %w", err)
	}
	return storyID, nil
}

func setDraftPointer(ctx context.Context, tx *sql.Tx, storyID, versionID string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE stories
		SET draft_version_id = ?, updated_at = ?
		WHERE id = ?
	`, versionID, toMillis(time.Now()), storyID); err != nil {
		return fmt.Errorf("set draft pointer: %w", err)
	}
	return nil
}

// linkContributor ensures a contributor row for the author name and an
// author-role link to the story. Best-effort by default: the link is
// secondary metadata, so failures are swallowed unless the store was opened
// with StrictContributors.
func (s *Store) linkContributor(ctx context.Context, tx *sql.Tx, storyID, author string) error {
	author = strings.TrimSpace(author)
	if author == "" {
		return nil
	}

	err := func() error {
		contribID := uuid.New().String()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO contributors (id, name)
			VALUES (?, ?)
			ON CONFLICT (name) DO NOTHING
		`, contribID, author); err != nil {
			return fmt.Errorf("insert contributor: %w", err)
		}
		if err := tx.QueryRowContext(ctx, `
			SELECT id FROM contributors WHERE name = ?
		`, author).Scan(&contribID); err != nil {
			return fmt.Errorf("load contributor id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO story_contributors (story_id, contributor_id, role)
			VALUES (?, ?, 'author')
			ON CONFLICT DO NOTHING
		`, storyID, contribID); err != nil {
			return fmt.Errorf("link contributor: %w", err)
		}
		return nil
	}()

	if err != nil && s.strictContributors {
		return err
	}
	return nil
}

func translateWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
