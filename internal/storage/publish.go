package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Publish points the story's published pointer at versionID. The version
// must belong to the story addressed by (accountID, slug); a version lifted
// from another story fails with ErrNotFound and leaves the pointer alone.
// Publishing the same version twice is a no-op. No new version is created.
func (s *Store) Publish(ctx context.Context, accountID, slug, versionID string) error {
	accountID = strings.TrimSpace(accountID)
	slug = strings.TrimSpace(slug)
	versionID = strings.TrimSpace(versionID)
	if accountID == "" || slug == "" || versionID == "" {
		return fmt.Errorf("account, slug and version id are required")
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var storyID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM stories WHERE account_id = ? AND slug = ?
	`, accountID, slug).Scan(&storyID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("story %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load story: %w", err)
	}

	var ok string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM story_versions WHERE id = ? AND story_id = ?
	`, versionID, storyID).Scan(&ok)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("version for story %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE stories
		SET published_version_id = ?, is_published = 1, updated_at = ?
		WHERE id = ?
	`, versionID, toMillis(time.Now()), storyID); err != nil {
		return fmt.Errorf("set published pointer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return translateWrite("commit publish", err)
	}
	return nil
}
