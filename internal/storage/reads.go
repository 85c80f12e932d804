package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ListStories returns the account's stories, most recently updated first,
// from the cached story columns only.
func (s *Store) ListStories(ctx context.Context, accountID string) ([]StoryListItem, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("account is required")
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT slug, title, author, language, is_published,
		       created_at, updated_at, draft_version_id, published_version_id
		FROM stories
		WHERE account_id = ?
		ORDER BY updated_at DESC
		LIMIT 200
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	items := make([]StoryListItem, 0, 16)
	for rows.Next() {
		var (
			it        StoryListItem
			author    sql.NullString
			published int64
			created   int64
			updated   int64
			draftID   sql.NullString
			pubID     sql.NullString
		)
		if err := rows.Scan(&it.Slug, &it.Title, &author, &it.Language, &published,
			&created, &updated, &draftID, &pubID); err != nil {
			return nil, fmt.Errorf("list stories: %w", err)
		}
		it.Author = strPtr(author)
		it.IsPublished = published != 0
		it.CreatedAt = fromMillis(created)
		it.UpdatedAt = fromMillis(updated)
		it.DraftVersionID = strPtr(draftID)
		it.PublishedVersionID = strPtr(pubID)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	return items, nil
}

// PublishedStory resolves the reader view of a story through its published
// pointer.
func (s *Store) PublishedStory(ctx context.Context, accountID, slug string) (StoryPayload, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var p StoryPayload
	var author sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT st.slug, st.title, st.author, v.version, v.rendered_html
		FROM stories st
		JOIN story_versions v ON v.id = st.published_version_id
		WHERE st.account_id = ? AND st.slug = ? AND st.published_version_id IS NOT NULL
	`, accountID, slug).Scan(&p.Slug, &p.Title, &author, &p.Version, &p.RenderedHTML)
	if errors.Is(err, sql.ErrNoRows) {
		return StoryPayload{}, fmt.Errorf("published story %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return StoryPayload{}, fmt.Errorf("load published story: %w", err)
	}
	p.Author = strPtr(author)
	return p, nil
}

// PublishedSegments returns the ordered segments of the published version.
func (s *Store) PublishedSegments(ctx context.Context, accountID, slug string) (SegmentsPayload, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var versionID string
	var version int
	err := s.db.QueryRowContext(ctx, `
		SELECT v.id, v.version
		FROM stories st
		JOIN story_versions v ON v.id = st.published_version_id
		WHERE st.account_id = ? AND st.slug = ? AND st.published_version_id IS NOT NULL
	`, accountID, slug).Scan(&versionID, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return SegmentsPayload{}, fmt.Errorf("published story %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return SegmentsPayload{}, fmt.Errorf("load published version: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, locator, rendered_html
		FROM story_segments
		WHERE story_version_id = ?
		ORDER BY ordinal
	`, versionID)
	if err != nil {
		return SegmentsPayload{}, fmt.Errorf("load segments: %w", err)
	}
	defer rows.Close()

	segs := make([]StoredSegment, 0, 64)
	for rows.Next() {
		var seg StoredSegment
		var locator string
		if err := rows.Scan(&seg.Ordinal, &locator, &seg.RenderedHTML); err != nil {
			return SegmentsPayload{}, fmt.Errorf("load segments: %w", err)
		}
		seg.Locator = []byte(locator)
		segs = append(segs, seg)
	}
	if err := rows.Err(); err != nil {
		return SegmentsPayload{}, fmt.Errorf("load segments: %w", err)
	}

	return SegmentsPayload{Slug: slug, Version: version, Segments: segs}, nil
}

// DraftVersion resolves the editor view of a story through its draft
// pointer.
func (s *Store) DraftVersion(ctx context.Context, accountID, slug string) (DraftPayload, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var p DraftPayload
	err := s.db.QueryRowContext(ctx, `
		SELECT st.slug, st.title, v.id, v.version, v.markdown, v.rendered_html
		FROM stories st
		JOIN story_versions v ON v.id = st.draft_version_id
		WHERE st.account_id = ? AND st.slug = ? AND st.draft_version_id IS NOT NULL
	`, accountID, slug).Scan(&p.Slug, &p.Title, &p.VersionID, &p.Version, &p.Markdown, &p.RenderedHTML)
	if errors.Is(err, sql.ErrNoRows) {
		return DraftPayload{}, fmt.Errorf("draft for story %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return DraftPayload{}, fmt.Errorf("load draft: %w", err)
	}
	return p, nil
}

func strPtr(v sql.NullString) *string {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	s := v.String
	return &s
}
