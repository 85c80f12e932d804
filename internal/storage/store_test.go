package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hushlight/storyvault/internal/ingest"
)

func openTempStore(t *testing.T, opts Options) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "library.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func normalize(t *testing.T, slug, title, md string) ingest.Manuscript {
	t.Helper()
	man, err := ingest.New().Ingest(ingest.Input{
		Slug:     slug,
		Title:    title,
		Author:   "A. Fable",
		Markdown: md,
	})
	require.NoError(t, err)
	return man
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("", Options{})
	require.Error(t, err)
}

func TestOpenAppliesPragmas(t *testing.T) {
	store := openTempStore(t, Options{})

	var journalMode string
	require.NoError(t, store.db.QueryRow(`PRAGMA journal_mode`).Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, store.db.QueryRow(`PRAGMA foreign_keys`).Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestUpsertDraft_FreshIngest(t *testing.T) {
	store := openTempStore(t, Options{})
	ctx := context.Background()

	man := normalize(t, "fox", "Fox", "# Fox\n\nOnce upon a time.")
	res, err := store.UpsertDraft(ctx, DraftInput{AccountID: "acct-1", Manuscript: man})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Version)
	assert.Equal(t, 2, res.SegmentCount)
	assert.False(t, res.Reused)
	assert.NotEmpty(t, res.StoryID)
	assert.NotEmpty(t, res.VersionID)

	items, err := store.ListStories(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fox", items[0].Slug)
	assert.False(t, items[0].IsPublished)
	require.NotNil(t, items[0].DraftVersionID)
	assert.Equal(t, res.VersionID, *items[0].DraftVersionID)
	assert.Nil(t, items[0].PublishedVersionID)
}

func TestUpsertDraft_DuplicateContentIsIdempotent(t *testing.T) {
	store := openTempStore(t, Options{})
	ctx := context.Background()

	man := normalize(t, "fox", "Fox", "# Fox\n\nOnce upon a time.")
	first, err := store.UpsertDraft(ctx, DraftInput{AccountID: "acct-1", Manuscript: man})
	require.NoError(t, err)

	// Frontmatter-only differences do not change the content hash, so this
	// is the same content as far as versioning is concerned.
	again := normalize(t, "fox", "Fox", "---\ntags: [bedtime]\n---\n# Fox\n\nOnce upon a time.")
	require.Equal(t, man.ContentHash, again.ContentHash)

	second, err := store.UpsertDraft(ctx, DraftInput{AccountID: "acct-1", Manuscript: again})
	require.NoError(t, err)

	assert.Equal(t, first.VersionID, second.VersionID)
	assert.Equal(t, 1, second.Version)
	assert.Equal(t, first.SegmentCount, second.SegmentCount)
	assert.True(t, second.Reused)

	var versions int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(1) FROM story_versions`).Scan(&versions))
	assert.Equal(t, 1, versions, "no second version row may be created")
}

func TestUpsertDraft_ContentEditBumpsVersion(t *testing.T) {
	store := openTempStore(t, Options{})
	ctx := context.Background()

	v1 := normalize(t, "fox", "Fox", "# Fox\n\nOnce upon a time.")
	res1, err := store.UpsertDraft(ctx, DraftInput{AccountID: "acct-1", Manuscript: v1})
	require.NoError(t, err)
	require.NoError(t, store.Publish(ctx, "acct-1", "fox", res1.VersionID))

	v2 := normalize(t, "fox", "Fox", "# Fox\n\nOnce upon a time, long ago.")
	res2, err := store.UpsertDraft(ctx, DraftInput{AccountID: "acct-1", Manuscript: v2})
	require.NoError(t, err)

	assert.Equal(t, 2, res2.Version)
	assert.NotEqual(t, res1.VersionID, res2.VersionID)

	// The draft pointer moved; the published pointer stays at v1 until an
	// explicit publish.
	items, err := store.ListStories(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].DraftVersionID)
	require.NotNil(t, items[0].PublishedVersionID)
	assert.Equal(t, res2.VersionID, *items[0].DraftVersionID)
	assert.Equal(t, res1.VersionID, *items[0].PublishedVersionID)

	published, err := store.PublishedStory(ctx, "acct-1", "fox")
	require.NoError(t, err)
	assert.Equal(t, 1, published.Version)
}

func TestUpsertDraft_MonotonicNumbering(t *testing.T) {
	store := openTempStore(t, Options{})
	ctx := context.Background()

	bodies := []string{
		"First body.",
		"Second body.",
		"Third body.",
	}
	var versions []int
	for _, body := range bodies {
		man := normalize(t, "fox", "Fox", body)
		res, err := store.UpsertDraft(ctx, DraftInput{AccountID: "acct-1", Manuscript: man})
		require.NoError(t, err)
		versions = append(versions, res.Version)

		// An idempotent re-ingest in between must not consume a number.
		res, err = store.UpsertDraft(ctx, DraftInput{AccountID: "acct-1", Manuscript: man})
		require.NoError(t, err)
		assert.True(t, res.Reused)
	}

	assert.Equal(t, []int{1, 2, 3}, versions)
}

func TestUpsertDraft_LostRaceSurfacesConflict(t *testing.T) {
	store := openTempStore(t, Options{})
	ctx := context.Background()

	man := normalize(t, "fox", "Fox", "Once.")
	res, err := store.UpsertDraft(ctx, DraftInput{AccountID: "acct-1", Manuscript: man})
	require.NoError(t, err)

	// A writer that lost the numbering race hits the (story_id, version)
	// unique index; the store must report that as a retryable conflict.
	_, err = store.db.Exec(`
		INSERT INTO story_versions (id, story_id, version, frontmatter, markdown, rendered_html, content_hash, created_at)
		VALUES (?, ?, ?, '{}', 'x', '<p>x</p>', 'some-other-hash', 0)
	`, "dup-number", res.StoryID, res.Version)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
	assert.ErrorIs(t, translateWrite("insert version", err), ErrConflict)

	// Losing the content-hash race under a fresh number is the same story.
	_, err = store.db.Exec(`
		INSERT INTO story_versions (id, story_id, version, frontmatter, markdown, rendered_html, content_hash, created_at)
		VALUES (?, ?, ?, '{}', 'x', '<p>x</p>', ?, 0)
	`, "dup-hash", res.StoryID, res.Version+1, man.ContentHash)
	require.Error(t, err)
	assert.ErrorIs(t, translateWrite("insert version", err), ErrConflict)
}

func TestUpsertDraft_StoriesAreAccountScoped(t *testing.T) {
	store := openTempStore(t, Options{})
	ctx := context.Background()

	man := normalize(t, "fox", "Fox", "Once.")
	a, err := store.UpsertDraft(ctx, DraftInput{AccountID: "acct-1", Manuscript: man})
	require.NoError(t, err)
	b, err := store.UpsertDraft(ctx, DraftInput{AccountID: "acct-2", Manuscript: man})
	require.NoError(t, err)

	assert.NotEqual(t, a.StoryID, b.StoryID)
	assert.Equal(t, 1, a.Version)
	assert.Equal(t, 1, b.Version)
}

func TestUpsertDraft_PersistsChapters(t *testing.T) {
	store := openTempStore(t, Options{})
	ctx := context.Background()

	md := "# Fox\n\nPreamble.\n\n## Into the Woods\n\nFirst.\n\n## Home Again\n\nSecond.\n"
	man := normalize(t, "fox", "Fox", md)
	res, err := store.UpsertDraft(ctx, DraftInput{AccountID: "acct-1", Manuscript: man})
	require.NoError(t, err)

	rows, err := store.db.Query(`
		SELECT kind, title, ordinal FROM story_sections
		WHERE story_version_id = ? ORDER BY ordinal
	`, res.VersionID)
	require.NoError(t, err)
	defer rows.Close()

	type section struct {
		kind    string
		title   string
		ordinal int
	}
	var sections []section
	for rows.Next() {
		var s section
		require.NoError(t, rows.Scan(&s.kind, &s.title, &s.ordinal))
		sections = append(sections, s)
	}
	require.NoError(t, rows.Err())

	require.Len(t, sections, 2)
	assert.Equal(t, section{"chapter", "Into the Woods", 1}, sections[0])
	assert.Equal(t, section{"chapter", "Home Again", 2}, sections[1])

	// The H1 title and the preamble stay outside any chapter.
	var unsectioned int
	require.NoError(t, store.db.QueryRow(`
		SELECT COUNT(1) FROM story_segments
		WHERE story_version_id = ? AND section_id IS NULL
	`, res.VersionID).Scan(&unsectioned))
	assert.Equal(t, 2, unsectioned)
}

func TestUpsertDraft_LinksContributor(t *testing.T) {
	store := openTempStore(t, Options{})
	ctx := context.Background()

	man := normalize(t, "fox", "Fox", "Once.")
	res, err := store.UpsertDraft(ctx, DraftInput{AccountID: "acct-1", Manuscript: man})
	require.NoError(t, err)

	var links int
	require.NoError(t, store.db.QueryRow(`
		SELECT COUNT(1)
		FROM story_contributors sc
		JOIN contributors c ON c.id = sc.contributor_id
		WHERE sc.story_id = ? AND c.name = 'A. Fable' AND sc.role = 'author'
	`, res.StoryID).Scan(&links))
	assert.Equal(t, 1, links)

	// Re-linking on a later ingest is a no-op, not an error.
	edit := normalize(t, "fox", "Fox", "Once, twice.")
	_, err = store.UpsertDraft(ctx, DraftInput{AccountID: "acct-1", Manuscript: edit})
	require.NoError(t, err)

	var contributors int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(1) FROM contributors`).Scan(&contributors))
	assert.Equal(t, 1, contributors)
}

func TestPublish_UnknownStory(t *testing.T) {
	store := openTempStore(t, Options{})
	err := store.Publish(context.Background(), "acct-1", "nope", "some-version")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPublish_CrossStoryVersionIsRejected(t *testing.T) {
	store := openTempStore(t, Options{})
	ctx := context.Background()

	foxRes, err := store.UpsertDraft(ctx, DraftInput{
		AccountID:  "acct-1",
		Manuscript: normalize(t, "fox", "Fox", "Fox body."),
	})
	require.NoError(t, err)

	_, err = store.UpsertDraft(ctx, DraftInput{
		AccountID:  "acct-1",
		Manuscript: normalize(t, "owl", "Owl", "Owl body."),
	})
	require.NoError(t, err)

	// Fox's version must not be publishable under owl's slug.
	err = store.Publish(ctx, "acct-1", "owl", foxRes.VersionID)
	assert.ErrorIs(t, err, ErrNotFound)

	items, err := store.ListStories(ctx, "acct-1")
	require.NoError(t, err)
	for _, it := range items {
		if it.Slug == "owl" {
			assert.Nil(t, it.PublishedVersionID, "owl's published pointer must be untouched")
			assert.False(t, it.IsPublished)
		}
	}
}

func TestPublish_SameVersionTwiceIsNoOp(t *testing.T) {
	store := openTempStore(t, Options{})
	ctx := context.Background()

	res, err := store.UpsertDraft(ctx, DraftInput{
		AccountID:  "acct-1",
		Manuscript: normalize(t, "fox", "Fox", "Once."),
	})
	require.NoError(t, err)

	require.NoError(t, store.Publish(ctx, "acct-1", "fox", res.VersionID))
	require.NoError(t, store.Publish(ctx, "acct-1", "fox", res.VersionID))

	published, err := store.PublishedStory(ctx, "acct-1", "fox")
	require.NoError(t, err)
	assert.Equal(t, 1, published.Version)
}

func TestPublishedSegments_OrderedAndAnchored(t *testing.T) {
	store := openTempStore(t, Options{})
	ctx := context.Background()

	md := "# Fox\n\nOnce upon a time.\n\nAnd then some more.\n"
	res, err := store.UpsertDraft(ctx, DraftInput{
		AccountID:  "acct-1",
		Manuscript: normalize(t, "fox", "Fox", md),
	})
	require.NoError(t, err)
	require.NoError(t, store.Publish(ctx, "acct-1", "fox", res.VersionID))

	payload, err := store.PublishedSegments(ctx, "acct-1", "fox")
	require.NoError(t, err)

	assert.Equal(t, "fox", payload.Slug)
	assert.Equal(t, 1, payload.Version)
	require.Len(t, payload.Segments, 3)
	for i, seg := range payload.Segments {
		assert.Equal(t, i+1, seg.Ordinal)
	}
	assert.JSONEq(t, `{"type":"heading","h":1,"index":0}`, string(payload.Segments[0].Locator))
	assert.JSONEq(t, `{"type":"para","n":1}`, string(payload.Segments[1].Locator))
}

func TestDraftVersion_ResolvesDraftPointer(t *testing.T) {
	store := openTempStore(t, Options{})
	ctx := context.Background()

	res, err := store.UpsertDraft(ctx, DraftInput{
		AccountID:  "acct-1",
		Manuscript: normalize(t, "fox", "Fox", "Draft body."),
	})
	require.NoError(t, err)

	draft, err := store.DraftVersion(ctx, "acct-1", "fox")
	require.NoError(t, err)
	assert.Equal(t, res.VersionID, draft.VersionID)
	assert.Equal(t, 1, draft.Version)
	assert.Equal(t, "Draft body.", draft.Markdown)

	_, err = store.PublishedStory(ctx, "acct-1", "fox")
	assert.ErrorIs(t, err, ErrNotFound, "unpublished story has no reader view")
}
