package storage

import (
	"encoding/json"
	"time"

	"github.com/hushlight/storyvault/internal/ingest"
)

// DraftInput carries one normalized manuscript into the draft-upsert
// transaction, scoped to the owning account.
type DraftInput struct {
	AccountID  string
	Manuscript ingest.Manuscript
}

// DraftResult reports the outcome of a draft upsert. SegmentCount is always
// the segment count of the ingested manuscript, even when the content hash
// matched an existing version, so callers see a consistent shape.
type DraftResult struct {
	StoryID      string
	VersionID    string
	Slug         string
	Version      int
	SegmentCount int
	RenderedHTML string

	// Reused is true when the content hash matched an existing version and
	// no new rows were written.
	Reused bool
}

// StoryListItem is one row of the admin story list. Title/author/language
// come from the cached columns on the story row, so listing never joins
// versions.
type StoryListItem struct {
	Slug        string
	Title       string
	Author      *string
	Language    string
	IsPublished bool
	CreatedAt   time.Time
	UpdatedAt   time.Time

	DraftVersionID     *string
	PublishedVersionID *string
}

// StoryPayload is the reader-facing view of a story resolved through the
// published pointer.
type StoryPayload struct {
	Slug         string
	Title        string
	Author       *string
	Version      int
	RenderedHTML string
}

// StoredSegment is one persisted segment row as served to readers.
type StoredSegment struct {
	Ordinal      int
	Locator      json.RawMessage
	RenderedHTML string
}

// SegmentsPayload is the ordered segment list of a published version.
type SegmentsPayload struct {
	Slug     string
	Version  int
	Segments []StoredSegment
}

// DraftPayload is the editor-facing view of a story resolved through the
// draft pointer.
type DraftPayload struct {
	Slug         string
	Title        string
	VersionID    string
	Version      int
	Markdown     string
	RenderedHTML string
}
