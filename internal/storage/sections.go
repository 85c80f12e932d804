package storage

import (
	"fmt"
	"strings"

	"github.com/hushlight/storyvault/internal/ingest"
)

// SectionKind distinguishes inferred chapters from the implicit whole-story
// section.
type SectionKind string

const (
	SectionPlain   SectionKind = "section"
	SectionChapter SectionKind = "chapter"
)

// PlannedSection is one section to persist for a version, ordinals dense and
// 1-based in document order.
type PlannedSection struct {
	Ordinal int
	Kind    SectionKind
	Title   string // empty for the implicit plain section
}

// SectionPlan maps a version's segments onto its sections. Assignment is
// parallel to the segment slice; -1 means the segment belongs to no section.
type SectionPlan struct {
	Sections   []PlannedSection
	Assignment []int
}

// PlanSections infers chapters from a version's segments. Every level-2
// heading starts a chapter named from its text ("Chapter N" when blank); a
// level-1 heading is the document title and stays outside any chapter;
// everything after a chapter heading up to the next one belongs to that
// chapter. With no level-2 heading anywhere the whole version collapses into
// a single implicit section owning every segment.
func PlanSections(segs []ingest.Segment) SectionPlan {
	var chapters []PlannedSection
	chapterByStart := make(map[int]int)

	for _, seg := range segs {
		if seg.Locator.Type == ingest.LocatorHeading && seg.Locator.Level == 2 {
			title := headingTitle(seg.Markdown)
			if title == "" {
				title = fmt.Sprintf("Chapter %d", len(chapters)+1)
			}
			chapterByStart[seg.Ordinal] = len(chapters)
			chapters = append(chapters, PlannedSection{
				Ordinal: len(chapters) + 1,
				Kind:    SectionChapter,
				Title:   title,
			})
		}
	}

	assignment := make([]int, len(segs))

	if len(chapters) == 0 {
		for i := range assignment {
			assignment[i] = 0
		}
		return SectionPlan{
			Sections:   []PlannedSection{{Ordinal: 1, Kind: SectionPlain}},
			Assignment: assignment,
		}
	}

	current := -1
	for i, seg := range segs {
		loc := seg.Locator
		switch {
		case loc.Type == ingest.LocatorHeading && loc.Level == 1:
			assignment[i] = -1
		case loc.Type == ingest.LocatorHeading && loc.Level == 2:
			current = chapterByStart[seg.Ordinal]
			assignment[i] = current
		default:
			assignment[i] = current
		}
	}

	return SectionPlan{Sections: chapters, Assignment: assignment}
}

func headingTitle(md string) string {
	s := strings.TrimSpace(md)
	s = strings.TrimLeft(s, "#")
	return strings.TrimSpace(s)
}
