package ingest

import "testing"

func TestOutline_HeadingStructure(t *testing.T) {
	n := New()
	md := `# The Fox

Intro.

## Into the Woods

First chapter.

### Not an outline boundary

## Home Again

Second chapter.
`

	items, err := n.Outline(md)
	if err != nil {
		t.Fatalf("Outline failed: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 outline items, got %d: %+v", len(items), items)
	}
	if items[0].Title != "The Fox" || items[0].Level != 1 {
		t.Errorf("item 0 = %+v", items[0])
	}
	if items[1].Title != "Into the Woods" || items[1].Level != 2 {
		t.Errorf("item 1 = %+v", items[1])
	}
	if items[2].Title != "Home Again" || items[2].Level != 2 {
		t.Errorf("item 2 = %+v", items[2])
	}
	if items[1].ID == "" {
		t.Error("outline items should carry anchor ids")
	}
}

func TestOutline_NoHeadings(t *testing.T) {
	n := New()
	items, err := n.Outline("Just a paragraph.\n\nAnd another.\n")
	if err != nil {
		t.Fatalf("Outline failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty outline, got %+v", items)
	}
}
