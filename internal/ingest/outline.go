package ingest

import (
	"fmt"

	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// OutlineItem is one entry in a document outline: an H1 or H2 heading with
// the anchor ID the renderer assigns to it.
type OutlineItem struct {
	Title string
	ID    string
	Level int
}

// Outline extracts the H1/H2 heading structure of body for the editor
// sidebar. Deeper headings are not outline boundaries, matching the chapter
// inference the store applies on upsert.
func (n *Normalizer) Outline(body string) ([]OutlineItem, error) {
	src := []byte(body)
	doc := n.md.Parser().Parse(text.NewReader(src))

	// No Compact: placeholder items keep nesting depth aligned with heading
	// level when a document starts at H2.
	tree, err := toc.Inspect(doc, src,
		toc.MinDepth(1),
		toc.MaxDepth(2),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect outline: %w", err)
	}

	var items []OutlineItem
	var walk func(toc.Items, int)
	walk = func(list toc.Items, level int) {
		for _, item := range list {
			if len(item.Title) > 0 {
				items = append(items, OutlineItem{
					Title: string(item.Title),
					ID:    string(item.ID),
					Level: level,
				})
			}
			walk(item.Items, level+1)
		}
	}
	walk(tree.Items, 1)

	return items, nil
}
