package ingest

import (
	"encoding/json"
	"fmt"
)

// LocatorType discriminates the structural position of a segment.
type LocatorType string

const (
	LocatorHeading   LocatorType = "heading"
	LocatorParagraph LocatorType = "para"
	LocatorBlock     LocatorType = "block"
)

// Locator is a tagged variant identifying where a segment came from in the
// document. Readers use it as a resume-reading anchor, so its JSON form is a
// stable wire contract:
//
//	{"type":"heading","h":2,"index":0}
//	{"type":"para","n":3}
//	{"type":"block","kind":"*ast.FencedCodeBlock"}
type Locator struct {
	Type LocatorType

	// Heading fields: level and a 0-based running heading index.
	Level int
	Index int

	// Paragraph field: 1-based running paragraph index.
	N int

	// Generic block field: node kind.
	Kind string
}

// HeadingLocator tags a heading segment.
func HeadingLocator(level, index int) Locator {
	return Locator{Type: LocatorHeading, Level: level, Index: index}
}

// ParagraphLocator tags a paragraph segment.
func ParagraphLocator(n int) Locator {
	return Locator{Type: LocatorParagraph, N: n}
}

// BlockLocator tags a generic block segment.
func BlockLocator(kind string) Locator {
	return Locator{Type: LocatorBlock, Kind: kind}
}

type locatorJSON struct {
	Type  LocatorType `json:"type"`
	H     *int        `json:"h,omitempty"`
	Index *int        `json:"index,omitempty"`
	N     *int        `json:"n,omitempty"`
	Kind  string      `json:"kind,omitempty"`
}

// MarshalJSON emits only the fields that belong to the variant. The heading
// index may legitimately be zero, so it is always written for headings.
func (l Locator) MarshalJSON() ([]byte, error) {
	switch l.Type {
	case LocatorHeading:
		h, idx := l.Level, l.Index
		return json.Marshal(locatorJSON{Type: l.Type, H: &h, Index: &idx})
	case LocatorParagraph:
		n := l.N
		return json.Marshal(locatorJSON{Type: l.Type, N: &n})
	case LocatorBlock:
		return json.Marshal(locatorJSON{Type: l.Type, Kind: l.Kind})
	default:
		return nil, fmt.Errorf("unknown locator type %q", l.Type)
	}
}

// UnmarshalJSON accepts any of the three variant shapes.
func (l *Locator) UnmarshalJSON(data []byte) error {
	var raw locatorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := Locator{Type: raw.Type, Kind: raw.Kind}
	if raw.H != nil {
		out.Level = *raw.H
	}
	if raw.Index != nil {
		out.Index = *raw.Index
	}
	if raw.N != nil {
		out.N = *raw.N
	}
	*l = out
	return nil
}
