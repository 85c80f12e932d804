// Package ingest normalizes raw manuscripts into structured, renderable records.
//
// A manuscript arrives as markdown text, optionally preceded by a YAML
// frontmatter block. Ingest resolves metadata (explicit fields win over
// frontmatter), renders the body to HTML, computes the content hash used for
// version deduplication, and splits the body into reader-navigable segments.
// The package performs no I/O; persistence is the store's concern.
package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// DefaultLanguage is used when neither the caller nor the frontmatter
// supplies a language tag.
const DefaultLanguage = "en-GB"

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Input is a caller-supplied manuscript. It is transient and never persisted
// as-is.
type Input struct {
	Slug     string
	Title    string
	Author   string
	Markdown string

	Language  string
	SourceURL string
	Rights    map[string]any
}

// Segment is one reader-navigable chunk of a manuscript: a heading, a
// paragraph, or a generic block that carries visible text.
type Segment struct {
	Ordinal      int // 1-based, dense, document order
	Locator      Locator
	Markdown     string
	RenderedHTML string
	WordCount    int
}

// Manuscript is the normalized output of Ingest and the input to the version
// store.
type Manuscript struct {
	Slug     string
	Title    string
	Author   string
	Language string

	Source      map[string]any
	Rights      map[string]any
	Frontmatter map[string]any

	// Markdown is the body with frontmatter stripped. ContentHash is the
	// sha256 digest of exactly those bytes, so frontmatter-only edits
	// resolve to the same version.
	Markdown     string
	RenderedHTML string
	ContentHash  string

	Segments []Segment
}

// Normalizer turns raw manuscripts into Manuscripts. It holds a single
// goldmark instance used for parsing, the whole-document render and every
// per-segment render, so the two renders can only differ in whitespace.
type Normalizer struct {
	md goldmark.Markdown
}

// New creates a Normalizer with auto heading IDs enabled.
func New() *Normalizer {
	return &Normalizer{
		md: goldmark.New(
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

// ValidateSlug reports whether slug is usable as a story identity:
// lowercase letters, digits and single interior hyphens.
func ValidateSlug(slug string) error {
	if !slugRe.MatchString(slug) {
		return &ValidationError{
			Field:  "slug",
			Reason: "use lowercase letters/numbers/hyphens (e.g. the-gruffalo)",
		}
	}
	return nil
}

// Ingest validates and normalizes a manuscript. It fails fast on bad input
// and produces no partial output.
func (n *Normalizer) Ingest(in Input) (Manuscript, error) {
	in.Slug = strings.TrimSpace(in.Slug)
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)

	if in.Slug == "" {
		return Manuscript{}, &ValidationError{Field: "slug", Reason: "required"}
	}
	if err := ValidateSlug(in.Slug); err != nil {
		return Manuscript{}, err
	}
	if strings.TrimSpace(in.Markdown) == "" {
		return Manuscript{}, &ValidationError{Field: "markdown", Reason: "required"}
	}

	fm, body := splitFrontmatter(in.Markdown)

	// Explicit fields win; frontmatter fills in the blanks.
	if v, ok := fm["title"].(string); in.Title == "" && ok {
		in.Title = strings.TrimSpace(v)
	}
	if v, ok := fm["author"].(string); in.Author == "" && ok {
		in.Author = strings.TrimSpace(v)
	}
	if v, ok := fm["language"].(string); in.Language == "" && ok {
		in.Language = strings.TrimSpace(v)
	}
	if v, ok := fm["sourceUrl"].(string); in.SourceURL == "" && ok {
		in.SourceURL = strings.TrimSpace(v)
	}

	if in.Title == "" {
		return Manuscript{}, &ValidationError{Field: "title", Reason: "required"}
	}
	if in.Language == "" {
		in.Language = DefaultLanguage
	}
	if in.Rights == nil {
		in.Rights = map[string]any{}
	}

	fullHTML, err := n.render(body)
	if err != nil {
		return Manuscript{}, &RenderError{Err: err}
	}

	sum := sha256.Sum256([]byte(body))
	hash := hex.EncodeToString(sum[:])

	segs, err := n.segment(body)
	if err != nil {
		return Manuscript{}, err
	}

	source := map[string]any{}
	if u := strings.TrimSpace(in.SourceURL); u != "" {
		source["url"] = u
	}

	frontmatter := map[string]any{
		"title":    in.Title,
		"author":   in.Author,
		"language": in.Language,
	}
	if u := strings.TrimSpace(in.SourceURL); u != "" {
		frontmatter["sourceUrl"] = u
	}
	for k, v := range fm {
		if _, exists := frontmatter[k]; !exists {
			frontmatter[k] = v
		}
	}

	return Manuscript{
		Slug:         in.Slug,
		Title:        in.Title,
		Author:       in.Author,
		Language:     in.Language,
		Source:       source,
		Rights:       in.Rights,
		Frontmatter:  frontmatter,
		Markdown:     body,
		RenderedHTML: fullHTML,
		ContentHash:  hash,
		Segments:     segs,
	}, nil
}

// segment walks the top-level blocks of body in document order. Every heading
// and paragraph becomes exactly one segment; other blocks are kept as generic
// segments when they carry visible text and dropped otherwise.
func (n *Normalizer) segment(body string) ([]Segment, error) {
	src := []byte(body)
	doc := n.md.Parser().Parse(text.NewReader(src))

	segs := make([]Segment, 0, 64)
	ordinal := 1
	paraN := 0
	headIdx := 0

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch x := node.(type) {
		case *ast.Heading:
			txt := flattenText(src, x)
			if txt == "" {
				txt = blockSource(src, x)
			}
			md := strings.Repeat("#", x.Level) + " " + txt
			html, err := n.render(md)
			if err != nil {
				return nil, &RenderError{Err: err}
			}
			segs = append(segs, Segment{
				Ordinal:      ordinal,
				Locator:      HeadingLocator(x.Level, headIdx),
				Markdown:     md,
				RenderedHTML: html,
				WordCount:    wordCount(txt),
			})
			headIdx++
			ordinal++

		case *ast.Paragraph:
			md := blockSource(src, x)
			if md == "" {
				md = flattenText(src, x)
			}
			paraN++
			html, err := n.render(md)
			if err != nil {
				return nil, &RenderError{Err: err}
			}
			segs = append(segs, Segment{
				Ordinal:      ordinal,
				Locator:      ParagraphLocator(paraN),
				Markdown:     md,
				RenderedHTML: html,
				WordCount:    wordCount(md),
			})
			ordinal++

		default:
			md := blockSource(src, node)
			if strings.TrimSpace(md) == "" {
				continue
			}
			html, err := n.render(md)
			if err != nil {
				return nil, &RenderError{Err: err}
			}
			segs = append(segs, Segment{
				Ordinal:      ordinal,
				Locator:      BlockLocator(fmt.Sprintf("%T", node)),
				Markdown:     md,
				RenderedHTML: html,
				WordCount:    wordCount(md),
			})
			ordinal++
		}
	}

	return segs, nil
}

func (n *Normalizer) render(md string) (string, error) {
	var buf bytes.Buffer
	if err := n.md.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// blockSource recovers the exact original source slice for a block node.
func blockSource(src []byte, node ast.Node) string {
	type liner interface{ Lines() *text.Segments }
	l, ok := node.(liner)
	if !ok || l.Lines() == nil || l.Lines().Len() == 0 {
		return ""
	}

	var b strings.Builder
	segs := l.Lines()
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		b.Write(src[seg.Start:seg.Stop])
	}
	return strings.TrimSpace(b.String())
}

// flattenText collects the plain text content under a node.
func flattenText(src []byte, node ast.Node) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(x ast.Node) {
		for c := x.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				seg := t.Segment
				b.Write(src[seg.Start:seg.Stop])
			}
			walk(c)
		}
	}
	walk(node)
	return strings.TrimSpace(b.String())
}
