package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Manuscript is one raw markdown file fetched from the repository. Content
// still carries any frontmatter; normalization happens downstream.
type Manuscript struct {
	Path    string // relative path within the manuscripts directory
	Slug    string // derived from the file name
	Content string
	URL     string // GitHub raw URL, recorded as the story's sourceUrl
}

// Fetcher lists and fetches manuscripts from one repository directory.
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	basePath string
}

// NewFetcher creates a manuscript fetcher rooted at basePath.
func NewFetcher(client *Client, owner, repo, basePath string) *Fetcher {
	return &Fetcher{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
	}
}

// List recursively lists all markdown files under the base path.
func (f *Fetcher) List(ctx context.Context) ([]string, error) {
	return f.listRecursive(ctx, f.basePath, "")
}

func (f *Fetcher) listRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	var files []string

	_, dirContents, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}

		itemRelPath := path.Join(relativePath, *item.Name)

		switch *item.Type {
		case "file":
			if strings.HasSuffix(*item.Name, ".md") {
				files = append(files, itemRelPath)
			}
		case "dir":
			itemFullPath := path.Join(fullPath, *item.Name)
			sub, err := f.listRecursive(ctx, itemFullPath, itemRelPath)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
	}

	return files, nil
}

// Fetch fetches one manuscript by its relative path.
func (f *Fetcher) Fetch(ctx context.Context, relativePath string) (*Manuscript, error) {
	fullPath := path.Join(f.basePath, relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("get content of %s: %w", fullPath, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := base64.StdEncoding.DecodeString(*fileContent.Content)
	if err != nil {
		return nil, fmt.Errorf("decode content of %s: %w", fullPath, err)
	}

	rawURL := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/main/%s", f.owner, f.repo, fullPath)

	return &Manuscript{
		Path:    relativePath,
		Slug:    SlugFromPath(relativePath),
		Content: string(content),
		URL:     rawURL,
	}, nil
}

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// SlugFromPath derives a story slug from a manuscript file name:
// "tales/The Gruffalo.md" -> "the-gruffalo".
func SlugFromPath(relativePath string) string {
	base := path.Base(relativePath)
	base = strings.TrimSuffix(base, path.Ext(base))
	base = nonSlugRe.ReplaceAllString(strings.ToLower(base), "-")
	return strings.Trim(base, "-")
}

// TitleFromSlug derives a fallback display title from a slug:
// "the-gruffalo" -> "The Gruffalo". Used only when a manuscript carries no
// title of its own.
func TitleFromSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
