package ingest

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// splitFrontmatter peels an optional leading YAML block delimited by `---`
// lines off md. Unparseable frontmatter degrades to an empty map rather than
// failing the whole ingest; a missing closing delimiter leaves md untouched.
func splitFrontmatter(md string) (fm map[string]any, body string) {
	s := strings.TrimLeft(md, "\ufeff \t\r\n")
	if !strings.HasPrefix(s, "---\n") && !strings.HasPrefix(s, "---\r\n") {
		return map[string]any{}, md
	}

	lines := strings.Split(s, "\n")
	if len(lines) < 3 {
		return map[string]any{}, md
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return map[string]any{}, md
	}

	fmText := strings.Join(lines[1:end], "\n")
	body = strings.Join(lines[end+1:], "\n")

	out := map[string]any{}
	_ = yaml.Unmarshal([]byte(fmText), &out)
	return out, body
}
