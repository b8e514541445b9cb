package quill

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Template is a stored template document: optional YAML frontmatter
// followed by the template body.
type Template struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Tags     []string `yaml:"tags"`
	Content  string   `yaml:"-"`
}

const frontmatterDelimiter = "---"

// ParseTemplate splits a document into frontmatter metadata and body.
// Documents without a leading "---" line are all body; a missing id is
// generated so stored templates stay addressable.
func ParseTemplate(raw string) (*Template, error) {
	tpl := &Template{}

	body := raw
	if meta, rest, ok := splitFrontmatter(raw); ok {
		if err := yaml.Unmarshal([]byte(meta), tpl); err != nil {
			return nil, fmt.Errorf("failed to parse template metadata: %w", err)
		}
		body = rest
	}

	tpl.Content = body
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	return tpl, nil
}

// splitFrontmatter extracts the YAML block between the opening and
// closing "---" lines. Returns ok=false when no frontmatter exists.
func splitFrontmatter(raw string) (meta, body string, ok bool) {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	if !strings.HasPrefix(normalized, frontmatterDelimiter+"\n") {
		return "", "", false
	}
	rest := normalized[len(frontmatterDelimiter)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelimiter)
	if end < 0 {
		return "", "", false
	}
	meta = rest[:end]
	body = rest[end+len(frontmatterDelimiter)+1:]
	body = strings.TrimPrefix(body, "\n")
	return meta, body, true
}

// Marshal renders the template back to frontmatter + body form.
func (t *Template) Marshal() (string, error) {
	meta, err := yaml.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to marshal template metadata: %w", err)
	}
	var out strings.Builder
	out.WriteString(frontmatterDelimiter + "\n")
	out.Write(meta)
	out.WriteString(frontmatterDelimiter + "\n")
	out.WriteString(t.Content)
	return out.String(), nil
}
