package templates

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sync"
	texttemplate "text/template"

	"gopkg.in/yaml.v3"
)

var (
	// ErrTemplateNotFound indicates the template file was not found.
	ErrTemplateNotFound = errors.New("templates: template not found")

	// ErrRenderFailed indicates template parsing or execution failed.
	ErrRenderFailed = errors.New("templates: failed to render template")

	// ErrInvalidFrontmatter indicates malformed YAML frontmatter.
	ErrInvalidFrontmatter = errors.New("templates: invalid frontmatter")
)

// Loader renders file-based email templates: YAML frontmatter for metadata
// (Subject at minimum) and a markdown body with text/template placeholders.
// Used for custom campaigns and generic notification jobs that are not
// covered by the typed renderers.
type Loader struct {
	fs       fs.FS
	dir      string
	branding Branding

	mu    sync.RWMutex
	cache map[string]*parsedTemplate
}

type parsedTemplate struct {
	metadata map[string]any
	tmpl     *texttemplate.Template
}

// NewLoader creates a loader reading templates from dir within filesystem.
func NewLoader(filesystem fs.FS, dir string, b Branding) *Loader {
	if dir == "" {
		dir = "."
	}
	return &Loader{
		fs:       filesystem,
		dir:      dir,
		branding: b,
		cache:    make(map[string]*parsedTemplate),
	}
}

// Render executes the named template with data and frames the converted
// markdown in the shared layout. The subject comes from frontmatter and is
// itself executed as a template, so it may reference data fields.
func (l *Loader) Render(name string, data any) (Rendered, error) {
	parsed, err := l.get(name)
	if err != nil {
		return Rendered{}, err
	}

	var body bytes.Buffer
	if err := parsed.tmpl.Execute(&body, data); err != nil {
		return Rendered{}, fmt.Errorf("%w: execute %s: %v", ErrRenderFailed, name, err)
	}

	htmlBody, err := renderMarkdown(body.String())
	if err != nil {
		return Rendered{}, fmt.Errorf("%w: convert %s: %v", ErrRenderFailed, name, err)
	}

	subject := ""
	if s, ok := parsed.metadata["Subject"].(string); ok {
		subject, err = executeSubject(s, data)
		if err != nil {
			return Rendered{}, fmt.Errorf("%w: subject of %s: %v", ErrRenderFailed, name, err)
		}
	}

	return Rendered{
		Subject: subject,
		HTML:    layout(l.branding, subject, htmlBody),
		Text:    StripHTML(htmlBody),
	}, nil
}

func (l *Loader) get(name string) (*parsedTemplate, error) {
	l.mu.RLock()
	if cached, ok := l.cache[name]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring the write lock.
	if cached, ok := l.cache[name]; ok {
		return cached, nil
	}

	content, err := fs.ReadFile(l.fs, path.Join(l.dir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateNotFound, name, err)
	}

	metadata, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFrontmatter, name, err)
	}

	tmpl, err := texttemplate.New(name).Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrRenderFailed, name, err)
	}

	parsed := &parsedTemplate{metadata: metadata, tmpl: tmpl}
	l.cache[name] = parsed
	return parsed, nil
}

// splitFrontmatter separates YAML frontmatter delimited by --- lines from
// the template body. Content without frontmatter is returned unchanged with
// empty metadata.
func splitFrontmatter(content []byte) (map[string]any, string, error) {
	delimiter := []byte("---")

	if !bytes.HasPrefix(content, delimiter) {
		return map[string]any{}, string(content), nil
	}

	rest := bytes.TrimPrefix(content, delimiter)
	rest = bytes.TrimLeft(rest, "\r\n")
	end := bytes.Index(rest, delimiter)
	if end == -1 {
		return nil, "", errors.New("closing delimiter not found")
	}

	var metadata map[string]any
	if err := yaml.Unmarshal(rest[:end], &metadata); err != nil {
		return nil, "", err
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	body := rest[end+len(delimiter):]
	body = bytes.TrimLeft(body, "\r\n")
	return metadata, string(body), nil
}

func executeSubject(subject string, data any) (string, error) {
	tmpl, err := texttemplate.New("subject").Parse(subject)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
