package templates

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
	)

	// ugcPolicy keeps the formatting markdown produces and nothing else.
	// Newsletter content comes from campaign authors, not end users, but it
	// still passes through campaign tooling that should not inject scripts.
	ugcPolicy = bluemonday.UGCPolicy()

	// strictPolicy strips all tags; used to derive plain-text fallbacks.
	strictPolicy = bluemonday.StrictPolicy()
)

// renderMarkdown converts markdown to sanitized HTML.
func renderMarkdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return ugcPolicy.Sanitize(buf.String()), nil
}
