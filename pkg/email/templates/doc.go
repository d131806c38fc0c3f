// Package templates renders the transactional emails the dispatch pipeline
// sends: contact-form notifications, welcome emails, password resets, and
// newsletters.
//
// Renderers are pure functions over typed parameter structs. Each returns a
// Rendered value holding the subject, an HTML body composed from a shared
// base layout plus reusable components (call-to-action button, colored alert
// box), and a plain-text fallback derived by stripping HTML when no explicit
// text is produced.
//
// Newsletter content is written in markdown; it is converted with goldmark
// and sanitized with bluemonday before being framed in the layout.
//
// The package also ships a file-based Loader for custom templates with YAML
// frontmatter and a markdown body, plus small utilities (ReplaceVariables,
// StripHTML) used across email kinds.
package templates
