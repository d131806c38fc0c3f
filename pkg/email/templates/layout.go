package templates

import (
	"fmt"
	"html"
	"strconv"
	"time"
)

// Branding customizes the shared layout. Zero values fall back to neutral
// defaults so renderers stay usable in tests without configuration.
type Branding struct {
	ProductName string
	Tagline     string
	BaseURL     string
	SupportMail string
}

func (b Branding) withDefaults() Branding {
	if b.ProductName == "" {
		b.ProductName = "Courier"
	}
	return b
}

// layout wraps rendered content in the shared responsive base template:
// gradient header, content area, and footer with contact links. All styling
// is inline CSS; email clients ignore stylesheets.
func layout(b Branding, title, content string) string {
	b = b.withDefaults()
	if title == "" {
		title = b.ProductName
	}

	footerLinks := ""
	if b.SupportMail != "" {
		footerLinks += fmt.Sprintf(`<a href="mailto:%s" style="color: #0175C2; text-decoration: none; font-size: 14px; margin: 0 12px;">Email</a>`, html.EscapeString(b.SupportMail))
	}
	if b.BaseURL != "" {
		footerLinks += fmt.Sprintf(`<a href="%s" style="color: #0175C2; text-decoration: none; font-size: 14px; margin: 0 12px;">Website</a>`, html.EscapeString(b.BaseURL))
	}

	tagline := ""
	if b.Tagline != "" {
		tagline = fmt.Sprintf(`<p style="margin: 8px 0 0 0; color: rgba(255, 255, 255, 0.9); font-size: 16px;">%s</p>`, html.EscapeString(b.Tagline))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en" dir="ltr">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>%s</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #374151; background-color: #f9fafb;">
  <div style="max-width: 600px; margin: 0 auto; background-color: #ffffff;">
    <div style="background: linear-gradient(135deg, #0175C2, #13B9FD); padding: 32px 24px; text-align: center;">
      <h1 style="margin: 0; color: #ffffff; font-size: 28px; font-weight: 700;">%s</h1>
      %s
    </div>
    <div style="padding: 40px 24px;">
      %s
    </div>
    <div style="background-color: #f3f4f6; padding: 32px 24px; text-align: center; border-top: 1px solid #e5e7eb;">
      <p style="margin: 0 0 16px 0; color: #6b7280; font-size: 14px;">&copy; %s %s. All rights reserved.</p>
      <div style="margin: 16px 0;">%s</div>
    </div>
  </div>
</body>
</html>`,
		html.EscapeString(title),
		html.EscapeString(b.ProductName),
		tagline,
		content,
		strconv.Itoa(time.Now().Year()),
		html.EscapeString(b.ProductName),
		footerLinks,
	)
}

// button renders a call-to-action link. Primary buttons are filled, secondary
// buttons are outlined.
func button(text, url string, primary bool) string {
	style := "background-color: #0175C2; color: #ffffff; border: 2px solid #0175C2;"
	if !primary {
		style = "background-color: transparent; color: #0175C2; border: 2px solid #0175C2;"
	}
	return fmt.Sprintf(`<div style="text-align: center; margin: 32px 0;">
    <a href="%s" style="display: inline-block; padding: 14px 28px; font-size: 16px; font-weight: 600; text-decoration: none; border-radius: 8px; %s">%s</a>
  </div>`, html.EscapeString(url), style, html.EscapeString(text))
}

type alertKind string

const (
	alertInfo    alertKind = "info"
	alertWarning alertKind = "warning"
	alertSuccess alertKind = "success"
	alertError   alertKind = "error"
)

// alertBox renders a colored callout with the palette matching its kind.
func alertBox(message string, kind alertKind) string {
	var bg, border, text string
	switch kind {
	case alertWarning:
		bg, border, text = "#fffbeb", "#f59e0b", "#92400e"
	case alertSuccess:
		bg, border, text = "#f0fdf4", "#22c55e", "#166534"
	case alertError:
		bg, border, text = "#fef2f2", "#ef4444", "#991b1b"
	default:
		bg, border, text = "#eff6ff", "#3b82f6", "#1e40af"
	}
	return fmt.Sprintf(`<div style="background-color: %s; border-left: 4px solid %s; border-radius: 8px; padding: 16px 20px; margin: 24px 0;">
    <p style="margin: 0; color: %s; font-size: 14px;">%s</p>
  </div>`, bg, border, text, html.EscapeString(message))
}

func paragraph(text string) string {
	return fmt.Sprintf(`<p style="margin: 0 0 24px 0; font-size: 16px; color: #374151;">%s</p>`, html.EscapeString(text))
}

func heading(text string) string {
	return fmt.Sprintf(`<h2 style="margin: 0 0 24px 0; color: #111827; font-size: 24px; font-weight: 600; text-align: center;">%s</h2>`, html.EscapeString(text))
}
