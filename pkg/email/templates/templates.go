package templates

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"
)

// Rendered is the output of every renderer: subject, HTML body, and a plain
// text alternative.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Templates renders transactional emails with the given branding.
// The zero value is usable and renders with neutral defaults.
type Templates struct {
	Branding Branding
}

// New creates a template set with the given branding.
func New(b Branding) *Templates {
	return &Templates{Branding: b}
}

// ContactParams carries a contact-form submission into the admin
// notification template.
type ContactParams struct {
	Name       string
	Email      string
	Subject    string
	Message    string
	Phone      string
	ReceivedAt time.Time
}

// Contact renders the admin notification for a contact-form submission.
func (t *Templates) Contact(p ContactParams) Rendered {
	phoneRow := ""
	if p.Phone != "" {
		phoneRow = fmt.Sprintf(`<tr><td style="padding: 8px 0; color: #6b7280; font-size: 14px;">Phone</td><td style="padding: 8px 0; color: #111827; font-size: 14px;">%s</td></tr>`, html.EscapeString(p.Phone))
	}

	content := heading("New contact form submission") +
		alertBox(fmt.Sprintf("Received %s", p.ReceivedAt.Format("2 Jan 2006 15:04")), alertInfo) +
		fmt.Sprintf(`<table style="width: 100%%; border-collapse: collapse; margin: 0 0 24px 0;">
      <tr><td style="padding: 8px 0; color: #6b7280; font-size: 14px; width: 120px;">Name</td><td style="padding: 8px 0; color: #111827; font-size: 14px;">%s</td></tr>
      <tr><td style="padding: 8px 0; color: #6b7280; font-size: 14px;">Email</td><td style="padding: 8px 0; color: #111827; font-size: 14px;">%s</td></tr>
      %s
      <tr><td style="padding: 8px 0; color: #6b7280; font-size: 14px;">Subject</td><td style="padding: 8px 0; color: #111827; font-size: 14px;">%s</td></tr>
    </table>`,
			html.EscapeString(p.Name), html.EscapeString(p.Email), phoneRow, html.EscapeString(p.Subject)) +
		fmt.Sprintf(`<div style="background-color: #f9fafb; border-radius: 8px; padding: 20px; margin: 0 0 24px 0;">
      <p style="margin: 0; color: #374151; font-size: 15px; white-space: pre-wrap;">%s</p>
    </div>`, html.EscapeString(p.Message)) +
		paragraph("Reply directly to this email to answer the sender.")

	text := fmt.Sprintf("New contact form submission\n\nName: %s\nEmail: %s\nSubject: %s\n\n%s",
		p.Name, p.Email, p.Subject, p.Message)
	if p.Phone != "" {
		text = strings.Replace(text, "\nSubject:", "\nPhone: "+p.Phone+"\nSubject:", 1)
	}

	return Rendered{
		Subject: fmt.Sprintf("Contact form: %s", p.Subject),
		HTML:    layout(t.Branding, "New contact message", content),
		Text:    text,
	}
}

// WelcomeParams carries the welcome email data.
type WelcomeParams struct {
	UserName      string
	ActivationURL string
}

// Welcome renders the account welcome email, with an activation button when
// an activation URL is supplied.
func (t *Templates) Welcome(p WelcomeParams) Rendered {
	b := t.Branding.withDefaults()

	content := heading(fmt.Sprintf("Welcome, %s!", p.UserName)) +
		paragraph("Thank you for joining us. Your account has been created successfully.")

	text := fmt.Sprintf("Welcome, %s!\n\nThank you for joining us. Your account has been created successfully.", p.UserName)

	if p.ActivationURL != "" {
		content += alertBox("Activate your account to unlock all features.", alertInfo) +
			button("Activate account", p.ActivationURL, true) +
			linkFallback(p.ActivationURL)
		text += fmt.Sprintf("\n\nActivate your account: %s", p.ActivationURL)
	}

	return Rendered{
		Subject: fmt.Sprintf("Welcome to %s, %s!", b.ProductName, p.UserName),
		HTML:    layout(t.Branding, "Welcome", content),
		Text:    text,
	}
}

// PasswordResetParams carries the password reset email data.
// Now is the caller's clock reading; the remaining validity shown in the
// email is computed against it so rendering stays deterministic under test.
type PasswordResetParams struct {
	UserName  string
	ResetURL  string
	ExpiresAt time.Time
	Now       time.Time
}

// PasswordReset renders the password reset email. The expiry callout shows
// the remaining minutes rounded to the nearest whole minute.
func (t *Templates) PasswordReset(p PasswordResetParams) Rendered {
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	expiresIn := int(math.Round(p.ExpiresAt.Sub(now).Minutes()))

	content := heading("Password reset") +
		paragraph(fmt.Sprintf("Hi %s,", p.UserName)) +
		paragraph("We received a request to reset the password for your account. If you did not make this request, you can safely ignore this email.") +
		alertBox(fmt.Sprintf("The reset link expires in %d minutes.", expiresIn), alertWarning) +
		button("Reset password", p.ResetURL, true) +
		`<div style="background-color: #f9fafb; border-radius: 8px; padding: 20px; margin: 32px 0;">
      <h4 style="margin: 0 0 12px 0; color: #111827; font-size: 16px; font-weight: 600;">Security tips</h4>
      <ul style="margin: 0; color: #374151; font-size: 14px; line-height: 1.6;">
        <li>Never share your password with anyone</li>
        <li>Use a unique password for every site</li>
        <li>Combine letters, numbers, and symbols</li>
      </ul>
    </div>` +
		linkFallback(p.ResetURL)

	b := t.Branding.withDefaults()

	return Rendered{
		Subject: fmt.Sprintf("Password reset - %s", b.ProductName),
		HTML:    layout(t.Branding, "Password reset", content),
		Text: fmt.Sprintf("Hi %s,\n\nWe received a request to reset your password.\n\nReset it here: %s\n\nThe link expires in %d minutes.\n\nIf you did not make this request, ignore this email.",
			p.UserName, p.ResetURL, expiresIn),
	}
}

// NewsletterParams carries the newsletter email data. Content is markdown.
type NewsletterParams struct {
	Subject        string
	Content        string
	UnsubscribeURL string
	PreferencesURL string
}

// Newsletter renders a newsletter issue: markdown content converted to
// sanitized HTML, framed by the layout, with mandatory unsubscribe footer.
func (t *Templates) Newsletter(p NewsletterParams) Rendered {
	body, err := renderMarkdown(p.Content)
	if err != nil {
		// Malformed markdown degrades to escaped plain text, never an error.
		body = paragraph(p.Content)
	}

	footer := fmt.Sprintf(`<p style="margin: 32px 0 0 0; color: #9ca3af; font-size: 12px; text-align: center;">
    You receive this email because you subscribed to our newsletter.
    <a href="%s" style="color: #0175C2; text-decoration: none;">Unsubscribe</a>`,
		html.EscapeString(p.UnsubscribeURL))
	if p.PreferencesURL != "" {
		footer += fmt.Sprintf(` &middot; <a href="%s" style="color: #0175C2; text-decoration: none;">Email preferences</a>`,
			html.EscapeString(p.PreferencesURL))
	}
	footer += `</p>`

	content := heading(p.Subject) + body + footer

	text := StripHTML(body) +
		fmt.Sprintf("\n\nUnsubscribe: %s", p.UnsubscribeURL)
	if p.PreferencesURL != "" {
		text += fmt.Sprintf("\nPreferences: %s", p.PreferencesURL)
	}

	return Rendered{
		Subject: p.Subject,
		HTML:    layout(t.Branding, p.Subject, content),
		Text:    text,
	}
}

func linkFallback(url string) string {
	return fmt.Sprintf(`<p style="margin: 32px 0 0 0; color: #6b7280; font-size: 14px; text-align: center;">
    If the button does not work, copy this link into your browser:<br>
    <a href="%s" style="color: #0175C2; text-decoration: none; word-break: break-all;">%s</a>
  </p>`, html.EscapeString(url), html.EscapeString(url))
}
