package email

import (
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"
)

const maxSubjectLength = 200

// fieldErrors collects constraint violations so a single ValidationError
// can report every broken field at once.
type fieldErrors []FieldError

func (fe *fieldErrors) add(field, message string) {
	*fe = append(*fe, FieldError{Field: field, Message: message})
}

func (fe fieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	return &ValidationError{Fields: fe}
}

func validEmail(addr string) bool {
	if addr == "" {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return false
	}
	// Require a dot in the domain; mail.ParseAddress accepts bare hosts.
	at := strings.LastIndex(addr, "@")
	return at > 0 && strings.Contains(addr[at+1:], ".")
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (m *Message) validate() error {
	var fe fieldErrors
	if !validEmail(m.To) {
		fe.add("to", "invalid email address")
	}
	if m.Subject == "" {
		fe.add("subject", "subject is required")
	} else if utf8.RuneCountInString(m.Subject) > maxSubjectLength {
		fe.add("subject", "subject too long")
	}
	if m.HTML == "" {
		fe.add("html", "HTML content is required")
	}
	if m.ReplyTo != "" && !validEmail(m.ReplyTo) {
		fe.add("replyTo", "invalid email address")
	}
	for _, a := range m.Attachments {
		if a.Filename == "" {
			fe.add("attachments", "attachment filename is required")
			break
		}
	}
	return fe.err()
}

func (d *ContactData) validate() error {
	var fe fieldErrors
	if utf8.RuneCountInString(d.Name) < 2 {
		fe.add("name", "name must be at least 2 characters")
	}
	if !validEmail(d.Email) {
		fe.add("email", "invalid email address")
	}
	if d.Subject == "" {
		fe.add("subject", "subject is required")
	} else if utf8.RuneCountInString(d.Subject) > maxSubjectLength {
		fe.add("subject", "subject too long")
	}
	if utf8.RuneCountInString(d.Message) < 10 {
		fe.add("message", "message must be at least 10 characters")
	}
	if !validEmail(d.AdminEmail) {
		fe.add("adminEmail", "invalid email address")
	}
	return fe.err()
}

func (d *WelcomeData) validate() error {
	var fe fieldErrors
	if !validEmail(d.To) {
		fe.add("to", "invalid email address")
	}
	if d.UserName == "" {
		fe.add("userName", "user name is required")
	}
	if d.ActivationURL != "" && !validURL(d.ActivationURL) {
		fe.add("activationUrl", "invalid URL")
	}
	return fe.err()
}

func (d *PasswordResetData) validate() error {
	var fe fieldErrors
	if !validEmail(d.To) {
		fe.add("to", "invalid email address")
	}
	if d.UserName == "" {
		fe.add("userName", "user name is required")
	}
	if !validURL(d.ResetURL) {
		fe.add("resetUrl", "invalid reset URL")
	}
	if d.ExpiresAt.IsZero() {
		fe.add("expiresAt", "expiry time is required")
	}
	return fe.err()
}

func (d *NewsletterData) validate() error {
	var fe fieldErrors
	if !validEmail(d.To) {
		fe.add("to", "invalid email address")
	}
	if d.Subject == "" {
		fe.add("subject", "subject is required")
	} else if utf8.RuneCountInString(d.Subject) > maxSubjectLength {
		fe.add("subject", "subject too long")
	}
	if d.Content == "" {
		fe.add("content", "content is required")
	}
	if !validURL(d.UnsubscribeURL) {
		fe.add("unsubscribeUrl", "invalid unsubscribe URL")
	}
	if d.PreferencesURL != "" && !validURL(d.PreferencesURL) {
		fe.add("preferencesUrl", "invalid URL")
	}
	return fe.err()
}
