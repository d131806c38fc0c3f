package email

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldNames(t *testing.T, err error) []string {
	t.Helper()

	verr, ok := err.(*ValidationError)
	require.True(t, ok, "expected *ValidationError, got %T", err)

	names := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		names[i] = f.Field
	}
	return names
}

func TestValidEmail(t *testing.T) {
	t.Parallel()

	valid := []string{
		"user@example.com",
		"first.last@sub.example.co.uk",
		"user+tag@example.com",
	}
	for _, addr := range valid {
		assert.True(t, validEmail(addr), addr)
	}

	invalid := []string{
		"",
		"not-an-email",
		"user@",
		"@example.com",
		"user@localhost",
		"User Name <user@example.com>",
	}
	for _, addr := range invalid {
		assert.False(t, validEmail(addr), addr)
	}
}

func TestValidURL(t *testing.T) {
	t.Parallel()

	assert.True(t, validURL("https://example.com/path?q=1"))
	assert.True(t, validURL("http://example.com"))
	assert.False(t, validURL("ftp://example.com"))
	assert.False(t, validURL("example.com"))
	assert.False(t, validURL("https://"))
	assert.False(t, validURL(""))
}

func TestMessageValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid message", func(t *testing.T) {
		t.Parallel()

		m := Message{To: "user@example.com", Subject: "Hi", HTML: "<p>Hi</p>"}
		assert.NoError(t, m.validate())
	})

	t.Run("collects every violation", func(t *testing.T) {
		t.Parallel()

		m := Message{To: "bad", ReplyTo: "also-bad"}
		fields := fieldNames(t, m.validate())
		assert.ElementsMatch(t, []string{"to", "subject", "html", "replyTo"}, fields)
	})

	t.Run("subject length limit", func(t *testing.T) {
		t.Parallel()

		m := Message{
			To:      "user@example.com",
			Subject: strings.Repeat("x", 201),
			HTML:    "<p>Hi</p>",
		}
		assert.Contains(t, fieldNames(t, m.validate()), "subject")

		m.Subject = strings.Repeat("x", 200)
		assert.NoError(t, m.validate())
	})

	t.Run("attachment without filename", func(t *testing.T) {
		t.Parallel()

		m := Message{
			To:          "user@example.com",
			Subject:     "Hi",
			HTML:        "<p>Hi</p>",
			Attachments: []Attachment{{Content: "aGVsbG8="}},
		}
		assert.Contains(t, fieldNames(t, m.validate()), "attachments")
	})
}

func TestContactDataValidate(t *testing.T) {
	t.Parallel()

	valid := ContactData{
		Name:       "Jane Doe",
		Email:      "jane@example.com",
		Subject:    "Hello",
		Message:    "A question about your pricing.",
		AdminEmail: "admin@example.com",
	}
	assert.NoError(t, valid.validate())

	invalid := ContactData{Name: "J", Email: "bad", Message: "short"}
	fields := fieldNames(t, invalid.validate())
	assert.ElementsMatch(t, []string{"name", "email", "subject", "message", "adminEmail"}, fields)
}

func TestWelcomeDataValidate(t *testing.T) {
	t.Parallel()

	valid := WelcomeData{To: "new@example.com", UserName: "Sam"}
	assert.NoError(t, valid.validate())

	valid.ActivationURL = "https://example.com/activate"
	assert.NoError(t, valid.validate())

	valid.ActivationURL = "not a url"
	assert.Contains(t, fieldNames(t, valid.validate()), "activationUrl")
}

func TestPasswordResetDataValidate(t *testing.T) {
	t.Parallel()

	valid := PasswordResetData{
		To:        "user@example.com",
		UserName:  "Sam",
		ResetURL:  "https://example.com/reset/x",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}
	assert.NoError(t, valid.validate())

	invalid := PasswordResetData{To: "user@example.com", UserName: "Sam"}
	fields := fieldNames(t, invalid.validate())
	assert.ElementsMatch(t, []string{"resetUrl", "expiresAt"}, fields)
}

func TestNewsletterDataValidate(t *testing.T) {
	t.Parallel()

	valid := NewsletterData{
		To:             "sub@example.com",
		Subject:        "Issue 7",
		Content:        "# Hello",
		UnsubscribeURL: "https://example.com/unsub",
	}
	assert.NoError(t, valid.validate())

	invalid := valid
	invalid.UnsubscribeURL = ""
	assert.Contains(t, fieldNames(t, invalid.validate()), "unsubscribeUrl")
}
