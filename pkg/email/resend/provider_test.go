package resend

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/email"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires api key", func(t *testing.T) {
		t.Parallel()

		_, err := New(Config{SenderEmail: "noreply@example.com"})
		require.Error(t, err)
	})

	t.Run("valid config", func(t *testing.T) {
		t.Parallel()

		p, err := New(Config{APIKey: "re_test_key", SenderEmail: "noreply@example.com"})
		require.NoError(t, err)
		assert.Equal(t, ProviderName, p.Name())
		assert.NoError(t, p.Healthy(context.Background()))
	})
}

func TestConfigured(t *testing.T) {
	t.Parallel()

	assert.False(t, Config{}.Configured())
	assert.True(t, Config{APIKey: "re_test_key"}.Configured())
}

func TestConvertAttachments(t *testing.T) {
	t.Parallel()

	t.Run("decodes base64 content", func(t *testing.T) {
		t.Parallel()

		encoded := base64.StdEncoding.EncodeToString([]byte("hello"))
		converted, err := convertAttachments([]email.Attachment{{
			Filename:    "note.txt",
			Content:     encoded,
			ContentType: "text/plain",
		}})
		require.NoError(t, err)
		require.Len(t, converted, 1)
		assert.Equal(t, "note.txt", converted[0].Filename)
		assert.Equal(t, []byte("hello"), converted[0].Content)
	})

	t.Run("rejects malformed content", func(t *testing.T) {
		t.Parallel()

		_, err := convertAttachments([]email.Attachment{{
			Filename: "note.txt",
			Content:  "not base64!!!",
		}})
		require.Error(t, err)
	})
}
