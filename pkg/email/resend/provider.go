package resend

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/resend/resend-go/v3"

	"github.com/dmitrymomot/courier/pkg/email"
)

// ProviderName identifies this transport in delivery results and tracking
// records.
const ProviderName = "resend"

// Provider implements email.Provider using the Resend API.
type Provider struct {
	client *resend.Client
	config Config
}

// New creates a Resend provider. Returns an error when the config carries
// no API key; callers treat an unconfigured provider as absent, not broken.
func New(cfg Config) (*Provider, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("resend: API key is required")
	}
	return &Provider{
		client: resend.NewClient(cfg.APIKey),
		config: cfg,
	}, nil
}

// Name implements email.Provider.
func (p *Provider) Name() string { return ProviderName }

// Send implements email.Provider. It performs exactly one API call; retries
// belong to the orchestrator.
func (p *Provider) Send(ctx context.Context, msg *email.Message) (string, error) {
	from := msg.From
	if from == "" {
		if p.config.SenderName != "" {
			from = fmt.Sprintf("%s <%s>", p.config.SenderName, p.config.SenderEmail)
		} else {
			from = p.config.SenderEmail
		}
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	}

	if len(msg.Attachments) > 0 {
		attachments, err := convertAttachments(msg.Attachments)
		if err != nil {
			return "", &email.ProviderError{
				Provider: ProviderName,
				Code:     "invalid_attachment",
				Message:  err.Error(),
				Err:      err,
			}
		}
		req.Attachments = attachments
	}

	resp, err := p.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", &email.ProviderError{
			Provider: ProviderName,
			Code:     "send_failed",
			Message:  err.Error(),
			Err:      err,
		}
	}

	return resp.Id, nil
}

// Healthy implements email.Provider. The Resend API has no cheap probe
// endpoint, so a constructed client is reported usable.
func (p *Provider) Healthy(context.Context) error {
	if p.client == nil {
		return fmt.Errorf("resend: client not initialized")
	}
	return nil
}

func convertAttachments(attachments []email.Attachment) ([]*resend.Attachment, error) {
	result := make([]*resend.Attachment, len(attachments))
	for i, a := range attachments {
		content, err := base64.StdEncoding.DecodeString(a.Content)
		if err != nil {
			return nil, fmt.Errorf("decode attachment %q: %w", a.Filename, err)
		}
		result[i] = &resend.Attachment{
			Filename:    a.Filename,
			Content:     content,
			ContentType: a.ContentType,
		}
	}
	return result, nil
}
