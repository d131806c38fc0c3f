package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/email"
)

// ProviderName identifies this transport in delivery results and tracking
// records.
const ProviderName = "smtp"

// Dialer abstracts net.Dialer so tests can intercept the connection.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Option configures the provider.
type Option func(*Provider)

// WithDialer swaps the network dialer used to reach the SMTP server.
func WithDialer(d Dialer) Option {
	return func(p *Provider) {
		if d != nil {
			p.dialer = d
		}
	}
}

// WithTLSConfig overrides the TLS configuration used for implicit TLS and
// STARTTLS sessions.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(p *Provider) {
		if cfg != nil {
			p.tlsConfig = cfg
		}
	}
}

// WithClock replaces the clock used for Date headers.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// Provider implements email.Provider over an SMTP transport.
type Provider struct {
	config    Config
	auth      smtp.Auth
	tlsConfig *tls.Config
	dialer    Dialer
	now       func() time.Time
}

// New creates an SMTP provider. Returns an error when the config carries no
// host; callers treat an unconfigured provider as absent, not broken.
func New(cfg Config, opts ...Option) (*Provider, error) {
	if !cfg.Configured() {
		return nil, errors.New("smtp: host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("smtp: invalid port %d", cfg.Port)
	}

	p := &Provider{
		config: cfg,
		dialer: &net.Dialer{Timeout: 30 * time.Second},
		now:    time.Now,
		tlsConfig: &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		},
	}

	if cfg.User != "" {
		p.auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Name implements email.Provider.
func (p *Provider) Name() string { return ProviderName }

// Send implements email.Provider. One delivery attempt per call; retries
// belong to the orchestrator.
func (p *Provider) Send(ctx context.Context, msg *email.Message) (string, error) {
	from := msg.From
	if from == "" {
		if p.config.SenderName != "" {
			from = fmt.Sprintf("%q <%s>", p.config.SenderName, p.config.SenderEmail)
		} else {
			from = p.config.SenderEmail
		}
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), p.config.Host)

	raw, err := buildMessage(msg, from, messageID, p.now())
	if err != nil {
		return "", &email.ProviderError{
			Provider: ProviderName,
			Code:     "build_failed",
			Message:  err.Error(),
			Err:      err,
		}
	}

	if err := p.deliver(ctx, p.config.SenderEmail, msg.To, raw); err != nil {
		return "", &email.ProviderError{
			Provider: ProviderName,
			Code:     "send_failed",
			Message:  err.Error(),
			Err:      err,
		}
	}

	return messageID, nil
}

// Healthy implements email.Provider by dialing the server and issuing NOOP.
func (p *Provider) Healthy(ctx context.Context) error {
	client, cleanup, err := p.connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := client.Noop(); err != nil {
		return fmt.Errorf("smtp: noop: %w", err)
	}
	return nil
}

func (p *Provider) deliver(ctx context.Context, envelopeFrom, recipient string, message []byte) error {
	client, cleanup, err := p.connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := client.Mail(envelopeFrom); err != nil {
		return fmt.Errorf("smtp: mail from: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("smtp: rcpt to: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp: data: %w", err)
	}
	if _, err := writer.Write(message); err != nil {
		_ = writer.Close()
		return fmt.Errorf("smtp: data write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp: data close: %w", err)
	}

	if err := client.Quit(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("smtp: quit: %w", err)
	}

	return ctx.Err()
}

// connect dials the server, negotiates TLS (implicit when Secure, STARTTLS
// when advertised otherwise) and authenticates. The returned cleanup closes
// the session.
func (p *Provider) connect(ctx context.Context) (*smtp.Client, func(), error) {
	addr := net.JoinHostPort(p.config.Host, strconv.Itoa(p.config.Port))

	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("smtp: dial: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if p.config.Secure {
		conn = tls.Client(conn, p.tlsConfig)
	}

	client, err := smtp.NewClient(conn, p.config.Host)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("smtp: new client: %w", err)
	}
	cleanup := func() { _ = client.Close() }

	if !p.config.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(p.tlsConfig); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("smtp: starttls: %w", err)
			}
		}
	}

	if p.auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(p.auth); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("smtp: auth: %w", err)
			}
		}
	}

	return client, cleanup, nil
}
