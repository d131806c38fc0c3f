package resend

// Config holds Resend email provider configuration.
// Embed this in your app config for env parsing with caarlos0/env.
// An empty APIKey means the provider is not configured.
type Config struct {
	APIKey      string `env:"RESEND_API_KEY"`
	SenderEmail string `env:"EMAIL_FROM"`
	SenderName  string `env:"EMAIL_FROM_NAME"`
}

// Configured reports whether this provider can be constructed.
func (c Config) Configured() bool {
	return c.APIKey != ""
}
