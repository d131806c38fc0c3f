package smtp

// Config holds SMTP transport configuration.
// Embed this in your app config for env parsing with caarlos0/env.
// An empty Host means the provider is not configured.
type Config struct {
	Host        string `env:"SMTP_HOST"`
	Port        int    `env:"SMTP_PORT" envDefault:"587"`
	Secure      bool   `env:"SMTP_SECURE" envDefault:"false"` // implicit TLS (port 465 style)
	User        string `env:"SMTP_USER"`
	Pass        string `env:"SMTP_PASS"`
	SenderEmail string `env:"EMAIL_FROM"`
	SenderName  string `env:"EMAIL_FROM_NAME"`
}

// Configured reports whether this provider can be constructed.
func (c Config) Configured() bool {
	return c.Host != ""
}
