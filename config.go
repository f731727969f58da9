package mailer

import (
	"fmt"
	"net/mail"
)

const (
	DefaultRetryLimit    = 5
	DefaultSandboxDomain = "sparkpostbox.com"
)

// Config holds the process-wide mailer settings.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	// RetryLimit is the number of extra attempts after the first failed one.
	RetryLimit      int    `env:"MAILER_RETRY_LIMIT" envDefault:"5"`
	DevelopmentMode bool   `env:"MAILER_DEVELOPMENT_MODE" envDefault:"true"`
	Sandbox         bool   `env:"MAILER_SANDBOX" envDefault:"false"`
	SandboxDomain   string `env:"MAILER_SANDBOX_DOMAIN" envDefault:"sparkpostbox.com"`

	UseDefaultEmail    bool   `env:"MAILER_USE_DEFAULT_EMAIL" envDefault:"true"`
	DefaultSenderEmail string `env:"MAILER_DEFAULT_EMAIL"`
	DefaultSenderName  string `env:"MAILER_DEFAULT_NAME"`
	DefaultReplyTo     string `env:"MAILER_DEFAULT_REPLY_TO"`
	// AdminEmail is the application-wide fallback sender used when
	// UseDefaultEmail is set and DefaultSenderEmail is empty.
	AdminEmail string `env:"APP_ADMIN_EMAIL"`

	// DefaultSubstitutionData is merged into every composed message.
	DefaultSubstitutionData map[string]any
}

func DefaultConfig() Config {
	return Config{
		RetryLimit:      DefaultRetryLimit,
		DevelopmentMode: true,
		SandboxDomain:   DefaultSandboxDomain,
		UseDefaultEmail: true,
	}
}

func (c Config) Validate() error {
	if c.RetryLimit < 0 {
		return NewConfigurationError(fmt.Sprintf("retry limit must not be negative, got %d", c.RetryLimit), nil)
	}

	if c.DefaultReplyTo != "" {
		if _, err := mail.ParseAddress(c.DefaultReplyTo); err != nil {
			return NewConfigurationError(fmt.Sprintf("invalid default reply-to: %s", c.DefaultReplyTo), err)
		}
	}

	if !c.UseDefaultEmail {
		return nil
	}

	sender := c.senderEmail()
	if sender == "" {
		return NewConfigurationError("default sender email or admin email is required when default email is enabled", nil)
	}
	if _, err := mail.ParseAddress(sender); err != nil {
		return NewConfigurationError(fmt.Sprintf("invalid default sender email: %s", sender), err)
	}

	return nil
}

func (c Config) senderEmail() string {
	if c.DefaultSenderEmail != "" {
		return c.DefaultSenderEmail
	}
	return c.AdminEmail
}

// DefaultSender returns the formatted default From address, or "" when
// default email is disabled.
func (c Config) DefaultSender() string {
	if !c.UseDefaultEmail {
		return ""
	}

	addr := c.senderEmail()
	if addr == "" || c.DefaultSenderName == "" {
		return addr
	}
	return (&mail.Address{Name: c.DefaultSenderName, Address: addr}).String()
}
