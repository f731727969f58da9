package mailer

import (
	"fmt"
	"maps"
	"net/mail"
	"strings"
)

// ComposeParams describes a message before sender defaults are applied.
type ComposeParams struct {
	From    string
	To      []string
	CC      []string
	BCC     []string
	ReplyTo []string
	Subject string
	HTML    string
	Text    string

	TemplateID       string
	SubstitutionData map[string]any
	CampaignID       string
	Metadata         map[string]any
	Transactional    bool
	// Sandbox forces sandbox mode for this message even when the config does not.
	Sandbox bool

	Attachments []Attachment
}

// Builder composes messages with the configured sender defaults.
type Builder struct {
	config Config
	from   string
}

func NewBuilder(cfg Config) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Builder{
		config: cfg,
		from:   cfg.DefaultSender(),
	}, nil
}

func (b *Builder) Compose(p ComposeParams) (Email, error) {
	e := Email{
		FromAddress:      p.From,
		ToAddresses:      uniqueAddresses(p.To, nil),
		Subject:          p.Subject,
		HTMLBody:         p.HTML,
		TextBody:         p.Text,
		TemplateID:       p.TemplateID,
		SubstitutionData: b.substitutionData(p.SubstitutionData),
		CampaignID:       p.CampaignID,
		Metadata:         p.Metadata,
		Transactional:    p.Transactional,
		Sandbox:          b.config.Sandbox || p.Sandbox,
		Attachments:      p.Attachments,
	}

	seen := make(map[string]struct{}, len(e.ToAddresses))
	for _, addr := range e.ToAddresses {
		seen[normalizeAddress(addr)] = struct{}{}
	}
	e.CCAddresses = uniqueAddresses(p.CC, seen)
	e.BCCAddresses = uniqueAddresses(p.BCC, seen)

	if e.FromAddress == "" {
		e.FromAddress = b.from
	}

	e.ReplyToAddresses = p.ReplyTo
	if len(e.ReplyToAddresses) == 0 && b.config.DefaultReplyTo != "" {
		e.ReplyToAddresses = []string{b.config.DefaultReplyTo}
	}

	if err := b.validate(e); err != nil {
		return Email{}, err
	}

	return e, nil
}

func (b *Builder) substitutionData(data map[string]any) map[string]any {
	if len(b.config.DefaultSubstitutionData) == 0 && len(data) == 0 {
		return nil
	}

	merged := make(map[string]any, len(b.config.DefaultSubstitutionData)+len(data))
	maps.Copy(merged, b.config.DefaultSubstitutionData)
	maps.Copy(merged, data)
	return merged
}

func (b *Builder) validate(e Email) error {
	if e.FromAddress == "" {
		return NewValidationError("from address is required", nil)
	}

	from, err := mail.ParseAddress(e.FromAddress)
	if err != nil {
		return NewInvalidEmailError("invalid from address format", err)
	}

	for _, addr := range append(e.Recipients(), e.ReplyToAddresses...) {
		if _, err := mail.ParseAddress(addr); err != nil {
			return NewInvalidEmailError(fmt.Sprintf("invalid address: %s", addr), err)
		}
	}

	if !e.UsesTemplate() {
		if e.Subject == "" {
			return NewValidationError("subject is required", nil)
		}
		if e.HTMLBody == "" && e.TextBody == "" {
			return NewValidationError("email body is required (HTML, text or template)", nil)
		}
	}

	if e.Sandbox && b.config.SandboxDomain != "" && !strings.EqualFold(domainOf(from.Address), b.config.SandboxDomain) {
		return NewValidationError(fmt.Sprintf("sandbox messages must be sent from a %s address", b.config.SandboxDomain), nil)
	}

	return nil
}

// uniqueAddresses drops duplicates (and anything already in seen) while
// keeping the first occurrence's position.
func uniqueAddresses(addrs []string, seen map[string]struct{}) []string {
	if len(addrs) == 0 {
		return nil
	}
	if seen == nil {
		seen = make(map[string]struct{}, len(addrs))
	}

	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		key := normalizeAddress(addr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(addr))
	}
	return out
}

func normalizeAddress(addr string) string {
	if parsed, err := mail.ParseAddress(addr); err == nil {
		return strings.ToLower(parsed.Address)
	}
	return strings.ToLower(strings.TrimSpace(addr))
}

func domainOf(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return ""
	}
	return addr[at+1:]
}
