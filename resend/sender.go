package resend

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/resend/resend-go/v3"

	"github.com/International-Combat-Archery-Alliance/mailer"
)

var _ mailer.Transport = &Transport{}

// Config holds Resend credentials.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	APIKey string `env:"RESEND_API_KEY"`
}

// EmailSender is the part of the Resend SDK the transport uses.
type EmailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type Transport struct {
	emails EmailSender
}

func New(cfg Config) (*Transport, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, mailer.NewConfigurationError("Resend API key is required", nil)
	}
	return NewWithSender(resend.NewClient(cfg.APIKey).Emails), nil
}

func NewWithSender(emails EmailSender) *Transport {
	return &Transport{emails: emails}
}

// Transmit sends e through Resend. Resend has no per-recipient accounting,
// so a successful call reports every recipient as accepted.
func (s *Transport) Transmit(ctx context.Context, e mailer.Email) (mailer.Transmission, error) {
	if e.UsesTemplate() {
		return mailer.Transmission{}, mailer.NewValidationError("Resend transport does not support stored templates", nil)
	}

	req := &resend.SendEmailRequest{
		From:    e.FromAddress,
		To:      e.ToAddresses,
		Subject: e.Subject,
		Html:    e.HTMLBody,
		Text:    e.TextBody,
		Cc:      e.CCAddresses,
		Bcc:     e.BCCAddresses,
	}
	if len(e.ReplyToAddresses) > 0 {
		req.ReplyTo = e.ReplyToAddresses[0]
	}

	if len(e.Attachments) > 0 {
		req.Attachments = convertAttachments(e.Attachments)
	}

	if tags := convertTags(e); len(tags) > 0 {
		req.Tags = tags
	}

	sent, err := s.emails.SendWithContext(ctx, req)
	if err != nil {
		return mailer.Transmission{}, mailer.NewServiceError("resend: failed to send email", err).
			WithAPIDetails("", err.Error(), "")
	}

	var id string
	if sent != nil {
		id = sent.Id
	}
	return mailer.Transmission{ID: id, Accepted: len(e.Recipients())}, nil
}

func convertAttachments(attachments []mailer.Attachment) []*resend.Attachment {
	result := make([]*resend.Attachment, len(attachments))
	for i, a := range attachments {
		result[i] = &resend.Attachment{
			Filename:    a.FileName,
			Content:     a.Content,
			ContentType: a.ContentType,
		}
	}
	return result
}

// convertTags maps the campaign id and metadata onto Resend tags.
func convertTags(e mailer.Email) []resend.Tag {
	tags := make([]resend.Tag, 0, len(e.Metadata)+1)
	if e.CampaignID != "" {
		tags = append(tags, resend.Tag{Name: "campaign", Value: e.CampaignID})
	}
	for name, value := range e.Metadata {
		tags = append(tags, resend.Tag{Name: name, Value: tagValue(value)})
	}
	return tags
}

func tagValue(v any) string {
	switch val := v.(type) {
	case nil, struct{}:
		return "true"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
