package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/International-Combat-Archery-Alliance/mailer"
)

var _ mailer.Transport = &Transport{}

// MessageSender is the part of the Gmail API the transport uses.
type MessageSender interface {
	Send(ctx context.Context, userID string, message *gmail.Message) (*gmail.Message, error)
}

type serviceSender struct {
	service *gmail.Service
}

func (s serviceSender) Send(ctx context.Context, userID string, message *gmail.Message) (*gmail.Message, error) {
	return s.service.Users.Messages.Send(userID, message).Context(ctx).Do()
}

type Transport struct {
	sender MessageSender
	userID string
}

func NewTransport(ctx context.Context, credentialsJSON []byte, userEmail string) (*Transport, error) {
	config, err := google.JWTConfigFromJSON(credentialsJSON, gmail.GmailSendScope)
	if err != nil {
		return nil, mailer.NewConfigurationError("unable to parse service account file", err)
	}

	config.Subject = userEmail

	service, err := gmail.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, mailer.NewConfigurationError("unable to create Gmail client", err)
	}

	return NewTransportWithSender(serviceSender{service: service}), nil
}

func NewTransportWithSender(sender MessageSender) *Transport {
	return &Transport{
		sender: sender,
		userID: "me",
	}
}

// Transmit sends e as a raw MIME message. Gmail accepts or rejects the
// message as a whole, so every recipient counts as accepted on success.
func (g *Transport) Transmit(ctx context.Context, e mailer.Email) (mailer.Transmission, error) {
	if e.UsesTemplate() {
		return mailer.Transmission{}, mailer.NewValidationError("Gmail does not support stored templates", nil)
	}

	message := g.createMessage(e)

	sent, err := g.sender.Send(ctx, g.userID, message)
	if err != nil {
		return mailer.Transmission{}, g.mapGmailError(err)
	}

	var id string
	if sent != nil {
		id = sent.Id
	}
	return mailer.Transmission{
		ID:       id,
		Accepted: len(e.Recipients()),
	}, nil
}

func (g *Transport) createMessage(e mailer.Email) *gmail.Message {
	headers := []string{
		fmt.Sprintf("From: %s", e.FromAddress),
		fmt.Sprintf("To: %s", strings.Join(e.ToAddresses, ", ")),
		fmt.Sprintf("Subject: %s", mime.QEncoding.Encode("utf-8", e.Subject)),
		"MIME-Version: 1.0",
	}

	if len(e.CCAddresses) > 0 {
		headers = append(headers, fmt.Sprintf("Cc: %s", strings.Join(e.CCAddresses, ", ")))
	}

	if len(e.BCCAddresses) > 0 {
		headers = append(headers, fmt.Sprintf("Bcc: %s", strings.Join(e.BCCAddresses, ", ")))
	}

	if len(e.ReplyToAddresses) > 0 {
		headers = append(headers, fmt.Sprintf("Reply-To: %s", strings.Join(e.ReplyToAddresses, ", ")))
	}

	var body string
	if e.HTMLBody != "" && e.TextBody != "" {
		boundary := "boundary123456789"
		headers = append(headers, fmt.Sprintf("Content-Type: multipart/alternative; boundary=%s", boundary))

		body = fmt.Sprintf(`
--%s
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: 8bit

%s

--%s
Content-Type: text/html; charset=utf-8
Content-Transfer-Encoding: 8bit

%s

--%s--`, boundary, e.TextBody, boundary, e.HTMLBody, boundary)
	} else if e.HTMLBody != "" {
		headers = append(headers, "Content-Type: text/html; charset=utf-8")
		headers = append(headers, "Content-Transfer-Encoding: 8bit")
		body = e.HTMLBody
	} else {
		headers = append(headers, "Content-Type: text/plain; charset=utf-8")
		headers = append(headers, "Content-Transfer-Encoding: 8bit")
		body = e.TextBody
	}

	if len(e.Attachments) > 0 {
		return g.createMessageWithAttachments(headers, body, e.Attachments)
	}

	raw := strings.Join(headers, "\r\n") + "\r\n\r\n" + body

	return &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}
}

func (g *Transport) createMessageWithAttachments(headers []string, body string, attachments []mailer.Attachment) *gmail.Message {
	boundary := "mixed_boundary_123456789"

	// The body part keeps the original content type; the message itself becomes multipart/mixed.
	bodyHeaders := []string{"Content-Type: text/plain; charset=utf-8"}
	kept := headers[:0]
	for _, header := range headers {
		switch {
		case strings.HasPrefix(header, "Content-Type:"):
			bodyHeaders[0] = header
		case strings.HasPrefix(header, "Content-Transfer-Encoding:"):
		default:
			kept = append(kept, header)
		}
	}
	headers = append(kept, fmt.Sprintf("Content-Type: multipart/mixed; boundary=%s", boundary))

	parts := []string{fmt.Sprintf(`--%s
%s
Content-Transfer-Encoding: 8bit

%s`, boundary, bodyHeaders[0], body)}

	for _, attachment := range attachments {
		encodedContent := base64.StdEncoding.EncodeToString(attachment.Content)

		attachmentPart := fmt.Sprintf(`--%s
Content-Type: %s; name="%s"
Content-Disposition: attachment; filename="%s"
Content-Transfer-Encoding: base64

%s`, boundary, attachment.ContentType, attachment.FileName, attachment.FileName, encodedContent)
		parts = append(parts, attachmentPart)
	}

	parts = append(parts, fmt.Sprintf("--%s--", boundary))

	raw := strings.Join(headers, "\r\n") + "\r\n\r\n" + strings.Join(parts, "\r\n")

	return &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}
}

func (g *Transport) mapGmailError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return categorizeAPIError(apiErr, err).WithAPIDetails(strconv.Itoa(apiErr.Code), apiErr.Message, errorReason(apiErr))
	}

	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "context") && strings.Contains(lower, "deadline") {
		return mailer.NewServiceError("Request timeout", err)
	}

	if strings.Contains(lower, "connection") || strings.Contains(lower, "network") {
		return mailer.NewServiceError("Network error", err)
	}

	return mailer.NewUnknownError("Gmail API error", err)
}

func categorizeAPIError(apiErr *googleapi.Error, err error) *mailer.Error {
	msg := strings.ToLower(apiErr.Message)

	switch apiErr.Code {
	case 400:
		if strings.Contains(msg, "invalid") &&
			(strings.Contains(msg, "recipient") || strings.Contains(msg, "email") || strings.Contains(msg, "address")) {
			return mailer.NewInvalidEmailError("Invalid email address", err)
		}
		if strings.Contains(msg, "malformed") || strings.Contains(msg, "encoding") {
			return mailer.NewValidationError("Invalid message format", err)
		}
		if strings.Contains(msg, "too large") || strings.Contains(msg, "size") {
			return mailer.NewValidationError("Message too large", err)
		}
		return mailer.NewValidationError("Invalid request parameters", err)

	case 401:
		return mailer.NewAuthenticationError("Authentication failed - check service account credentials", err)

	case 403:
		if strings.Contains(msg, "scope") || strings.Contains(msg, "permission") {
			return mailer.NewAuthenticationError("Insufficient permissions to send email", err)
		}
		if strings.Contains(msg, "domain") {
			return mailer.NewUnverifiedDomainError("Domain policy prevents sending", err)
		}
		if strings.Contains(msg, "blocked") {
			return mailer.NewMessageRejectedError("Sender blocked by recipient", err)
		}
		return mailer.NewAuthenticationError("Permission denied", err)

	case 429:
		if strings.Contains(msg, "quota") {
			return mailer.NewRateLimitedError("Gmail API quota exceeded", err)
		}
		return mailer.NewRateLimitedError("Gmail API rate limit exceeded", err)

	case 500:
		return mailer.NewServiceError("Internal Gmail server error", err)

	case 503:
		return mailer.NewServiceError("Gmail service temporarily unavailable", err)

	case 504:
		return mailer.NewServiceError("Gmail API request timeout", err)

	default:
		return mailer.NewServiceError(fmt.Sprintf("Gmail API error (HTTP %d)", apiErr.Code), err)
	}
}

func errorReason(apiErr *googleapi.Error) string {
	if len(apiErr.Errors) > 0 {
		return apiErr.Errors[0].Reason
	}
	return ""
}
