package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/International-Combat-Archery-Alliance/mailer"
)

// Mock Gmail service for testing
type mockMessageSender struct {
	sendFunc func(ctx context.Context, userID string, message *gmail.Message) (*gmail.Message, error)
	sent     []*gmail.Message
}

func (m *mockMessageSender) Send(ctx context.Context, userID string, message *gmail.Message) (*gmail.Message, error) {
	m.sent = append(m.sent, message)
	if m.sendFunc != nil {
		return m.sendFunc(ctx, userID, message)
	}
	return &gmail.Message{Id: "mock-message-id"}, nil
}

func decodeRaw(t *testing.T, message *gmail.Message) string {
	t.Helper()

	raw, err := base64.URLEncoding.DecodeString(message.Raw)
	if err != nil {
		t.Fatalf("failed to decode raw message: %v", err)
	}
	return string(raw)
}

func TestTransmit_Success(t *testing.T) {
	tests := []struct {
		name         string
		email        mailer.Email
		wantContains []string
	}{
		{
			name: "text only",
			email: mailer.Email{
				FromAddress: "sender@example.com",
				ToAddresses: []string{"recipient@example.com"},
				Subject:     "Test Subject",
				TextBody:    "Hello World",
			},
			wantContains: []string{
				"From: sender@example.com",
				"To: recipient@example.com",
				"Content-Type: text/plain; charset=utf-8",
				"Hello World",
			},
		},
		{
			name: "html and text with cc, bcc and reply-to",
			email: mailer.Email{
				FromAddress:      "sender@example.com",
				ToAddresses:      []string{"a@example.com", "b@example.com"},
				CCAddresses:      []string{"cc@example.com"},
				BCCAddresses:     []string{"bcc@example.com"},
				ReplyToAddresses: []string{"reply@example.com"},
				Subject:          "Test Subject",
				HTMLBody:         "<h1>Hello</h1>",
				TextBody:         "Hello",
			},
			wantContains: []string{
				"To: a@example.com, b@example.com",
				"Cc: cc@example.com",
				"Bcc: bcc@example.com",
				"Reply-To: reply@example.com",
				"multipart/alternative",
				"<h1>Hello</h1>",
			},
		},
		{
			name: "with attachment",
			email: mailer.Email{
				FromAddress: "sender@example.com",
				ToAddresses: []string{"recipient@example.com"},
				Subject:     "Test Subject",
				HTMLBody:    "<p>See attached</p>",
				Attachments: []mailer.Attachment{
					{FileName: "ticket.txt", ContentType: "text/plain", Content: []byte("ticket")},
				},
			},
			wantContains: []string{
				"Content-Type: multipart/mixed; boundary=mixed_boundary_123456789",
				"Content-Type: text/html; charset=utf-8",
				`Content-Disposition: attachment; filename="ticket.txt"`,
				"dGlja2V0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockMessageSender{}
			transport := NewTransportWithSender(sender)

			tx, err := transport.Transmit(context.Background(), tt.email)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tx.ID != "mock-message-id" {
				t.Errorf("expected transmission id mock-message-id, got %s", tx.ID)
			}
			if tx.Accepted != len(tt.email.Recipients()) {
				t.Errorf("expected %d accepted, got %d", len(tt.email.Recipients()), tx.Accepted)
			}

			if len(sender.sent) != 1 {
				t.Fatalf("expected 1 message sent, got %d", len(sender.sent))
			}
			raw := decodeRaw(t, sender.sent[0])
			for _, want := range tt.wantContains {
				if !strings.Contains(raw, want) {
					t.Errorf("expected raw message to contain %q\n%s", want, raw)
				}
			}
		})
	}
}

func TestTransmit_AttachmentReplacesTopLevelContentType(t *testing.T) {
	sender := &mockMessageSender{}
	transport := NewTransportWithSender(sender)

	_, err := transport.Transmit(context.Background(), mailer.Email{
		FromAddress: "sender@example.com",
		ToAddresses: []string{"recipient@example.com"},
		Subject:     "Test Subject",
		TextBody:    "Hello",
		Attachments: []mailer.Attachment{{FileName: "a.txt", ContentType: "text/plain", Content: []byte("a")}},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	raw := decodeRaw(t, sender.sent[0])
	headerBlock := strings.SplitN(raw, "\r\n\r\n", 2)[0]
	if strings.Count(headerBlock, "Content-Type:") != 1 {
		t.Errorf("expected a single top-level Content-Type header, got:\n%s", headerBlock)
	}
}

func TestTransmit_TemplateUnsupported(t *testing.T) {
	sender := &mockMessageSender{}
	transport := NewTransportWithSender(sender)

	_, err := transport.Transmit(context.Background(), mailer.Email{
		ToAddresses: []string{"recipient@example.com"},
		TemplateID:  "welcome",
	})

	var mailErr *mailer.Error
	if !errors.As(err, &mailErr) {
		t.Fatalf("expected *mailer.Error, got %T", err)
	}
	if mailErr.Reason != mailer.REASON_VALIDATION_ERROR {
		t.Errorf("expected reason %s, got %s", mailer.REASON_VALIDATION_ERROR, mailErr.Reason)
	}
	if len(sender.sent) != 0 {
		t.Errorf("expected nothing sent, got %d messages", len(sender.sent))
	}
}

func TestTransmit_GmailAPIErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedReason mailer.ErrorReason
		expectedCode   string
	}{
		{
			name:           "invalid recipient",
			err:            &googleapi.Error{Code: 400, Message: "Invalid recipient address"},
			expectedReason: mailer.REASON_INVALID_EMAIL,
			expectedCode:   "400",
		},
		{
			name:           "malformed message",
			err:            &googleapi.Error{Code: 400, Message: "Malformed MIME"},
			expectedReason: mailer.REASON_VALIDATION_ERROR,
			expectedCode:   "400",
		},
		{
			name:           "unauthorized",
			err:            &googleapi.Error{Code: 401, Message: "Invalid credentials"},
			expectedReason: mailer.REASON_AUTHENTICATION,
			expectedCode:   "401",
		},
		{
			name:           "domain policy",
			err:            &googleapi.Error{Code: 403, Message: "Domain policy violation"},
			expectedReason: mailer.REASON_UNVERIFIED_DOMAIN,
			expectedCode:   "403",
		},
		{
			name:           "blocked",
			err:            &googleapi.Error{Code: 403, Message: "Sender blocked"},
			expectedReason: mailer.REASON_MESSAGE_REJECTED,
			expectedCode:   "403",
		},
		{
			name: "quota exceeded",
			err: &googleapi.Error{
				Code:    429,
				Message: "Quota exceeded for quota metric",
				Errors:  []googleapi.ErrorItem{{Reason: "rateLimitExceeded", Message: "Quota exceeded"}},
			},
			expectedReason: mailer.REASON_RATE_LIMITED,
			expectedCode:   "429",
		},
		{
			name:           "service unavailable",
			err:            &googleapi.Error{Code: 503, Message: "Backend Error"},
			expectedReason: mailer.REASON_SERVICE_ERROR,
			expectedCode:   "503",
		},
		{
			name:           "deadline exceeded",
			err:            errors.New("context deadline exceeded"),
			expectedReason: mailer.REASON_SERVICE_ERROR,
		},
		{
			name:           "network failure",
			err:            errors.New("connection refused"),
			expectedReason: mailer.REASON_SERVICE_ERROR,
		},
		{
			name:           "unknown",
			err:            errors.New("boom"),
			expectedReason: mailer.REASON_UNKNOWN,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockMessageSender{
				sendFunc: func(ctx context.Context, userID string, message *gmail.Message) (*gmail.Message, error) {
					return nil, tt.err
				},
			}
			transport := NewTransportWithSender(sender)

			_, err := transport.Transmit(context.Background(), mailer.Email{
				FromAddress: "sender@example.com",
				ToAddresses: []string{"recipient@example.com"},
				Subject:     "Test Subject",
				TextBody:    "Hello",
			})

			var mailErr *mailer.Error
			if !errors.As(err, &mailErr) {
				t.Fatalf("expected *mailer.Error, got %T", err)
			}
			if mailErr.Reason != tt.expectedReason {
				t.Errorf("expected reason %s, got %s", tt.expectedReason, mailErr.Reason)
			}
			if mailErr.Code != tt.expectedCode {
				t.Errorf("expected code %q, got %q", tt.expectedCode, mailErr.Code)
			}

			var apiErr *googleapi.Error
			if errors.As(tt.err, &apiErr) {
				if mailErr.APIMessage != apiErr.Message {
					t.Errorf("expected API message %q, got %q", apiErr.Message, mailErr.APIMessage)
				}
				if len(apiErr.Errors) > 0 && mailErr.Description != apiErr.Errors[0].Reason {
					t.Errorf("expected description %q, got %q", apiErr.Errors[0].Reason, mailErr.Description)
				}
			}
		})
	}
}
