// Package logsink provides a Transport that logs messages instead of
// sending them. Use it in local development and tests.
package logsink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/International-Combat-Archery-Alliance/mailer"
)

var _ mailer.Transport = &Transport{}

type Transport struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Transport {
	return &Transport{logger: logger}
}

// Transmit logs e and returns a fake transmission id. Every recipient counts
// as accepted.
func (l *Transport) Transmit(ctx context.Context, e mailer.Email) (mailer.Transmission, error) {
	id := fmt.Sprintf("log-%s", uuid.New().String())

	l.logger.InfoContext(ctx, "mailer: email logged (not sent)",
		slog.String("transport", "log"),
		slog.String("transmission_id", id),
		slog.String("from", e.FromAddress),
		slog.String("to", strings.Join(e.Recipients(), ", ")),
		slog.String("subject", e.Subject),
		slog.String("template_id", e.TemplateID),
		slog.Any("substitution_data", e.SubstitutionData),
		slog.Bool("sandbox", e.Sandbox),
		slog.Int("html_length", len(e.HTMLBody)),
		slog.Int("text_length", len(e.TextBody)),
		slog.Int("attachments", len(e.Attachments)),
	)
	if e.TextBody != "" {
		l.logger.DebugContext(ctx, "mailer: email text body", slog.String("text", e.TextBody))
	}

	return mailer.Transmission{ID: id, Accepted: len(e.Recipients())}, nil
}
