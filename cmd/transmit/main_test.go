package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/International-Combat-Archery-Alliance/mailer"
	"github.com/International-Combat-Archery-Alliance/mailer/logsink"
)

func TestParseFlags(t *testing.T) {
	p, err := parseFlags([]string{
		"-to", "a@example.com, b@example.com",
		"-to", "c@example.com",
		"-cc", "d@example.com",
		"-subject", "Tournament",
		"-text", "See you there",
		"-template", "welcome",
		"-sub", "name=Robin",
		"-sub", "link=https://example.com/?a=b",
		"-sandbox",
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, p.To)
	assert.Equal(t, []string{"d@example.com"}, p.CC)
	assert.Equal(t, "Tournament", p.Subject)
	assert.Equal(t, "See you there", p.Text)
	assert.Equal(t, "welcome", p.TemplateID)
	assert.Equal(t, map[string]any{"name": "Robin", "link": "https://example.com/?a=b"}, p.SubstitutionData)
	assert.True(t, p.Sandbox)
	assert.True(t, p.Transactional)
}

func TestParseFlags_InvalidSubstitution(t *testing.T) {
	var out bytes.Buffer
	_, err := parseFlags([]string{"-sub", "novalue"}, &out)
	assert.Error(t, err)
	assert.Contains(t, out.String(), "key=value")
}

func TestNewTransport(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tr, err := newTransport(context.Background(), config{Transport: "log"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &logsink.Transport{}, tr)

	tests := []struct {
		name string
		cfg  config
	}{
		{name: "unknown transport", cfg: config{Transport: "carrier-pigeon"}},
		{name: "sparkpost without api key", cfg: config{Transport: "sparkpost"}},
		{name: "resend without api key", cfg: config{Transport: "resend"}},
		{name: "gmail without credentials", cfg: config{Transport: "gmail"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTransport(context.Background(), tt.cfg, logger)

			var mErr *mailer.Error
			require.ErrorAs(t, err, &mErr)
			assert.Equal(t, mailer.REASON_CONFIGURATION, mErr.Reason)
		})
	}
}

func TestRun_LogTransport(t *testing.T) {
	t.Setenv("MAILER_TRANSPORT", "log")
	t.Setenv("MAILER_DEFAULT_EMAIL", "noreply@example.com")
	t.Setenv("MAILER_RETRY_LIMIT", "2")
	t.Setenv("LOG_LEVEL", "error")

	code := run(context.Background(), []string{"-to", "a@example.com", "-subject", "Hi", "-text", "Hello"}, io.Discard)
	assert.Equal(t, exitOK, code)
}

func TestRun_NoRecipients(t *testing.T) {
	t.Setenv("MAILER_TRANSPORT", "log")
	t.Setenv("MAILER_DEFAULT_EMAIL", "noreply@example.com")
	t.Setenv("LOG_LEVEL", "error")

	code := run(context.Background(), []string{"-subject", "Hi", "-text", "Hello"}, io.Discard)
	assert.Equal(t, exitNotDelivered, code)
}

func TestRun_MissingDefaultSender(t *testing.T) {
	t.Setenv("MAILER_TRANSPORT", "log")
	t.Setenv("MAILER_DEFAULT_EMAIL", "")
	t.Setenv("APP_ADMIN_EMAIL", "")
	t.Setenv("LOG_LEVEL", "error")

	code := run(context.Background(), []string{"-to", "a@example.com", "-subject", "Hi", "-text", "Hello"}, io.Discard)
	assert.Equal(t, exitError, code)
}
