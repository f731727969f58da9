package mailer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// LogCategory labels every record the Transmitter logs.
const LogCategory = "mailer.transmitter"

// Outcome is the result of a single Send call.
type Outcome struct {
	TransmissionID string
	Accepted       int
	Rejected       int
	// Succeeded is true iff at least one recipient was accepted.
	Succeeded bool
	// Err is set only when every attempt failed at the transport level.
	Err *Error
}

type Option func(*Transmitter)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Transmitter) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Transmitter sends messages through a Transport, retrying transport
// failures up to the configured limit.
type Transmitter struct {
	transport       Transport
	retryLimit      int
	developmentMode bool
	logger          *slog.Logger

	mu   sync.Mutex
	last Outcome
}

func NewTransmitter(transport Transport, cfg Config, opts ...Option) (*Transmitter, error) {
	if transport == nil {
		return nil, NewConfigurationError("transport is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Transmitter{
		transport:       transport,
		retryLimit:      cfg.RetryLimit,
		developmentMode: cfg.DevelopmentMode,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(slog.String("category", LogCategory))

	return t, nil
}

// Send transmits e, making at most RetryLimit+1 attempts. Rejected
// recipients and empty recipient lists are reported through the Outcome.
// An error is returned only when all attempts failed and the Transmitter
// runs in development mode.
func (t *Transmitter) Send(ctx context.Context, e Email) (Outcome, error) {
	t.record(Outcome{})

	if !e.HasRecipients() {
		t.logger.WarnContext(ctx, "message has no recipients, nothing sent",
			slog.String("subject", e.Subject),
		)
		return Outcome{}, nil
	}

	var lastErr *Error
	attempts := t.retryLimit + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		tx, err := t.transport.Transmit(ctx, e)
		if err == nil {
			return t.record(t.classify(ctx, tx)), nil
		}

		lastErr = asError(err)
		t.record(Outcome{Err: lastErr})

		if ctx.Err() != nil {
			break
		}
	}

	t.logger.ErrorContext(ctx, "transmission failed after all attempts",
		slog.Int("attempts", attempts),
		slog.String("error", lastErr.Message),
		slog.String("api_code", lastErr.Code),
		slog.String("api_message", lastErr.APIMessage),
		slog.String("api_description", lastErr.Description),
	)

	outcome := t.record(Outcome{Err: lastErr})
	if t.developmentMode {
		return outcome, lastErr
	}
	return outcome, nil
}

func (t *Transmitter) classify(ctx context.Context, tx Transmission) Outcome {
	outcome := Outcome{
		TransmissionID: tx.ID,
		Accepted:       max(tx.Accepted, 0),
		Rejected:       max(tx.Rejected, 0),
	}

	if outcome.Rejected > 0 {
		t.logger.InfoContext(ctx, "recipients rejected",
			slog.String("transmission_id", outcome.TransmissionID),
			slog.Int("rejected", outcome.Rejected),
		)
	}

	if outcome.Accepted == 0 {
		t.logger.InfoContext(ctx, "no recipients accepted",
			slog.String("transmission_id", outcome.TransmissionID),
		)
		return outcome
	}

	outcome.Succeeded = true
	return outcome
}

func (t *Transmitter) record(o Outcome) Outcome {
	t.mu.Lock()
	t.last = o
	t.mu.Unlock()
	return o
}

// LastOutcome returns the outcome of the most recent Send. With concurrent
// sends it reflects whichever call finished last; prefer the value Send returns.
func (t *Transmitter) LastOutcome() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *Transmitter) LastTransmissionID() string {
	return t.LastOutcome().TransmissionID
}

func (t *Transmitter) SentCount() int {
	return t.LastOutcome().Accepted
}

func (t *Transmitter) RejectedCount() int {
	return t.LastOutcome().Rejected
}

func (t *Transmitter) LastError() error {
	if err := t.LastOutcome().Err; err != nil {
		return err
	}
	return nil
}

func asError(err error) *Error {
	var mErr *Error
	if errors.As(err, &mErr) {
		return mErr
	}
	return NewUnknownError("transport failed", err)
}
