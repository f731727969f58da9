package mailer

import "context"

// Transmission is the provider's report for one accepted API call.
type Transmission struct {
	ID       string
	Accepted int
	Rejected int
}

// Transport hands a message to an email delivery provider. Implementations
// return *Error on failure so callers can read the provider's code and message.
type Transport interface {
	Transmit(ctx context.Context, e Email) (Transmission, error)
}
