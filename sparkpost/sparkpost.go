package sparkpost

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/International-Combat-Archery-Alliance/mailer"
)

const (
	DefaultBaseURL = "https://api.sparkpost.com/api/v1"
	DefaultTimeout = 30 * time.Second
)

var _ mailer.Transport = &Transport{}

// Config holds SparkPost credentials and endpoint settings.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	APIKey  string        `env:"SPARKPOST_API_KEY"`
	BaseURL string        `env:"SPARKPOST_BASE_URL" envDefault:"https://api.sparkpost.com/api/v1"`
	Timeout time.Duration `env:"SPARKPOST_TIMEOUT" envDefault:"30s"`
}

type Option func(*Transport)

// WithHTTPClient replaces the default client. Config.Timeout is ignored.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) {
		if client != nil {
			t.httpClient = client
		}
	}
}

type Transport struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func New(cfg Config, opts ...Option) (*Transport, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, mailer.NewConfigurationError("SparkPost API key is required", nil)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	t := &Transport{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Transport) Transmit(ctx context.Context, e mailer.Email) (mailer.Transmission, error) {
	payload, err := newTransmission(e)
	if err != nil {
		return mailer.Transmission{}, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return mailer.Transmission{}, mailer.NewValidationError("failed to encode transmission", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/transmissions", bytes.NewReader(body))
	if err != nil {
		return mailer.Transmission{}, mailer.NewUnknownError("failed to build request", err)
	}
	req.Header.Set("Authorization", t.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return mailer.Transmission{}, mailer.NewServiceError("SparkPost request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return mailer.Transmission{}, mailer.NewServiceError("failed to read SparkPost response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mailer.Transmission{}, categorizeResponseError(resp.StatusCode, respBody)
	}

	var result transmissionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return mailer.Transmission{}, mailer.NewServiceError("malformed SparkPost response", err)
	}

	return mailer.Transmission{
		ID:       result.Results.ID,
		Accepted: result.Results.TotalAccepted,
		Rejected: result.Results.TotalRejected,
	}, nil
}

type transmission struct {
	Options          *options       `json:"options,omitempty"`
	CampaignID       string         `json:"campaign_id,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	SubstitutionData map[string]any `json:"substitution_data,omitempty"`
	Recipients       []recipient    `json:"recipients"`
	Content          content        `json:"content"`
}

type options struct {
	Sandbox       bool `json:"sandbox,omitempty"`
	Transactional bool `json:"transactional,omitempty"`
}

type recipient struct {
	Address address `json:"address"`
}

type address struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	HeaderTo string `json:"header_to,omitempty"`
}

type sender struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type content struct {
	TemplateID  string            `json:"template_id,omitempty"`
	From        *sender           `json:"from,omitempty"`
	Subject     string            `json:"subject,omitempty"`
	HTML        string            `json:"html,omitempty"`
	Text        string            `json:"text,omitempty"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Attachments []attachment      `json:"attachments,omitempty"`
}

type attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

type transmissionResponse struct {
	Results struct {
		ID            string `json:"id"`
		TotalAccepted int    `json:"total_accepted_recipients"`
		TotalRejected int    `json:"total_rejected_recipients"`
	} `json:"results"`
}

type errorResponse struct {
	Errors []apiError `json:"errors"`
}

type apiError struct {
	Message     string `json:"message"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func newTransmission(e mailer.Email) (transmission, error) {
	tx := transmission{
		CampaignID:       e.CampaignID,
		Metadata:         e.Metadata,
		SubstitutionData: e.SubstitutionData,
	}
	if e.Sandbox || e.Transactional {
		tx.Options = &options{Sandbox: e.Sandbox, Transactional: e.Transactional}
	}

	headerTo := strings.Join(e.ToAddresses, ",")
	for _, addr := range e.ToAddresses {
		r, err := newRecipient(addr, "")
		if err != nil {
			return transmission{}, err
		}
		tx.Recipients = append(tx.Recipients, r)
	}
	// CC and BCC are plain recipients whose To header shows the primary list.
	for _, addr := range append(append([]string{}, e.CCAddresses...), e.BCCAddresses...) {
		r, err := newRecipient(addr, headerTo)
		if err != nil {
			return transmission{}, err
		}
		tx.Recipients = append(tx.Recipients, r)
	}

	if len(e.CCAddresses) > 0 {
		tx.Content.Headers = map[string]string{"CC": strings.Join(e.CCAddresses, ",")}
	}

	if e.TemplateID != "" {
		tx.Content.TemplateID = e.TemplateID
		return tx, nil
	}

	from, err := mail.ParseAddress(e.FromAddress)
	if err != nil {
		return transmission{}, mailer.NewInvalidEmailError("invalid from address format", err)
	}
	tx.Content.From = &sender{Email: from.Address, Name: from.Name}
	tx.Content.Subject = e.Subject
	tx.Content.HTML = e.HTMLBody
	tx.Content.Text = e.TextBody
	if len(e.ReplyToAddresses) > 0 {
		tx.Content.ReplyTo = e.ReplyToAddresses[0]
	}

	for _, a := range e.Attachments {
		tx.Content.Attachments = append(tx.Content.Attachments, attachment{
			Name: a.FileName,
			Type: a.ContentType,
			Data: base64.StdEncoding.EncodeToString(a.Content),
		})
	}

	return tx, nil
}

func newRecipient(addr, headerTo string) (recipient, error) {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return recipient{}, mailer.NewInvalidEmailError(fmt.Sprintf("invalid recipient address: %s", addr), err)
	}
	return recipient{Address: address{Email: parsed.Address, Name: parsed.Name, HeaderTo: headerTo}}, nil
}

func categorizeResponseError(status int, body []byte) error {
	var details apiError
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		details = parsed.Errors[0]
	}
	if details.Code == "" {
		details.Code = strconv.Itoa(status)
	}

	cause := fmt.Errorf("SparkPost API returned HTTP %d", status)
	var mErr *mailer.Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		mErr = mailer.NewAuthenticationError("SparkPost rejected the API key", cause)
	case status == http.StatusTooManyRequests:
		mErr = mailer.NewRateLimitedError("sending rate limit exceeded", cause)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		mErr = mailer.NewValidationError("transmission rejected by SparkPost", cause)
	case status >= 500:
		mErr = mailer.NewServiceError("SparkPost service error", cause)
	default:
		mErr = mailer.NewUnknownError("failed to send transmission", cause)
	}

	return mErr.WithAPIDetails(details.Code, details.Message, details.Description)
}
