// Command transmit composes one message from flags and sends it through the
// transport selected by MAILER_TRANSPORT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/caarlos0/env/v11"

	"github.com/International-Combat-Archery-Alliance/mailer"
	"github.com/International-Combat-Archery-Alliance/mailer/awsses"
	"github.com/International-Combat-Archery-Alliance/mailer/gmail"
	"github.com/International-Combat-Archery-Alliance/mailer/internal/logging"
	"github.com/International-Combat-Archery-Alliance/mailer/logsink"
	"github.com/International-Combat-Archery-Alliance/mailer/resend"
	"github.com/International-Combat-Archery-Alliance/mailer/sparkpost"
)

const (
	exitOK = iota
	exitError
	exitNotDelivered
)

type config struct {
	Transport string `env:"MAILER_TRANSPORT" envDefault:"log"`

	Mailer    mailer.Config
	SparkPost sparkpost.Config
	Resend    resend.Config
	Gmail     gmailConfig
	Logging   logging.Config
}

type gmailConfig struct {
	CredentialsFile string `env:"GMAIL_CREDENTIALS_FILE"`
	User            string `env:"GMAIL_USER"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	params, err := parseFlags(args, stderr)
	if err != nil {
		return exitError
	}

	cfg, err := env.ParseAs[config]()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitError
	}

	logger, flush := logging.New(cfg.Logging)
	defer flush()

	transport, err := newTransport(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create transport", slog.String("transport", cfg.Transport), slog.Any("error", err))
		return exitError
	}

	builder, err := mailer.NewBuilder(cfg.Mailer)
	if err != nil {
		logger.Error("invalid mailer configuration", slog.Any("error", err))
		return exitError
	}

	transmitter, err := mailer.NewTransmitter(transport, cfg.Mailer, mailer.WithLogger(logger))
	if err != nil {
		logger.Error("invalid mailer configuration", slog.Any("error", err))
		return exitError
	}

	msg, err := builder.Compose(params)
	if err != nil {
		logger.Error("failed to compose message", slog.Any("error", err))
		return exitError
	}

	outcome, err := transmitter.Send(ctx, msg)
	if err != nil {
		logger.Error("send failed", slog.Any("error", err))
		return exitError
	}

	logger.Info("send finished",
		slog.String("transport", cfg.Transport),
		slog.String("transmission_id", outcome.TransmissionID),
		slog.Int("accepted", outcome.Accepted),
		slog.Int("rejected", outcome.Rejected),
		slog.Bool("succeeded", outcome.Succeeded),
	)
	if !outcome.Succeeded {
		return exitNotDelivered
	}
	return exitOK
}

func newTransport(ctx context.Context, cfg config, logger *slog.Logger) (mailer.Transport, error) {
	switch strings.ToLower(cfg.Transport) {
	case "log", "":
		return logsink.New(logger), nil
	case "sparkpost":
		return sparkpost.New(cfg.SparkPost)
	case "resend":
		return resend.New(cfg.Resend)
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, mailer.NewConfigurationError("unable to load AWS config", err)
		}
		return awsses.NewTransport(sesv2.NewFromConfig(awsCfg)), nil
	case "gmail":
		if cfg.Gmail.CredentialsFile == "" || cfg.Gmail.User == "" {
			return nil, mailer.NewConfigurationError("GMAIL_CREDENTIALS_FILE and GMAIL_USER are required", nil)
		}
		creds, err := os.ReadFile(cfg.Gmail.CredentialsFile)
		if err != nil {
			return nil, mailer.NewConfigurationError("unable to read Gmail credentials", err)
		}
		return gmail.NewTransport(ctx, creds, cfg.Gmail.User)
	default:
		return nil, mailer.NewConfigurationError(fmt.Sprintf("unknown transport %q", cfg.Transport), nil)
	}
}

type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(v string) error {
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			*l = append(*l, item)
		}
	}
	return nil
}

type substitutionFlag map[string]any

func (s substitutionFlag) String() string {
	pairs := make([]string, 0, len(s))
	for k, v := range s {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(pairs, ",")
}

func (s substitutionFlag) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return errors.New("substitution must be key=value")
	}
	s[strings.TrimSpace(key)] = value
	return nil
}

func parseFlags(args []string, output io.Writer) (mailer.ComposeParams, error) {
	fs := flag.NewFlagSet("transmit", flag.ContinueOnError)
	fs.SetOutput(output)

	var (
		to, cc, bcc, replyTo listFlag
		subs                 = substitutionFlag{}
		p                    mailer.ComposeParams
	)
	fs.Var(&to, "to", "recipient address (repeatable, comma separated)")
	fs.Var(&cc, "cc", "carbon copy address (repeatable)")
	fs.Var(&bcc, "bcc", "blind carbon copy address (repeatable)")
	fs.Var(&replyTo, "reply-to", "reply-to address (repeatable)")
	fs.Var(subs, "sub", "substitution data as key=value (repeatable)")
	fs.StringVar(&p.From, "from", "", "sender address (defaults to MAILER_DEFAULT_EMAIL)")
	fs.StringVar(&p.Subject, "subject", "", "message subject")
	fs.StringVar(&p.Text, "text", "", "plain text body")
	fs.StringVar(&p.HTML, "html", "", "HTML body")
	fs.StringVar(&p.TemplateID, "template", "", "stored template id")
	fs.StringVar(&p.CampaignID, "campaign", "", "campaign id")
	fs.BoolVar(&p.Transactional, "transactional", true, "mark the message as transactional")
	fs.BoolVar(&p.Sandbox, "sandbox", false, "force sandbox mode for this message")

	if err := fs.Parse(args); err != nil {
		return mailer.ComposeParams{}, err
	}

	p.To, p.CC, p.BCC, p.ReplyTo = to, cc, bcc, replyTo
	if len(subs) > 0 {
		p.SubstitutionData = subs
	}
	return p, nil
}
