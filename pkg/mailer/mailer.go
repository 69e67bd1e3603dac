package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/digitalrevolution/dr-backend/pkg/config"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
)

const (
	defaultHost  = "https://api.sendgrid.com"
	sendEndpoint = "/v3/mail/send"
)

var errAPIKeyRequired = errors.New("sendgrid api key is required")

// Message is a rendered transactional email.
type Message struct {
	ToEmail string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendgridSender delivers through the SendGrid v3 mail API.
type SendgridSender struct {
	apiKey string
	host   string
	from   *mail.Email
}

// Option configures optional sender behavior.
type Option func(*SendgridSender)

// WithHost points the sender at another API host.
func WithHost(host string) Option {
	return func(s *SendgridSender) {
		if trimmed := strings.TrimSpace(host); trimmed != "" {
			s.host = strings.TrimRight(trimmed, "/")
		}
	}
}

func NewSendgridSender(cfg config.SendgridConfig, opts ...Option) (*SendgridSender, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	sender := &SendgridSender{
		apiKey: apiKey,
		host:   defaultHost,
		from:   mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sender)
		}
	}
	return sender, nil
}

func (s *SendgridSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.ToEmail) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient email is required")
	}

	var contents []*mail.Content
	if msg.Text != "" {
		contents = append(contents, mail.NewContent("text/plain", msg.Text))
	}
	contents = append(contents, mail.NewContent("text/html", msg.HTML))
	email := mail.NewV3MailInit(s.from, msg.Subject, mail.NewEmail(msg.ToName, msg.ToEmail), contents...)

	request := sendgrid.GetRequest(s.apiKey, sendEndpoint, s.host)
	request.Method = http.MethodPost
	request.Body = mail.GetRequestBody(email)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sendgrid send")
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body)), "sendgrid send rejected")
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them. Used when no
// SendGrid key is configured in dev.
type LogSender struct {
	Logger *logger.Logger
}

func (l LogSender) Send(ctx context.Context, msg Message) error {
	if l.Logger == nil {
		return nil
	}
	ctx = l.Logger.WithFields(ctx, map[string]any{"to": msg.ToEmail, "subject": msg.Subject})
	l.Logger.Info(ctx, "email delivery skipped (log sender)")
	return nil
}

// New picks the SendGrid sender when configured and falls back to LogSender in dev.
func New(cfg config.SendgridConfig, isDev bool, logg *logger.Logger) (Sender, error) {
	sender, err := NewSendgridSender(cfg)
	if err == nil {
		return sender, nil
	}
	if errors.Is(err, errAPIKeyRequired) && isDev {
		return LogSender{Logger: logg}, nil
	}
	return nil, err
}
