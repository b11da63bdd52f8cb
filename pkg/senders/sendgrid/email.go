// Package sendgrid sends email through the SendGrid v3 API.
package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/crewdesk/automation/pkg/senders"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendEndpoint = "/v3/mail/send"

type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type Config struct {
	APIKey   string
	From     string
	FromName string
	// Host overrides the API host, e.g. for a local mock.
	Host string
}

type Sender struct {
	client mailClient
	from   *mail.Email
	logger *slog.Logger
}

var _ senders.EmailSender = (*Sender)(nil)

func NewSender(logger *slog.Logger, config Config) (*Sender, error) {
	if config.APIKey == "" {
		return nil, errors.New(`"apiKey" is a required field`)
	}

	if config.From == "" {
		return nil, errors.New(`"from" is a required field`)
	}

	var client mailClient

	if config.Host != "" {
		req := sendgrid.GetRequest(config.APIKey, sendEndpoint, config.Host)
		req.Method = http.MethodPost
		client = &sendgrid.Client{Request: req}
	} else {
		client = sendgrid.NewSendClient(config.APIKey)
	}

	return &Sender{
		client: client,
		from:   mail.NewEmail(config.FromName, config.From),
		logger: logger.With("module", "sendgrid_email"),
	}, nil
}

func (s *Sender) SendEmail(ctx context.Context, message senders.EmailMessage) error {
	text := message.Text
	if text == "" {
		text = senders.PlainText(message.HTML)
	}

	email := mail.NewSingleEmail(s.from, message.Subject, mail.NewEmail("", message.To), text, message.HTML)

	if message.Correlation.ExecutionLogID != "" {
		email.SetCustomArg("execution_log_id", message.Correlation.ExecutionLogID)
	}

	if message.Correlation.WorkflowID != "" {
		email.SetCustomArg("workflow_id", message.Correlation.WorkflowID)
	}

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid network error: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned %d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), resp.Body)
	}

	s.logger.InfoContext(ctx, "email sent",
		"workflow_id", message.Correlation.WorkflowID,
		"execution_log_id", message.Correlation.ExecutionLogID,
	)

	return nil
}
