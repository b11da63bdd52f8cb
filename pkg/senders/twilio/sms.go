// Package twilio sends SMS messages through the Twilio REST API.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crewdesk/automation/pkg/senders"
)

const DefaultBaseURL = "https://api.twilio.com/2010-04-01/Accounts/"

type Config struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	Timeout    time.Duration
}

type Sender struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

var _ senders.SMSSender = (*Sender)(nil)

func NewSender(logger *slog.Logger, config Config) (*Sender, error) {
	if config.AccountSID == "" {
		return nil, errors.New(`"accountSid" is a required field`)
	}

	if config.AuthToken == "" {
		return nil, errors.New(`"authToken" is a required field`)
	}

	if config.From == "" {
		return nil, errors.New(`"from" is a required field`)
	}

	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.With("module", "twilio_sms"),
	}, nil
}

// SendSMS posts one message. Transport failures are reported as network errors and
// non-2xx responses carry the HTTP status text so callers can classify them.
func (s *Sender) SendSMS(ctx context.Context, to, message string, correlation senders.Correlation) error {
	v := url.Values{}
	v.Set("To", to)
	v.Set("From", s.config.From)
	v.Set("Body", message)

	twilioURL := s.config.BaseURL + s.config.AccountSID + "/Messages.json"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, twilioURL, strings.NewReader(v.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build twilio request: %w", err)
	}

	req.SetBasicAuth(s.config.AccountSID, s.config.AuthToken)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio network error: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("twilio returned %d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(body)))
	}

	s.logger.InfoContext(ctx, "sms sent",
		"workflow_id", correlation.WorkflowID,
		"execution_log_id", correlation.ExecutionLogID,
		"client_id", correlation.ClientID,
		"job_id", correlation.JobID,
	)

	return nil
}
