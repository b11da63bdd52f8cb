// Package logsender logs outbound messages instead of delivering them. Used in development.
package logsender

import (
	"context"
	"log/slog"
	"sync"

	"github.com/crewdesk/automation/pkg/senders"
)

type Sender struct {
	logger *slog.Logger

	mu     sync.Mutex
	sms    int
	emails int
}

var (
	_ senders.SMSSender   = (*Sender)(nil)
	_ senders.EmailSender = (*Sender)(nil)
)

func New(logger *slog.Logger) *Sender {
	return &Sender{logger: logger.With("module", "log_sender")}
}

func (s *Sender) SendSMS(ctx context.Context, to, message string, correlation senders.Correlation) error {
	s.mu.Lock()
	s.sms++
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "sms (not delivered)",
		"to", to,
		"message", message,
		"workflow_id", correlation.WorkflowID,
		"execution_log_id", correlation.ExecutionLogID,
	)

	return nil
}

func (s *Sender) SendEmail(ctx context.Context, message senders.EmailMessage) error {
	s.mu.Lock()
	s.emails++
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "email (not delivered)",
		"to", message.To,
		"subject", message.Subject,
		"workflow_id", message.Correlation.WorkflowID,
		"execution_log_id", message.Correlation.ExecutionLogID,
	)

	return nil
}

// Counts returns how many SMS and emails were logged.
func (s *Sender) Counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sms, s.emails
}
