package mocks

import (
	"context"

	"github.com/crewdesk/automation/pkg/senders"
	"github.com/stretchr/testify/mock"
)

// MockSMSSender is a mock implementation of senders.SMSSender interface.
type MockSMSSender struct {
	mock.Mock
}

var _ senders.SMSSender = (*MockSMSSender)(nil)

func (m *MockSMSSender) SendSMS(ctx context.Context, to, message string, correlation senders.Correlation) error {
	args := m.Called(ctx, to, message, correlation)

	return args.Error(0)
}

// MockEmailSender is a mock implementation of senders.EmailSender interface.
type MockEmailSender struct {
	mock.Mock
}

var _ senders.EmailSender = (*MockEmailSender)(nil)

func (m *MockEmailSender) SendEmail(ctx context.Context, message senders.EmailMessage) error {
	args := m.Called(ctx, message)

	return args.Error(0)
}
