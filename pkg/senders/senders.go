// Package senders defines the outbound channels used by workflow actions.
package senders

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Correlation ties an outbound message to the records that caused it.
type Correlation struct {
	ClientID       string
	JobID          string
	WorkflowID     string
	ExecutionLogID string
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, message string, correlation Correlation) error
}

type EmailMessage struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	Correlation Correlation
}

type EmailSender interface {
	SendEmail(ctx context.Context, message EmailMessage) error
}

var (
	blockTags  = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/h[1-6]|/tr)\s*/?>`)
	whitespace = regexp.MustCompile(`[ \t]+`)
	blankLines = regexp.MustCompile(`\n\s*\n+`)
	strict     = bluemonday.StrictPolicy()
)

// PlainText strips every HTML tag from markup and collapses whitespace, keeping
// line breaks where block elements ended.
func PlainText(markup string) string {
	text := blockTags.ReplaceAllString(markup, "\n")
	text = strict.Sanitize(text)
	text = strings.ReplaceAll(html.UnescapeString(text), "\u00a0", " ")
	text = whitespace.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
