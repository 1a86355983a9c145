// Package notify provides the outbound notification channels used by alarm
// reactions. The provider routing behind each channel lives outside this
// service; senders here either log (development) or hand off to a cloud
// provider.
package notify

import (
	"context"
	"log/slog"

	"lifebox-go/internal/metrics"
)

// SmsResult reports the outcome of one SMS delivery attempt.
type SmsResult struct {
	Success  bool   `json:"success"`
	Provider string `json:"provider"`
	Reason   string `json:"reason,omitempty"`
}

// SmsSender delivers one text message to one phone number.
type SmsSender interface {
	Send(ctx context.Context, phoneNumber, message string) (SmsResult, error)
}

// EmailSender delivers one HTML email to one address.
type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// LogSmsSender is a no-op sender that logs every message. It is used in
// memory mode and for tests.
type LogSmsSender struct {
	logger *slog.Logger
}

// NewLogSmsSender creates a log-backed SMS sender.
func NewLogSmsSender(logger *slog.Logger) *LogSmsSender {
	return &LogSmsSender{logger: logger}
}

// Send logs the message instead of delivering it.
func (s *LogSmsSender) Send(ctx context.Context, phoneNumber, message string) (SmsResult, error) {
	s.logger.Info("STUB: would send sms",
		"phoneNumber", phoneNumber,
		"message", message,
	)
	metrics.NotificationsSentTotal.WithLabelValues("sms", "success").Inc()
	return SmsResult{Success: true, Provider: "log"}, nil
}

// LogEmailSender is a no-op sender that logs every email.
type LogEmailSender struct {
	logger *slog.Logger
}

// NewLogEmailSender creates a log-backed email sender.
func NewLogEmailSender(logger *slog.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger}
}

// Send logs the email instead of delivering it.
func (s *LogEmailSender) Send(ctx context.Context, to, subject, html string) error {
	s.logger.Info("STUB: would send email",
		"to", to,
		"subject", subject,
		"bodyBytes", len(html),
	)
	metrics.NotificationsSentTotal.WithLabelValues("email", "success").Inc()
	return nil
}
