package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"lifebox-go/internal/metrics"
)

// SNSSmsSender delivers SMS messages through AWS SNS direct publish.
type SNSSmsSender struct {
	client *sns.Client
	logger *slog.Logger
}

// NewSNSSmsSender creates an SNS-backed SMS sender for the given region.
func NewSNSSmsSender(ctx context.Context, region string, logger *slog.Logger) (*SNSSmsSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &SNSSmsSender{
		client: sns.NewFromConfig(cfg),
		logger: logger,
	}, nil
}

// Send publishes the message directly to the phone number.
func (s *SNSSmsSender) Send(ctx context.Context, phoneNumber, message string) (SmsResult, error) {
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phoneNumber),
		Message:     aws.String(message),
	})
	if err != nil {
		metrics.NotificationsSentTotal.WithLabelValues("sms", "failure").Inc()
		return SmsResult{Provider: "sns", Reason: err.Error()}, fmt.Errorf("failed to publish sms: %w", err)
	}

	s.logger.Debug("sms published", "phoneNumber", phoneNumber, "messageID", aws.ToString(out.MessageId))
	metrics.NotificationsSentTotal.WithLabelValues("sms", "success").Inc()
	return SmsResult{Success: true, Provider: "sns"}, nil
}
