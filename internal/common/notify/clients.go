package notify

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"jobcrew/internal/common/config"
)

// NewFromConfig builds a Notifier backed by real SES and SNS clients, or
// returns nil when no channel is enabled.
func NewFromConfig(ctx context.Context, cfg config.NotificationConfig, log Logger) (*Notifier, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewNotifier(Config{
		EmailEnabled: cfg.Email.Enabled,
		FromEmail:    cfg.Email.FromEmail,
		To:           cfg.Email.To,
		SNSEnabled:   cfg.SNS.Enabled,
		TopicARN:     cfg.SNS.TopicARN,
	}, ses.NewFromConfig(awsCfg), sns.NewFromConfig(awsCfg), log), nil
}
