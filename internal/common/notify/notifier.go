// Package notify delivers a finished report by SES email and/or an SNS message.
package notify

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"jobcrew/internal/common/errors"
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Config struct {
	EmailEnabled bool
	FromEmail    string
	To           []string
	SNSEnabled   bool
	TopicARN     string
}

// Report is what gets delivered.
type Report struct {
	RunID    string
	Position string
	Location string
	Path     string
	Content  string
}

type Notifier struct {
	config    Config
	sesClient SESService
	snsClient SNSService
	logger    Logger
}

func NewNotifier(cfg Config, sesClient SESService, snsClient SNSService, log Logger) *Notifier {
	return &Notifier{config: cfg, sesClient: sesClient, snsClient: snsClient, logger: log}
}

// Notify sends the report on every enabled channel. A failing channel does
// not stop the others; all failures are returned joined.
func (n *Notifier) Notify(ctx context.Context, r Report) error {
	var errs []error

	if n.config.EmailEnabled {
		if err := n.sendEmail(ctx, r); err != nil {
			errs = append(errs, errors.NewNotificationSendFailedError("email", err))
		} else {
			n.logger.Info("report emailed", map[string]interface{}{"to": n.config.To, "runId": r.RunID})
		}
	}

	if n.config.SNSEnabled {
		if err := n.publish(ctx, r); err != nil {
			errs = append(errs, errors.NewNotificationSendFailedError("sns", err))
		} else {
			n.logger.Info("report published", map[string]interface{}{"topic": n.config.TopicARN, "runId": r.RunID})
		}
	}

	return stderrors.Join(errs...)
}

func (n *Notifier) sendEmail(ctx context.Context, r Report) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: n.config.To,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject(r))},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(r.Content)},
			},
		},
		Source: aws.String(n.config.FromEmail),
	})
	return err
}

func (n *Notifier) publish(ctx context.Context, r Report) error {
	msg := fmt.Sprintf("Your job search report for %s (%s) is ready.", r.Position, r.Location)
	if r.Path != "" {
		msg += " Saved as: " + r.Path
	}
	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.config.TopicARN),
		Subject:  aws.String(subject(r)),
		Message:  aws.String(msg),
	})
	return err
}

// subject stays within the 100 character SNS subject limit.
func subject(r Report) string {
	s := fmt.Sprintf("JobCrew report: %s in %s", r.Position, r.Location)
	runes := []rune(s)
	if len(runes) > 100 {
		s = string(runes[:97]) + "..."
	}
	return s
}
