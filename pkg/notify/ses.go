package notify

import (
	"context"
	"fmt"

	"github.com/Sternrassler/starwatch/pkg/batch"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SendEmailAPI is the subset of the SES client the notifier uses.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESConfig holds the SES notifier configuration.
type SESConfig struct {
	Region     string
	Sender     string
	Recipients []string

	// Static credentials; empty means the default AWS credential chain.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

func (c SESConfig) validate() error {
	if c.Sender == "" {
		return fmt.Errorf("sender is required")
	}
	if len(c.Recipients) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	return nil
}

// SESNotifier emails run reports through AWS SES.
type SESNotifier struct {
	client     SendEmailAPI
	sender     string
	recipients []string
	logger     zerolog.Logger
}

// NewSES loads the AWS configuration and creates an SES notifier.
func NewSES(ctx context.Context, cfg SESConfig) (*SESNotifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			cfg.SessionToken,
		)))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewSESWithClient(ses.NewFromConfig(awsConfig), cfg)
}

// NewSESWithClient creates an SES notifier around an existing client.
func NewSESWithClient(client SendEmailAPI, cfg SESConfig) (*SESNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("ses client is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &SESNotifier{
		client:     client,
		sender:     cfg.Sender,
		recipients: append([]string(nil), cfg.Recipients...),
		logger:     log.With().Str("component", "notify").Logger(),
	}, nil
}

// Notify implements Notifier.
func (n *SESNotifier) Notify(ctx context.Context, job string, report batch.Report, runErr error) error {
	subject, body := FormatReport(job, report, runErr)

	out, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.sender),
		Destination: &types.Destination{ToAddresses: n.recipients},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		n.logger.Warn().Err(err).Str("job", job).Msg("Sending run report failed")
		return fmt.Errorf("send report: %w", err)
	}

	n.logger.Info().
		Str("job", job).
		Str("message_id", aws.ToString(out.MessageId)).
		Int("recipients", len(n.recipients)).
		Msg("Run report sent")
	return nil
}
