// Package ses implements a Sender that submits raw messages via AWS SES v2.
package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/ses-forwarder-lite/internal/mailer"
)

// SESSenderConfig holds the configuration for creating a SESSender.
type SESSenderConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// SESSender submits raw messages through the AWS SES v2 API.
type SESSender struct {
	client SendEmailAPI
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New creates a new SESSender with the given configuration.
func New(ctx context.Context, cfg SESSenderConfig) (*SESSender, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESSender{client: sesv2.NewFromConfig(awsCfg)}, nil
}

// NewWithClient creates a SESSender with a custom client, used for testing.
func NewWithClient(client SendEmailAPI) *SESSender {
	return &SESSender{client: client}
}

// Send submits the raw message via SES v2. The explicit destination list
// is the delivery envelope; SES does not re-derive recipients from the
// message headers. A rejection surfaces as *mailer.SendError and is not
// retried: redelivery is the upstream receipt rule's concern.
func (s *SESSender) Send(ctx context.Context, source string, destinations []string, raw []byte) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(source),
		Destination: &types.Destination{
			ToAddresses: destinations,
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{
				Data: raw,
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return &mailer.SendError{Source: source, Cause: err}
	}
	return nil
}

// Name returns the transport name.
func (s *SESSender) Name() string {
	return "ses"
}
