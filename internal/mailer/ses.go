package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESAPI is the slice of the SES v2 client the transport calls.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESTransport delivers raw MIME messages through AWS SES.
type SESTransport struct {
	client SESAPI
	region string
}

// NewSESTransport uses static credentials when given, otherwise the default AWS chain.
func NewSESTransport(ctx context.Context, region, accessKey, secretKey string) (*SESTransport, error) {
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewSESTransportWithClient(sesv2.NewFromConfig(cfg), region), nil
}

func NewSESTransportWithClient(client SESAPI, region string) *SESTransport {
	return &SESTransport{client: client, region: region}
}

// Deliver sends the composed bytes as-is. SES replaces the Message-ID header
// with its own, so the returned id is the one recipients will reference.
func (t *SESTransport) Deliver(ctx context.Context, env Envelope) (Delivery, error) {
	out, err := t.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(env.From),
		Destination:      &types.Destination{ToAddresses: []string{env.To}},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: env.Raw},
		},
	})
	if err != nil {
		return Delivery{}, fmt.Errorf("SES send: %w", err)
	}
	if out.MessageId == nil || *out.MessageId == "" {
		return Delivery{}, nil
	}
	return Delivery{MessageID: *out.MessageId + "@" + sesMessageDomain(t.region)}, nil
}

// sesMessageDomain is the host part SES puts in Message-ID headers.
// us-east-1 predates regional domains and still uses email.amazonses.com.
func sesMessageDomain(region string) string {
	if region == "" || region == "us-east-1" {
		return "email.amazonses.com"
	}
	return region + ".amazonses.com"
}

func (t *SESTransport) Close() error { return nil }
