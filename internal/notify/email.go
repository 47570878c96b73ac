package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/pkg/logger"
)

// EmailSender delivers a notification by email.
type EmailSender interface {
	SendNotification(ctx context.Context, to string, n *domain.Notification) error
}

// SESAPI is the subset of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends notification emails through AWS SES v2.
type SESSender struct {
	client   SESAPI
	from     string
	fromName string
}

// NewSESSender builds an SES client. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func NewSESSender(ctx context.Context, region, accessKey, secretKey, from, fromName string) (*SESSender, error) {
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSESSenderWithClient(sesv2.NewFromConfig(cfg), from, fromName), nil
}

// NewSESSenderWithClient wraps an existing SES client.
func NewSESSenderWithClient(client SESAPI, from, fromName string) *SESSender {
	return &SESSender{client: client, from: from, fromName: fromName}
}

func (s *SESSender) SendNotification(ctx context.Context, to string, n *domain.Notification) error {
	if to == "" {
		return fmt.Errorf("no email address for owner %s", n.OwnerID)
	}
	from := s.from
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.from)
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(n.Title), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(emailBody(n)), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("spark_id"), Value: aws.String(n.SparkID)},
			{Name: aws.String("notification_type"), Value: aws.String(string(n.Type))},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}

	messageID := ""
	if out.MessageId != nil {
		messageID = *out.MessageId
	}
	log.Printf("[SES] Sent %s alert to %s (id: %s)", n.Type, logger.RedactEmail(to), messageID)
	return nil
}

func emailBody(n *domain.Notification) string {
	body := n.Message + "\n"
	if len(n.RecommendedActions) > 0 {
		body += "\nRecommended next steps:\n"
		for _, a := range n.RecommendedActions {
			body += "  - " + a + "\n"
		}
	}
	return body
}
