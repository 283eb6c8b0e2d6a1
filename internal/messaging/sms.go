package messaging

import (
	"context"
	"strings"

	"civictrack/backend/internal/apperr"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"
)

// PublishAPI is the part of *sns.Client the texter uses.
type PublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSTexter sends transactional SMS through Amazon SNS.
type SNSTexter struct {
	client   PublishAPI
	senderID string
	logger   *zap.Logger
}

func NewSNSTexter(client PublishAPI, senderID string, logger *zap.Logger) *SNSTexter {
	return &SNSTexter{client: client, senderID: senderID, logger: logger}
}

// SendSMS publishes body to an E.164 phone number.
func (t *SNSTexter) SendSMS(ctx context.Context, to, body string) error {
	to = strings.TrimSpace(to)
	if !strings.HasPrefix(to, "+") || len(to) < 8 {
		return apperr.Validation("phone number must be in E.164 format", "phone")
	}

	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if t.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(t.senderID),
		}
	}

	out, err := t.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(to),
		Message:           aws.String(body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return apperr.Upstream("failed to send sms", err)
	}

	t.logger.Debug("sms sent", zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
