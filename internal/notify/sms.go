package notify

import (
	"context"

	"coaching-notifier/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSService is the part of the SNS client the SMS sender uses.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSSender publishes text messages directly to phone numbers.
type SMSSender struct {
	client   SNSService
	senderID string
}

// NewSMSHandler returns the SMS channel handler. senderID may be empty.
func NewSMSHandler(client SNSService, senderID string, deps Dependencies) *Handler {
	return NewHandler(&SMSSender{client: client, senderID: senderID}, deps)
}

func (s *SMSSender) Channel() models.Channel { return models.ChannelSMS }

func (s *SMSSender) Deliver(ctx context.Context, d Delivery) error {
	if d.Recipient.Phone == "" {
		return ErrNoAddress
	}
	in := &sns.PublishInput{
		PhoneNumber: aws.String(d.Recipient.Phone),
		Message:     aws.String(d.Content.Body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	}
	if s.senderID != "" {
		in.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}
	_, err := s.client.Publish(ctx, in)
	return err
}
