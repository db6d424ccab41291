package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Publisher is the SNS call the notifier makes; *sns.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func NewSNSClient(cfg awssdk.Config) *sns.Client {
	return sns.NewFromConfig(cfg)
}

// Alert targets a topic when topicARN is set, otherwise a single phone number.
func Alert(topicARN, phoneNumber, message string) *sns.PublishInput {
	in := &sns.PublishInput{Message: awssdk.String(message)}
	if topicARN != "" {
		in.TopicArn = awssdk.String(topicARN)
	} else {
		in.PhoneNumber = awssdk.String(phoneNumber)
	}
	return in
}

var _ Publisher = (*sns.Client)(nil)
