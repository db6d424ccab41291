package notifysalesteam

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"

	awsclients "lead-intake-workers/internal/common/aws"
	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/models"
)

type Service struct {
	config *Config
	logger logger.Logger
	ses    awsclients.EmailSender
	sns    awsclients.Publisher
	now    func() time.Time
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config: config,
		logger: deps.Logger,
		ses:    deps.SES,
		sns:    deps.SNS,
		now:    time.Now,
	}
}

// Execute emails the sales inbox about every lead and, for urgent leads, also
// sends an SMS alert. A channel counts as disabled when it is switched off or
// has no client. When any attempted channel fails the output still lists every
// delivery and the first failure is returned alongside it. Channels an earlier
// attempt already delivered are reported again but not re-sent.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	data := newMessageData(input)
	output := &Output{
		NotificationID: input.NotificationID,
		SentAt:         s.now().UTC().Format(time.RFC3339),
	}
	if output.NotificationID == "" {
		output.NotificationID = uuid.NewString()
	}

	var firstErr error
	record := func(n models.Notification, err error) {
		output.Deliveries = append(output.Deliveries, n)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.config.EmailEnabled && s.ses != nil {
		if n, ok := alreadySent(input.Delivered, models.ChannelEmail); ok {
			record(n, nil)
		} else {
			record(s.sendEmail(ctx, data))
		}
	}
	if input.Urgent && s.config.SMSEnabled && s.sns != nil {
		if n, ok := alreadySent(input.Delivered, models.ChannelSMS); ok {
			record(n, nil)
		} else {
			record(s.sendSMS(ctx, data))
		}
	}

	output.Status = overallStatus(output.Deliveries)

	s.logger.Info("Sales notification processed", map[string]interface{}{
		"notificationId": output.NotificationID,
		"status":         output.Status,
		"deliveries":     len(output.Deliveries),
		"urgent":         input.Urgent,
		"crmLeadId":      input.CRMLeadID,
	})

	return output, firstErr
}

func (s *Service) sendEmail(ctx context.Context, data messageData) (models.Notification, error) {
	n := models.Notification{Channel: models.ChannelEmail, Target: s.config.SalesInbox}

	subject, err := render(subjectTmpl, data)
	if err == nil {
		var body string
		if body, err = render(emailTmpl, data); err == nil {
			var out *ses.SendEmailOutput
			out, err = s.ses.SendEmail(ctx, awsclients.TextEmail(s.config.FromEmail, s.config.SalesInbox, subject, body))
			if err == nil && out != nil && out.MessageId != nil {
				n.MessageID = *out.MessageId
			}
		}
	}

	if err != nil {
		s.logger.Error("Failed to email sales team", map[string]interface{}{
			"to":    s.config.SalesInbox,
			"error": err.Error(),
		})
		n.Status = models.NotificationFailed
		n.Error = err.Error()
		return n, errors.NewNotificationSendFailedError(string(models.ChannelEmail), err)
	}

	n.Status = models.NotificationSent
	return n, nil
}

func (s *Service) sendSMS(ctx context.Context, data messageData) (models.Notification, error) {
	target := s.config.TopicARN
	if target == "" {
		target = s.config.PhoneNumber
	}
	n := models.Notification{Channel: models.ChannelSMS, Target: target}

	message, err := render(smsTmpl, data)
	if err == nil {
		var out *sns.PublishOutput
		out, err = s.sns.Publish(ctx, awsclients.Alert(s.config.TopicARN, s.config.PhoneNumber, message))
		if err == nil && out != nil && out.MessageId != nil {
			n.MessageID = *out.MessageId
		}
	}

	if err != nil {
		s.logger.Error("Failed to send urgent lead SMS", map[string]interface{}{
			"target": target,
			"error":  err.Error(),
		})
		n.Status = models.NotificationFailed
		n.Error = err.Error()
		return n, errors.NewNotificationSendFailedError(string(models.ChannelSMS), err)
	}

	n.Status = models.NotificationSent
	return n, nil
}

func alreadySent(delivered []models.Notification, channel models.NotificationChannel) (models.Notification, bool) {
	for _, n := range delivered {
		if n.Channel == channel && n.Status == models.NotificationSent {
			return n, true
		}
	}
	return models.Notification{}, false
}

// overallStatus is failed if any delivery failed, disabled if none was attempted.
func overallStatus(deliveries []models.Notification) models.NotificationStatus {
	if len(deliveries) == 0 {
		return models.NotificationDisabled
	}
	for _, d := range deliveries {
		if d.Status == models.NotificationFailed {
			return models.NotificationFailed
		}
	}
	return models.NotificationSent
}
