package notifysalesteam

import (
	awsclients "lead-intake-workers/internal/common/aws"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/validation"
	"lead-intake-workers/internal/models"
)

type Input struct {
	LeadFields models.LeadFields `json:"leadFields"`
	ScoreTotal *int              `json:"scoreTotal,omitempty"`
	Priority   models.Priority   `json:"priority"`
	Urgent     bool              `json:"urgent"`
	CRMLeadID  int64             `json:"crmLeadId"`
	CRMLeadURL string            `json:"crmLeadUrl"`

	// Set by an earlier failed attempt of the same job.
	NotificationID string                `json:"notificationId,omitempty"`
	Delivered      []models.Notification `json:"notificationDeliveries,omitempty"`
}

type Output struct {
	NotificationID string                    `json:"notificationId"`
	Status         models.NotificationStatus `json:"status"`
	SentAt         string                    `json:"sentAt"`
	Deliveries     []models.Notification     `json:"deliveries"`
}

// sent lists the deliveries a retry must not repeat.
func (o *Output) sent() []models.Notification {
	out := []models.Notification{}
	for _, d := range o.Deliveries {
		if d.Status == models.NotificationSent {
			out = append(out, d)
		}
	}
	return out
}

type ServiceDependencies struct {
	Logger logger.Logger
	SES    awsclients.EmailSender
	SNS    awsclients.Publisher
}

const inputSchema = `{
	"type": "object",
	"required": ["leadFields"],
	"properties": {
		"leadFields": {"type": "object"},
		"scoreTotal": {"type": ["integer", "null"]},
		"priority": {"type": "string", "enum": ["", "1", "2", "3"]},
		"urgent": {"type": "boolean"},
		"crmLeadId": {"type": "integer", "minimum": 0},
		"crmLeadUrl": {"type": "string"},
		"notificationId": {"type": "string"},
		"notificationDeliveries": {"type": "array", "items": {"type": "object"}}
	}
}`

var inputValidator = validation.MustCompile(inputSchema)
