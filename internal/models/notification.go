// internal/models/notification.go
package models

type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
)

type NotificationStatus string

const (
	NotificationSent     NotificationStatus = "sent"
	NotificationFailed   NotificationStatus = "failed"
	NotificationDisabled NotificationStatus = "disabled"
)

// Notification records one delivery attempt to the sales team.
type Notification struct {
	Channel   NotificationChannel `json:"channel"`
	Status    NotificationStatus  `json:"status"`
	Target    string              `json:"target"`
	MessageID string              `json:"messageId,omitempty"`
	Error     string              `json:"error,omitempty"`
}
