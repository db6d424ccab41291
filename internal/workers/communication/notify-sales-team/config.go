package notifysalesteam

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration

	EmailEnabled bool
	FromEmail    string
	SalesInbox   string

	SMSEnabled  bool
	PhoneNumber string
	TopicARN    string
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 10,
		Timeout:       15 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("maxJobsActive must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.EmailEnabled && (c.FromEmail == "" || c.SalesInbox == "") {
		return fmt.Errorf("email notifications need from_email and sales_inbox")
	}
	if c.SMSEnabled && c.PhoneNumber == "" && c.TopicARN == "" {
		return fmt.Errorf("sms notifications need phone_number or topic_arn")
	}
	return nil
}
