package crmleadcreate

import (
	"context"

	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/models"
)

type Input struct {
	LeadFields models.LeadFields `json:"leadFields"`
	ScoreTotal int               `json:"scoreTotal"`
	Priority   models.Priority   `json:"priority,omitempty"`
	Edits      map[string]string `json:"edits,omitempty"`
	StageID    int64             `json:"stageId,omitempty"`
	LeadID     int64             `json:"leadId,omitempty"`
}

type Output struct {
	CRMLeadID      int64  `json:"crmLeadId"`
	CRMLeadCreated bool   `json:"crmLeadCreated"`
	CRMLeadUpdated bool   `json:"crmLeadUpdated"`
	CRMMessage     string `json:"crmMessage"`
	CRMLeadURL     string `json:"crmLeadUrl,omitempty"`
}

// LeadWriter is the part of the Odoo client the worker needs.
type LeadWriter interface {
	Authenticate(ctx context.Context) (int64, error)
	CreateLeadFull(ctx context.Context, values map[string]interface{}) (int64, error)
	UpdateLead(ctx context.Context, id int64, values map[string]interface{}) (bool, error)
	LeadURL(id int64) string
}

type ServiceDependencies struct {
	Logger logger.Logger
	CRM    LeadWriter
}
