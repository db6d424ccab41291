package crmleadcreate

import (
	"context"
	stderrors "errors"
	"fmt"

	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/odoo"
	"lead-intake-workers/internal/models"
)

type Service struct {
	config *Config
	logger logger.Logger
	crm    LeadWriter
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config: config,
		logger: deps.Logger,
		crm:    deps.CRM,
	}
}

// Execute turns the process variables into a draft, applies any human edits
// and writes it to Odoo: a create, or a write when LeadID is set.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	draft, err := s.buildDraft(input)
	if err != nil {
		return nil, errors.NewInputValidationError(err.Error())
	}
	values := draft.CRMValues()

	s.logger.Info("Writing lead to CRM", map[string]interface{}{
		"leadId":   input.LeadID,
		"priority": string(draft.Priority),
		"fields":   len(values),
	})

	if input.LeadID > 0 {
		ok, err := s.crm.UpdateLead(ctx, input.LeadID, values)
		if err != nil {
			return nil, mapCRMError("write", err)
		}
		if !ok {
			return nil, errors.NewCRMWriteFailedError("write", fmt.Errorf("odoo rejected update of lead %d", input.LeadID))
		}
		return &Output{
			CRMLeadID:      input.LeadID,
			CRMLeadUpdated: true,
			CRMMessage:     "CRM lead updated",
			CRMLeadURL:     s.crm.LeadURL(input.LeadID),
		}, nil
	}

	id, err := s.crm.CreateLeadFull(ctx, values)
	if err != nil {
		return nil, mapCRMError("create", err)
	}

	s.logger.Info("CRM lead created", map[string]interface{}{"crmLeadId": id})
	return &Output{
		CRMLeadID:      id,
		CRMLeadCreated: true,
		CRMMessage:     "CRM lead created",
		CRMLeadURL:     s.crm.LeadURL(id),
	}, nil
}

func (s *Service) buildDraft(input *Input) (*models.LeadDraft, error) {
	fields, err := models.NormalizeLeadFields(input.LeadFields)
	if err != nil {
		return nil, err
	}

	score := input.ScoreTotal
	draft := models.NewLeadDraft(fields, &score, s.config.Bands)
	switch input.Priority {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
		draft.Priority = input.Priority
	}

	if len(input.Edits) > 0 {
		if err := draft.ApplyEdits(input.Edits); err != nil {
			return nil, err
		}
	}

	draft.StageID = s.config.DefaultStageID
	if input.StageID > 0 {
		draft.StageID = input.StageID
	}

	if err := draft.Validate(); err != nil {
		return nil, err
	}
	return draft, nil
}

func mapCRMError(op string, err error) error {
	switch {
	case stderrors.Is(err, odoo.ErrAuthFailed):
		return errors.NewCRMAuthFailedError(err.Error())
	case stderrors.Is(err, odoo.ErrNameRequired):
		return errors.NewInputValidationError(err.Error())
	default:
		return errors.NewCRMWriteFailedError(op, err)
	}
}

// TestConnection authenticates against Odoo; the uid is cached afterwards.
func (s *Service) TestConnection(ctx context.Context) error {
	if _, err := s.crm.Authenticate(ctx); err != nil {
		return fmt.Errorf("odoo authentication failed: %w", err)
	}
	return nil
}
