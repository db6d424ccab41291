package crmleadcreate

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/odoo"
	"lead-intake-workers/internal/models"
)

// ==========================
// Mock CRM
// ==========================

type MockCRM struct {
	mock.Mock
}

func (m *MockCRM) Authenticate(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCRM) CreateLeadFull(ctx context.Context, values map[string]interface{}) (int64, error) {
	args := m.Called(ctx, values)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCRM) UpdateLead(ctx context.Context, id int64, values map[string]interface{}) (bool, error) {
	args := m.Called(ctx, id, values)
	return args.Bool(0), args.Error(1)
}

func (m *MockCRM) LeadURL(id int64) string {
	return fmt.Sprintf("https://crm.example.test/web#id=%d&model=crm.lead&view_type=form", id)
}

// ==========================
// Helpers
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "lead-intake",
		ElementId:          "Activity_CRMLeadCreate",
		CustomHeaders:      "{}",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func extractedFields() models.LeadFields {
	return models.LeadFields{
		"contact_name":      "Fernanda",
		"partner_name":      "Industrial García S.A. de C.V.",
		"phone":             "81 1234 5678",
		"email_from":        "fernanda.garcia@industrialgarcia.com",
		"conversation_name": "Impermeabilización de plataforma industrial",
		"tag_ids":           []interface{}{float64(4)},
	}
}

func newTestHandler(t *testing.T, crm LeadWriter) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CRM:          crm,
		CustomConfig: DefaultConfig(),
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

// ==========================
// Handler Creation Tests
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{"valid", HandlerOptions{CRM: new(MockCRM), CustomConfig: DefaultConfig()}, ""},
		{"missing crm", HandlerOptions{CustomConfig: DefaultConfig()}, "requires a CRM client"},
		{
			"invalid timeout",
			HandlerOptions{CRM: new(MockCRM), CustomConfig: &Config{MaxJobsActive: 1}},
			"timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandler(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TaskType, h.GetTaskType())
			assert.True(t, h.IsEnabled())
		})
	}
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_Create(t *testing.T) {
	crm := new(MockCRM)
	crm.On("CreateLeadFull", mock.Anything, map[string]interface{}{
		"name":         "Impermeabilización de plataforma industrial",
		"phone":        "81 1234 5678",
		"contact_name": "Fernanda",
		"email_from":   "fernanda.garcia@industrialgarcia.com",
		"partner_name": "Industrial García S.A. de C.V.",
		"priority":     "3",
		"tag_ids":      []int{4},
	}).Return(int64(501), nil)

	h := newTestHandler(t, crm)
	out, err := h.Execute(context.Background(), &Input{LeadFields: extractedFields(), ScoreTotal: 80})

	require.NoError(t, err)
	assert.Equal(t, int64(501), out.CRMLeadID)
	assert.True(t, out.CRMLeadCreated)
	assert.False(t, out.CRMLeadUpdated)
	assert.Contains(t, out.CRMLeadURL, "id=501")
	crm.AssertExpectations(t)
}

func TestHandler_Execute_EditsAndOverrides(t *testing.T) {
	crm := new(MockCRM)
	crm.On("CreateLeadFull", mock.Anything, mock.MatchedBy(func(v map[string]interface{}) bool {
		_, hasPhone := v["phone"]
		return !hasPhone &&
			v["priority"] == "2" &&
			v["stage_id"] == int64(4) &&
			v["street"] == "Av. Las Torres 1234" &&
			assert.ObjectsAreEqual([]int{1, 4}, v["tag_ids"])
	})).Return(int64(9), nil)

	h := newTestHandler(t, crm)
	_, err := h.Execute(context.Background(), &Input{
		LeadFields: extractedFields(),
		ScoreTotal: 10,
		Priority:   models.PriorityMedium,
		StageID:    4,
		Edits: map[string]string{
			"phone":   "",
			"street":  "Av. Las Torres 1234",
			"tag_ids": "1, 4",
		},
	})

	require.NoError(t, err)
	crm.AssertExpectations(t)
}

func TestHandler_Execute_Update(t *testing.T) {
	crm := new(MockCRM)
	crm.On("UpdateLead", mock.Anything, int64(77), mock.Anything).Return(true, nil).Once()

	h := newTestHandler(t, crm)
	out, err := h.Execute(context.Background(), &Input{LeadFields: extractedFields(), ScoreTotal: 50, LeadID: 77})

	require.NoError(t, err)
	assert.True(t, out.CRMLeadUpdated)
	assert.False(t, out.CRMLeadCreated)
	assert.Equal(t, int64(77), out.CRMLeadID)
	crm.AssertNotCalled(t, "CreateLeadFull", mock.Anything, mock.Anything)
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		setup    func(crm *MockCRM)
		wantCode errors.ErrorCode
		wantRetr bool
	}{
		{
			name:     "missing lead name",
			input:    &Input{LeadFields: models.LeadFields{"contact_name": "Ana"}},
			wantCode: errors.ErrCodeInputValidationFailed,
		},
		{
			name: "bad email",
			input: &Input{LeadFields: models.LeadFields{
				"conversation_name": "Consulta", "email_from": "ana@",
			}},
			wantCode: errors.ErrCodeInputValidationFailed,
		},
		{
			name:     "bad tag edit",
			input:    &Input{LeadFields: extractedFields(), Edits: map[string]string{"tag_ids": "uno"}},
			wantCode: errors.ErrCodeInputValidationFailed,
		},
		{
			name:  "auth failure",
			input: &Input{LeadFields: extractedFields()},
			setup: func(crm *MockCRM) {
				crm.On("CreateLeadFull", mock.Anything, mock.Anything).Return(int64(0), odoo.ErrAuthFailed)
			},
			wantCode: errors.ErrCodeCRMAuthFailed,
		},
		{
			name:  "transport failure",
			input: &Input{LeadFields: extractedFields()},
			setup: func(crm *MockCRM) {
				crm.On("CreateLeadFull", mock.Anything, mock.Anything).Return(int64(0), fmt.Errorf("odoo crm.lead.create: connection reset"))
			},
			wantCode: errors.ErrCodeCRMWriteFailed,
			wantRetr: true,
		},
		{
			name:  "update rejected",
			input: &Input{LeadFields: extractedFields(), LeadID: 3},
			setup: func(crm *MockCRM) {
				crm.On("UpdateLead", mock.Anything, int64(3), mock.Anything).Return(false, nil)
			},
			wantCode: errors.ErrCodeCRMWriteFailed,
			wantRetr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crm := new(MockCRM)
			if tt.setup != nil {
				tt.setup(crm)
			}
			h := newTestHandler(t, crm)

			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			stdErr := errors.Normalize(err)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Equal(t, tt.wantRetr, stdErr.Retryable)
		})
	}
}

// ==========================
// Input Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, new(MockCRM))

	t.Run("full input", func(t *testing.T) {
		input, err := h.parseInput(createMockJob(1, map[string]interface{}{
			"leadFields": extractedFields(),
			"scoreTotal": 72,
			"priority":   "3",
			"edits":      map[string]string{"description": "Visita el martes 10 am"},
			"stageId":    2,
		}))
		require.NoError(t, err)
		assert.Equal(t, 72, input.ScoreTotal)
		assert.Equal(t, models.PriorityHigh, input.Priority)
		assert.Equal(t, int64(2), input.StageID)
		assert.Equal(t, []int{4}, input.LeadFields.TagIDs())
	})

	t.Run("empty lead fields", func(t *testing.T) {
		input, err := h.parseInput(createMockJob(2, map[string]interface{}{"leadFields": map[string]interface{}{}}))
		require.NoError(t, err)
		assert.NotNil(t, input.LeadFields)
	})

	invalid := map[string]map[string]interface{}{
		"missing leadFields": {"scoreTotal": 10},
		"unknown priority":   {"leadFields": map[string]interface{}{}, "priority": "9"},
		"non-string edit":    {"leadFields": map[string]interface{}{}, "edits": map[string]interface{}{"phone": 123}},
		"negative lead id":   {"leadFields": map[string]interface{}{}, "leadId": -1},
	}
	for name, vars := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := h.parseInput(createMockJob(3, vars))
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeInputValidationFailed, errors.Normalize(err).Code)
		})
	}
}

// ==========================
// Config Tests
// ==========================

func TestCreateConfigFromAppConfig(t *testing.T) {
	app := &config.Config{
		Workers: map[string]config.WorkerConfig{TaskType: {Enabled: true, MaxJobsActive: 3, Timeout: 45000}},
		CRM:     config.CRMConfig{Odoo: config.OdooConfig{DefaultStageID: 1}},
		Scoring: config.ScoringConfig{PriorityBands: config.PriorityBands{LowMax: 40, MediumMax: 70}},
	}

	cfg := createConfigFromAppConfig(app, nil)
	assert.Equal(t, 3, cfg.MaxJobsActive)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, int64(1), cfg.DefaultStageID)
	assert.Equal(t, models.PriorityBands{LowMax: 40, MediumMax: 70}, cfg.Bands)
}

func TestHandler_HealthCheck(t *testing.T) {
	crm := new(MockCRM)
	crm.On("Authenticate", mock.Anything).Return(int64(2), nil).Once()
	crm.On("Authenticate", mock.Anything).Return(int64(0), odoo.ErrAuthFailed).Once()

	h := newTestHandler(t, crm)
	assert.NoError(t, h.HealthCheck(context.Background()))
	assert.ErrorIs(t, h.HealthCheck(context.Background()), odoo.ErrAuthFailed)
}

func TestOutput_WorkflowVariables(t *testing.T) {
	body, err := json.Marshal(&Output{CRMLeadID: 5, CRMLeadCreated: true, CRMMessage: "CRM lead created"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"crmLeadId": 5, "crmLeadCreated": true, "crmLeadUpdated": false, "crmMessage": "CRM lead created"}`, string(body))
}
