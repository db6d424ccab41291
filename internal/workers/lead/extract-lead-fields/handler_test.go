package extractleadfields

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/llm/llmtest"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/models"
)

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "lead-intake",
		ElementId:          "Activity_ExtractLeadFields",
		CustomHeaders:      "{}",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, fake *llmtest.Fake) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		Completer:    fake,
		CustomConfig: DefaultConfig(),
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func TestNewHandler(t *testing.T) {
	t.Run("requires completer", func(t *testing.T) {
		_, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires a completer")
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		_, err := NewHandler(HandlerOptions{
			Completer:    &llmtest.Fake{},
			CustomConfig: &Config{Enabled: true, MaxJobsActive: 0, Timeout: time.Second},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_jobs_active")
	})

	t.Run("default logger", func(t *testing.T) {
		h, err := NewHandler(HandlerOptions{Completer: &llmtest.Fake{}})
		require.NoError(t, err)
		assert.Equal(t, TaskType, h.GetTaskType())
	})
}

func TestHandler_Execute(t *testing.T) {
	t.Run("extracted", func(t *testing.T) {
		h := newTestHandler(t, &llmtest.Fake{Response: `{"contact_name": "Fernanda", "tag_ids": [1, 4], "conversation_name": "URGENTE: filtraciones en plataforma"}`})

		out, err := h.Execute(context.Background(), &Input{Transcript: "Fernanda: ¡Es urgente!"})
		require.NoError(t, err)
		assert.True(t, out.Extracted)
		assert.True(t, out.LeadFields.IsUrgent())
	})

	t.Run("absent completes with empty fields", func(t *testing.T) {
		h := newTestHandler(t, &llmtest.Fake{Response: "no JSON here"})

		out, err := h.Execute(context.Background(), &Input{Transcript: "hola"})
		require.NoError(t, err)
		assert.False(t, out.Extracted)
		assert.Equal(t, models.LeadFields{}, out.LeadFields)

		body, err := json.Marshal(out)
		require.NoError(t, err)
		assert.JSONEq(t, `{"leadFields": {}, "extracted": false}`, string(body))
	})

	t.Run("blank transcript is a validation error", func(t *testing.T) {
		fake := &llmtest.Fake{Response: "{}"}
		h := newTestHandler(t, fake)

		_, err := h.Execute(context.Background(), &Input{Transcript: "  \n "})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeInputValidationFailed, errors.Normalize(err).Code)
		assert.Empty(t, fake.Calls())
	})
}

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, &llmtest.Fake{})

	tests := []struct {
		name    string
		vars    map[string]interface{}
		want    string
		wantErr bool
	}{
		{"valid", map[string]interface{}{"transcript": "Fernanda: hola"}, "Fernanda: hola", false},
		{"extra variables are ignored", map[string]interface{}{"transcript": "x", "channel": "whatsapp"}, "x", false},
		{"missing", map[string]interface{}{}, "", true},
		{"wrong type", map[string]interface{}{"transcript": 42}, "", true},
		{"whitespace only", map[string]interface{}{"transcript": "   "}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(1, tt.vars))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInputValidationFailed, errors.Normalize(err).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, input.Transcript)
		})
	}
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	app := &config.Config{
		Workers: map[string]config.WorkerConfig{
			TaskType: {Enabled: true, MaxJobsActive: 2, Timeout: 20000},
		},
		LLM: config.LLMConfig{Timeout: 45000},
	}

	cfg := createConfigFromAppConfig(app, nil)
	assert.Equal(t, 2, cfg.MaxJobsActive)
	assert.Equal(t, 45*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 55*time.Second, cfg.Timeout, "job timeout is raised above the completion timeout")
	assert.NoError(t, cfg.Validate())

	custom := &Config{MaxJobsActive: 9}
	assert.Same(t, custom, createConfigFromAppConfig(app, custom))
}
