package checkleadpriority

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/metrics"
	"lead-intake-workers/internal/common/validation"
	"lead-intake-workers/internal/models"
)

const TaskType = "check-lead-priority"

var inputValidator = validation.MustCompile(inputSchema)

type Handler struct {
	config *Config
	logger logger.Logger
	errors *errors.ErrorHandler
}

func NewHandler(appConfig *config.Config, customConfig *Config, log logger.Logger) (*Handler, error) {
	cfg := createConfigFromAppConfig(appConfig, customConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.With(map[string]interface{}{"taskType": TaskType})

	return &Handler{config: cfg, logger: log, errors: errors.NewErrorHandler(log)}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	output := h.Execute(input)

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"jobKey": job.Key, "error": err.Error()})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"jobKey": job.Key, "error": err.Error()})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

// Execute derives the CRM priority. A lead is urgent when it lands in the top
// tier or the extraction tagged or titled it URGENTE.
func (h *Handler) Execute(input *Input) *Output {
	priority := models.PriorityForScore(input.ScoreTotal, h.config.Bands)
	out := &Output{
		Priority: priority,
		Urgent:   priority == models.PriorityHigh || input.LeadFields.IsUrgent(),
	}

	h.logger.Info("lead priority derived", map[string]interface{}{
		"scoreTotal": input.ScoreTotal,
		"scored":     input.Scored,
		"priority":   string(out.Priority),
		"urgent":     out.Urgent,
	})
	return out
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputValidationError(fmt.Sprintf("failed to parse job variables: %v", err))
	}
	if res := inputValidator.Validate(variables); !res.Valid {
		return nil, errors.NewInputValidationError(res.Error())
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInputValidationError(fmt.Sprintf("failed to decode job variables: %v", err))
	}
	return &input, nil
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	if workerCfg, ok := appConfig.Workers[TaskType]; ok {
		cfg.Enabled = workerCfg.Enabled
		if workerCfg.MaxJobsActive > 0 {
			cfg.MaxJobsActive = workerCfg.MaxJobsActive
		}
		if workerCfg.Timeout > 0 {
			cfg.Timeout = config.GetDuration(workerCfg.Timeout)
		}
	}
	if b := appConfig.Scoring.PriorityBands; b.MediumMax > 0 {
		cfg.Bands = models.PriorityBands{LowMax: b.LowMax, MediumMax: b.MediumMax}
	}
	return cfg
}
