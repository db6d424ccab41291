package crmleadcreate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"

	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/metrics"
	"lead-intake-workers/internal/common/observability"
	"lead-intake-workers/internal/models"
)

const TaskType = "crm-lead-create"

type Handler struct {
	config  *Config
	logger  logger.Logger
	service *Service
	obs     *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CRM           LeadWriter
	CustomConfig  *Config
	Logger        logger.Logger
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.CRM == nil {
		return nil, fmt.Errorf("%s requires a CRM client", TaskType)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}

	handler := &Handler{
		config: workerConfig,
		logger: loggerInstance,
		obs:    opts.Observability,
	}

	handler.service = NewService(ServiceDependencies{
		Logger: loggerInstance,
		CRM:    opts.CRM,
	}, handler.config)

	return handler, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	ctx, span := h.obs.StartSpan(ctx, TaskType, attribute.Int64("jobKey", job.GetKey()))
	defer span.End()

	h.logger.Info("Processing CRM lead create request", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"worker":             TaskType,
	})

	input, err := h.parseInput(job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, extractErrorCode(err)).Inc()
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, extractErrorCode(err)).Inc()
		span.RecordError(err)
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "completed")
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputValidationError(fmt.Sprintf("Failed to parse job variables: %v", err))
	}

	if res := inputValidator.Validate(variables); !res.Valid {
		return nil, errors.NewInputValidationError(fmt.Sprintf("Validation errors: %s", res.Error()))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewInputValidationError(fmt.Sprintf("Failed to decode job variables: %v", err))
	}
	if input.LeadFields == nil {
		input.LeadFields = models.LeadFields{}
	}
	return &input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	variables := map[string]interface{}{
		"crmLeadCreated": output.CRMLeadCreated,
		"crmLeadUpdated": output.CRMLeadUpdated,
		"crmMessage":     output.CRMMessage,
		"crmLeadId":      output.CRMLeadID,
	}

	if output.CRMLeadURL != "" {
		variables["crmLeadUrl"] = output.CRMLeadURL
	}

	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(variables)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return
	}

	_, err = request.Send(ctx)
	if err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
	} else {
		h.logger.Info("Successfully completed CRM lead create", map[string]interface{}{
			"jobKey":    job.GetKey(),
			"crmLeadId": output.CRMLeadID,
			"worker":    TaskType,
		})
	}
}

// failJob retries CRM_WRITE_FAILED while the job has retries left; everything
// else is thrown as a BPMN error for the process to route.
func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.Normalize(err)
	bpmnErr := errors.ConvertToBPMNError(stdErr)

	h.logger.Error("CRM lead create job failed", map[string]interface{}{
		"jobKey":       job.GetKey(),
		"errorCode":    bpmnErr.Code,
		"errorMessage": bpmnErr.Message,
		"details":      bpmnErr.Details,
		"retryable":    bpmnErr.Retryable,
		"retries":      bpmnErr.Retries,
		"worker":       TaskType,
	})

	if bpmnErr.Retries == 0 || job.GetRetries() <= 1 {
		throwCmd, varErr := client.NewThrowErrorCommand().
			JobKey(job.GetKey()).
			ErrorCode(bpmnErr.Code).
			ErrorMessage(bpmnErr.Message).
			VariablesFromMap(bpmnErr.ToErrorVariables())
		if varErr != nil {
			h.logger.Error("Failed to set error variables", map[string]interface{}{"jobKey": job.GetKey(), "error": varErr.Error()})
			return
		}
		if _, sendErr := throwCmd.Send(ctx); sendErr != nil {
			h.logger.Error("Failed to throw BPMN error", map[string]interface{}{"jobKey": job.GetKey(), "error": sendErr.Error()})
		}
		return
	}

	failCmd := client.NewFailJobCommand().
		JobKey(job.GetKey()).
		Retries(errors.RetriesLeft(job.GetRetries(), bpmnErr.Retries)).
		ErrorMessage(fmt.Sprintf("[%s] %s", bpmnErr.Code, bpmnErr.Message))

	var finalCmd interface {
		Send(context.Context) (*pb.FailJobResponse, error)
	}
	varCmd, varErr := failCmd.VariablesFromMap(bpmnErr.ToErrorVariables())
	if varErr != nil {
		h.logger.Error("Failed to set error variables, sending without them", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  varErr.Error(),
			"worker": TaskType,
		})
		finalCmd = failCmd
	} else {
		finalCmd = varCmd
	}

	if _, failErr := finalCmd.Send(ctx); failErr != nil {
		h.logger.Error("Failed to send job failure to Camunda", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  failErr.Error(),
			"worker": TaskType,
		})
	}
}

func (h *Handler) HealthCheck(ctx context.Context) error {
	if err := h.service.TestConnection(ctx); err != nil {
		return fmt.Errorf("crm health check failed: %w", err)
	}
	return nil
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func (h *Handler) GetConfig() *Config {
	return h.config
}

func extractErrorCode(err error) string {
	return string(errors.Normalize(err).Code)
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		if workerCfg, exists := appConfig.Workers[TaskType]; exists {
			cfg.Enabled = workerCfg.Enabled
			if workerCfg.MaxJobsActive > 0 {
				cfg.MaxJobsActive = workerCfg.MaxJobsActive
			}
			if workerCfg.Timeout > 0 {
				cfg.Timeout = time.Duration(workerCfg.Timeout) * time.Millisecond
			}
		}

		cfg.DefaultStageID = appConfig.CRM.Odoo.DefaultStageID
		if b := appConfig.Scoring.PriorityBands; b.MediumMax > 0 {
			cfg.Bands = models.PriorityBands{LowMax: b.LowMax, MediumMax: b.MediumMax}
		}
	}

	return cfg
}

// Execute implements the standard worker interface for direct execution
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.service.Execute(ctx, input)
}
