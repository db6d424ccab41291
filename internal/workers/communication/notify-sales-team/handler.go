package notifysalesteam

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"

	awsclients "lead-intake-workers/internal/common/aws"
	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/metrics"
	"lead-intake-workers/internal/common/observability"
	"lead-intake-workers/internal/models"
)

const TaskType = "notify-sales-team"

type Handler struct {
	config  *Config
	logger  logger.Logger
	service *Service
	errors  *errors.ErrorHandler
	obs     *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	SES           awsclients.EmailSender
	SNS           awsclients.Publisher
	CustomConfig  *Config
	Logger        logger.Logger
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}

	return &Handler{
		config: workerConfig,
		logger: loggerInstance,
		service: NewService(ServiceDependencies{
			Logger: loggerInstance,
			SES:    opts.SES,
			SNS:    opts.SNS,
		}, workerConfig),
		errors: errors.NewErrorHandler(loggerInstance),
		obs:    opts.Observability,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	ctx, span := h.obs.StartSpan(ctx, TaskType, attribute.Int64("jobKey", job.GetKey()))
	defer span.End()

	input, err := h.parseInput(job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		stdErr := errors.Normalize(err)
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
		span.RecordError(err)

		// Retry while the engine allows it; afterwards the process moves on
		// with status=failed instead of stalling a lead that is already in the CRM.
		if output == nil || (stdErr.Retryable && job.GetRetries() > 1) {
			h.obs.RecordJobProcessed(ctx, TaskType, "failed")
			h.errors.HandleJobError(ctx, client, job, withRetryState(stdErr, output))
			return
		}
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), string(output.Status))
}

// withRetryState stores the notification id and the channels already
// delivered in the fail command's variables, so the retry reuses the id and
// skips those channels.
func withRetryState(stdErr *errors.StandardError, output *Output) *errors.StandardError {
	if output == nil {
		return stdErr
	}
	return stdErr.
		WithMetadata("notificationId", output.NotificationID).
		WithMetadata("notificationDeliveries", output.sent())
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
	if !input.Urgent {
		input.Urgent = input.Priority == models.PriorityHigh || input.LeadFields.IsUrgent()
	}
	return &input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(map[string]interface{}{
		"notificationId":     output.NotificationID,
		"notificationStatus": output.Status,
		"notificationSentAt": output.SentAt,
	})
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) GetConfig() *Config {
	return h.config
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	if workerCfg, exists := appConfig.Workers[TaskType]; exists {
		cfg.Enabled = workerCfg.Enabled
		if workerCfg.MaxJobsActive > 0 {
			cfg.MaxJobsActive = workerCfg.MaxJobsActive
		}
		if workerCfg.Timeout > 0 {
			cfg.Timeout = config.GetDuration(workerCfg.Timeout)
		}
	}

	n := appConfig.Notifications
	cfg.EmailEnabled = n.Email.Enabled
	cfg.FromEmail = n.Email.FromEmail
	cfg.SalesInbox = n.Email.SalesInbox
	cfg.SMSEnabled = n.SMS.Enabled
	cfg.PhoneNumber = n.SMS.PhoneNumber
	cfg.TopicARN = n.SMS.TopicARN

	return cfg
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.service.Execute(ctx, input)
}
