package scorelead

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/llm"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/metrics"
	"lead-intake-workers/internal/common/observability"
	"lead-intake-workers/internal/common/validation"
)

const TaskType = "score-lead"

var inputValidator = validation.MustCompile(inputSchema)

type Handler struct {
	config *Config
	logger logger.Logger
	scorer *Scorer
	errors *errors.ErrorHandler
	obs    *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Completer     llm.Completer
	Redis         *redis.Client // optional; nil disables the score cache
	CustomConfig  *Config
	Logger        logger.Logger
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Completer == nil {
		return nil, fmt.Errorf("%s requires a completer", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.With(map[string]interface{}{"taskType": TaskType})

	var cache ScoreCache
	if opts.Redis != nil && cfg.CacheTTL > 0 {
		cache = NewRedisScoreCache(opts.Redis, cfg.CacheTTL)
	}

	return &Handler{
		config: cfg,
		logger: log,
		scorer: NewScorer(opts.Completer, cache, log, cfg.LLMTimeout),
		errors: errors.NewErrorHandler(log),
		obs:    opts.Observability,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	ctx, span := h.obs.StartSpan(ctx, TaskType, attribute.Int64("jobKey", job.Key))
	defer span.End()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	input, err := h.parseInput(job)
	if err == nil {
		var output *Output
		if output, err = h.Execute(ctx, input); err == nil {
			h.completeJob(ctx, client, job, output)
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
			h.obs.RecordJobProcessed(ctx, TaskType, "completed")
			h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
			return
		}
	}

	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	span.RecordError(err)
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
	h.errors.HandleJobError(ctx, client, job, stdErr)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Transcript) == "" {
		return nil, errors.NewInputValidationError("transcript is required")
	}

	score := h.scorer.Score(ctx, input.Transcript)
	if score == nil {
		return &Output{ScoreTotal: 0, Scored: false}, nil
	}

	h.logger.Info("lead scored", map[string]interface{}{"scoreTotal": *score})
	return &Output{ScoreTotal: *score, Scored: true}, nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputValidationError(fmt.Sprintf("failed to parse job variables: %v", err))
	}

	if res := inputValidator.Validate(variables); !res.Valid {
		return nil, errors.NewInputValidationError(res.Error())
	}

	transcript, _ := variables["transcript"].(string)
	return &Input{Transcript: transcript}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":     job.Key,
		"scored":     output.Scored,
		"scoreTotal": output.ScoreTotal,
	})
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

	if workerCfg, ok := appConfig.Workers[TaskType]; ok {
		cfg.Enabled = workerCfg.Enabled
		if workerCfg.MaxJobsActive > 0 {
			cfg.MaxJobsActive = workerCfg.MaxJobsActive
		}
		if workerCfg.Timeout > 0 {
			cfg.Timeout = config.GetDuration(workerCfg.Timeout)
		}
	}
	if appConfig.LLM.Timeout > 0 {
		cfg.LLMTimeout = config.GetDuration(appConfig.LLM.Timeout)
	}
	if appConfig.Scoring.CacheTTL > 0 {
		cfg.CacheTTL = config.GetDuration(appConfig.Scoring.CacheTTL)
	}
	if cfg.LLMTimeout > cfg.Timeout {
		cfg.Timeout = cfg.LLMTimeout + 10*time.Second
	}
	return cfg
}
