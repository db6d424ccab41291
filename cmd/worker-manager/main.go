// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	awsclients "lead-intake-workers/internal/common/aws"
	"lead-intake-workers/internal/common/camunda"
	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/database"
	"lead-intake-workers/internal/common/llm"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/observability"
	"lead-intake-workers/internal/common/odoo"

	nst "lead-intake-workers/internal/workers/communication/notify-sales-team"
	clc "lead-intake-workers/internal/workers/crm/crm-lead-create"
	alc "lead-intake-workers/internal/workers/data-access/archive-lead-conversation"
	clp "lead-intake-workers/internal/workers/lead/check-lead-priority"
	elf "lead-intake-workers/internal/workers/lead/extract-lead-fields"
	sl "lead-intake-workers/internal/workers/lead/score-lead"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOptions(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(observability.Options{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
	})
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown(context.Background())

	ctx := context.Background()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: cfg.Camunda.Plaintext,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Completion service ---
	completer, err := llm.NewFromConfig(cfg.LLM)
	if err != nil {
		zapLog.Fatal("llm client init failed", zap.Error(err))
	}

	// --- Redis (score cache, only with a positive cache_ttl) ---
	var redisClient *redis.Client
	if cfg.Scoring.CacheTTL <= 0 {
		zapLog.Info("score cache disabled")
	} else if rc, err := database.NewRedis(cfg.Database.Redis); err == nil {
		err = retryWithBackoff(func() error { return rc.Ping(ctx) }, 5, time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Warn("redis unavailable, score cache disabled", zap.Error(err))
			_ = rc.Close()
		} else {
			redisClient = rc.Client
			defer rc.Close()
			zapLog.Info("Redis connected successfully")
		}
	}

	// --- Postgres + Elasticsearch (archive) ---
	var pg *database.PostgresClient
	var esClient *elasticsearch.Client
	if config.IsWorkerEnabled(cfg, alc.TaskType) {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				return err
			}
			return pg.EnsureSchema(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")

		if cfg.Database.Elasticsearch.GetURL() != "" {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err == nil {
				err = es.EnsureIndex(ctx, cfg.Database.Elasticsearch.LeadIndex)
			}
			if err != nil {
				zapLog.Warn("elasticsearch unavailable, conversations will not be indexed", zap.Error(err))
			} else {
				esClient = es.Client
				zapLog.Info("Elasticsearch connected successfully")
			}
		}
	}

	// --- Odoo ---
	var crm *odoo.CRMClient
	if config.IsWorkerEnabled(cfg, clc.TaskType) {
		crm, err = odoo.NewCRMClient(cfg.CRM.Odoo)
		if err != nil {
			zapLog.Fatal("odoo client init failed", zap.Error(err))
		}
		defer crm.Close()
	}

	// --- AWS (notifications) ---
	notifyOpts := nst.HandlerOptions{AppConfig: cfg, Logger: log, Observability: obs}
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		awsCfg, err := awsclients.LoadConfig(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("aws config failed", zap.Error(err))
		}
		notifyOpts.SES = awsclients.NewSESClient(awsCfg)
		notifyOpts.SNS = awsclients.NewSNSClient(awsCfg)
	}

	registry := camunda.NewRegistry(zeebe.GetClient(), zapLog)

	// --- Workers ---
	{
		h, err := elf.NewHandler(elf.HandlerOptions{AppConfig: cfg, Completer: completer, Logger: log, Observability: obs})
		if err != nil {
			zapLog.Fatal("failed to create extract-lead-fields handler", zap.Error(err))
		}
		registry.Start(elf.TaskType, config.GetWorkerConfig(cfg, elf.TaskType), h.Handle)
	}
	{
		h, err := sl.NewHandler(sl.HandlerOptions{AppConfig: cfg, Completer: completer, Redis: redisClient, Logger: log, Observability: obs})
		if err != nil {
			zapLog.Fatal("failed to create score-lead handler", zap.Error(err))
		}
		registry.Start(sl.TaskType, config.GetWorkerConfig(cfg, sl.TaskType), h.Handle)
	}
	{
		h, err := clp.NewHandler(cfg, nil, log)
		if err != nil {
			zapLog.Fatal("failed to create check-lead-priority handler", zap.Error(err))
		}
		registry.Start(clp.TaskType, config.GetWorkerConfig(cfg, clp.TaskType), h.Handle)
	}

	var crmHandler *clc.Handler
	if crm != nil {
		crmHandler, err = clc.NewHandler(clc.HandlerOptions{AppConfig: cfg, CRM: crm, Logger: log, Observability: obs})
		if err != nil {
			zapLog.Fatal("failed to create crm-lead-create handler", zap.Error(err))
		}
		registry.Start(clc.TaskType, config.GetWorkerConfig(cfg, clc.TaskType), crmHandler.Handle)
	}

	var archiveHandler *alc.Handler
	if pg != nil {
		archiveHandler, err = alc.NewHandler(alc.HandlerOptions{AppConfig: cfg, DB: pg.DB, ES: esClient, Logger: log, Observability: obs})
		if err != nil {
			zapLog.Fatal("failed to create archive-lead-conversation handler", zap.Error(err))
		}
		registry.Start(alc.TaskType, config.GetWorkerConfig(cfg, alc.TaskType), archiveHandler.Handle)
	}

	{
		h, err := nst.NewHandler(notifyOpts)
		if err != nil {
			zapLog.Fatal("failed to create notify-sales-team handler", zap.Error(err))
		}
		registry.Start(nst.TaskType, config.GetWorkerConfig(cfg, nst.TaskType), h.Handle)
	}

	zapLog.Info("Workers registered", zap.Strings("running", registry.Running()))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"workers": registry.Running(),
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		status := http.StatusOK
		if crmHandler != nil {
			checks["crm"] = "ok"
			if err := crmHandler.HealthCheck(checkCtx); err != nil {
				checks["crm"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		if archiveHandler != nil {
			checks["postgres"] = "ok"
			if err := archiveHandler.HealthCheck(checkCtx); err != nil {
				checks["postgres"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}

		state := "ready"
		if status != http.StatusOK {
			state = "degraded"
		}
		writeStatus(w, status, map[string]interface{}{
			"status": state,
			"checks": checks,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.App.HTTPAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", cfg.App.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	registry.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
