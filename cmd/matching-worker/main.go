// cmd/matching-worker/main.go
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"caregiver-matching/internal/app"
	awsclient "caregiver-matching/internal/common/aws"
	"caregiver-matching/internal/common/camunda"
	"caregiver-matching/internal/common/config"
	"caregiver-matching/internal/common/database"
	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/common/observability"
	"caregiver-matching/internal/training"

	pm "caregiver-matching/internal/workers/matching/process-matching"
	rrm "caregiver-matching/internal/workers/training/retrain-ranking-model"
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

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting matching worker...", zap.String("environment", cfg.App.Environment))

	obs, err := observability.New(observability.Options{
		ServiceName:    "matching-worker",
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
	})
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	clients := app.Clients{
		DB:    pg.GetDB(),
		Redis: redis,
		Zeebe: zeebe,
		Obs:   obs,
	}

	// Elasticsearch only backs evaluation telemetry; run without it rather than fail.
	if cfg.Database.Elasticsearch.GetURL() != "" {
		err = retryWithBackoff(func() error {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := es.Ping(); err != nil {
				return err
			}
			clients.Elasticsearch = es
			return nil
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, evaluation history disabled", zap.Error(err))
		}
	}

	aws := cfg.Integrations.AWS
	if aws.SNS.Enabled {
		snsClient, err := awsclient.NewSNSClient(ctx, aws.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		clients.SNS = snsClient
	}
	if aws.SES.Enabled {
		sesClient, err := awsclient.NewSESClient(ctx, aws.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		clients.SES = sesClient
	}

	// --- Scorer: load the active model once, then follow the registry ---
	scorer := app.NewScorer(cfg, clients, log)
	if err := scorer.Reload(ctx); err != nil {
		zapLog.Warn("initial model load failed, serving heuristic scores", zap.Error(err))
	}
	go scorer.Watch(ctx, app.ReloadInterval(cfg))

	pipeline := app.NewPipeline(cfg, clients, scorer, log)
	retrain := app.NewRetrainJob(cfg, clients, false, log)

	// --- Register Workers ---
	var workers []*camunda.CamundaWorker

	if wcfg := config.GetWorkerConfig(cfg, pm.TaskType); wcfg.Enabled {
		handler := pm.NewHandler(&pm.Config{Timeout: config.GetDuration(wcfg.Timeout)}, pipeline, log)
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), pm.TaskType, workerOptions(wcfg), handler.Handle, log))
	}
	if wcfg := config.GetWorkerConfig(cfg, pm.AsyncTaskType); wcfg.Enabled {
		handler := pm.NewHandler(&pm.Config{Timeout: config.GetDuration(wcfg.Timeout), Async: true}, pipeline, log)
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), pm.AsyncTaskType, workerOptions(wcfg), handler.Handle, log))
	}
	if wcfg := config.GetWorkerConfig(cfg, rrm.TaskType); wcfg.Enabled {
		handler := rrm.NewHandler(&rrm.Config{Timeout: config.GetDuration(wcfg.Timeout)}, retrain, log)
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), rrm.TaskType, workerOptions(wcfg), handler.Handle, log))
	}
	for _, w := range workers {
		w.Start()
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health, Metrics & Retrain Server ---
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: newMux(zeebe, pg, retrain)}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Matching worker stopped gracefully")
}

func workerOptions(wcfg config.WorkerConfig) camunda.WorkerOptions {
	return camunda.WorkerOptions{
		MaxJobsActive: wcfg.MaxJobsActive,
		Timeout:       config.GetDuration(wcfg.Timeout),
	}
}

type retrainer interface {
	Run(ctx context.Context) (*training.Result, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type zeebeHealth interface {
	HealthCheck(ctx context.Context) error
}

func newMux(zeebe zeebeHealth, db pinger, retrain retrainer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		status, code := "ready", http.StatusOK
		if err := db.Ping(ctx); err != nil {
			status, code = "postgres unavailable", http.StatusServiceUnavailable
		} else if err := zeebe.HealthCheck(ctx); err != nil {
			status, code = "zeebe unavailable", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/retrain", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"status": "error", "error": "method not allowed"})
			return
		}
		res, err := retrain.Run(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
