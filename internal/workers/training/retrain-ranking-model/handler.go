// internal/workers/training/retrain-ranking-model/handler.go
package retrainrankingmodel

import (
	"context"

	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/training"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "retrain-ranking-model"

type Runner interface {
	Run(ctx context.Context) (*training.Result, error)
}

// Handler runs one retrain per job. The job carries no input; the result body becomes the
// job variables.
type Handler struct {
	config       *Config
	job          Runner
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, job Runner, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		job:          job,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

// Execute returns the result for success and insufficient_data; an error run returns the error.
func (h *Handler) Execute(ctx context.Context) (*training.Result, error) {
	res, err := h.job.Run(ctx)
	if err != nil {
		return nil, err
	}
	h.logger.Info("retrain completed", map[string]interface{}{
		"status":  res.Status,
		"version": res.ModelVersion,
	})
	return res, nil
}
