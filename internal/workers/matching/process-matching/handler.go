// internal/workers/matching/process-matching/handler.go
package processmatching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/matching"
	"caregiver-matching/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType      = "process-matching"
	AsyncTaskType = "process-matching-async"
)

var ErrMissingTrigger = errors.New("neither event nor senior_id provided")

// Runner is the matching pipeline as seen by the worker.
type Runner interface {
	Run(ctx context.Context, trigger models.TriggerRecord) (*matching.Result, error)
	RunAsync(ctx context.Context, trigger models.TriggerRecord) (*matching.Result, error)
}

type Handler struct {
	config       *Config
	pipeline     Runner
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

// NewHandler serves TaskType, or AsyncTaskType when config.Async is set.
func NewHandler(config *Config, pipeline Runner, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": taskType(config)})
	return &Handler{
		config:       config,
		pipeline:     pipeline,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func taskType(config *Config) string {
	if config.Async {
		return AsyncTaskType
	}
	return TaskType
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, apperrors.NewInvalidEventError(fmt.Errorf("parse input: %w", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	trigger, err := resolveTrigger(input)
	if err != nil {
		return nil, err
	}

	var res *matching.Result
	if h.config.Async {
		res, err = h.pipeline.RunAsync(ctx, trigger)
	} else {
		res, err = h.pipeline.Run(ctx, trigger)
	}
	if err != nil {
		return nil, err
	}

	sent := 0
	for _, n := range res.Notifications {
		if n.Status == "sent" {
			sent++
		}
	}
	return &Output{
		Outcome:           string(res.Outcome),
		QueueID:           res.QueueID,
		SeniorID:          res.SeniorID,
		MatchCount:        res.MatchCount,
		ModelVersion:      res.ModelVersion,
		NotificationsSent: sent,
		Reason:            res.Reason,
	}, nil
}

// resolveTrigger prefers the change event; the event may arrive as an object or as a JSON string.
func resolveTrigger(input *Input) (models.TriggerRecord, error) {
	if len(input.Event) > 0 && string(input.Event) != "null" {
		raw := []byte(input.Event)
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err == nil {
			raw = []byte(encoded)
		}
		return matching.ParseTriggerEvent(raw)
	}
	if input.SeniorID == "" {
		return models.TriggerRecord{}, apperrors.NewInvalidEventError(ErrMissingTrigger)
	}
	return models.TriggerRecord{QueueID: input.QueueID, SeniorID: input.SeniorID}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
