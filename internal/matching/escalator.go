// internal/matching/escalator.go
package matching

import (
	"context"
	"net/http"
	"time"

	apperrors "caregiver-matching/internal/common/errors"
	httpclient "caregiver-matching/internal/common/http"
	"caregiver-matching/internal/models"
)

// Escalator hands a trigger to the asynchronous retry path.
type Escalator interface {
	Escalate(ctx context.Context, trigger models.TriggerRecord) error
}

// HTTPEscalator posts {queue_id, senior_id} to a retry endpoint.
type HTTPEscalator struct {
	client *httpclient.Client
	url    string
}

func NewHTTPEscalator(url string, timeout time.Duration) *HTTPEscalator {
	return &HTTPEscalator{client: httpclient.NewClient(timeout), url: url}
}

func (e *HTTPEscalator) Escalate(ctx context.Context, trigger models.TriggerRecord) error {
	if err := e.client.DoJSON(ctx, http.MethodPost, e.url, nil, trigger, nil); err != nil {
		return apperrors.NewEscalationError(err)
	}
	return nil
}

// ProcessStarter starts a workflow instance; *camunda.Client satisfies it.
type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, vars interface{}) (int64, error)
}

// ZeebeEscalator starts a new instance of the retry process carrying the trigger.
type ZeebeEscalator struct {
	starter   ProcessStarter
	processID string
}

func NewZeebeEscalator(starter ProcessStarter, processID string) *ZeebeEscalator {
	return &ZeebeEscalator{starter: starter, processID: processID}
}

func (e *ZeebeEscalator) Escalate(ctx context.Context, trigger models.TriggerRecord) error {
	if _, err := e.starter.StartProcess(ctx, e.processID, map[string]interface{}{
		"queue_id":  trigger.QueueID,
		"senior_id": trigger.SeniorID,
	}); err != nil {
		return apperrors.NewEscalationError(err)
	}
	return nil
}
