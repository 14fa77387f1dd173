// internal/workers/matching/process-matching/models.go
package processmatching

import "encoding/json"

// Input carries either the raw change event of the matching queue or, on the async path,
// the already resolved ids.
type Input struct {
	Event    json.RawMessage `json:"event,omitempty"`
	QueueID  string          `json:"queue_id,omitempty"`
	SeniorID string          `json:"senior_id,omitempty"`
}

type Output struct {
	Outcome           string `json:"matchOutcome"`
	QueueID           string `json:"queueId"`
	SeniorID          string `json:"seniorId"`
	MatchCount        int    `json:"matchCount"`
	ModelVersion      string `json:"modelVersion,omitempty"`
	NotificationsSent int    `json:"notificationsSent"`
	Reason            string `json:"reason,omitempty"`
}
