// internal/models/notification.go
package models

// Notification is a match-ready message fanned out to a senior and their family.
type Notification struct {
	ID          string   `json:"id"`
	SeniorID    string   `json:"seniorId"`
	RecipientID string   `json:"recipientId"`
	Type        string   `json:"type"`    // "matches_ready"
	Channel     string   `json:"channel"` // "push", "email"
	Status      string   `json:"status"`  // "sent", "failed", "disabled"
	MatchCount  int      `json:"matchCount"`
	Emails      []string `json:"emails,omitempty"`
	SentAt      string   `json:"sentAt,omitempty"`
}
