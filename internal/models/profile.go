// internal/models/profile.go
package models

import "encoding/json"

// Days and Slots span the weekly availability grid.
var (
	Days  = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
	Slots = []string{"morning", "afternoon", "evening"}
)

// EmbeddingDim is the fixed length of profile embeddings.
const EmbeddingDim = 384

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TimeSlot holds "HH:MM" bounds. Empty bounds mean the whole day.
type TimeSlot struct {
	Available bool   `json:"available"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
}

// Availability is keyed by day, then by slot.
type Availability map[string]map[string]TimeSlot

// Slot returns the slot for day/slot, zero value when absent.
func (a Availability) Slot(day, slot string) TimeSlot {
	if a == nil {
		return TimeSlot{}
	}
	return a[day][slot]
}

type SeniorProfile struct {
	ID              string       `json:"id"`
	Name            string       `json:"name,omitempty"`
	Email           string       `json:"email,omitempty"`
	Location        *Location    `json:"location,omitempty"`
	Availability    Availability `json:"availability,omitempty"`
	Conditions      []string     `json:"conditions,omitempty"`
	Budget          float64      `json:"budget,omitempty"`
	Embedding       []float32    `json:"embedding,omitempty"`
	FamilyMemberIDs []string     `json:"family_member_ids,omitempty"`
	FamilyEmails    []string     `json:"family_emails,omitempty"`
}

// CaregiverProfile is decoded from the metadata column of the similarity store.
type CaregiverProfile struct {
	ID              string       `json:"id,omitempty"`
	Name            string       `json:"name,omitempty"`
	Location        *Location    `json:"location,omitempty"`
	Availability    Availability `json:"availability,omitempty"`
	Specializations []string     `json:"specializations,omitempty"`
	HourlyRate      float64      `json:"hourly_rate,omitempty"`
	YearsExperience int          `json:"years_of_experience,omitempty"`
	Certifications  []string     `json:"certifications,omitempty"`
}

// Candidate is one similarity hit. Metadata is the raw caregiver document; Order is the
// 0-based retrieval position.
type Candidate struct {
	CaregiverID string
	Similarity  float64
	Metadata    json.RawMessage
	Order       int
}
