package models

import "time"

type Token struct {
	TokenID            string     `json:"token_id"`
	TokenNumber        int        `json:"token_number"`
	OutletID           string     `json:"outlet_id"`
	CustomerID         string     `json:"customer_id,omitempty"`
	Status             string     `json:"status"`
	ServiceTypes       []string   `json:"service_types"`
	PreferredLanguages []string   `json:"preferred_languages,omitempty"`
	IsPriority         bool       `json:"is_priority"`
	AssignedOfficerID  *string    `json:"assigned_officer_id,omitempty"`
	CounterNumber      *int       `json:"counter_number,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	CalledAt           *time.Time `json:"called_at,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

const (
	StatusWaiting   = "waiting"
	StatusInService = "in_service"
	StatusSkipped   = "skipped"
	StatusCompleted = "completed"
)

// Matching modes accepted by the next-token operation.
const (
	ModeStrict          = "strict"
	ModeUnmatchedBypass = "unmatched_bypass"
)
