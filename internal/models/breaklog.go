package models

import "time"

type BreakLog struct {
	BreakID         string     `json:"break_id"`
	OfficerID       string     `json:"officer_id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
}
