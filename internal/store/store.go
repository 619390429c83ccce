package store

import (
	"context"
	"encoding/json"
	"time"

	"branchq/queue-service/internal/models"
)

type RegisterInput struct {
	Name         string
	Mobile       string
	OutletID     string
	ServiceTypes []string
	Languages    []string
	Authorized   bool
	CreatedAt    time.Time
}

type NextTokenInput struct {
	OfficerID string
	Mode      string
	CalledAt  time.Time
}

type TokenActionInput struct {
	OfficerID  string
	TokenID    string
	OccurredAt time.Time
}

type LoginInput struct {
	OfficerID     string
	CounterNumber int
}

// TokenStore is the persistence boundary of the engine. Every mutation runs
// in a single transaction on the implementation side.
type TokenStore interface {
	Register(ctx context.Context, input RegisterInput) (models.Token, error)
	GetToken(ctx context.Context, tokenID string) (models.Token, error)
	ListWaiting(ctx context.Context, outletID string) ([]models.Token, error)
	NextToken(ctx context.Context, input NextTokenInput) (models.Token, error)
	CallToken(ctx context.Context, input TokenActionInput) (models.Token, error)
	SkipToken(ctx context.Context, input TokenActionInput) (models.Token, error)
	RecallToken(ctx context.Context, input TokenActionInput) (models.Token, error)
	CompleteToken(ctx context.Context, input TokenActionInput) (models.Token, error)
	SetPriority(ctx context.Context, tokenID string) (models.Token, error)
	UnmatchedTokens(ctx context.Context, outletID string) ([]models.Token, error)
	StartBreak(ctx context.Context, officerID string, now time.Time) (models.BreakLog, error)
	EndBreak(ctx context.Context, officerID string, now time.Time) (models.BreakLog, error)
	OfficerLogin(ctx context.Context, input LoginInput) (models.Officer, error)
	OfficerLogout(ctx context.Context, officerID string) (models.Officer, error)
	ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]OutboxEvent, error)
}

type OutboxEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
