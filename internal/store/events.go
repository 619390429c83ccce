package store

import (
	"encoding/json"
	"time"

	"branchq/queue-service/internal/models"
)

// Event types written to the outbox. The notification collaborator consumes
// these verbatim.
const (
	EventNewToken       = "NEW_TOKEN"
	EventTokenCalled    = "TOKEN_CALLED"
	EventTokenSkipped   = "TOKEN_SKIPPED"
	EventTokenRecalled  = "TOKEN_RECALLED"
	EventTokenCompleted = "TOKEN_COMPLETED"
	EventOfficerStatus  = "OFFICER_STATUS_CHANGE"
	EventDailyReset     = "DAILY_RESET"
	EventLongWait       = "LONG_WAIT"
)

type TokenEventPayload struct {
	TokenID           string     `json:"token_id"`
	TokenNumber       int        `json:"token_number"`
	OutletID          string     `json:"outlet_id"`
	Status            string     `json:"status"`
	ServiceTypes      []string   `json:"service_types,omitempty"`
	AssignedOfficerID *string    `json:"assigned_officer_id,omitempty"`
	CounterNumber     *int       `json:"counter_number,omitempty"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	CalledAt          *time.Time `json:"called_at,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

func EncodeTokenPayload(token models.Token) (json.RawMessage, error) {
	createdAt := token.CreatedAt
	payload := TokenEventPayload{
		TokenID:           token.TokenID,
		TokenNumber:       token.TokenNumber,
		OutletID:          token.OutletID,
		Status:            token.Status,
		ServiceTypes:      token.ServiceTypes,
		AssignedOfficerID: token.AssignedOfficerID,
		CounterNumber:     token.CounterNumber,
		CalledAt:          token.CalledAt,
		StartedAt:         token.StartedAt,
		CompletedAt:       token.CompletedAt,
	}
	if !createdAt.IsZero() {
		payload.CreatedAt = &createdAt
	}
	return json.Marshal(payload)
}

// RehydrateToken folds an ordered event stream back into the token's last
// known shape. Display boards reconnecting mid-day rebuild from this.
func RehydrateToken(events []OutboxEvent) (models.Token, error) {
	var token models.Token
	for _, event := range events {
		if len(event.Payload) == 0 {
			continue
		}
		var payload TokenEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return models.Token{}, err
		}
		if payload.TokenID != "" {
			token.TokenID = payload.TokenID
		}
		if payload.TokenNumber != 0 {
			token.TokenNumber = payload.TokenNumber
		}
		if payload.OutletID != "" {
			token.OutletID = payload.OutletID
		}
		if payload.Status != "" {
			token.Status = payload.Status
		}
		if len(payload.ServiceTypes) > 0 {
			token.ServiceTypes = payload.ServiceTypes
		}
		if payload.CreatedAt != nil {
			token.CreatedAt = *payload.CreatedAt
		}
		if payload.CalledAt != nil {
			token.CalledAt = payload.CalledAt
		}
		if payload.StartedAt != nil {
			token.StartedAt = payload.StartedAt
		}
		if payload.CompletedAt != nil {
			token.CompletedAt = payload.CompletedAt
		}
		token.AssignedOfficerID = payload.AssignedOfficerID
		token.CounterNumber = payload.CounterNumber
	}
	return token, nil
}
