package store

import (
	"testing"
	"time"

	"branchq/queue-service/internal/models"
)

func TestRehydrateToken(t *testing.T) {
	created := time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)
	called := created.Add(5 * time.Minute)
	completed := created.Add(12 * time.Minute)
	officerID := "officer-1"
	counter := 3

	newPayload, err := EncodeTokenPayload(models.Token{
		TokenID:      "token-1",
		TokenNumber:  7,
		OutletID:     "outlet-1",
		Status:       models.StatusWaiting,
		ServiceTypes: []string{"bill_payment"},
		CreatedAt:    created,
	})
	if err != nil {
		t.Fatalf("encode new: %v", err)
	}
	calledPayload, err := EncodeTokenPayload(models.Token{
		TokenID:           "token-1",
		TokenNumber:       7,
		OutletID:          "outlet-1",
		Status:            models.StatusInService,
		AssignedOfficerID: &officerID,
		CounterNumber:     &counter,
		CalledAt:          &called,
		StartedAt:         &called,
	})
	if err != nil {
		t.Fatalf("encode called: %v", err)
	}
	donePayload, err := EncodeTokenPayload(models.Token{
		TokenID:     "token-1",
		TokenNumber: 7,
		OutletID:    "outlet-1",
		Status:      models.StatusCompleted,
		CompletedAt: &completed,
	})
	if err != nil {
		t.Fatalf("encode done: %v", err)
	}

	token, err := RehydrateToken([]OutboxEvent{
		{Type: EventNewToken, Payload: newPayload},
		{Type: EventTokenCalled, Payload: calledPayload},
		{Type: EventTokenCompleted, Payload: donePayload},
	})
	if err != nil {
		t.Fatalf("rehydrate: %v", err)
	}

	if token.Status != models.StatusCompleted {
		t.Fatalf("status = %q, want completed", token.Status)
	}
	if token.TokenNumber != 7 || token.OutletID != "outlet-1" {
		t.Fatalf("identity lost: %+v", token)
	}
	if !token.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v, want %v", token.CreatedAt, created)
	}
	if token.CompletedAt == nil || !token.CompletedAt.Equal(completed) {
		t.Fatalf("completed_at = %v, want %v", token.CompletedAt, completed)
	}
	if token.AssignedOfficerID != nil {
		t.Fatalf("officer should clear on the final event, got %v", *token.AssignedOfficerID)
	}
}

func TestRehydrateTokenBadPayload(t *testing.T) {
	_, err := RehydrateToken([]OutboxEvent{{Type: EventNewToken, Payload: []byte(`{`)}})
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
