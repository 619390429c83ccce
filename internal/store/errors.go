package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthorized        = errors.New("registration not authorized")
	ErrOutletNotFound       = errors.New("outlet not found")
	ErrOutletInactive       = errors.New("outlet inactive")
	ErrTokenNotFound        = errors.New("token not found")
	ErrOfficerNotFound      = errors.New("officer not found")
	ErrOfficerUnavailable   = errors.New("officer unavailable")
	ErrOfficerUnprovisioned = errors.New("officer has no assigned services or languages")
	ErrNoMatch              = errors.New("no matching token")
	ErrInvalidState         = errors.New("invalid token state")
	ErrAssignConflict       = errors.New("token claimed by another officer")
	ErrBreakActive          = errors.New("break already active")
	ErrBreakQuota           = errors.New("daily break quota reached")
	ErrBreakBudget          = errors.New("daily break minutes exhausted")
	ErrNoActiveBreak        = errors.New("no active break")
	ErrCounterCapacity      = errors.New("counter number exceeds outlet capacity")
	ErrTimeout              = errors.New("operation timed out")
)

// DuplicateTokenError rejects a second registration while the customer
// already holds an active token at the outlet. The existing number travels
// with the error so the caller can show it.
type DuplicateTokenError struct {
	TokenNumber int
}

func (e *DuplicateTokenError) Error() string {
	return fmt.Sprintf("active token %d already exists for this customer", e.TokenNumber)
}

// CooldownError rejects a break started before the cooldown since the
// previous break elapsed.
type CooldownError struct {
	RemainingMinutes int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("break cooldown active, wait %d more minutes", e.RemainingMinutes)
}
