package queue

import (
	"math"
	"time"

	"branchq/queue-service/internal/models"
)

// BreakPolicy holds the per-officer daily break limits. Rules are evaluated
// against the officer's calendar-day break rows, not the queue window.
type BreakPolicy struct {
	Cooldown    time.Duration
	MaxPerDay   int
	DailyBudget time.Duration
}

func DefaultBreakPolicy() BreakPolicy {
	return BreakPolicy{
		Cooldown:    30 * time.Minute,
		MaxPerDay:   6,
		DailyBudget: 90 * time.Minute,
	}
}

type BreakDenial struct {
	Reason           string
	RemainingMinutes int
}

const (
	BreakDeniedActive   = "break_active"
	BreakDeniedCooldown = "cooldown"
	BreakDeniedQuota    = "quota"
	BreakDeniedBudget   = "budget"
)

// EvaluateStart checks whether a new break may begin given today's rows.
// A nil result means the break is allowed.
func (p BreakPolicy) EvaluateStart(today []models.BreakLog, now time.Time) *BreakDenial {
	var lastEnded time.Time
	var used time.Duration
	for _, row := range today {
		if row.EndedAt == nil {
			return &BreakDenial{Reason: BreakDeniedActive}
		}
		if row.EndedAt.After(lastEnded) {
			lastEnded = *row.EndedAt
		}
		used += row.EndedAt.Sub(row.StartedAt)
	}

	if !lastEnded.IsZero() {
		elapsed := now.Sub(lastEnded)
		if elapsed < p.Cooldown {
			remaining := int(math.Ceil((p.Cooldown - elapsed).Minutes()))
			return &BreakDenial{Reason: BreakDeniedCooldown, RemainingMinutes: remaining}
		}
	}

	if p.MaxPerDay > 0 && len(today) >= p.MaxPerDay {
		return &BreakDenial{Reason: BreakDeniedQuota}
	}

	if p.DailyBudget > 0 && used >= p.DailyBudget {
		return &BreakDenial{Reason: BreakDeniedBudget}
	}

	return nil
}

// DayStart returns midnight of now's calendar day in now's location.
func DayStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
