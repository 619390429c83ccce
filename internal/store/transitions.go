package store

import "branchq/queue-service/internal/models"

// Allowed pre-states per lifecycle action. Nothing leaves completed.
var transitionMap = map[string][]string{
	"next":     {models.StatusWaiting},
	"call":     {models.StatusWaiting, models.StatusInService, models.StatusSkipped},
	"skip":     {models.StatusInService},
	"recall":   {models.StatusSkipped},
	"complete": {models.StatusInService},
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}
