package queue

import "time"

// Window describes the rolling business-day boundary used to scope token
// numbering and queue visibility. The day runs reset-to-reset, not
// midnight-to-midnight.
type Window struct {
	Hour   int
	Minute int
}

func DefaultWindow() Window {
	return Window{Hour: 12}
}

// LastReset returns the most recent boundary at or before now. When now is
// earlier than today's boundary, the window started at yesterday's boundary.
func (w Window) LastReset(now time.Time) time.Time {
	reset := time.Date(now.Year(), now.Month(), now.Day(), w.Hour, w.Minute, 0, 0, now.Location())
	if now.Before(reset) {
		reset = reset.AddDate(0, 0, -1)
	}
	return reset
}

// NextReset returns the first boundary strictly after now.
func (w Window) NextReset(now time.Time) time.Time {
	return w.LastReset(now).AddDate(0, 0, 1)
}
