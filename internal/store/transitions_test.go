package store

import "testing"

func TestValidTransition(t *testing.T) {
	cases := []struct {
		action string
		from   string
		valid  bool
	}{
		{"next", "waiting", true},
		{"next", "skipped", false},
		{"call", "waiting", true},
		{"call", "in_service", true},
		{"call", "skipped", true},
		{"call", "completed", false},
		{"skip", "in_service", true},
		{"skip", "waiting", false},
		{"skip", "completed", false},
		{"recall", "skipped", true},
		{"recall", "waiting", false},
		{"recall", "completed", false},
		{"complete", "in_service", true},
		{"complete", "completed", false},
		{"unknown", "waiting", false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}
