package game

import (
	"encoding/json"
	"testing"
)

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{Waiting, "waiting"},
		{Playing, "playing"},
		{Ended, "ended"},
		{Aborted, "aborted"},
		{Phase(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", int(tt.phase), got, tt.want)
		}
	}
}

func TestPhaseJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Playing)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(data) != `"playing"` {
		t.Errorf("Marshal(Playing) = %s, want %q", data, `"playing"`)
	}

	var p Phase
	if err := json.Unmarshal([]byte(`"aborted"`), &p); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if p != Aborted {
		t.Errorf("Unmarshal(aborted) = %v, want Aborted", p)
	}
}

func TestPhaseIsTerminal(t *testing.T) {
	tests := []struct {
		phase    Phase
		terminal bool
	}{
		{Waiting, false},
		{Playing, false},
		{Ended, true},
		{Aborted, true},
	}

	for _, tt := range tests {
		if got := tt.phase.IsTerminal(); got != tt.terminal {
			t.Errorf("IsTerminal(%v) = %v, want %v", tt.phase, got, tt.terminal)
		}
	}
}
