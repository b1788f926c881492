package api

import "testing"

func TestValidateResponseTransition(t *testing.T) {
	tests := []struct {
		from, to ResponseStatus
		ok       bool
	}{
		{"", ResponseStatusQueued, true},
		{"", ResponseStatusInProgress, true},
		{ResponseStatusQueued, ResponseStatusInProgress, true},
		{ResponseStatusInProgress, ResponseStatusCompleted, true},
		{ResponseStatusInProgress, ResponseStatusFailed, true},
		{ResponseStatusInProgress, ResponseStatusIncomplete, true},
		{ResponseStatusCompleted, ResponseStatusInProgress, false},
		{ResponseStatusFailed, ResponseStatusCompleted, false},
		{ResponseStatusCancelled, ResponseStatusInProgress, false},
		{"", ResponseStatusCompleted, false},
	}

	for _, tt := range tests {
		err := ValidateResponseTransition(tt.from, tt.to)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateResponseTransition(%q, %q) = %v, want ok=%v", tt.from, tt.to, err, tt.ok)
		}
	}
}

func TestValidateItemTransition(t *testing.T) {
	tests := []struct {
		from, to ItemStatus
		ok       bool
	}{
		{"", ItemStatusInProgress, true},
		{"", ItemStatusCompleted, true},
		{ItemStatusInProgress, ItemStatusCompleted, true},
		{ItemStatusInProgress, ItemStatusIncomplete, true},
		{ItemStatusCompleted, ItemStatusInProgress, false},
		{ItemStatusIncomplete, ItemStatusCompleted, false},
	}

	for _, tt := range tests {
		err := ValidateItemTransition(tt.from, tt.to)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateItemTransition(%q, %q) = %v, want ok=%v", tt.from, tt.to, err, tt.ok)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []ResponseStatus{
		ResponseStatusCompleted, ResponseStatusIncomplete,
		ResponseStatusFailed, ResponseStatusCancelled,
	}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []ResponseStatus{ResponseStatusQueued, ResponseStatusInProgress} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestIDGeneration(t *testing.T) {
	id := NewResponseID()
	if !ValidateResponseID(id) {
		t.Errorf("NewResponseID() = %q does not validate", id)
	}
	item := NewItemID()
	if !ValidateItemID(item) {
		t.Errorf("NewItemID() = %q does not validate", item)
	}
	if NewResponseID() == NewResponseID() {
		t.Error("response ids should not collide")
	}
}
