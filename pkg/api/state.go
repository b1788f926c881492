package api

import "fmt"

// ValidateResponseTransition checks whether a response status transition is
// valid. An empty "from" status represents the initial state before any
// status has been observed. Terminal states allow no outgoing transitions.
func ValidateResponseTransition(from, to ResponseStatus) *APIError {
	valid := map[ResponseStatus][]ResponseStatus{
		"":                       {ResponseStatusQueued, ResponseStatusInProgress},
		ResponseStatusQueued:     {ResponseStatusInProgress, ResponseStatusCancelled, ResponseStatusFailed},
		ResponseStatusInProgress: {ResponseStatusCompleted, ResponseStatusIncomplete, ResponseStatusFailed, ResponseStatusCancelled},
	}

	for _, s := range valid[from] {
		if s == to {
			return nil
		}
	}

	return NewInvalidRequestError("status",
		fmt.Sprintf("invalid transition from %s to %s", from, to))
}

// ValidateItemTransition checks whether an item status transition is valid.
// An empty "from" status represents the initial state before any status has
// been observed. Completed and incomplete are terminal.
func ValidateItemTransition(from, to ItemStatus) *APIError {
	valid := map[ItemStatus][]ItemStatus{
		"":                   {ItemStatusInProgress, ItemStatusCompleted, ItemStatusIncomplete},
		ItemStatusInProgress: {ItemStatusCompleted, ItemStatusIncomplete},
	}

	for _, s := range valid[from] {
		if s == to {
			return nil
		}
	}

	return NewInvalidRequestError("status",
		fmt.Sprintf("invalid transition from %s to %s", from, to))
}
