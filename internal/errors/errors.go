package errors

import "fmt"

// APIError represents a failure of one GitHub API operation during a poll.
// Number is zero for repo-scoped operations.
type APIError struct {
	Operation string
	Repo      string
	Number    int
	Err       error
}

func (e *APIError) Error() string {
	if e.Number > 0 {
		return fmt.Sprintf("%s for %s#%d: %v", e.Operation, e.Repo, e.Number, e.Err)
	}

	return fmt.Sprintf("%s for %s: %v", e.Operation, e.Repo, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ListenerPanicError indicates an event listener panicked; the panic was
// recovered so the remaining listeners still ran.
type ListenerPanicError struct {
	EventKind string
	Value     any
}

func (e *ListenerPanicError) Error() string {
	return fmt.Sprintf("listener for %s event panicked: %v", e.EventKind, e.Value)
}

// HookError represents a failure of a caller-supplied hook (discovery or
// status classification).
type HookError struct {
	Hook string
	Err  error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook failed: %v", e.Hook, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}
