package logwatch

import "fmt"

// WatchState describes the watcher lifecycle.
type WatchState int32

const (
	// StateStopped means the watcher is idle; nothing scheduled.
	StateStopped WatchState = iota
	// StateStarting means a start attempt is resolving the log file.
	StateStarting
	// StateWatching means a log file is resolved and polling is active.
	StateWatching
	// StateError means the last start attempt failed.
	StateError
	// StateRetryScheduled means a retry timer is pending after a failure.
	StateRetryScheduled
)

func (s WatchState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateWatching:
		return "watching"
	case StateError:
		return "error"
	case StateRetryScheduled:
		return "retry_scheduled"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// MarshalJSON renders the state as its string form for API responses.
func (s WatchState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}
