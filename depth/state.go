package depth

import "encoding/json"

// State tracks a depth inference job through the remote exchange.
type State int

const (
	// StateIdle means the job has not been submitted yet.
	StateIdle State = iota
	// StateSubmitted means the server accepted the workflow.
	StateSubmitted
	// StateWaiting means the client is watching the event stream.
	StateWaiting
	// StateCompleted means the depth artifact was produced.
	StateCompleted
	// StateFailed means the job cannot produce an artifact.
	StateFailed
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSubmitted:
		return "Submitted"
	case StateWaiting:
		return "Waiting"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// MarshalJSON serializes State as a lowercase string.
func (s State) MarshalJSON() ([]byte, error) {
	var str string
	switch s {
	case StateIdle:
		str = "idle"
	case StateSubmitted:
		str = "submitted"
	case StateWaiting:
		str = "waiting"
	case StateCompleted:
		str = "completed"
	case StateFailed:
		str = "failed"
	default:
		str = "unknown"
	}
	return json.Marshal(str)
}

// UnmarshalJSON deserializes State from a string.
func (s *State) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "idle":
		*s = StateIdle
	case "submitted":
		*s = StateSubmitted
	case "waiting":
		*s = StateWaiting
	case "completed":
		*s = StateCompleted
	case "failed":
		*s = StateFailed
	default:
		*s = StateIdle
	}
	return nil
}
