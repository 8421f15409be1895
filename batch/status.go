package batch

import "encoding/json"

// Status is the durable processing state of one input file.
type Status int

const (
	// StatusPending means the file was discovered but has no quilt yet.
	StatusPending Status = iota
	// StatusSuccess means the quilt was generated and saved.
	StatusSuccess
	// StatusFailed means the last attempt errored; the file is retried
	// on the next run.
	StatusFailed
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusSuccess:
		return "Success"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// text is the lowercase form stored in the database.
func (s Status) text() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// parseStatus maps a stored string back to a Status, defaulting to
// pending so unknown rows get reprocessed rather than trusted.
func parseStatus(text string) Status {
	switch text {
	case "success":
		return StatusSuccess
	case "failed":
		return StatusFailed
	default:
		return StatusPending
	}
}

// MarshalJSON serializes Status as a lowercase string.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.text())
}

// UnmarshalJSON deserializes Status from a string.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = parseStatus(str)
	return nil
}
