package filter

// Confidence is the certainty classification attached to a result row.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceUnknown Confidence = "unknown"
)

// ParseConfidence maps a raw attribute value to a Confidence.
// Anything that is not high, medium or low, including an empty value, is unknown.
func ParseConfidence(raw string) Confidence {
	switch Confidence(raw) {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return Confidence(raw)
	default:
		return ConfidenceUnknown
	}
}

// Rank orders confidences for thresholding: high > medium > low = unknown.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

func (c Confidence) String() string {
	return string(c)
}

// Status is the open/closed label of a result row. Only StatusClosed is distinguished.
type Status string

const StatusClosed Status = "CLOSED"

// ParseStatus keeps the raw label. The match against CLOSED is exact and case-sensitive.
func ParseStatus(raw string) Status {
	return Status(raw)
}

func (s Status) Closed() bool {
	return s == StatusClosed
}

func (s Status) String() string {
	return string(s)
}
