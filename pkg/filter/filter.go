// Package filter decides which scan result rows stay visible for a given
// show-closed flag and minimum confidence. It holds no state between calls:
// running Apply twice with the same configuration yields the same visibility.
package filter

// Threshold is the minimum confidence a row needs to stay visible.
type Threshold string

const (
	ThresholdAll    Threshold = "all"
	ThresholdHigh   Threshold = "high"
	ThresholdMedium Threshold = "medium"
)

// ParseThreshold maps a control value to a Threshold. Unrecognized values mean no threshold.
func ParseThreshold(raw string) Threshold {
	switch Threshold(raw) {
	case ThresholdHigh, ThresholdMedium:
		return Threshold(raw)
	default:
		return ThresholdAll
	}
}

// minRank is the lowest confidence rank passing the threshold.
func (t Threshold) minRank() int {
	switch t {
	case ThresholdHigh:
		return ConfidenceHigh.Rank()
	case ThresholdMedium:
		return ConfidenceMedium.Rank()
	default:
		return ConfidenceUnknown.Rank()
	}
}

func (t Threshold) String() string {
	return string(t)
}

// Config is the pair of user selected criteria for one filtering pass.
type Config struct {
	ShowClosed    bool
	MinConfidence Threshold
}

// DefaultConfig hides closed results and applies no confidence threshold.
func DefaultConfig() Config {
	return Config{
		ShowClosed:    false,
		MinConfidence: ThresholdAll,
	}
}

// Row is a rendered result entry. Missing attributes are reported as "".
type Row interface {
	Status() string
	Confidence() string
	SetVisible(visible bool)
}

// Visible reports whether a row with the given raw labels passes cfg.
func Visible(cfg Config, status, confidence string) bool {
	if !cfg.ShowClosed && ParseStatus(status).Closed() {
		return false
	}

	return ParseConfidence(confidence).Rank() >= ParseThreshold(string(cfg.MinConfidence)).minRank()
}

// Apply sets the visibility of every row according to cfg.
func Apply(cfg Config, rows []Row) {
	for _, row := range rows {
		row.SetVisible(Visible(cfg, row.Status(), row.Confidence()))
	}
}

// Stats summarises a filtering pass.
type Stats struct {
	Total   int
	Visible int
	Hidden  int
}

// Count evaluates rows against cfg without touching them.
func Count(cfg Config, rows []Row) Stats {
	stats := Stats{Total: len(rows)}
	for _, row := range rows {
		if Visible(cfg, row.Status(), row.Confidence()) {
			stats.Visible++
		} else {
			stats.Hidden++
		}
	}
	return stats
}
