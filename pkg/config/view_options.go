// Package config provides shared configuration types and validation helpers for scanview.
package config

import "github.com/CompassSecurity/scanview/pkg/filter"

// ViewOptions contains the fields shared by every command that shows results.
type ViewOptions struct {
	// ShowClosed keeps CLOSED results visible
	ShowClosed bool
	// MinConfidence is the minimum confidence (all, high, medium)
	MinConfidence string
	// MaxResultsSize is the maximum size of a results file or page (in bytes)
	MaxResultsSize int64
}

// DefaultViewOptions hides closed results, applies no threshold and accepts up to 50MB.
func DefaultViewOptions() ViewOptions {
	return ViewOptions{
		ShowClosed:     false,
		MinConfidence:  string(filter.ThresholdAll),
		MaxResultsSize: 50 * 1000 * 1000, // 50MB
	}
}

// FilterConfig builds the filter configuration for one pass.
func (o ViewOptions) FilterConfig() filter.Config {
	return filter.Config{
		ShowClosed:    o.ShowClosed,
		MinConfidence: filter.ParseThreshold(o.MinConfidence),
	}
}
