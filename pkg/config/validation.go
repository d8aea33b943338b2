package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/docker/go-units"
)

// ValidateURL validates that a string is a valid URL.
func ValidateURL(urlStr string, fieldName string) error {
	if urlStr == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", fieldName, err)
	}

	if parsed.Scheme == "" {
		return fmt.Errorf("%s must include a scheme (http/https)", fieldName)
	}

	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", fieldName)
	}

	return nil
}

// ParseMaxSize parses a human-readable size string (e.g., "10MB", "1GB") into bytes.
func ParseMaxSize(sizeStr string) (int64, error) {
	size, err := units.FromHumanSize(sizeStr)
	if err != nil {
		return 0, fmt.Errorf("failed to parse max size: %w", err)
	}
	return size, nil
}

// ValidateAddress validates a listen address such as ":8080" or "127.0.0.1:8080".
func ValidateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}

	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("invalid listen port %q", port)
	}
	return nil
}
