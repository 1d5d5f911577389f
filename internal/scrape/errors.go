package scrape

import (
	"context"
	"errors"
	"fmt"
)

// ErrJobNotFound is returned by stores when a job id is unknown.
var ErrJobNotFound = errors.New("job not found")

// ErrNoResponse indicates a fetch produced an empty or non-2xx response.
var ErrNoResponse = errors.New("no usable response")

// ConfigError marks a misconfiguration that retrying cannot fix, such as an
// unknown job type. Jobs failing with one go terminal immediately.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

// NewConfigError builds a non-retryable configuration error.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// IsRetryable classifies an execution error. Transient network, render and
// resource-acquisition failures retry; configuration errors and caller
// cancellation do not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	// Everything else, including net.Error timeouts and render deadlines,
	// is treated as transient.
	return true
}
