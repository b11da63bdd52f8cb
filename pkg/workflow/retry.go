package workflow

import (
	"context"
	"errors"
	"strings"
)

// Classification is the retry decision for a failed run.
type Classification int

const (
	Permanent Classification = iota
	Transient
)

func (c Classification) String() string {
	if c == Transient {
		return "transient"
	}

	return "permanent"
}

var transientMarkers = []string{
	"network",
	"timeout",
	"fetch",
	"rate limit",
	"too many requests",
	"service unavailable",
	"internal server error",
}

// Classify decides whether a failed run may be retried. Validation errors are always permanent.
func Classify(err error) Classification {
	if err == nil || IsValidationError(err) {
		return Permanent
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transient
	}

	message := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(message, marker) {
			return Transient
		}
	}

	return Permanent
}
