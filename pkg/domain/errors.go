package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfiguration is the sentinel wrapped by every ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ErrOrdering is the sentinel wrapped by every OrderingViolation.
var ErrOrdering = errors.New("ordering violation")

// ErrRunNotFound is returned when a run ID cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// ConfigurationError is fatal and is raised before any frame is processed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// OrderingViolation is raised when a frame is older than the last processed frame.
type OrderingViolation struct {
	Previous time.Time
	Got      time.Time
}

func (e *OrderingViolation) Error() string {
	return fmt.Sprintf("frame at %s is earlier than previous frame at %s",
		e.Got.Format(time.RFC3339), e.Previous.Format(time.RFC3339))
}

func (e *OrderingViolation) Unwrap() error {
	return ErrOrdering
}
