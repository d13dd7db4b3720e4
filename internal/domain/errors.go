package domain

import (
	"fmt"
	"time"
)

// Capacity rejection reasons carried by CapacityError.
const (
	CapacityPositionLimit     = "position_limit"
	CapacityExposureLimit     = "exposure_limit"
	CapacityCopyExposureLimit = "copy_exposure_limit"
)

// ValidationError reports a config or input field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// CapacityError reports an entry refused by the exposure governor.
// Fails closed: callers treat it as a skip, never a retry.
type CapacityError struct {
	Reason string // position_limit | exposure_limit | copy_exposure_limit
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: %s", e.Reason)
}

// ExecutionError reports a swap failure at a named stage.
type ExecutionError struct {
	Stage string // reserve | swap | commit
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed at %s: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// StaleDataError reports a market snapshot too old to act on. Per-item:
// the tick skips the position and moves on.
type StaleDataError struct {
	Mint string
	Age  time.Duration
}

func (e *StaleDataError) Error() string {
	return fmt.Sprintf("stale market data for %s (age %s)", e.Mint, e.Age)
}

// FatalConfigError reports a configuration problem the process cannot
// safely trade through. It escalates to the halt signal rather than being
// merely logged.
type FatalConfigError struct {
	Reason string
}

func (e *FatalConfigError) Error() string {
	return fmt.Sprintf("fatal config error: %s", e.Reason)
}
