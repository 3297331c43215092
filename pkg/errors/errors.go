package errors

import (
	"errors"
	"fmt"
)

// Common error types
var (
	// Candidate errors
	ErrInvalidAddress = errors.New("invalid candidate address")
	ErrNoCandidates   = errors.New("no candidates to test")

	// Evaluation errors
	ErrInvalidWeights = errors.New("invalid scoring weights")
	ErrNotTested      = errors.New("candidate was not tested")

	// Source errors
	ErrSourceFetchFailed = errors.New("failed to fetch candidate list")
	ErrSourceEmpty       = errors.New("candidate list is empty")

	// Channel errors
	ErrChannelUpdateFailed = errors.New("channel update failed")
	ErrNoChannels          = errors.New("no channel ids configured")

	// Config errors
	ErrConfigInvalid  = errors.New("invalid config")
	ErrSettingUnknown = errors.New("unknown setting")
	ErrSettingMissing = errors.New("setting not found")
)

// CandidateError represents a candidate-related error
type CandidateError struct {
	Address string
	Err     error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("candidate '%s': %v", e.Address, e.Err)
}

func (e *CandidateError) Unwrap() error {
	return e.Err
}

// SourceError represents a failure while loading the candidate list
type SourceError struct {
	URL string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source '%s': %v", e.URL, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// ChannelError represents a failure pushing a proxy to one management channel
type ChannelError struct {
	ChannelID  int
	StatusCode int
	Body       string
	Err        error
}

func (e *ChannelError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("channel %d: HTTP %d: %s", e.ChannelID, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("channel %d: %v", e.ChannelID, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// ConfigError represents an invalid configuration field
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config field '%s': %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
