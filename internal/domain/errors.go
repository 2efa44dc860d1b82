package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable marks a failed or timed-out external call.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMalformedDiscovery marks a trending-events response that failed
	// structural validation.
	ErrMalformedDiscovery = errors.New("malformed discovery response")

	// ErrMalformedAnalysis marks a reasoning response that failed
	// structural validation.
	ErrMalformedAnalysis = errors.New("malformed analysis response")

	// ErrUnknownCategory marks a category outside the fixed set. It
	// indicates an upstream contract violation, not bad user input.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrAwaitingConfirmation marks a run suspended at the retrieval
	// checkpoint, waiting for decisions supplied on resume.
	ErrAwaitingConfirmation = errors.New("awaiting checkpoint confirmation")
)

// StageError identifies which pipeline stage a failure came from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
