package tts

import "errors"

var (
	// ErrEmptyText is returned when attempting to synthesize empty text.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrNoAudio is returned when the backend finished without producing audio.
	ErrNoAudio = errors.New("no audio received")
)

// SynthesisError reports a failed call to a synthesis backend.
type SynthesisError struct {
	// Backend is the synthesizer that failed (e.g., "edge", "piper").
	Backend string

	// Message describes the failing step.
	Message string

	// Cause is the underlying error (if any).
	Cause error
}

func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return e.Backend + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Backend + ": " + e.Message
}

func (e *SynthesisError) Unwrap() error {
	return e.Cause
}

// NewSynthesisError creates a new SynthesisError.
func NewSynthesisError(backend, message string, cause error) *SynthesisError {
	return &SynthesisError{Backend: backend, Message: message, Cause: cause}
}
