// Package transport defines the interface for pluggable request transports.
//
// Each transport (HTTP, gRPC, NATS) decodes requests in its own wire format
// and hands them to a Speaker. The Speaker doesn't care how requests arrive;
// transports only work with this contract.
package transport

import (
	"context"
	"errors"
	"strings"

	"github.com/nadzzz/voicewrite/internal/dispatch"
	"github.com/nadzzz/voicewrite/internal/message"
	"github.com/nadzzz/voicewrite/internal/tts"
)

// Speaker serves speak requests. *dispatch.Dispatcher implements it.
type Speaker interface {
	SpeakAsync(ctx context.Context, req message.SpeakRequest) (*message.SpeakResult, error)
	SpeakSync(ctx context.Context, req message.SpeakRequest) (*message.SpeakResult, error)
	Voices() []string
	Available() bool
}

var _ Speaker = (*dispatch.Dispatcher)(nil)

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "http", "grpc", "nats").
	Name() string

	// Listen starts accepting requests and passes them to speaker.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, speaker Speaker) error

	// Close shuts the transport down, draining in-flight work.
	Close() error
}

// Status maps a dispatch error to the coarse class every transport reports.
type Status int

const (
	StatusOK Status = iota
	StatusInvalid
	StatusUnavailable
	StatusInternal
)

// Classify returns the Status for err.
func Classify(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, dispatch.ErrInvalidInput):
		return StatusInvalid
	case errors.Is(err, dispatch.ErrUnavailable):
		return StatusUnavailable
	default:
		return StatusInternal
	}
}

// Detail returns the client-facing message for err.
func Detail(err error) string {
	switch Classify(err) {
	case StatusInvalid:
		if errors.Is(err, tts.ErrEmptyText) {
			return "Text cannot be empty"
		}
		return strings.TrimPrefix(err.Error(), dispatch.ErrInvalidInput.Error()+": ")
	case StatusUnavailable:
		return "TTS not available"
	default:
		return err.Error()
	}
}
