package transport

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nadzzz/voicewrite/internal/dispatch"
	"github.com/nadzzz/voicewrite/internal/tts"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status Status
		detail string
	}{
		{"nil", nil, StatusOK, ""},
		{"empty text", fmt.Errorf("%w: %w", dispatch.ErrInvalidInput, tts.ErrEmptyText), StatusInvalid, "Text cannot be empty"},
		{"bad speed", fmt.Errorf("%w: speed must be a finite number", dispatch.ErrInvalidInput), StatusInvalid, "speed must be a finite number"},
		{"disabled", dispatch.ErrUnavailable, StatusUnavailable, "TTS not available"},
		{"closed", fmt.Errorf("%w: queue closed", dispatch.ErrUnavailable), StatusUnavailable, "TTS not available"},
		{"synthesis", fmt.Errorf("%w: %w", dispatch.ErrSynthesisFailed, errors.New("edge: boom")), StatusInternal, "synthesis failed: edge: boom"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, Classify(tc.err))
			if tc.err != nil {
				assert.Equal(t, tc.detail, Detail(tc.err))
			}
		})
	}
}
