// Package tts defines the interface for text-to-speech synthesis.
//
// A Synthesizer turns text into an audio file on local disk. The file is
// owned by the caller from the moment Synthesize returns: it is either handed
// to the playback queue or played and removed directly.
package tts

import "context"

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Voice is the provider-specific voice identifier (e.g., "en-US-AriaNeural").
	Voice string

	// Rate is the signed speaking-rate delta relative to normal speed (e.g., "+0%", "-20%").
	Rate string
}

// Synthesizer converts text to an audio file.
type Synthesizer interface {
	// Name returns the backend identifier (for logging and metrics).
	Name() string

	// Synthesize writes the audio for text into a new uniquely-named
	// temporary file and describes it. Failures are reported as *SynthesisError.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*Artifact, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// Artifact describes a synthesized audio file.
type Artifact struct {
	// Path is the absolute path of the temporary audio file.
	Path string

	// Size is the file size in bytes.
	Size int64

	// Voice is the provider voice used for synthesis.
	Voice string

	// ContentType is the MIME type of the audio (e.g., "audio/mpeg").
	ContentType string
}
