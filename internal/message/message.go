// Package message defines the wire types shared by every voicewrite transport.
package message

// SpeakRequest asks the daemon to say a piece of text.
type SpeakRequest struct {
	// Text is the text to speak. It is trimmed and must not be empty;
	// anything past the configured limit is dropped silently.
	Text string `json:"text" example:"Build finished"`

	// Voice is a public voice key (e.g., "af_heart"). Unknown or empty keys
	// fall back to the default voice.
	Voice string `json:"voice,omitempty" example:"af_heart"`

	// Speed is the speaking rate multiplier, 1.0 being normal. Omitted means 1.0.
	Speed *float64 `json:"speed,omitempty" example:"1.0"`
}

// SpeedOrDefault returns Speed, or 1.0 when it was not set.
func (r SpeakRequest) SpeedOrDefault() float64 {
	if r.Speed == nil {
		return 1.0
	}
	return *r.Speed
}

// SpeakResult describes the audio produced for a request.
type SpeakResult struct {
	// RequestID correlates log lines for this request.
	RequestID string `json:"request_id,omitempty"`

	// File is the path of the queued audio file. Only set for async requests.
	File string `json:"file,omitempty"`

	// Size is the audio file size in bytes.
	Size int64 `json:"size"`

	// Voice is the provider voice the audio was synthesized with.
	Voice string `json:"voice"`
}

// SyncResponse is returned once a synchronous request has been played.
type SyncResponse struct {
	Status string `json:"status" example:"played"`
	Size   int64  `json:"size" example:"18432"`
	Voice  string `json:"voice" example:"en-US-AriaNeural"`
}

// HealthResponse reports daemon status.
type HealthResponse struct {
	Status       string `json:"status" example:"ready"`
	TTSAvailable bool   `json:"tts_available"`
}

// VoicesResponse lists the public voice keys.
type VoicesResponse struct {
	Voices       []string `json:"voices"`
	TTSAvailable bool     `json:"tts_available"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail" example:"Text cannot be empty"`
}
