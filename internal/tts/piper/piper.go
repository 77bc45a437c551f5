// Package piper implements the TTS Synthesizer using a Piper Wyoming protocol server.
//
// Piper is a fast, local neural text-to-speech system. The linuxserver/piper
// container exposes the Wyoming protocol on TCP port 10200. This package
// implements a client for that protocol and stores the result as a WAV file.
//
// Wyoming protocol format (per event):
//
//	<json_length> <payload_length>\n
//	<json_bytes>\n
//	<payload_bytes>   (if payload_length > 0)
package piper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/nadzzz/voicewrite/internal/config"
	"github.com/nadzzz/voicewrite/internal/tts"
)

const backendName = "piper"

// Synthesizer implements tts.Synthesizer using the Wyoming protocol.
//
// Wyoming has no speaking-rate control, so SynthesizeOpts.Rate is ignored.
type Synthesizer struct {
	endpoint     string // host:port of the Piper Wyoming server
	defaultVoice string
	tempDir      string
}

// New creates a new Piper synthesizer from config. Audio files are created in tempDir.
func New(cfg config.PiperConfig, tempDir string) *Synthesizer {
	ep := strings.TrimPrefix(cfg.Endpoint, "tcp://")
	ep = strings.TrimPrefix(ep, "http://")

	return &Synthesizer{
		endpoint:     ep,
		defaultVoice: cfg.DefaultVoice,
		tempDir:      tempDir,
	}
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return backendName }

// Synthesize sends text to the Piper server and writes the synthesized audio to a WAV file.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.Artifact, error) {
	if text == "" {
		return nil, tts.ErrEmptyText
	}
	if s.endpoint == "" {
		return nil, tts.NewSynthesisError(backendName, "no endpoint configured", nil)
	}

	voice := opts.Voice
	if voice == "" {
		voice = s.defaultVoice
	}

	slog.Debug("piper synthesize", "text_length", len(text), "voice", voice, "rate", opts.Rate, "endpoint", s.endpoint)

	// Connect to the Wyoming server.
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", s.endpoint)
	if err != nil {
		return nil, tts.NewSynthesisError(backendName, "connecting", err)
	}
	defer conn.Close()

	// Set deadline from context.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	synthEvent := wyomingEvent{
		Type: "synthesize",
		Data: map[string]any{
			"text": text,
			"voice": map[string]any{
				"name": voice,
			},
		},
	}
	if err := writeEvent(conn, synthEvent, nil); err != nil {
		return nil, tts.NewSynthesisError(backendName, "sending synthesize event", err)
	}

	// Read response events: audio-start -> audio-chunk* -> audio-stop
	var (
		pcmBuf     bytes.Buffer
		sampleRate = 22050
		channels   = 1
		width      = 2
	)

	reader := bufio.NewReader(conn)
	for {
		evt, payload, err := readEvent(reader)
		if err != nil {
			return nil, tts.NewSynthesisError(backendName, "reading event", err)
		}

		switch evt.Type {
		case "audio-start":
			if rate, ok := evt.Data["rate"].(float64); ok {
				sampleRate = int(rate)
			}
			if ch, ok := evt.Data["channels"].(float64); ok {
				channels = int(ch)
			}
			if w, ok := evt.Data["width"].(float64); ok {
				width = int(w)
			}
			slog.Debug("piper audio-start", "rate", sampleRate, "channels", channels, "width", width)

		case "audio-chunk":
			if len(payload) > 0 {
				pcmBuf.Write(payload)
			}

		case "audio-stop":
			slog.Debug("piper audio-stop", "pcm_bytes", pcmBuf.Len())
			if pcmBuf.Len() == 0 {
				return nil, tts.NewSynthesisError(backendName, "empty response", tts.ErrNoAudio)
			}
			return s.store(pcmToWAV(pcmBuf.Bytes(), sampleRate, channels, width), voice)

		case "error":
			msg := "unknown error"
			if text, ok := evt.Data["text"].(string); ok {
				msg = text
			}
			return nil, tts.NewSynthesisError(backendName, msg, nil)

		default:
			slog.Debug("piper unknown event", "type", evt.Type)
		}
	}
}

func (s *Synthesizer) store(wav []byte, voice string) (*tts.Artifact, error) {
	tf, err := tts.CreateTemp(s.tempDir, ".wav")
	if err != nil {
		return nil, tts.NewSynthesisError(backendName, "storing audio", err)
	}
	if _, err := tf.Write(wav); err != nil {
		tf.Discard()
		return nil, tts.NewSynthesisError(backendName, "storing audio", err)
	}
	art, err := tf.Commit(voice, "audio/wav")
	if err != nil {
		return nil, tts.NewSynthesisError(backendName, "storing audio", err)
	}
	return art, nil
}

// Close is a no-op, connections are per-request.
func (s *Synthesizer) Close() error { return nil }

// --- Wyoming protocol helpers ---

type wyomingEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// writeEvent sends a Wyoming event, optionally followed by a binary payload.
func writeEvent(w io.Writer, evt wyomingEvent, payload []byte) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(payload) + 32)
	fmt.Fprintf(&buf, "%d %d\n", len(body), len(payload))
	buf.Write(body)
	buf.WriteByte('\n')
	buf.Write(payload)

	_, err = w.Write(buf.Bytes())
	return err
}

// readEvent reads one Wyoming event and its payload.
func readEvent(r *bufio.Reader) (*wyomingEvent, []byte, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	fields := strings.Fields(line)
	if len(fields) != 2 {
		return nil, nil, fmt.Errorf("invalid wyoming header: %q", strings.TrimSpace(line))
	}
	jsonLen, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, nil, fmt.Errorf("parsing json_length: %w", err)
	}
	payloadLen, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, nil, fmt.Errorf("parsing payload_length: %w", err)
	}

	// JSON body is followed by a newline.
	body := make([]byte, jsonLen+1)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, fmt.Errorf("reading json: %w", err)
	}

	var evt wyomingEvent
	if err := json.Unmarshal(body[:jsonLen], &evt); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling event: %w", err)
	}

	if payloadLen == 0 {
		return &evt, nil, nil
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, nil, fmt.Errorf("reading payload: %w", err)
	}
	return &evt, payload, nil
}

// pcmToWAV wraps raw little-endian PCM data in a canonical 44-byte WAV header.
func pcmToWAV(pcm []byte, sampleRate, channels, bytesPerSample int) []byte {
	header := struct {
		RIFF          [4]byte
		ChunkSize     uint32
		WAVE          [4]byte
		Fmt           [4]byte
		FmtSize       uint32
		AudioFormat   uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataSize      uint32
	}{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(pcm)),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1, // PCM
		Channels:      uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * bytesPerSample),
		BlockAlign:    uint16(channels * bytesPerSample),
		BitsPerSample: uint16(bytesPerSample * 8),
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(len(pcm)),
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	_ = binary.Write(buf, binary.LittleEndian, header)
	buf.Write(pcm)
	return buf.Bytes()
}
