// Package edge implements the TTS Synthesizer using the Microsoft Edge
// read-aloud WebSocket service.
//
// One synthesis is one WebSocket session:
//
//	client -> speech.config (output format)
//	client -> ssml          (voice, rate, text)
//	server <- turn.start, audio.metadata (text frames)
//	server <- audio         (binary frames: 2-byte header length, headers, audio)
//	server <- turn.end
package edge

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nadzzz/voicewrite/internal/config"
	"github.com/nadzzz/voicewrite/internal/tts"
)

const (
	backendName = "edge"

	origin     = "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold"
	userAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36 Edg/130.0.0.0"
	gecVersion = "1-130.0.2849.68"

	// Seconds between 1601-01-01 and 1970-01-01, the Windows file time epoch.
	winEpochOffset = 11644473600
)

// Synthesizer implements tts.Synthesizer against the Edge read-aloud endpoint.
type Synthesizer struct {
	endpoint string
	token    string
	format   string
	timeout  time.Duration
	tempDir  string
	dialer   *websocket.Dialer
	now      func() time.Time
}

// New creates a new Edge synthesizer from config. Audio files are created in tempDir.
func New(cfg config.EdgeConfig, tempDir string) *Synthesizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Synthesizer{
		endpoint: cfg.Endpoint,
		token:    cfg.TrustedToken,
		format:   cfg.OutputFormat,
		timeout:  timeout,
		tempDir:  tempDir,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return backendName }

// Close is a no-op, connections are per-request.
func (s *Synthesizer) Close() error { return nil }

// Synthesize streams the audio for text into a temporary file.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.Artifact, error) {
	if text == "" {
		return nil, tts.ErrEmptyText
	}
	rate := opts.Rate
	if rate == "" {
		rate = "+0%"
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	connID := strings.ReplaceAll(uuid.NewString(), "-", "")
	conn, resp, err := s.dialer.DialContext(ctx, s.socketURL(connID), s.headers())
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, tts.NewSynthesisError(backendName, "websocket connection failed", err)
	}
	defer conn.Close()

	// Unblock pending reads when the caller goes away.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	ts := s.timestamp()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(configMessage(ts, s.format))); err != nil {
		return nil, tts.NewSynthesisError(backendName, "sending speech config", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssmlMessage(connID, ts, opts.Voice, rate, text))); err != nil {
		return nil, tts.NewSynthesisError(backendName, "sending ssml", err)
	}

	contentType, ext := formatInfo(s.format)
	tf, err := tts.CreateTemp(s.tempDir, ext)
	if err != nil {
		return nil, tts.NewSynthesisError(backendName, "storing audio", err)
	}

	if err := s.receive(conn, tf); err != nil {
		tf.Discard()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, tts.NewSynthesisError(backendName, "receiving audio", err)
	}

	art, err := tf.Commit(opts.Voice, contentType)
	if err != nil {
		return nil, tts.NewSynthesisError(backendName, "storing audio", err)
	}
	slog.Debug("edge synthesis complete", "voice", opts.Voice, "rate", rate, "bytes", art.Size)
	return art, nil
}

// receive copies audio frames into tf until the service reports turn.end.
func (s *Synthesizer) receive(conn *websocket.Conn, tf *tts.TempFile) error {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		switch kind {
		case websocket.TextMessage:
			headers, _ := splitTextFrame(data)
			switch headers["Path"] {
			case "turn.end":
				return nil
			case "turn.start", "response", "audio.metadata":
			default:
				slog.Debug("edge unknown text frame", "path", headers["Path"])
			}

		case websocket.BinaryMessage:
			headers, audio, err := splitBinaryFrame(data)
			if err != nil {
				return err
			}
			if headers["Path"] != "audio" || len(audio) == 0 {
				continue
			}
			if _, err := tf.Write(audio); err != nil {
				return fmt.Errorf("writing audio: %w", err)
			}
		}
	}
}

func (s *Synthesizer) socketURL(connID string) string {
	q := url.Values{}
	q.Set("TrustedClientToken", s.token)
	q.Set("ConnectionId", connID)
	q.Set("Sec-MS-GEC", secMSGEC(s.now(), s.token))
	q.Set("Sec-MS-GEC-Version", gecVersion)
	return s.endpoint + "?" + q.Encode()
}

func (s *Synthesizer) headers() http.Header {
	h := http.Header{}
	h.Set("Pragma", "no-cache")
	h.Set("Cache-Control", "no-cache")
	h.Set("Origin", origin)
	h.Set("User-Agent", userAgent)
	h.Set("Accept-Language", "en-US,en;q=0.9")
	return h
}

// timestamp renders the JavaScript Date.toString() form the service expects.
func (s *Synthesizer) timestamp() string {
	return s.now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
}

// secMSGEC derives the clock-skew token: SHA-256 over the Windows file time,
// rounded down to five minutes, concatenated with the client token.
func secMSGEC(now time.Time, token string) string {
	secs := now.Unix() + winEpochOffset
	secs -= secs % 300
	ticks := secs * 10_000_000
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d%s", ticks, token)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func configMessage(ts, format string) string {
	return "X-Timestamp:" + ts + "\r\n" +
		"Content-Type:application/json; charset=utf-8\r\n" +
		"Path:speech.config\r\n\r\n" +
		`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"` + format + `"}}}}` + "\r\n"
}

func ssmlMessage(requestID, ts, voice, rate, text string) string {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(text))

	return "X-RequestId:" + requestID + "\r\n" +
		"Content-Type:application/ssml+xml\r\n" +
		"X-Timestamp:" + ts + "Z\r\n" +
		"Path:ssml\r\n\r\n" +
		"<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>" +
		"<voice name='" + longVoiceName(voice) + "'>" +
		"<prosody pitch='+0Hz' rate='" + rate + "' volume='+0%'>" +
		escaped.String() +
		"</prosody></voice></speak>"
}

// longVoiceName expands "en-US-AriaNeural" to the full service name.
func longVoiceName(voice string) string {
	if strings.Contains(voice, "(") {
		return voice
	}
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) != 3 {
		return voice
	}
	return fmt.Sprintf("Microsoft Server Speech Text to Speech Voice (%s-%s, %s)", parts[0], parts[1], parts[2])
}

// splitTextFrame parses "Key:Value\r\n...\r\n\r\nbody".
func splitTextFrame(data []byte) (map[string]string, []byte) {
	head, body, _ := bytes.Cut(data, []byte("\r\n\r\n"))
	return parseHeaders(head), body
}

// splitBinaryFrame parses a frame whose first two bytes give the header length.
func splitBinaryFrame(data []byte) (map[string]string, []byte, error) {
	if len(data) < 2 {
		return nil, nil, fmt.Errorf("binary frame too short: %d bytes", len(data))
	}
	n := int(binary.BigEndian.Uint16(data[:2]))
	if len(data) < 2+n {
		return nil, nil, fmt.Errorf("binary frame header length %d exceeds frame size %d", n, len(data))
	}
	return parseHeaders(data[2 : 2+n]), data[2+n:], nil
}

func parseHeaders(head []byte) map[string]string {
	headers := map[string]string{}
	for _, line := range strings.Split(string(head), "\r\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return headers
}

// formatInfo maps an Edge output format to a MIME type and file extension.
func formatInfo(format string) (contentType, ext string) {
	switch {
	case strings.Contains(format, "mp3"):
		return "audio/mpeg", ".mp3"
	case strings.Contains(format, "webm"):
		return "audio/webm", ".webm"
	case strings.Contains(format, "ogg"):
		return "audio/ogg", ".ogg"
	case strings.HasPrefix(format, "riff"):
		return "audio/wav", ".wav"
	default:
		return "application/octet-stream", ".bin"
	}
}
