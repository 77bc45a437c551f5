// Package dispatch implements the speak request pipeline.
//
// The dispatcher validates a request, resolves its voice and rate, hands it
// to the synthesizer, and then either enqueues the resulting file for the
// playback worker (async) or plays it directly before returning (sync).
// Every transport goes through the same Dispatcher.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nadzzz/voicewrite/internal/message"
	"github.com/nadzzz/voicewrite/internal/metrics"
	"github.com/nadzzz/voicewrite/internal/playback"
	"github.com/nadzzz/voicewrite/internal/tts"
	"github.com/nadzzz/voicewrite/internal/voice"
)

// DefaultMaxChars is the text limit used when none is configured.
const DefaultMaxChars = 500

// MaxSpeed is the largest accepted speed multiplier. Speeds must also be
// positive.
const MaxSpeed = 10.0

var (
	// ErrInvalidInput is returned for requests that can never succeed as sent.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable is returned when speech output is disabled or shutting down.
	ErrUnavailable = errors.New("TTS not available")

	// ErrSynthesisFailed wraps every synthesizer failure.
	ErrSynthesisFailed = errors.New("synthesis failed")
)

// Dispatcher is the request orchestrator shared by all transports.
type Dispatcher struct {
	synthesizer tts.Synthesizer // nil if TTS is disabled
	catalog     *voice.Catalog
	queue       *playback.Queue
	player      playback.Player
	maxChars    int
	metrics     *metrics.Metrics

	remove func(path string) error
}

// New creates a Dispatcher. synthesizer may be nil, in which case every speak
// request fails with ErrUnavailable.
func New(synthesizer tts.Synthesizer, catalog *voice.Catalog, queue *playback.Queue, p playback.Player, maxChars int, m *metrics.Metrics) *Dispatcher {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Dispatcher{
		synthesizer: synthesizer,
		catalog:     catalog,
		queue:       queue,
		player:      p,
		maxChars:    maxChars,
		metrics:     m,
		remove:      tts.Remove,
	}
}

// Available reports whether speak requests can be served.
func (d *Dispatcher) Available() bool { return d.synthesizer != nil }

// Voices returns the public voice keys in listing order.
func (d *Dispatcher) Voices() []string { return d.catalog.Keys() }

// SpeakAsync synthesizes req and queues the audio for playback. It returns
// once the file is queued; playback happens later on the worker.
func (d *Dispatcher) SpeakAsync(ctx context.Context, req message.SpeakRequest) (*message.SpeakResult, error) {
	j, err := d.prepare(ctx, req)
	if err != nil {
		d.metrics.Request("async", resultLabel(err))
		return nil, err
	}
	logger := j.logger.With("mode", "async")

	art, err := d.synthesize(ctx, j)
	if err != nil {
		logger.Error("synthesis failed", "error", err)
		d.metrics.Request("async", resultLabel(err))
		return nil, err
	}

	if err := d.queue.Push(playback.Item{Path: art.Path, RequestID: j.id}); err != nil {
		// Nobody will play or delete the file now.
		_ = d.remove(art.Path)
		logger.Warn("enqueue rejected", "error", err)
		d.metrics.Request("async", "unavailable")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	logger.Info("audio queued", "file", art.Path, "size", art.Size)
	d.metrics.Request("async", "ok")
	return &message.SpeakResult{
		RequestID: j.id,
		File:      art.Path,
		Size:      art.Size,
		Voice:     art.Voice,
	}, nil
}

// SpeakSync synthesizes req, plays it on the caller's goroutine and removes
// the file. Playback problems are logged, never returned.
func (d *Dispatcher) SpeakSync(ctx context.Context, req message.SpeakRequest) (*message.SpeakResult, error) {
	j, err := d.prepare(ctx, req)
	if err != nil {
		d.metrics.Request("sync", resultLabel(err))
		return nil, err
	}
	logger := j.logger.With("mode", "sync")

	art, err := d.synthesize(ctx, j)
	if err != nil {
		logger.Error("synthesis failed", "error", err)
		d.metrics.Request("sync", resultLabel(err))
		return nil, err
	}
	defer func() {
		if err := d.remove(art.Path); err != nil {
			logger.Debug("removing played audio failed", "error", err)
		}
	}()

	// A client that goes away does not cut the sentence short; the player
	// timeout still bounds the call.
	res := d.player.Play(context.WithoutCancel(ctx), art.Path)
	logger.Info("sync playback finished", "outcome", res.Outcome, "duration", res.Duration, "size", art.Size)

	d.metrics.Request("sync", "ok")
	return &message.SpeakResult{
		RequestID: j.id,
		Size:      art.Size,
		Voice:     art.Voice,
	}, nil
}

type job struct {
	id     string
	text   string
	opts   tts.SynthesizeOpts
	logger *slog.Logger
}

// prepare validates and normalizes a request. Nothing here touches the
// synthesizer or the filesystem.
func (d *Dispatcher) prepare(ctx context.Context, req message.SpeakRequest) (*job, error) {
	if !d.Available() {
		return nil, ErrUnavailable
	}

	// Whitespace only decides emptiness; the text itself is sent as given.
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, tts.ErrEmptyText)
	}
	speed := req.SpeedOrDefault()
	if math.IsNaN(speed) || speed <= 0 || speed > MaxSpeed {
		return nil, fmt.Errorf("%w: speed must be greater than 0 and at most %g", ErrInvalidInput, MaxSpeed)
	}

	id := RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
	}

	j := &job{
		id:   id,
		text: Truncate(req.Text, d.maxChars),
		opts: tts.SynthesizeOpts{
			Voice: d.catalog.Resolve(req.Voice),
			Rate:  RateString(speed),
		},
	}
	j.logger = slog.With("request_id", id, "voice", j.opts.Voice, "rate", j.opts.Rate)
	if len(j.text) < len(req.Text) {
		j.logger.Debug("text truncated", "chars", utf8.RuneCountInString(req.Text), "limit", d.maxChars)
	}
	return j, nil
}

func (d *Dispatcher) synthesize(ctx context.Context, j *job) (*tts.Artifact, error) {
	start := time.Now()
	art, err := d.synthesizer.Synthesize(ctx, j.text, j.opts)
	d.metrics.Synthesis(d.synthesizer.Name(), err == nil, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	j.logger.Debug("synthesis complete", "backend", d.synthesizer.Name(), "size", art.Size, "duration", time.Since(start))
	return art, nil
}

// Truncate returns at most limit runes of text.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}

// RateString converts a speed multiplier into a signed percentage delta:
// 1.0 gives "+0%", 1.25 gives "+25%" and 0.8 gives "-20%". The delta is
// clamped to what MaxSpeed and a zero speed can produce.
func RateString(speed float64) string {
	delta := math.Round((speed - 1.0) * 100)
	if math.IsNaN(delta) {
		delta = 0
	}
	delta = min(max(delta, -100), (MaxSpeed-1)*100)
	pct := int(delta)
	if pct >= 0 {
		return fmt.Sprintf("+%d%%", pct)
	}
	return fmt.Sprintf("%d%%", pct)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrSynthesisFailed):
		return "synthesis_error"
	default:
		return "error"
	}
}

type requestIDKey struct{}

// WithRequestID attaches a transport-level request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
