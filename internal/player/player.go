// Package player plays audio files through local player binaries.
//
// Playback is best effort. A Player tries its strategies in order, skips the
// ones whose binary is not installed, and reports what happened as a Result.
// It never returns an error: by the time a file is played the request that
// produced it has usually been answered already.
package player

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nadzzz/voicewrite/internal/metrics"
)

// Outcome classifies a playback attempt.
type Outcome string

const (
	// OutcomePlayed means the player exited cleanly.
	OutcomePlayed Outcome = "played"
	// OutcomeUnavailable means no usable player binary was found.
	OutcomeUnavailable Outcome = "unavailable"
	// OutcomeFailed means the player ran but exited with an error.
	OutcomeFailed Outcome = "failed"
	// OutcomeTimedOut means playback exceeded the timeout and was killed.
	OutcomeTimedOut Outcome = "timed_out"
	// OutcomeCancelled means the caller's context ended first.
	OutcomeCancelled Outcome = "cancelled"
)

// Result describes one playback.
type Result struct {
	Strategy string
	Outcome  Outcome
	Duration time.Duration
	Err      error
}

// Strategy is one way of playing a file.
type Strategy interface {
	Name() string
	Play(ctx context.Context, path string) Result
}

// Player runs an ordered list of strategies with a hard timeout per attempt.
type Player struct {
	strategies []Strategy
	timeout    time.Duration
	metrics    *metrics.Metrics
}

// New builds a Player from command lines such as "ffplay -nodisp -autoexit".
func New(commands []string, timeout time.Duration, m *metrics.Metrics) (*Player, error) {
	strategies := make([]Strategy, 0, len(commands))
	for _, line := range commands {
		c, err := ParseCommand(line)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, c)
	}
	return NewWithStrategies(strategies, timeout, m), nil
}

// NewWithStrategies builds a Player from explicit strategies.
func NewWithStrategies(strategies []Strategy, timeout time.Duration, m *metrics.Metrics) *Player {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Player{strategies: strategies, timeout: timeout, metrics: m}
}

// Play plays path with the first available strategy and waits for it to finish.
func (p *Player) Play(ctx context.Context, path string) (res Result) {
	start := time.Now()
	logger := slog.With("file", path)

	defer func() {
		if r := recover(); r != nil {
			res = Result{Strategy: res.Strategy, Outcome: OutcomeFailed, Err: fmt.Errorf("player panic: %v", r)}
			logger.Error("audio playback panicked", "panic", r)
		}
		res.Duration = time.Since(start)
		p.metrics.Playback(res.Strategy, string(res.Outcome), res.Duration)
	}()

	for _, s := range p.strategies {
		res = p.attempt(ctx, s, path)
		if res.Outcome == OutcomeUnavailable {
			logger.Debug("audio player not available", "strategy", s.Name(), "error", res.Err)
			continue
		}

		switch res.Outcome {
		case OutcomePlayed:
			logger.Info("audio played", "strategy", res.Strategy, "duration", time.Since(start))
		case OutcomeTimedOut:
			logger.Error("audio playback timed out", "strategy", res.Strategy, "timeout", p.timeout)
		case OutcomeCancelled:
			logger.Warn("audio playback cancelled", "strategy", res.Strategy)
		default:
			logger.Error("audio playback error", "strategy", res.Strategy, "error", res.Err)
		}
		return res
	}

	logger.Warn("no audio player found", "tried", len(p.strategies))
	return Result{Outcome: OutcomeUnavailable}
}

func (p *Player) attempt(ctx context.Context, s Strategy, path string) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res := s.Play(ctx, path)
	if res.Strategy == "" {
		res.Strategy = s.Name()
	}
	return res
}
