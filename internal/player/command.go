package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

// stderrLimit caps how much player output is kept for error messages.
const stderrLimit = 512

// Command is a Strategy that runs an external player binary with the audio
// file path appended as its last argument. The player gets no stdin.
type Command struct {
	name     string
	args     []string
	lookPath func(string) (string, error)
}

// ParseCommand parses a shell-like command line into a Command.
func ParseCommand(line string) (*Command, error) {
	args, err := shellwords.NewParser().Parse(line)
	if err != nil {
		return nil, fmt.Errorf("parse player command %q: %w", line, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("player command empty")
	}
	return &Command{
		name:     filepath.Base(args[0]),
		args:     args,
		lookPath: exec.LookPath,
	}, nil
}

// Name returns the binary name, e.g. "ffplay".
func (c *Command) Name() string { return c.name }

// Play runs the player and waits for it to exit or for ctx to end.
func (c *Command) Play(ctx context.Context, path string) Result {
	bin, err := c.lookPath(c.args[0])
	if err != nil {
		return Result{Strategy: c.name, Outcome: OutcomeUnavailable, Err: err}
	}

	args := append(append([]string{}, c.args[1:]...), path)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &limitedBuffer{buf: &stderr, max: stderrLimit}

	err = cmd.Run()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return Result{Strategy: c.name, Outcome: OutcomeTimedOut, Err: ctx.Err()}
	case errors.Is(ctx.Err(), context.Canceled):
		return Result{Strategy: c.name, Outcome: OutcomeCancelled, Err: ctx.Err()}
	case errors.Is(err, exec.ErrNotFound):
		return Result{Strategy: c.name, Outcome: OutcomeUnavailable, Err: err}
	case err != nil:
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return Result{Strategy: c.name, Outcome: OutcomeFailed, Err: err}
	}
	return Result{Strategy: c.name, Outcome: OutcomePlayed}
}

// limitedBuffer keeps the first max bytes written and discards the rest.
type limitedBuffer struct {
	buf *bytes.Buffer
	max int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if room := l.max - l.buf.Len(); room > 0 {
		if len(p) > room {
			l.buf.Write(p[:room])
		} else {
			l.buf.Write(p)
		}
	}
	return len(p), nil
}
