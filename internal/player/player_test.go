package player

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStrategy struct {
	name    string
	outcome Outcome
	panics  bool

	mu    sync.Mutex
	calls []string
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Play(_ context.Context, path string) Result {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	return Result{Outcome: f.outcome}
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestPlayFallsThroughUnavailable(t *testing.T) {
	primary := &fakeStrategy{name: "ffplay", outcome: OutcomeUnavailable}
	secondary := &fakeStrategy{name: "aplay", outcome: OutcomePlayed}
	p := NewWithStrategies([]Strategy{primary, secondary}, time.Second, nil)

	res := p.Play(context.Background(), "/tmp/a.mp3")

	assert.Equal(t, OutcomePlayed, res.Outcome)
	assert.Equal(t, "aplay", res.Strategy)
	assert.Equal(t, []string{"/tmp/a.mp3"}, primary.calls)
	assert.Equal(t, []string{"/tmp/a.mp3"}, secondary.calls)
}

func TestPlayStopsAtFirstPresentPlayer(t *testing.T) {
	primary := &fakeStrategy{name: "ffplay", outcome: OutcomeFailed}
	secondary := &fakeStrategy{name: "aplay", outcome: OutcomePlayed}
	p := NewWithStrategies([]Strategy{primary, secondary}, time.Second, nil)

	res := p.Play(context.Background(), "/tmp/a.mp3")

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Empty(t, secondary.calls, "a present player that fails is not retried with another one")
}

func TestPlayAllUnavailable(t *testing.T) {
	p := NewWithStrategies([]Strategy{
		&fakeStrategy{name: "ffplay", outcome: OutcomeUnavailable},
		&fakeStrategy{name: "aplay", outcome: OutcomeUnavailable},
	}, time.Second, nil)

	res := p.Play(context.Background(), "/tmp/a.mp3")
	assert.Equal(t, OutcomeUnavailable, res.Outcome)
}

func TestPlayRecoversPanic(t *testing.T) {
	p := NewWithStrategies([]Strategy{&fakeStrategy{name: "bad", panics: true}}, time.Second, nil)

	var res Result
	assert.NotPanics(t, func() { res = p.Play(context.Background(), "/tmp/a.mp3") })
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Error(t, res.Err)
}

func TestNew(t *testing.T) {
	p, err := New([]string{"ffplay -nodisp -autoexit -loglevel quiet", `"/opt/my player/play" --quiet`}, 0, nil)
	require.NoError(t, err)
	require.Len(t, p.strategies, 2)
	assert.Equal(t, 30*time.Second, p.timeout)
	assert.Equal(t, "ffplay", p.strategies[0].Name())
	assert.Equal(t, "play", p.strategies[1].Name())

	_, err = New([]string{""}, time.Second, nil)
	assert.Error(t, err)

	_, err = New([]string{`ffplay "unterminated`}, time.Second, nil)
	assert.Error(t, err)
}

func TestCommandPlays(t *testing.T) {
	requireShell(t)

	// $0 receives the file path.
	c, err := ParseCommand(`sh -c 'test -n "$0"'`)
	require.NoError(t, err)

	res := c.Play(context.Background(), filepath.Join(t.TempDir(), "a.mp3"))
	assert.Equal(t, OutcomePlayed, res.Outcome)
	assert.NoError(t, res.Err)
}

func TestCommandFailure(t *testing.T) {
	requireShell(t)

	c, err := ParseCommand(`sh -c 'echo bad file >&2; exit 3'`)
	require.NoError(t, err)

	res := c.Play(context.Background(), "/tmp/a.mp3")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "bad file")
}

func TestCommandTimeout(t *testing.T) {
	requireShell(t)

	c, err := ParseCommand(`sh -c 'exec sleep 10'`)
	require.NoError(t, err)
	p := NewWithStrategies([]Strategy{c}, 100*time.Millisecond, nil)

	start := time.Now()
	res := p.Play(context.Background(), "/tmp/a.mp3")

	assert.Equal(t, OutcomeTimedOut, res.Outcome)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCommandCancelled(t *testing.T) {
	requireShell(t)

	c, err := ParseCommand(`sh -c 'exec sleep 10'`)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	res := c.Play(ctx, "/tmp/a.mp3")
	assert.Equal(t, OutcomeCancelled, res.Outcome)
}

func TestCommandMissingBinary(t *testing.T) {
	c, err := ParseCommand("voicewrite-no-such-player -q")
	require.NoError(t, err)

	res := c.Play(context.Background(), "/tmp/a.mp3")
	assert.Equal(t, OutcomeUnavailable, res.Outcome)
	assert.True(t, errors.Is(res.Err, exec.ErrNotFound))
}

func TestCommandLookPathInjected(t *testing.T) {
	c, err := ParseCommand("ffplay -nodisp")
	require.NoError(t, err)
	c.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	res := c.Play(context.Background(), "/tmp/a.mp3")
	assert.Equal(t, OutcomeUnavailable, res.Outcome)
	assert.Equal(t, "ffplay", res.Strategy)
}

func TestLimitedBuffer(t *testing.T) {
	var lb limitedBuffer
	lb.buf = new(bytes.Buffer)
	lb.max = 4

	n, err := lb.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, _ = lb.Write([]byte("gh"))
	assert.Equal(t, "abcd", lb.buf.String())
}
