package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nadzzz/voicewrite/internal/player"
	"github.com/nadzzz/voicewrite/internal/tts"
)

// Player plays one file and reports the outcome. Implementations must not
// return before playback has finished.
type Player interface {
	Play(ctx context.Context, path string) player.Result
}

// Worker drains a Queue, playing one file at a time. It deletes every file
// it pops once the playback attempt is over, whatever the outcome.
type Worker struct {
	queue  *Queue
	player Player
	remove func(path string) error

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWorker creates a worker for q. Call Start to run it.
func NewWorker(q *Queue, p Player) *Worker {
	return &Worker{
		queue:  q,
		player: p,
		remove: tts.Remove,
		done:   make(chan struct{}),
	}
}

// Start runs the drain loop in a new goroutine. Cancelling ctx abandons the
// current playback and discards queued files; use Shutdown for a clean stop.
// Start after Shutdown is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	ctx, w.cancel = context.WithCancel(ctx)
	go func() {
		defer close(w.done)
		w.run(ctx)
	}()
	slog.Info("playback worker started")
}

// Done is closed once the worker has stopped.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Shutdown closes the queue and waits for the worker to play everything that
// was queued before the call. If ctx ends first, the current playback is
// cancelled, the remaining files are deleted unplayed and ctx.Err() is returned.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.queue.Close()

	w.mu.Lock()
	if !w.started {
		// Never run: mark it stopped so a later Start does nothing.
		w.started = true
		close(w.done)
		w.mu.Unlock()
		w.discard()
		return nil
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		slog.Warn("playback drain timed out, abandoning queued audio", "pending", w.queue.Len())
		w.cancel()
		<-w.done
		return ctx.Err()
	}
}

func (w *Worker) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			w.discard()
			return
		}

		item, err := w.queue.Pop(ctx)
		if err != nil {
			w.discard()
			return
		}
		if item.stop {
			slog.Info("playback worker stopped")
			return
		}

		w.handle(ctx, item)
	}
}

// handle plays a single item. A panic is logged and swallowed so that one
// bad item cannot stop the worker.
func (w *Worker) handle(ctx context.Context, item Item) {
	logger := slog.With("file", item.Path, "request_id", item.RequestID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("playback worker error", "panic", r)
		}
	}()
	defer func() {
		if err := w.remove(item.Path); err != nil {
			logger.Debug("removing played audio failed", "error", err)
		}
	}()

	logger.Debug("playing queued audio", "waited", time.Since(item.EnqueuedAt))
	res := w.player.Play(ctx, item.Path)
	logger.Debug("queued audio finished", "outcome", res.Outcome, "duration", res.Duration)
}

func (w *Worker) discard() {
	items := w.queue.Drain()
	for _, it := range items {
		_ = w.remove(it.Path)
	}
	if len(items) > 0 {
		slog.Warn("discarded queued audio without playing", "count", len(items))
	}
}
