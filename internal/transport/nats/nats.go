// Package nats implements the NATS transport for voicewrite.
//
// The transport subscribes to two subjects: <subject> for fire-and-forget
// requests and <subject>.sync for requests that return after playback. The
// payload is a JSON SpeakRequest. When the message carries a reply subject the
// result (or an ErrorResponse) is published back, with the HTTP-equivalent
// status code in the Voicewrite-Status header.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/nadzzz/voicewrite/internal/config"
	"github.com/nadzzz/voicewrite/internal/dispatch"
	"github.com/nadzzz/voicewrite/internal/message"
	"github.com/nadzzz/voicewrite/internal/transport"
)

// StatusHeader carries the HTTP-equivalent status code of a reply.
const StatusHeader = "Voicewrite-Status"

// Transport implements transport.Transport over NATS.
type Transport struct {
	cfg config.NATSConfig

	ready chan struct{}

	mu      sync.Mutex
	conn    *nats.Conn
	subs    []*nats.Subscription
	closing bool
	wg      sync.WaitGroup
	once    sync.Once
}

// New creates a new NATS transport.
func New(cfg config.NATSConfig) *Transport {
	return &Transport{cfg: cfg, ready: make(chan struct{})}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "nats" }

// Ready is closed once the subscriptions are active. The daemon does not wait
// on it; tests use it to know when publishing is safe.
func (t *Transport) Ready() <-chan struct{} { return t.ready }

// Listen connects to the server, subscribes and serves until ctx is cancelled.
func (t *Transport) Listen(ctx context.Context, speaker transport.Speaker) error {
	opts := []nats.Option{
		nats.Name("voicewrite"),
		nats.Timeout(5 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if t.cfg.Token != "" {
		opts = append(opts, nats.Token(t.cfg.Token))
	}

	nc, err := nats.Connect(t.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}

	t.mu.Lock()
	t.conn = nc
	t.mu.Unlock()

	// Handlers keep running until their request is done; shutdown waits for them.
	reqCtx := context.WithoutCancel(ctx)
	if err := t.subscribe(t.cfg.Subject, func(m *nats.Msg) { t.handle(reqCtx, m, speaker, false) }); err != nil {
		nc.Close()
		return err
	}
	if err := t.subscribe(t.cfg.Subject+".sync", func(m *nats.Msg) { t.handle(reqCtx, m, speaker, true) }); err != nil {
		nc.Close()
		return err
	}

	slog.Info("nats transport listening", "url", t.cfg.URL, "subject", t.cfg.Subject, "queue", t.cfg.Queue)
	close(t.ready)

	<-ctx.Done()
	slog.Info("nats transport shutting down")
	return t.Close()
}

func (t *Transport) subscribe(subject string, cb nats.MsgHandler) error {
	var (
		sub *nats.Subscription
		err error
	)
	// Each message is handled on its own goroutine so sync requests on one
	// subject do not hold up the others.
	handler := func(m *nats.Msg) {
		t.mu.Lock()
		if t.closing {
			t.mu.Unlock()
			return
		}
		t.wg.Add(1)
		t.mu.Unlock()
		go func() {
			defer t.wg.Done()
			cb(m)
		}()
	}
	if t.cfg.Queue != "" {
		sub, err = t.conn.QueueSubscribe(subject, t.cfg.Queue, handler)
	} else {
		sub, err = t.conn.Subscribe(subject, handler)
	}
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}

	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()
	return nil
}

func (t *Transport) handle(ctx context.Context, m *nats.Msg, speaker transport.Speaker, wait bool) {
	id := m.Header.Get("X-Request-Id")
	if id == "" {
		id = uuid.NewString()
	}
	ctx = dispatch.WithRequestID(ctx, id)
	logger := slog.With("request_id", id, "subject", m.Subject)

	var req message.SpeakRequest
	if err := json.Unmarshal(m.Data, &req); err != nil {
		logger.Warn("invalid nats request", "error", err)
		t.reply(m, 400, message.ErrorResponse{Detail: "invalid json: " + err.Error()})
		return
	}

	var (
		res *message.SpeakResult
		err error
	)
	if wait {
		res, err = speaker.SpeakSync(ctx, req)
	} else {
		res, err = speaker.SpeakAsync(ctx, req)
	}
	if err != nil {
		logger.Warn("nats request failed", "error", err)
		t.reply(m, statusCode(err), message.ErrorResponse{Detail: transport.Detail(err)})
		return
	}

	if wait {
		t.reply(m, 200, message.SyncResponse{Status: "played", Size: res.Size, Voice: res.Voice})
		return
	}
	t.reply(m, 200, res)
}

func (t *Transport) reply(m *nats.Msg, code int, body any) {
	if m.Reply == "" {
		return
	}
	data, err := json.Marshal(body)
	if err != nil {
		slog.Error("marshalling nats reply", "error", err)
		return
	}
	out := nats.NewMsg(m.Reply)
	out.Data = data
	out.Header.Set(StatusHeader, strconv.Itoa(code))
	if err := m.RespondMsg(out); err != nil {
		slog.Warn("nats reply failed", "error", err)
	}
}

func statusCode(err error) int {
	switch transport.Classify(err) {
	case transport.StatusInvalid:
		return 400
	case transport.StatusUnavailable:
		return 503
	default:
		return 500
	}
}

// Close unsubscribes and closes the connection once in-flight requests have
// finished. It is safe to call more than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	nc, subs := t.conn, t.subs
	t.closing = true
	t.mu.Unlock()
	if nc == nil {
		return nil
	}

	var err error
	t.once.Do(func() {
		for _, sub := range subs {
			if uerr := sub.Unsubscribe(); uerr != nil && err == nil {
				err = uerr
			}
		}
		t.wg.Wait()
		nc.Close()
	})
	return err
}
