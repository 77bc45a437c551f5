// Package http implements the HTTP/JSON transport for voicewrite.
//
// This is the primary API: editors, scripts and hooks POST text to /speak
// (fire-and-forget) or /speak-sync (returns after playback). Errors are
// returned as {"detail": "..."}.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nadzzz/voicewrite/internal/dispatch"
	"github.com/nadzzz/voicewrite/internal/message"
	"github.com/nadzzz/voicewrite/internal/transport"
)

const maxBodyBytes = 1 << 20

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port            int
	shutdownTimeout time.Duration
	server          *http.Server
}

// New creates a new HTTP transport on the given port. shutdownTimeout bounds
// how long in-flight requests (including sync playback) may take to finish.
func New(port int, readHeaderTimeout, shutdownTimeout time.Duration) *Transport {
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 10 * time.Second
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 35 * time.Second
	}
	return &Transport{
		port:            port,
		shutdownTimeout: shutdownTimeout,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Listen starts the HTTP server and routes incoming requests to speaker.
func (t *Transport) Listen(ctx context.Context, speaker transport.Speaker) error {
	t.server.Handler = Router(speaker)

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		_ = t.Close()
	}()

	if err := t.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server, waiting for in-flight requests.
func (t *Transport) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), t.shutdownTimeout)
	defer cancel()
	return t.server.Shutdown(ctx)
}

// Router builds the API handler.
func Router(speaker transport.Speaker) http.Handler {
	h := &handlers{speaker: speaker}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", h.health)
	r.Get("/voices", h.voices)
	r.Post("/speak", h.speak)
	r.Post("/speak-sync", h.speakSync)

	// Swagger UI serves the OpenAPI doc registered by the docs package.
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return r
}

type handlers struct {
	speaker transport.Speaker
}

// health reports daemon status.
//
// @Summary  Daemon status
// @Tags     status
// @Produce  json
// @Success  200  {object}  message.HealthResponse
// @Router   /health [get]
func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, message.HealthResponse{
		Status:       "ready",
		TTSAvailable: h.speaker.Available(),
	})
}

// voices lists the public voice keys.
//
// @Summary  List voices
// @Tags     status
// @Produce  json
// @Success  200  {object}  message.VoicesResponse
// @Router   /voices [get]
func (h *handlers) voices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, message.VoicesResponse{
		Voices:       h.speaker.Voices(),
		TTSAvailable: h.speaker.Available(),
	})
}

// speak synthesizes text and queues it for playback.
//
// @Summary     Speak text (fire-and-forget)
// @Description Synthesizes the text and queues it behind any audio already waiting.
// @Description Returns as soon as the audio is queued, with an empty body.
// @Tags        speak
// @Accept      json
// @Produce     json
// @Param       request  body  message.SpeakRequest  true  "Text to speak"
// @Success     200  {string}  string  "Queued; see X-Audio-File and X-Audio-Size"
// @Header      200  {string}  X-Audio-File  "Path of the queued audio file"
// @Header      200  {integer} X-Audio-Size  "Audio size in bytes"
// @Failure     400  {object}  message.ErrorResponse
// @Failure     500  {object}  message.ErrorResponse
// @Failure     503  {object}  message.ErrorResponse
// @Router      /speak [post]
func (h *handlers) speak(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSpeak(w, r)
	if !ok {
		return
	}

	res, err := h.speaker.SpeakAsync(requestContext(r), req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Audio-File", res.File)
	w.Header().Set("X-Audio-Size", strconv.FormatInt(res.Size, 10))
	w.WriteHeader(http.StatusOK)
}

// speakSync synthesizes text and plays it before responding.
//
// @Summary     Speak text and wait
// @Description Synthesizes and plays the text, responding once playback has finished.
// @Description Playback problems are not reported; the response only reflects synthesis.
// @Tags        speak
// @Accept      json
// @Produce     json
// @Param       request  body  message.SpeakRequest  true  "Text to speak"
// @Success     200  {object}  message.SyncResponse
// @Failure     400  {object}  message.ErrorResponse
// @Failure     500  {object}  message.ErrorResponse
// @Failure     503  {object}  message.ErrorResponse
// @Router      /speak-sync [post]
func (h *handlers) speakSync(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSpeak(w, r)
	if !ok {
		return
	}

	res, err := h.speaker.SpeakSync(requestContext(r), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, message.SyncResponse{
		Status: "played",
		Size:   res.Size,
		Voice:  res.Voice,
	})
}

func decodeSpeak(w http.ResponseWriter, r *http.Request) (message.SpeakRequest, bool) {
	var req message.SpeakRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, message.ErrorResponse{Detail: "invalid json: " + err.Error()})
		return req, false
	}
	return req, true
}

func requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if id := chimiddleware.GetReqID(ctx); id != "" {
		ctx = dispatch.WithRequestID(ctx, id)
	}
	return ctx
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch transport.Classify(err) {
	case transport.StatusInvalid:
		status = http.StatusBadRequest
	case transport.StatusUnavailable:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, message.ErrorResponse{Detail: transport.Detail(err)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// requestLogger logs one line per request at debug level, errors at warn.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusBadRequest {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "http request",
			"request_id", chimiddleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
