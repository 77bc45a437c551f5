package piper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/voicewrite/internal/config"
	"github.com/nadzzz/voicewrite/internal/tts"
)

// fakeWyoming accepts one connection, records the synthesize event and
// replies with the given events.
func fakeWyoming(t *testing.T, reply func(conn net.Conn)) (addr string, got <-chan *wyomingEvent) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lis.Close() })

	events := make(chan *wyomingEvent, 1)
	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		evt, _, err := readEvent(bufio.NewReader(conn))
		if err != nil {
			return
		}
		events <- evt
		reply(conn)
	}()
	return lis.Addr().String(), events
}

func TestSynthesize(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	addr, got := fakeWyoming(t, func(conn net.Conn) {
		_ = writeEvent(conn, wyomingEvent{Type: "audio-start", Data: map[string]any{"rate": 16000, "channels": 1, "width": 2}}, nil)
		_ = writeEvent(conn, wyomingEvent{Type: "audio-chunk"}, pcm[:4])
		_ = writeEvent(conn, wyomingEvent{Type: "audio-chunk"}, pcm[4:])
		_ = writeEvent(conn, wyomingEvent{Type: "audio-stop"}, nil)
	})

	dir := t.TempDir()
	s := New(config.PiperConfig{Endpoint: "tcp://" + addr, DefaultVoice: "en_US-lessac-medium"}, dir)
	assert.Equal(t, "piper", s.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	art, err := s.Synthesize(ctx, "hello", tts.SynthesizeOpts{Rate: "+0%"})
	require.NoError(t, err)
	assert.Equal(t, "en_US-lessac-medium", art.Voice)
	assert.Equal(t, "audio/wav", art.ContentType)
	assert.Equal(t, int64(44+len(pcm)), art.Size)

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, pcm, data[44:])

	evt := <-got
	assert.Equal(t, "synthesize", evt.Type)
	assert.Equal(t, "hello", evt.Data["text"])
}

func TestSynthesizeServerError(t *testing.T) {
	addr, _ := fakeWyoming(t, func(conn net.Conn) {
		_ = writeEvent(conn, wyomingEvent{Type: "error", Data: map[string]any{"text": "voice not found"}}, nil)
	})

	s := New(config.PiperConfig{Endpoint: addr}, t.TempDir())
	_, err := s.Synthesize(context.Background(), "hello", tts.SynthesizeOpts{Voice: "xx"})

	var synthErr *tts.SynthesisError
	require.ErrorAs(t, err, &synthErr)
	assert.Contains(t, synthErr.Error(), "voice not found")
}

func TestSynthesizeValidation(t *testing.T) {
	s := New(config.PiperConfig{Endpoint: "127.0.0.1:1"}, t.TempDir())
	_, err := s.Synthesize(context.Background(), "", tts.SynthesizeOpts{})
	assert.ErrorIs(t, err, tts.ErrEmptyText)

	s = New(config.PiperConfig{}, t.TempDir())
	_, err = s.Synthesize(context.Background(), "hi", tts.SynthesizeOpts{})
	assert.Error(t, err)
}

func TestEventRoundTripWithPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEvent(&buf, wyomingEvent{Type: "audio-chunk", Data: map[string]any{"rate": 22050}}, []byte("pcm")))

	evt, payload, err := readEvent(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, "audio-chunk", evt.Type)
	assert.Equal(t, []byte("pcm"), payload)
}

func TestReadEventBadHeader(t *testing.T) {
	_, _, err := readEvent(bufio.NewReader(bytes.NewBufferString("garbage\n")))
	assert.Error(t, err)
}
