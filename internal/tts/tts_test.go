package tts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesisError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewSynthesisError("edge", "reading audio", cause)

	assert.Equal(t, "edge: reading audio: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewSynthesisError("piper", "no endpoint", nil)
	assert.Equal(t, "piper: no endpoint", bare.Error())
}

func TestTempFileCommit(t *testing.T) {
	dir := t.TempDir()

	tf, err := CreateTemp(dir, ".mp3")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(tf.Path()), "voicewrite-"))
	assert.Equal(t, ".mp3", filepath.Ext(tf.Path()))

	_, err = tf.Write([]byte("ID3"))
	require.NoError(t, err)
	_, err = tf.ReadFrom(strings.NewReader("audio"))
	require.NoError(t, err)

	art, err := tf.Commit("en-US-AriaNeural", "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, int64(8), art.Size)
	assert.Equal(t, "en-US-AriaNeural", art.Voice)

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, "ID3audio", string(data))
}

func TestTempFileCommitEmpty(t *testing.T) {
	tf, err := CreateTemp(t.TempDir(), ".wav")
	require.NoError(t, err)

	_, err = tf.Commit("v", "audio/wav")
	assert.ErrorIs(t, err, ErrNoAudio)
	assert.NoFileExists(t, tf.Path())
}

func TestTempFileUniqueNames(t *testing.T) {
	dir := t.TempDir()
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		tf, err := CreateTemp(dir, ".mp3")
		require.NoError(t, err)
		assert.False(t, seen[tf.Path()])
		seen[tf.Path()] = true
		tf.Discard()
		assert.NoFileExists(t, tf.Path())
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	require.NoError(t, Remove(path))
	assert.NoFileExists(t, path)
	assert.NoError(t, Remove(path), "removing a missing file is not an error")
}
