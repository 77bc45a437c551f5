package tts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// TempFile is a uniquely-named audio file being written by a backend.
// Call Commit once all audio is written, or Discard to remove it.
type TempFile struct {
	f    *os.File
	size int64
}

// CreateTemp creates a new audio file in dir (os.TempDir() when empty) with
// the given extension, e.g. ".mp3".
func CreateTemp(dir, ext string) (*TempFile, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	name := filepath.Join(dir, "voicewrite-"+uuid.NewString()+ext)
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating temp audio file: %w", err)
	}
	return &TempFile{f: f}, nil
}

// Write appends audio bytes to the file.
func (t *TempFile) Write(p []byte) (int, error) {
	n, err := t.f.Write(p)
	t.size += int64(n)
	return n, err
}

// ReadFrom copies r into the file.
func (t *TempFile) ReadFrom(r io.Reader) (int64, error) {
	n, err := io.Copy(t.f, r)
	t.size += n
	return n, err
}

// Path returns the file path.
func (t *TempFile) Path() string { return t.f.Name() }

// Size returns the number of bytes written so far.
func (t *TempFile) Size() int64 { return t.size }

// Commit closes the file and returns the artifact describing it. An empty
// file is discarded and ErrNoAudio returned.
func (t *TempFile) Commit(voice, contentType string) (*Artifact, error) {
	if err := t.f.Close(); err != nil {
		_ = os.Remove(t.f.Name())
		return nil, fmt.Errorf("closing temp audio file: %w", err)
	}
	if t.size == 0 {
		_ = os.Remove(t.f.Name())
		return nil, ErrNoAudio
	}
	return &Artifact{
		Path:        t.f.Name(),
		Size:        t.size,
		Voice:       voice,
		ContentType: contentType,
	}, nil
}

// Discard closes and removes the file. Errors are ignored.
func (t *TempFile) Discard() {
	_ = t.f.Close()
	_ = os.Remove(t.f.Name())
}

// Remove deletes an artifact's file, ignoring a file that is already gone.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
