// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audio

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

// PodcastFile is the name of the finished audio inside a session directory.
const PodcastFile = "podcast.wav"

// FileStore implements pipeline.ArtifactStore on the local filesystem:
// <Dir>/<session>/podcast.wav.
type FileStore struct {
	Dir string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Path returns where the podcast of sessionID lives.
func (s *FileStore) Path(sessionID string) (string, error) {
	if sessionID == "" || sessionID != filepath.Base(sessionID) || strings.HasPrefix(sessionID, ".") {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(s.Dir, sessionID, PodcastFile), nil
}

// Put writes audio as WAV through a temp file and rename, so readers never
// see a half-written podcast.
func (s *FileStore) Put(ctx context.Context, sessionID string, audio types.AudioClip) (types.AudioArtifact, error) {
	path, err := s.Path(sessionID)
	if err != nil {
		return types.AudioArtifact{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.AudioArtifact{}, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.AudioArtifact{}, fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".podcast-*.wav")
	if err != nil {
		return types.AudioArtifact{}, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := WriteWAV(w, audio); err != nil {
		tmp.Close()
		return types.AudioArtifact{}, err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return types.AudioArtifact{}, fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return types.AudioArtifact{}, fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return types.AudioArtifact{}, fmt.Errorf("renaming to %s: %w", path, err)
	}
	return types.AudioArtifact{Handle: path, Format: "wav"}, nil
}

// Remove deletes the session's audio directory. A missing directory is not
// an error.
func (s *FileStore) Remove(sessionID string) error {
	path, err := s.Path(sessionID)
	if err != nil {
		return err
	}
	return os.RemoveAll(filepath.Dir(path))
}
