package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pollDefault re-reads the file even without notifications, for
// filesystems where fsnotify misses writes.
const pollDefault = time.Second

// FileSource tails a JSONL file. Lines appended after Run starts are
// delivered as they are written; a truncated or replaced file is read
// again from the start.
type FileSource struct {
	path   string
	handle HandleFunc
	logger *slog.Logger

	// PollInterval overrides pollDefault.
	PollInterval time.Duration

	mu      sync.Mutex
	stats   Stats
	offset  int64
	partial []byte
}

// NewFileSource creates a tail for path.
func NewFileSource(path string, h HandleFunc, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{path: filepath.Clean(path), handle: h, logger: logger}
}

// Stats returns counts so far.
func (s *FileSource) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run tails the file until ctx is cancelled. The file may not exist yet.
func (s *FileSource) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ingest: create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory so creation and replacement are seen.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("ingest: watch %q: %w", filepath.Dir(s.path), err)
	}

	interval := s.PollInterval
	if interval <= 0 {
		interval = pollDefault
	}
	poll := time.NewTicker(interval)
	defer poll.Stop()

	s.read()
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-poll.C:
			s.read()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			switch {
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				s.reset()
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				s.read()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("ingest watcher error", "path", s.path, "error", err)
		}
	}
}

func (s *FileSource) reset() {
	s.mu.Lock()
	s.offset = 0
	s.partial = nil
	s.mu.Unlock()
}

// read delivers complete lines written since the last call.
func (s *FileSource) read() {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("ingest open failed", "path", s.path, "error", err)
		}
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return
	}
	if info.Size() < s.offset {
		s.offset = 0
		s.partial = nil
	}
	if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
		return
	}
	data, err := io.ReadAll(f)
	if err != nil {
		s.logger.Warn("ingest read failed", "path", s.path, "error", err)
		return
	}
	s.offset += int64(len(data))

	buf := append(s.partial, data...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		s.stats.line(buf[:i], s.handle)
		buf = buf[i+1:]
	}
	if len(buf) > maxLineSize {
		s.stats.Invalid++
		buf = nil
	}
	s.partial = append([]byte(nil), buf...)
}
