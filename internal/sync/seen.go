package sync

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// SeenSet is the append-only set of message ids that reached a terminal
// state. One id per line; the file is loaded once at open and appended to
// as messages finish, so a crash loses at most the in-flight message.
type SeenSet struct {
	mu   sync.Mutex
	ids  map[string]struct{}
	file *os.File
}

// OpenSeenSet loads the set from path, creating the file if needed.
func OpenSeenSet(path string) (*SeenSet, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrapf(err, "seen: create dir for %s", path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "seen: open %s", path)
	}

	ids := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			ids[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return nil, eris.Wrapf(err, "seen: read %s", path)
	}

	return &SeenSet{ids: ids, file: f}, nil
}

// Contains reports whether the id already reached a terminal state.
func (s *SeenSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Add records the id durably. Adding an id twice is a no-op.
func (s *SeenSet) Add(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return nil
	}
	if _, err := s.file.WriteString(id + "\n"); err != nil {
		return eris.Wrapf(err, "seen: append %s", id)
	}
	s.ids[id] = struct{}{}
	return nil
}

// Len returns the number of terminal message ids.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Close releases the underlying file.
func (s *SeenSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
